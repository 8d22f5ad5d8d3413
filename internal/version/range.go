package version

import (
	"fmt"
	"strings"
)

// Restriction is one interval of a Range. A zero Lower or Upper is unbounded.
type Restriction struct {
	Lower          Version
	LowerInclusive bool
	Upper          Version
	UpperInclusive bool
}

// Everything is the unbounded restriction carried by soft ranges.
var Everything = Restriction{}

// Contains reports whether v lies within r.
func (r Restriction) Contains(v Version) bool {
	if !r.Lower.IsZero() {
		c := r.Lower.Compare(v)
		if c > 0 || (c == 0 && !r.LowerInclusive) {
			return false
		}
	}
	if !r.Upper.IsZero() {
		c := r.Upper.Compare(v)
		if c < 0 || (c == 0 && !r.UpperInclusive) {
			return false
		}
	}
	return true
}

func (r Restriction) String() string {
	if !r.Lower.IsZero() && r.LowerInclusive && r.UpperInclusive && r.Lower.Equal(r.Upper) {
		return "[" + r.Lower.String() + "]"
	}
	var b strings.Builder
	if r.LowerInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	b.WriteString(r.Lower.String())
	b.WriteByte(',')
	b.WriteString(r.Upper.String())
	if r.UpperInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// intersect returns the overlap of r and o, if any.
func (r Restriction) intersect(o Restriction) (Restriction, bool) {
	out := Restriction{}

	switch {
	case r.Lower.IsZero():
		out.Lower, out.LowerInclusive = o.Lower, o.LowerInclusive
	case o.Lower.IsZero():
		out.Lower, out.LowerInclusive = r.Lower, r.LowerInclusive
	default:
		switch c := r.Lower.Compare(o.Lower); {
		case c > 0:
			out.Lower, out.LowerInclusive = r.Lower, r.LowerInclusive
		case c < 0:
			out.Lower, out.LowerInclusive = o.Lower, o.LowerInclusive
		default:
			out.Lower, out.LowerInclusive = r.Lower, r.LowerInclusive && o.LowerInclusive
		}
	}

	switch {
	case r.Upper.IsZero():
		out.Upper, out.UpperInclusive = o.Upper, o.UpperInclusive
	case o.Upper.IsZero():
		out.Upper, out.UpperInclusive = r.Upper, r.UpperInclusive
	default:
		switch c := r.Upper.Compare(o.Upper); {
		case c < 0:
			out.Upper, out.UpperInclusive = r.Upper, r.UpperInclusive
		case c > 0:
			out.Upper, out.UpperInclusive = o.Upper, o.UpperInclusive
		default:
			out.Upper, out.UpperInclusive = r.Upper, r.UpperInclusive && o.UpperInclusive
		}
	}

	if !out.Lower.IsZero() && !out.Upper.IsZero() {
		c := out.Lower.Compare(out.Upper)
		if c > 0 || (c == 0 && !(out.LowerInclusive && out.UpperInclusive)) {
			return Restriction{}, false
		}
	}
	return out, true
}

// Range is either a soft recommendation ("1.0") or a hard set of restrictions
// ("[1.0,2.0)", "(,1.0],[1.2,)").
type Range struct {
	spec         string
	recommended  Version
	restrictions []Restriction
}

// Soft returns the soft range recommending v.
func Soft(v Version) Range {
	return Range{spec: v.String(), recommended: v, restrictions: []Restriction{Everything}}
}

// ParseRange parses a Maven range spec: a soft version, or one or more
// bracketed restrictions.
//
// Caret and tilde shorthand ("^1.2", "~1.2.3") is an extension on top of the
// Maven grammar, mapped onto the equivalent half-open interval. Maven itself
// rejects these specs, so descriptors meant to be shared with Maven tooling
// should not use them.
func ParseRange(spec string) (Range, error) {
	process := strings.TrimSpace(spec)
	if process == "" {
		return Range{}, fmt.Errorf("version: parse range %q: empty: %w", spec, ErrInvalidRange)
	}
	if process[0] == '^' || process[0] == '~' {
		return parseShorthand(process)
	}

	var (
		restrictions []Restriction
		upper        Version
		haveUpper    bool
	)
	for strings.HasPrefix(process, "[") || strings.HasPrefix(process, "(") {
		end := closingIndex(process)
		if end < 0 {
			return Range{}, fmt.Errorf("version: parse range %q: unbounded range: %w", spec, ErrInvalidRange)
		}
		r, err := parseRestriction(process[:end+1])
		if err != nil {
			return Range{}, fmt.Errorf("version: parse range %q: %w", spec, err)
		}
		if haveUpper && (upper.IsZero() || r.Lower.IsZero() || r.Lower.Compare(upper) < 0) {
			return Range{}, fmt.Errorf("version: parse range %q: ranges overlap: %w", spec, ErrInvalidRange)
		}
		restrictions = append(restrictions, r)
		upper, haveUpper = r.Upper, true

		process = strings.TrimSpace(process[end+1:])
		if strings.HasPrefix(process, ",") {
			process = strings.TrimSpace(process[1:])
		}
	}

	if process != "" {
		if len(restrictions) > 0 {
			return Range{}, fmt.Errorf("version: parse range %q: only fully-qualified sets allowed in multiple set scenario: %w", spec, ErrInvalidRange)
		}
		v, err := Parse(process)
		if err != nil {
			return Range{}, fmt.Errorf("version: parse range %q: %w", spec, ErrInvalidRange)
		}
		return Range{spec: strings.TrimSpace(spec), recommended: v, restrictions: []Restriction{Everything}}, nil
	}
	if len(restrictions) == 0 {
		return Range{}, fmt.Errorf("version: parse range %q: %w", spec, ErrInvalidRange)
	}
	return Range{spec: strings.TrimSpace(spec), restrictions: restrictions}, nil
}

func MustParseRange(spec string) Range {
	r, err := ParseRange(spec)
	if err != nil {
		panic(err)
	}
	return r
}

func closingIndex(s string) int {
	paren := strings.IndexByte(s, ')')
	bracket := strings.IndexByte(s, ']')
	switch {
	case paren < 0:
		return bracket
	case bracket < 0:
		return paren
	case paren < bracket:
		return paren
	}
	return bracket
}

func parseRestriction(spec string) (Restriction, error) {
	lowerInclusive := spec[0] == '['
	upperInclusive := spec[len(spec)-1] == ']'
	process := strings.TrimSpace(spec[1 : len(spec)-1])

	comma := strings.IndexByte(process, ',')
	if comma < 0 {
		if !lowerInclusive || !upperInclusive {
			return Restriction{}, fmt.Errorf("single version must be surrounded by []: %w", ErrInvalidRange)
		}
		v, err := Parse(process)
		if err != nil {
			return Restriction{}, fmt.Errorf("bad version in %s: %w", spec, ErrInvalidRange)
		}
		return Restriction{Lower: v, LowerInclusive: true, Upper: v, UpperInclusive: true}, nil
	}

	lowerRaw := strings.TrimSpace(process[:comma])
	upperRaw := strings.TrimSpace(process[comma+1:])
	if strings.Contains(upperRaw, ",") {
		return Restriction{}, fmt.Errorf("too many bounds in %s: %w", spec, ErrInvalidRange)
	}

	r := Restriction{LowerInclusive: lowerInclusive, UpperInclusive: upperInclusive}
	if lowerRaw != "" {
		v, err := Parse(lowerRaw)
		if err != nil {
			return Restriction{}, fmt.Errorf("bad lower bound in %s: %w", spec, ErrInvalidRange)
		}
		r.Lower = v
	}
	if upperRaw != "" {
		v, err := Parse(upperRaw)
		if err != nil {
			return Restriction{}, fmt.Errorf("bad upper bound in %s: %w", spec, ErrInvalidRange)
		}
		r.Upper = v
	}
	if !r.Lower.IsZero() && !r.Upper.IsZero() {
		c := r.Upper.Compare(r.Lower)
		if c < 0 {
			return Restriction{}, fmt.Errorf("range %s defies version ordering: %w", spec, ErrInvalidRange)
		}
		if c == 0 && !(lowerInclusive && upperInclusive) {
			return Restriction{}, fmt.Errorf("range %s is empty: %w", spec, ErrInvalidRange)
		}
	}
	return r, nil
}

// Recommended returns the soft version, if any.
func (r Range) Recommended() (Version, bool) { return r.recommended, !r.recommended.IsZero() }

func (r Range) Restrictions() []Restriction {
	out := make([]Restriction, len(r.restrictions))
	copy(out, r.restrictions)
	return out
}

// IsZero reports whether r was never parsed.
func (r Range) IsZero() bool { return r.recommended.IsZero() && len(r.restrictions) == 0 }

// IsHard reports whether r carries interval restrictions and no recommendation.
func (r Range) IsHard() bool { return r.recommended.IsZero() && len(r.restrictions) > 0 }

// Contains reports whether v satisfies every bound of r.
func (r Range) Contains(v Version) bool {
	for _, res := range r.restrictions {
		if res.Contains(v) {
			return true
		}
	}
	return false
}

// Match returns the highest of available that r contains.
func (r Range) Match(available []Version) (Version, bool) {
	var best Version
	found := false
	for _, v := range available {
		if !r.Contains(v) {
			continue
		}
		if !found || v.Compare(best) > 0 {
			best = v
			found = true
		}
	}
	return best, found
}

// Intersect narrows r by o.
//
// Two hard ranges without overlap, or a soft recommendation that falls
// outside the other side's hard restrictions, fail with ErrOverConstrained.
// Otherwise the result keeps r's recommendation when it is still contained,
// then o's.
func (r Range) Intersect(o Range) (Range, error) {
	var restrictions []Restriction
	for _, a := range r.restrictions {
		for _, b := range o.restrictions {
			if x, ok := a.intersect(b); ok {
				restrictions = append(restrictions, x)
			}
		}
	}
	if len(restrictions) == 0 {
		return Range{}, fmt.Errorf("version: %s and %s: %w", r, o, ErrOverConstrained)
	}

	out := Range{restrictions: restrictions}
	contains := func(v Version) bool { return out.Contains(v) }

	rv, rSoft := r.Recommended()
	ov, oSoft := o.Recommended()
	switch {
	case rSoft && o.IsHard() && !contains(rv):
		return Range{}, fmt.Errorf("version: %s is outside %s: %w", rv, o, ErrOverConstrained)
	case oSoft && r.IsHard() && !contains(ov):
		return Range{}, fmt.Errorf("version: %s is outside %s: %w", ov, r, ErrOverConstrained)
	case rSoft && contains(rv):
		out.recommended = rv
	case oSoft && contains(ov):
		out.recommended = ov
	}
	out.spec = out.format()
	return out, nil
}

func (r Range) String() string {
	if r.spec != "" {
		return r.spec
	}
	return r.format()
}

func (r Range) format() string {
	if v, ok := r.Recommended(); ok {
		return v.String()
	}
	parts := make([]string, 0, len(r.restrictions))
	for _, res := range r.restrictions {
		parts = append(parts, res.String())
	}
	return strings.Join(parts, ",")
}
