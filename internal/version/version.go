package version

import (
	"fmt"
	"strings"
)

// Version is a parsed artifact version with Maven ordering semantics.
//
// Versions are split into numeric and qualifier items on '.', '-', '+' and on
// transitions between digits and letters. Numeric items compare by magnitude,
// qualifiers follow the well-known order
// alpha < beta < milestone < rc < snapshot < "" (release) < sp.
//
// The zero Version is not a valid version; use IsZero to test for it.
type Version struct {
	raw   string
	items *item
}

// Parse parses raw into a Version.
func Parse(raw string) (Version, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Version{}, fmt.Errorf("version: parse %q: %w", raw, ErrInvalidVersion)
	}
	if strings.ContainsAny(s, " \t\r\n[](),") {
		return Version{}, fmt.Errorf("version: parse %q: unexpected character: %w", raw, ErrInvalidVersion)
	}
	return Version{raw: s, items: parseItems(s)}, nil
}

func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string { return v.raw }

func (v Version) IsZero() bool { return v.items == nil }

// Canonical returns the normalized item form, e.g. "1-rc-1" for "1.0.RC1".
func (v Version) Canonical() string {
	if v.items == nil {
		return ""
	}
	return v.items.String()
}

// IsSnapshot reports whether v names a mutable snapshot, either "-SNAPSHOT"
// or the timestamped "yyyyMMdd.HHmmss-N" form.
func (v Version) IsSnapshot() bool { return IsSnapshot(v.raw) }

// Compare compares v with o, returning -1, 0 or 1. Zero versions sort first.
func (v Version) Compare(o Version) int {
	switch {
	case v.items == nil && o.items == nil:
		return 0
	case v.items == nil:
		return -1
	case o.items == nil:
		return 1
	}
	return v.items.compare(o.items)
}

// Equal reports whether v and o have the same canonical form.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
func Compare(a, b Version) int { return a.Compare(b) }

// IsSnapshot reports whether raw is a snapshot version string.
func IsSnapshot(raw string) bool {
	if strings.HasSuffix(strings.ToUpper(raw), "-SNAPSHOT") {
		return true
	}
	return timestampedSnapshot(raw)
}

// timestampedSnapshot matches "<base>-yyyyMMdd.HHmmss-<build>".
func timestampedSnapshot(raw string) bool {
	i := strings.LastIndexByte(raw, '-')
	if i <= 0 || i == len(raw)-1 || !allDigits(raw[i+1:]) {
		return false
	}
	rest := raw[:i]
	j := strings.LastIndexByte(rest, '-')
	if j < 0 {
		return false
	}
	ts := rest[j+1:]
	return len(ts) == 15 && ts[8] == '.' && allDigits(ts[:8]) && allDigits(ts[9:])
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
