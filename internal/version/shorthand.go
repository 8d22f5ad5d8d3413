package version

import (
	"fmt"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// parseShorthand maps caret and tilde constraints onto a half-open interval:
//
//	^1.2.3 -> [1.2.3,2.0.0)
//	^0.2.3 -> [0.2.3,0.3.0)
//	~1.2.3 -> [1.2.3,1.3.0)
//	~1     -> [1.0.0,2.0.0)
func parseShorthand(spec string) (Range, error) {
	op, raw := spec[0], strings.TrimSpace(spec[1:])
	if _, err := mm.NewConstraint(spec); err != nil {
		return Range{}, fmt.Errorf("version: parse range %q: %v: %w", spec, err, ErrInvalidRange)
	}
	lower, err := mm.NewVersion(raw)
	if err != nil {
		return Range{}, fmt.Errorf("version: parse range %q: %v: %w", spec, err, ErrInvalidRange)
	}

	var upper mm.Version
	switch {
	case op == '~' && !strings.Contains(raw, "."):
		upper = lower.IncMajor()
	case op == '~':
		upper = lower.IncMinor()
	case lower.Major() > 0:
		upper = lower.IncMajor()
	case lower.Minor() > 0:
		upper = lower.IncMinor()
	default:
		upper = lower.IncPatch()
	}

	lo, err := Parse(lower.String())
	if err != nil {
		return Range{}, err
	}
	hi, err := Parse(upper.String())
	if err != nil {
		return Range{}, err
	}
	return Range{
		spec:         spec,
		restrictions: []Restriction{{Lower: lo, LowerInclusive: true, Upper: hi}},
	}, nil
}
