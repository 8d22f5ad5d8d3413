package version

import (
	"errors"
	"testing"
)

func TestParseRange(t *testing.T) {
	cases := []struct {
		spec         string
		restrictions int
		soft         bool
		str          string
	}{
		{spec: "1.0", restrictions: 1, soft: true, str: "1.0"},
		{spec: "[1.0]", restrictions: 1, str: "[1.0]"},
		{spec: "(,1.0]", restrictions: 1, str: "(,1.0]"},
		{spec: "[1.2,1.3]", restrictions: 1, str: "[1.2,1.3]"},
		{spec: "[1.0,2.0)", restrictions: 1, str: "[1.0,2.0)"},
		{spec: "[1.5,)", restrictions: 1, str: "[1.5,)"},
		{spec: "(,1.0],[1.2,)", restrictions: 2, str: "(,1.0],[1.2,)"},
		{spec: "(,1.1),(1.1,)", restrictions: 2, str: "(,1.1),(1.1,)"},
	}
	for _, c := range cases {
		r, err := ParseRange(c.spec)
		if err != nil {
			t.Fatalf("ParseRange(%q): %v", c.spec, err)
		}
		if got := len(r.Restrictions()); got != c.restrictions {
			t.Errorf("ParseRange(%q): %d restrictions, want %d", c.spec, got, c.restrictions)
		}
		if _, soft := r.Recommended(); soft != c.soft {
			t.Errorf("ParseRange(%q): soft = %v, want %v", c.spec, soft, c.soft)
		}
		if r.IsHard() == c.soft {
			t.Errorf("ParseRange(%q): IsHard = %v", c.spec, r.IsHard())
		}
		if r.String() != c.str {
			t.Errorf("ParseRange(%q).String() = %q, want %q", c.spec, r.String(), c.str)
		}
	}
}

func TestParseRangeInvalid(t *testing.T) {
	for _, spec := range []string{
		"",
		"(1.0)",
		"[1.0)",
		"(1.0]",
		"(1.0,1.0]",
		"[1.0,1.0)",
		"(1.0,1.0)",
		"[1.1,1.0]",
		"[1.0,1.2),1.3",
		"[1.1,1.3),(1.1,1.3]",
		"[1.2,),[1.5,)",
		"[1.3,),[1.0,1.2)",
		"[1.0,1.2",
		"^not.a.version",
	} {
		if _, err := ParseRange(spec); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("ParseRange(%q) err = %v, want ErrInvalidRange", spec, err)
		}
	}
}

func TestRangeContains(t *testing.T) {
	cases := []struct {
		spec    string
		version string
		want    bool
	}{
		{"[1.0,)", "1.0-SNAPSHOT", false},
		{"[1.0,)", "1.0", true},
		{"[1.0,1.1-SNAPSHOT]", "1.1-SNAPSHOT", true},
		{"[5.0.9.0,5.0.10.0)", "5.0.9.0", true},
		{"[1.0,2.0)", "2.0", false},
		{"(,1.0],[1.2,)", "1.1", false},
		{"(,1.0],[1.2,)", "1.2", true},
		{"1.0", "3.0", true},
	}
	for _, c := range cases {
		if got := MustParseRange(c.spec).Contains(MustParse(c.version)); got != c.want {
			t.Errorf("%s contains %s = %v, want %v", c.spec, c.version, got, c.want)
		}
	}
}

func TestIntersectHardRanges(t *testing.T) {
	got, err := MustParseRange("[1.0,2.0)").Intersect(MustParseRange("[1.5,3.0)"))
	if err != nil {
		t.Fatalf("intersect: %v", err)
	}
	if got.String() != "[1.5,2.0)" {
		t.Fatalf("expected [1.5,2.0), got %s", got)
	}

	_, err = MustParseRange("[1.0,2.0)").Intersect(MustParseRange("[2.0,3.0)"))
	if !errors.Is(err, ErrOverConstrained) {
		t.Fatalf("expected ErrOverConstrained, got %v", err)
	}

	got, err = MustParseRange("(,1.0],[1.2,)").Intersect(MustParseRange("[1.1,1.3]"))
	if err != nil {
		t.Fatalf("intersect: %v", err)
	}
	if got.String() != "[1.2,1.3]" {
		t.Fatalf("expected [1.2,1.3], got %s", got)
	}
}

func TestIntersectSoftWithHard(t *testing.T) {
	got, err := MustParseRange("1.2").Intersect(MustParseRange("[1.0,2.0)"))
	if err != nil {
		t.Fatalf("intersect: %v", err)
	}
	if v, ok := got.Recommended(); !ok || v.String() != "1.2" {
		t.Fatalf("expected recommendation 1.2 to survive, got %v", got)
	}
	if got.Contains(MustParse("2.0")) {
		t.Fatalf("expected the hard bound to be kept")
	}

	_, err = MustParseRange("[1.0,2.0)").Intersect(MustParseRange("2.5"))
	if !errors.Is(err, ErrOverConstrained) {
		t.Fatalf("expected ErrOverConstrained, got %v", err)
	}
}

func TestIntersectSoftWithSoftKeepsReceiver(t *testing.T) {
	got, err := MustParseRange("1.0").Intersect(MustParseRange("1.1"))
	if err != nil {
		t.Fatalf("intersect: %v", err)
	}
	if v, _ := got.Recommended(); v.String() != "1.0" {
		t.Fatalf("expected 1.0, got %s", got)
	}
}

func TestMatchSelectsHighestContained(t *testing.T) {
	available := []Version{MustParse("1.0"), MustParse("1.5"), MustParse("1.9"), MustParse("2.0")}
	v, ok := MustParseRange("[1.0,2.0)").Match(available)
	if !ok || v.String() != "1.9" {
		t.Fatalf("expected 1.9, got %v (ok=%v)", v, ok)
	}
	if _, ok := MustParseRange("[3.0,)").Match(available); ok {
		t.Fatalf("expected no match above the last release")
	}
}

func TestShorthand(t *testing.T) {
	cases := []struct {
		spec string
		in   []string
		out  []string
	}{
		{spec: "^1.2.3", in: []string{"1.2.3", "1.9"}, out: []string{"1.2.2", "2.0.0"}},
		{spec: "^0.2.3", in: []string{"0.2.3", "0.2.9"}, out: []string{"0.3.0"}},
		{spec: "~1.2.3", in: []string{"1.2.3", "1.2.10"}, out: []string{"1.3.0"}},
		{spec: "~1", in: []string{"1.0.0", "1.9"}, out: []string{"2.0.0"}},
	}
	for _, c := range cases {
		r, err := ParseRange(c.spec)
		if err != nil {
			t.Fatalf("ParseRange(%q): %v", c.spec, err)
		}
		if !r.IsHard() {
			t.Fatalf("expected %s to be a hard range", c.spec)
		}
		for _, v := range c.in {
			if !r.Contains(MustParse(v)) {
				t.Errorf("expected %s to contain %s", c.spec, v)
			}
		}
		for _, v := range c.out {
			if r.Contains(MustParse(v)) {
				t.Errorf("expected %s to NOT contain %s", c.spec, v)
			}
		}
	}
}
