package artifact

import (
	"errors"
	"testing"
)

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate("org.example:lib:test-jar:tests:1.2")
	if err != nil {
		t.Fatalf("ParseCoordinate: %v", err)
	}
	if c.GroupID != "org.example" || c.ArtifactID != "lib" || c.Type != "test-jar" || c.Classifier != "tests" || c.Version != "1.2" {
		t.Fatalf("unexpected coordinate %+v", c)
	}
	if got := c.Path(); got != "org/example/lib/1.2/lib-1.2-tests.jar" {
		t.Fatalf("Path() = %q", got)
	}
	if got := c.Key().String(); got != "org.example:lib:test-jar:tests" {
		t.Fatalf("Key() = %q", got)
	}

	short := MustParseCoordinate("g:a:1.0")
	if short.Type != DefaultType || short.String() != "g:a:jar:1.0" {
		t.Fatalf("unexpected short coordinate %s", short)
	}

	for _, raw := range []string{"g:a", "g", ":a:1.0", "g::1.0"} {
		if _, err := ParseCoordinate(raw); err == nil {
			t.Errorf("expected %q to be rejected", raw)
		}
	}
	if _, err := ParseCoordinate("g:a"); !errors.Is(err, ErrBadCoordinate) {
		t.Fatalf("expected ErrBadCoordinate, got %v", err)
	}
}

func TestKeyIgnoresVersion(t *testing.T) {
	a := Coordinate{GroupID: "g", ArtifactID: "a", Version: "1.0"}
	b := Coordinate{GroupID: "g", ArtifactID: "a", Version: "2.0", Type: "jar"}
	if a.Key() != b.Key() {
		t.Fatalf("expected equal keys for %s and %s", a, b)
	}
	c := Coordinate{GroupID: "g", ArtifactID: "a", Version: "1.0", Classifier: "sources"}
	if a.Key() == c.Key() {
		t.Fatalf("expected classifier to be part of the key")
	}
}

func TestDerive(t *testing.T) {
	cases := []struct {
		declared, inherited Scope
		want                Scope
		transitive          bool
	}{
		{ScopeUnset, ScopeUnset, ScopeCompile, true},
		{ScopeTest, ScopeUnset, ScopeTest, true},
		{ScopeCompile, ScopeCompile, ScopeCompile, true},
		{ScopeUnset, ScopeCompile, ScopeCompile, true},
		{ScopeRuntime, ScopeCompile, ScopeRuntime, true},
		{ScopeCompile, ScopeRuntime, ScopeRuntime, true},
		{ScopeCompile, ScopeTest, ScopeTest, true},
		{ScopeRuntime, ScopeProvided, ScopeProvided, true},
		{ScopeTest, ScopeCompile, ScopeUnset, false},
		{ScopeProvided, ScopeCompile, ScopeUnset, false},
		{ScopeSystem, ScopeCompile, ScopeSystem, true},
		{ScopeSystem, ScopeTest, ScopeSystem, true},
	}
	for _, c := range cases {
		got, ok := Derive(c.declared, c.inherited)
		if got != c.want || ok != c.transitive {
			t.Errorf("Derive(%q, %q) = (%q, %v), want (%q, %v)", c.declared, c.inherited, got, ok, c.want, c.transitive)
		}
	}
}

func TestWidens(t *testing.T) {
	cases := []struct {
		farthest, nearest Scope
		want              bool
	}{
		{ScopeCompile, ScopeTest, true},
		{ScopeCompile, ScopeRuntime, true},
		{ScopeCompile, ScopeProvided, true},
		{ScopeCompile, ScopeCompile, false},
		{ScopeCompile, ScopeSystem, false},
		{ScopeRuntime, ScopeTest, true},
		{ScopeRuntime, ScopeProvided, true},
		{ScopeRuntime, ScopeCompile, false},
		{ScopeTest, ScopeCompile, false},
		{ScopeProvided, ScopeTest, false},
	}
	for _, c := range cases {
		if got := Widens(c.farthest, c.nearest); got != c.want {
			t.Errorf("Widens(%q, %q) = %v, want %v", c.farthest, c.nearest, got, c.want)
		}
	}
}

func TestExclusions(t *testing.T) {
	x := NewExclusions(Exclusion{GroupID: "g", ArtifactID: "a"})
	if !x.Excludes(MustParseCoordinate("g:a:1.0")) {
		t.Fatalf("expected g:a to be excluded")
	}
	if x.Excludes(MustParseCoordinate("g:b:1.0")) {
		t.Fatalf("expected g:b to be kept")
	}

	y := x.With(ParseExclusion("other"))
	if !y.Excludes(MustParseCoordinate("other:anything:1.0")) {
		t.Fatalf("expected group wildcard to exclude other:anything")
	}
	if x.Excludes(MustParseCoordinate("other:anything:1.0")) {
		t.Fatalf("With must not mutate the receiver")
	}

	z := NewExclusions(Exclusion{GroupID: "*", ArtifactID: "logging"}).Union(y)
	if !z.Excludes(MustParseCoordinate("any.group:logging:2.0")) || !z.Excludes(MustParseCoordinate("g:a:2.0")) {
		t.Fatalf("expected union to carry both sides")
	}
	if z.Len() != 3 || len(z.List()) != 3 {
		t.Fatalf("expected 3 exclusions, got %v", z.List())
	}

	var empty Exclusions
	if empty.Excludes(MustParseCoordinate("g:a:1.0")) {
		t.Fatalf("zero Exclusions must exclude nothing")
	}
}

func TestScopeFilter(t *testing.T) {
	c := MustParseCoordinate("g:a:1.0")
	compile := NewScopeFilter(ScopeCompile)
	if !compile.Include(c, ScopeProvided) || compile.Include(c, ScopeRuntime) || compile.Include(c, ScopeTest) {
		t.Fatalf("unexpected compile filter behaviour")
	}
	runtime := NewScopeFilter(ScopeRuntime)
	if !runtime.Include(c, ScopeRuntime) || !runtime.Include(c, ScopeUnset) || runtime.Include(c, ScopeProvided) {
		t.Fatalf("unexpected runtime filter behaviour")
	}
	if !NewScopeFilter(ScopeTest).Include(c, ScopeSystem) {
		t.Fatalf("expected test filter to include everything")
	}

	f := And(runtime, nil, NewExclusions(Exclusion{GroupID: "g", ArtifactID: "a"}))
	if f.Include(c, ScopeCompile) {
		t.Fatalf("expected And to apply the exclusion")
	}
}

func TestManagedVersionsMergeKeepsExisting(t *testing.T) {
	key := MustParseCoordinate("g:a:1.0").Key()
	other := MustParseCoordinate("g:b:1.0").Key()
	m := ManagedVersions{key: {Version: "2.0"}}
	merged := m.Merge(ManagedVersions{key: {Version: "3.0"}, other: {Version: "1.5"}})
	if merged[key].Version != "2.0" || merged[other].Version != "1.5" {
		t.Fatalf("unexpected merge result %+v", merged)
	}
	if _, ok := merged.Without(key)[key]; ok {
		t.Fatalf("expected key to be removed")
	}
	if _, ok := merged[key]; !ok {
		t.Fatalf("Without must not mutate the receiver")
	}
}
