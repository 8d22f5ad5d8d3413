package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/fetch"
	"github.com/bayleafwalker/depresolve/internal/listener"
	"github.com/bayleafwalker/depresolve/internal/metadata"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/resolution"
)

type fixture struct {
	t      *testing.T
	source *metadata.Static
	remote repository.Remote
	dir    string
	local  *repository.Local
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	local, err := repository.NewLocal(t.TempDir(), clocktesting.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return &fixture{t: t, source: metadata.NewStatic(), remote: repository.NewRemote("central", "file://"+filepath.ToSlash(dir)), dir: dir, local: local}
}

// artifact registers coord with deps and, unless unpublished, places its
// file in the remote repository.
func (f *fixture) artifact(coord string, published bool, deps ...metadata.Declaration) {
	f.t.Helper()
	c := artifact.MustParseCoordinate(coord)
	if err := f.source.Add(c, metadata.Descriptor{Dependencies: deps}); err != nil {
		f.t.Fatalf("add: %v", err)
	}
	if !published {
		return
	}
	p := filepath.Join(f.dir, filepath.FromSlash(c.Path()))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		f.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(coord), 0o644); err != nil {
		f.t.Fatalf("write: %v", err)
	}
}

func (f *fixture) resolver(opts ...Option) *DefaultResolver {
	return NewDefault(f.source, f.local, repository.NewRouter(), opts...)
}

func (f *fixture) request(deps ...metadata.Declaration) Request {
	return Request{
		Root:                artifact.MustParseCoordinate("g:r:1.0"),
		Dependencies:        deps,
		Repositories:        []repository.Remote{f.remote},
		ResolveTransitively: true,
	}
}

func dep(coord string) metadata.Declaration {
	return metadata.Declaration{Coordinate: artifact.MustParseCoordinate(coord)}
}

func TestDefaultResolver_EndToEnd(t *testing.T) {
	f := newFixture(t)
	f.artifact("g:r:1.0", true, dep("g:a:1.0"), dep("g:c:1.0"))
	f.artifact("g:a:1.0", true, dep("g:b:1.0"))
	f.artifact("g:a:2.0", true)
	f.artifact("g:b:1.0", true)
	f.artifact("g:c:1.0", true, dep("g:a:2.0"))

	rec := &listener.Recorder{}
	req := f.request()
	req.Dependencies = nil
	req.ResolveRoot = true
	req.Listeners = []listener.Listener{rec}

	result, err := f.resolver(WithWorkers(4), WithMetadataCache(64, time.Minute)).Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if err := (resolution.DefaultErrorHandler{}).Handle(result); err != nil {
		t.Fatalf("unexpected resolution failure: %v", err)
	}

	want := []string{"g:r:jar:1.0", "g:a:jar:1.0", "g:b:jar:1.0", "g:c:jar:1.0"}
	got := result.Artifacts()
	if len(got) != len(want) {
		t.Fatalf("expected %d artifacts, got %d", len(want), len(got))
	}
	for i, a := range got {
		if a.Coordinate.String() != want[i] {
			t.Errorf("artifact %d: got %s, want %s", i, a.Coordinate, want[i])
		}
		if !a.Resolved || a.File != f.local.PathFor(a.Coordinate) {
			t.Errorf("%s not resolved into the cache: %+v", a.Coordinate, a)
		}
	}

	omitted := rec.Of(listener.OmitForNearer)
	if len(omitted) != 1 || omitted[0].Artifact.Version != "2.0" || omitted[0].Replacement.Version != "1.0" {
		t.Fatalf("expected omitForNearer(A:2.0, A:1.0), got %+v", omitted)
	}
}

func TestDefaultResolver_StructuralErrorsSkipFetch(t *testing.T) {
	f := newFixture(t)
	f.artifact("g:a:1.0", true, dep("g:b:1.0"))
	f.artifact("g:b:1.0", true, dep("g:a:1.0"))

	result, err := f.resolver().Resolve(context.Background(), f.request(dep("g:a:1.0")))
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(result.CycleErrors()) != 1 {
		t.Fatalf("expected one cycle error")
	}
	for _, a := range result.Artifacts() {
		if a.Resolved {
			t.Fatalf("%s fetched despite collection errors", a.Coordinate)
		}
	}
	if err := (resolution.DefaultErrorHandler{}).Handle(result); !errors.Is(err, resolution.ErrCircularDependency) {
		t.Fatalf("expected the cycle to be terminal, got %v", err)
	}
}

func TestDefaultResolver_MissingArtifacts(t *testing.T) {
	f := newFixture(t)
	f.artifact("g:a:1.0", true, dep("g:gone:1.0"))
	f.artifact("g:gone:1.0", false)
	f.artifact("g:lost:1.0", false)

	result, err := f.resolver().Resolve(context.Background(), f.request(dep("g:a:1.0"), dep("g:lost:1.0")))
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	herr := (resolution.DefaultErrorHandler{}).Handle(result)
	var multi *resolution.MultipleNotFoundError
	if !errors.As(herr, &multi) {
		t.Fatalf("expected MultipleNotFoundError, got %v", herr)
	}
	if len(multi.Missing) != 2 || len(multi.Resolved) != 1 {
		t.Fatalf("unexpected missing/resolved split: %d/%d", len(multi.Missing), len(multi.Resolved))
	}
	if len(multi.Repositories) != 1 || multi.Repositories[0].ID != "central" {
		t.Fatalf("expected the searched repository to be named, got %v", multi.Repositories)
	}
}

func TestDefaultResolver_ResolutionFilter(t *testing.T) {
	f := newFixture(t)
	f.artifact("g:a:1.0", true)
	f.artifact("g:junit:4.0", false)

	junit := dep("g:junit:4.0")
	junit.Scope = artifact.ScopeTest
	req := f.request(dep("g:a:1.0"), junit)
	req.ResolutionFilter = artifact.NewScopeFilter(artifact.ScopeRuntime)

	result, err := f.resolver().Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if err := (resolution.DefaultErrorHandler{}).Handle(result); err != nil {
		t.Fatalf("filtered artifacts must not be fetched: %v", err)
	}
	if got := result.Artifacts(); len(got) != 1 || got[0].Coordinate.ArtifactID != "a" {
		t.Fatalf("unexpected artifacts %+v", got)
	}
}

func TestDefaultResolver_Offline(t *testing.T) {
	f := newFixture(t)
	f.artifact("g:a:1.0", true)
	req := f.request(dep("g:a:1.0"))
	req.Offline = true

	result, err := f.resolver().Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if missing := result.Missing(); len(missing) != 1 || missing[0].Reason != "offline mode" {
		t.Fatalf("expected the uncached artifact to be missing offline, got %v", missing)
	}
}

func TestDefaultResolver_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	r := f.resolver()

	cases := map[string]Request{
		"no group": {Root: artifact.Coordinate{ArtifactID: "r", Version: "1.0"}},
		"bad remote": {
			Root:         artifact.MustParseCoordinate("g:r:1.0"),
			Repositories: []repository.Remote{{URL: "file:///tmp"}},
		},
		"bad scope": {
			Root:         artifact.MustParseCoordinate("g:r:1.0"),
			Dependencies: []metadata.Declaration{{Coordinate: artifact.MustParseCoordinate("g:a:1.0"), Scope: "weird"}},
		},
	}
	for name, req := range cases {
		if _, err := r.Resolve(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}
}

func TestNewDefaultFetchesOnAPool(t *testing.T) {
	f := newFixture(t)
	if r := f.resolver(); r.workers != fetch.DefaultWorkers {
		t.Fatalf("default workers: got %d, want %d", r.workers, fetch.DefaultWorkers)
	}
	if r := f.resolver(WithWorkers(1)); r.workers != 1 {
		t.Fatalf("WithWorkers(1) not applied, got %d", r.workers)
	}
}
