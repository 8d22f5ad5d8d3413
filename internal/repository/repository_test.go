package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/bayleafwalker/depresolve/internal/artifact"
)

func TestParseUpdatePolicy(t *testing.T) {
	cases := map[string]UpdatePolicy{
		"":            {Kind: UpdateDaily},
		"daily":       {Kind: UpdateDaily},
		"ALWAYS":      {Kind: UpdateAlways},
		"never":       {Kind: UpdateNever},
		"interval:90": {Kind: UpdateInterval, Interval: 90 * time.Minute},
	}
	for raw, want := range cases {
		got, err := ParseUpdatePolicy(raw)
		if err != nil {
			t.Fatalf("ParseUpdatePolicy(%q): %v", raw, err)
		}
		if got != want {
			t.Errorf("ParseUpdatePolicy(%q) = %+v, want %+v", raw, got, want)
		}
	}
	for _, raw := range []string{"hourly", "interval:", "interval:-1", "interval:x"} {
		if _, err := ParseUpdatePolicy(raw); !errors.Is(err, ErrBadPolicy) {
			t.Errorf("ParseUpdatePolicy(%q) err = %v, want ErrBadPolicy", raw, err)
		}
	}
	if s := (UpdatePolicy{Kind: UpdateInterval, Interval: time.Hour}).String(); s != "interval:60" {
		t.Fatalf("String() = %q", s)
	}
}

func TestUpdateRequired(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	earlierToday := time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC)
	yesterday := time.Date(2024, 5, 9, 23, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		policy  UpdatePolicy
		checked time.Time
		want    bool
	}{
		{"always", UpdatePolicy{Kind: UpdateAlways}, now, true},
		{"never", UpdatePolicy{Kind: UpdateNever}, yesterday, false},
		{"never but unchecked", UpdatePolicy{Kind: UpdateNever}, time.Time{}, true},
		{"daily checked today", UpdatePolicy{Kind: UpdateDaily}, earlierToday, false},
		{"daily checked yesterday", UpdatePolicy{Kind: UpdateDaily}, yesterday, true},
		{"interval fresh", UpdatePolicy{Kind: UpdateInterval, Interval: time.Hour}, now.Add(-30 * time.Minute), false},
		{"interval stale", UpdatePolicy{Kind: UpdateInterval, Interval: time.Hour}, now.Add(-2 * time.Hour), true},
	}
	for _, c := range cases {
		if got := c.policy.UpdateRequired(c.checked, now); got != c.want {
			t.Errorf("%s: UpdateRequired = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestLocalStoreAndStatus(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	local, err := NewLocal(t.TempDir(), clk)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	c := artifact.MustParseCoordinate("org.example:lib:1.0")
	if local.Exists(c) {
		t.Fatalf("expected empty cache")
	}
	if _, err := local.LastModified(c); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	p, err := local.Store(c, "central", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if p != filepath.Join(local.Root(), "org", "example", "lib", "1.0", "lib-1.0.jar") {
		t.Fatalf("unexpected path %s", p)
	}
	if !local.Exists(c) {
		t.Fatalf("expected cached file")
	}
	sum, err := local.Checksum(c)
	if err != nil || sum != "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d" {
		t.Fatalf("unexpected checksum %q (%v)", sum, err)
	}
	st, err := local.Status(c)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Repository != "central" || !st.CheckedAt.Equal(clk.Now()) {
		t.Fatalf("unexpected status %+v", st)
	}

	clk.Step(time.Hour)
	if err := local.Touch(c); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	last, err := local.LastModified(c)
	if err != nil || !last.Equal(clk.Now()) {
		t.Fatalf("LastModified = %v (%v), want %v", last, err, clk.Now())
	}

	if local.IsLocalCopy(c) {
		t.Fatalf("expected no local-copy marker")
	}
	if err := local.MarkLocalCopy(c); err != nil {
		t.Fatalf("MarkLocalCopy: %v", err)
	}
	if !local.IsLocalCopy(c) {
		t.Fatalf("expected local-copy marker")
	}
}

func TestLocalStoreIfChangedKeepsFile(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	local, err := NewLocal(t.TempDir(), clk)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	c := artifact.MustParseCoordinate("org.example:lib:1.0-SNAPSHOT")
	if _, err := local.Store(c, "central", strings.NewReader("v1")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	clk.Step(time.Minute)
	changed, err := local.StoreIfChanged(c, "central", func(w io.Writer) (bool, error) {
		return false, nil
	})
	if err != nil || changed {
		t.Fatalf("StoreIfChanged = %v, %v; want false, nil", changed, err)
	}
	raw, _ := os.ReadFile(local.PathFor(c))
	if string(raw) != "v1" {
		t.Fatalf("unchanged fetch rewrote the file: %q", raw)
	}
	if last, _ := local.LastModified(c); !last.Equal(clk.Now()) {
		t.Fatalf("expected the check time to move to %v, got %v", clk.Now(), last)
	}

	boom := errors.New("boom")
	if _, err := local.StoreIfChanged(c, "central", func(w io.Writer) (bool, error) {
		io.WriteString(w, "partial")
		return false, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fill error, got %v", err)
	}
	raw, _ = os.ReadFile(local.PathFor(c))
	if string(raw) != "v1" {
		t.Fatalf("failed fetch left a partial file: %q", raw)
	}
	entries, _ := os.ReadDir(filepath.Dir(local.PathFor(c)))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temporary file %s left behind", e.Name())
		}
	}
}

func TestLocalStoreConcurrentSameSlot(t *testing.T) {
	local, err := NewLocal(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	c := artifact.MustParseCoordinate("g:a:1.0")
	payload := bytes.Repeat([]byte("0123456789"), 10000)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := local.Store(c, "r", bytes.NewReader(payload)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Store: %v", err)
	}

	got, err := os.ReadFile(local.PathFor(c))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("cached file corrupted: %d bytes", len(got))
	}
	entries, err := os.ReadDir(filepath.Dir(local.PathFor(c)))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("left temporary file %s behind", e.Name())
		}
	}
}

func TestFileTransport(t *testing.T) {
	dir := t.TempDir()
	remote := NewRemote("local", "file://"+filepath.ToSlash(dir))
	c := artifact.MustParseCoordinate("g:a:1.0")
	p := filepath.Join(dir, filepath.FromSlash(c.Path()))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte("jar"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	modTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(p, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	ctx := context.Background()
	var buf bytes.Buffer
	if err := (FileTransport{}).Fetch(ctx, c, remote, &buf); err != nil || buf.String() != "jar" {
		t.Fatalf("Fetch = %q, %v", buf.String(), err)
	}

	buf.Reset()
	newer, err := FileTransport{}.FetchIfNewer(ctx, c, remote, modTime.Add(time.Minute), &buf)
	if err != nil || newer || buf.Len() != 0 {
		t.Fatalf("expected not newer, got newer=%v len=%d err=%v", newer, buf.Len(), err)
	}
	newer, err = FileTransport{}.FetchIfNewer(ctx, c, remote, modTime.Add(-time.Minute), &buf)
	if err != nil || !newer || buf.String() != "jar" {
		t.Fatalf("expected newer copy, got newer=%v %q err=%v", newer, buf.String(), err)
	}

	missing := artifact.MustParseCoordinate("g:missing:1.0")
	if err := (FileTransport{}).Fetch(ctx, missing, remote, &buf); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	c := artifact.MustParseCoordinate("g:a:1.0")
	err := r.Fetch(context.Background(), c, NewRemote("x", "ftp://example.org/repo"), &bytes.Buffer{})
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
	err = r.Fetch(context.Background(), c, NewRemote("dir", t.TempDir()), &bytes.Buffer{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected plain paths to route to the file transport, got %v", err)
	}
}

func TestMergeRemotes(t *testing.T) {
	a, b := NewRemote("a", "file:///a"), NewRemote("b", "file:///b")
	got := Merge([]Remote{a}, b, a)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected merge %v", got)
	}
	if err := (Remote{URL: "file:///x"}).Validate(); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if !NewRemote("a", "x").PolicyFor(true).Enabled {
		t.Fatalf("expected default snapshot policy to be enabled")
	}
}
