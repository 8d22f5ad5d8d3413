package s3repo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
)

type fakeObject struct {
	content  string
	modified time.Time
}

type fakeStore struct {
	objects map[string]fakeObject
	opens   int
}

func (f *fakeStore) key(bucket, key string) string { return bucket + "/" + key }

func (f *fakeStore) Stat(_ context.Context, bucket, key string) (time.Time, error) {
	obj, ok := f.objects[f.key(bucket, key)]
	if !ok {
		return time.Time{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}
	return obj.modified, nil
}

func (f *fakeStore) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.opens++
	obj, ok := f.objects[f.key(bucket, key)]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}
	return io.NopCloser(strings.NewReader(obj.content)), nil
}

func TestLocation(t *testing.T) {
	cases := []struct {
		raw    string
		bucket string
		prefix string
		bad    bool
	}{
		{raw: "s3://artifacts/maven/releases", bucket: "artifacts", prefix: "maven/releases"},
		{raw: "s3://artifacts", bucket: "artifacts"},
		{raw: "s3://artifacts/", bucket: "artifacts"},
		{raw: "https://artifacts/maven", bad: true},
		{raw: "s3:///maven", bad: true},
	}
	for _, tc := range cases {
		bucket, prefix, err := Location(tc.raw)
		if tc.bad {
			if !errors.Is(err, repository.ErrBadURL) {
				t.Errorf("%s: expected ErrBadURL, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tc.raw, err)
			continue
		}
		if bucket != tc.bucket || prefix != tc.prefix {
			t.Errorf("%s: got %q %q", tc.raw, bucket, prefix)
		}
	}
}

func TestObjectKey(t *testing.T) {
	c := artifact.MustParseCoordinate("org.example:lib:1.0")
	if got := ObjectKey("maven", c); got != "maven/"+c.Path() {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ObjectKey("", c); got != c.Path() {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestFetchIfNewer(t *testing.T) {
	c := artifact.MustParseCoordinate("org.example:lib:1.0")
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{objects: map[string]fakeObject{
		"artifacts/maven/" + c.Path(): {content: "jar", modified: modified},
	}}
	tr := &Transport{store: store}
	remote := repository.NewRemote("s3", "s3://artifacts/maven")

	var buf bytes.Buffer
	if err := tr.Fetch(context.Background(), c, remote, &buf); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if buf.String() != "jar" {
		t.Fatalf("unexpected content %q", buf.String())
	}

	buf.Reset()
	changed, err := tr.FetchIfNewer(context.Background(), c, remote, modified, &buf)
	if err != nil {
		t.Fatalf("FetchIfNewer: %v", err)
	}
	if changed || store.opens != 1 {
		t.Fatalf("expected no download, changed=%v opens=%d", changed, store.opens)
	}

	changed, err = tr.FetchIfNewer(context.Background(), c, remote, modified.Add(-time.Minute), &buf)
	if err != nil || !changed {
		t.Fatalf("expected download, changed=%v err=%v", changed, err)
	}
}

func TestFetchMissing(t *testing.T) {
	tr := &Transport{store: &fakeStore{objects: map[string]fakeObject{}}}
	err := tr.Fetch(context.Background(), artifact.MustParseCoordinate("org.example:lib:1.0"), repository.NewRemote("s3", "s3://artifacts"), io.Discard)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Endpoint: "minio:9000"}).Validate(); err == nil {
		t.Fatal("expected missing credentials to fail")
	}
	if _, err := New(Config{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "b"}); err != nil {
		t.Fatalf("New: %v", err)
	}
}
