package repository

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"k8s.io/utils/clock"

	"github.com/bayleafwalker/depresolve/internal/artifact"
)

var errUnchanged = errors.New("unchanged")

const (
	checksumSuffix = ".sha1"
	statusSuffix   = ".status.json"
)

// Status is the sidecar kept next to each cached file.
type Status struct {
	Repository string    `json:"repository,omitempty"`
	Checksum   string    `json:"sha1,omitempty"`
	FetchedAt  time.Time `json:"fetchedAt,omitempty"`
	CheckedAt  time.Time `json:"checkedAt,omitempty"`
	// LocalCopy marks a snapshot installed locally; it is never re-checked.
	LocalCopy bool `json:"localCopy,omitempty"`
}

// Local is the filesystem-backed artifact cache. It is safe for concurrent
// use by goroutines and processes: every file is written to a temporary name
// in the target directory and renamed into place.
type Local struct {
	root  string
	clock clock.PassiveClock
}

// NewLocal opens (creating if needed) a cache rooted at root. A nil clk uses
// the wall clock.
func NewLocal(root string, clk clock.PassiveClock) (*Local, error) {
	if root == "" {
		return nil, errors.New("repository: local cache root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("repository: create local cache %s: %w", root, err)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Local{root: root, clock: clk}, nil
}

func (l *Local) Root() string { return l.root }

// PathFor returns where c lives in the cache.
func (l *Local) PathFor(c artifact.Coordinate) string {
	return filepath.Join(l.root, filepath.FromSlash(c.Path()))
}

// Exists reports whether a regular file is cached for c.
func (l *Local) Exists(c artifact.Coordinate) bool {
	info, err := os.Stat(l.PathFor(c))
	return err == nil && info.Mode().IsRegular()
}

// LastModified returns when c was last checked against a remote, falling
// back to the file's modification time.
func (l *Local) LastModified(c artifact.Coordinate) (time.Time, error) {
	info, err := os.Stat(l.PathFor(c))
	if err != nil {
		return time.Time{}, err
	}
	if st, err := l.Status(c); err == nil && !st.CheckedAt.IsZero() {
		return st.CheckedAt, nil
	}
	return info.ModTime(), nil
}

// Status reads the sidecar of c. A missing sidecar yields a zero Status.
func (l *Local) Status(c artifact.Coordinate) (Status, error) {
	var st Status
	raw, err := os.ReadFile(l.PathFor(c) + statusSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, err
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return Status{}, fmt.Errorf("repository: status of %s: %w", c, err)
	}
	return st, nil
}

func (l *Local) writeStatus(c artifact.Coordinate, st Status) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return writeAtomic(l.PathFor(c)+statusSuffix, func(w io.Writer) error {
		_, err := w.Write(raw)
		return err
	})
}

// Store writes the content of r as the cached file for c, fetched from the
// repository with id repoID, and returns its path.
func (l *Local) Store(c artifact.Coordinate, repoID string, r io.Reader) (string, error) {
	_, err := l.StoreIfChanged(c, repoID, func(w io.Writer) (bool, error) {
		_, err := io.Copy(w, r)
		return true, err
	})
	if err != nil {
		return "", err
	}
	return l.PathFor(c), nil
}

// StoreIfChanged lets fill write the file for c. When fill reports false
// the cached file, if any, is left untouched and only its check time moves.
func (l *Local) StoreIfChanged(c artifact.Coordinate, repoID string, fill func(io.Writer) (bool, error)) (bool, error) {
	return l.StoreVerified(c, repoID, fill, nil)
}

// StoreVerified is StoreIfChanged with a verify hook. verify receives the
// SHA-1 of newly written content before it replaces the cached file; an
// error from it discards the content.
func (l *Local) StoreVerified(c artifact.Coordinate, repoID string, fill func(io.Writer) (bool, error), verify func(sha1 string) error) (bool, error) {
	p := l.PathFor(c)
	h := sha1.New()
	err := writeAtomic(p, func(w io.Writer) error {
		changed, err := fill(io.MultiWriter(w, h))
		switch {
		case err != nil:
			return err
		case !changed:
			return errUnchanged
		case verify != nil:
			return verify(hex.EncodeToString(h.Sum(nil)))
		}
		return nil
	})
	switch {
	case errors.Is(err, errUnchanged):
		if l.Exists(c) {
			if err := l.Touch(c); err != nil {
				return false, fmt.Errorf("repository: status %s: %w", c, err)
			}
		}
		return false, nil
	case err != nil:
		return false, fmt.Errorf("repository: store %s: %w", c, err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if err := writeAtomic(p+checksumSuffix, func(w io.Writer) error {
		_, err := io.WriteString(w, sum)
		return err
	}); err != nil {
		return false, fmt.Errorf("repository: checksum %s: %w", c, err)
	}
	now := l.clock.Now()
	if err := l.writeStatus(c, Status{Repository: repoID, Checksum: sum, FetchedAt: now, CheckedAt: now}); err != nil {
		return false, fmt.Errorf("repository: status %s: %w", c, err)
	}
	return true, nil
}

// Touch records that c was checked against a remote without changing it.
func (l *Local) Touch(c artifact.Coordinate) error {
	st, err := l.Status(c)
	if err != nil {
		return err
	}
	st.CheckedAt = l.clock.Now()
	return l.writeStatus(c, st)
}

// MarkLocalCopy flags a cached snapshot as installed locally.
func (l *Local) MarkLocalCopy(c artifact.Coordinate) error {
	st, err := l.Status(c)
	if err != nil {
		return err
	}
	st.LocalCopy = true
	return l.writeStatus(c, st)
}

func (l *Local) IsLocalCopy(c artifact.Coordinate) bool {
	st, err := l.Status(c)
	return err == nil && st.LocalCopy
}

// Checksum returns the recorded SHA-1 of the cached file.
func (l *Local) Checksum(c artifact.Coordinate) (string, error) {
	raw, err := os.ReadFile(l.PathFor(c) + checksumSuffix)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// writeAtomic writes through fill into a temporary file beside path and
// renames it over path. Readers never observe a partial file.
func writeAtomic(path string, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
