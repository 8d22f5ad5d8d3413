package repository

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bayleafwalker/depresolve/internal/artifact"
)

// Transport moves artifact files out of a remote repository. Implementations
// return an error wrapping ErrNotFound when the remote does not hold the
// file; any other error is a transfer failure.
type Transport interface {
	// Fetch writes the artifact file to w.
	Fetch(ctx context.Context, c artifact.Coordinate, remote Remote, w io.Writer) error
	// FetchIfNewer writes the file to w only if the remote copy changed after
	// since and reports whether it did.
	FetchIfNewer(ctx context.Context, c artifact.Coordinate, remote Remote, since time.Time, w io.Writer) (bool, error)
}

// FileTransport serves repositories laid out on a local or mounted
// filesystem, addressed by file:// URLs or plain paths.
type FileTransport struct{}

func (FileTransport) open(c artifact.Coordinate, remote Remote) (*os.File, os.FileInfo, error) {
	base, err := DirFromURL(remote.URL)
	if err != nil {
		return nil, nil, err
	}
	p := filepath.Join(base, filepath.FromSlash(c.Path()))
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%s in %s: %w", c, remote.ID, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("open %s: %w", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%s in %s is not a regular file: %w", c, remote.ID, ErrNotFound)
	}
	return f, info, nil
}

func (t FileTransport) Fetch(ctx context.Context, c artifact.Coordinate, remote Remote, w io.Writer) error {
	_, err := t.FetchIfNewer(ctx, c, remote, time.Time{}, w)
	return err
}

func (t FileTransport) FetchIfNewer(ctx context.Context, c artifact.Coordinate, remote Remote, since time.Time, w io.Writer) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f, info, err := t.open(c, remote)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if !since.IsZero() && !info.ModTime().After(since) {
		return false, nil
	}
	if _, err := io.Copy(w, f); err != nil {
		return false, fmt.Errorf("copy %s: %w", c, err)
	}
	return true, nil
}

// DirFromURL maps a file:// URL or a plain path onto a directory.
func DirFromURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		return filepath.Clean(raw), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("repository url %q: %w", raw, ErrBadURL)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("repository url %q: %w", raw, ErrUnsupportedScheme)
	}
	return filepath.FromSlash(u.Path), nil
}

// Router dispatches to a transport by the URL scheme of the remote.
type Router struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

// NewRouter returns a router that serves file:// remotes.
func NewRouter() *Router {
	return &Router{transports: map[string]Transport{"file": FileTransport{}}}
}

// Register installs t for the given schemes.
func (r *Router) Register(t Transport, schemes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schemes {
		r.transports[strings.ToLower(s)] = t
	}
}

func (r *Router) lookup(remote Remote) (Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[remote.Scheme()]
	if !ok {
		return nil, fmt.Errorf("repository %s: scheme %q: %w", remote.ID, remote.Scheme(), ErrUnsupportedScheme)
	}
	return t, nil
}

func (r *Router) Fetch(ctx context.Context, c artifact.Coordinate, remote Remote, w io.Writer) error {
	t, err := r.lookup(remote)
	if err != nil {
		return err
	}
	return t.Fetch(ctx, c, remote, w)
}

func (r *Router) FetchIfNewer(ctx context.Context, c artifact.Coordinate, remote Remote, since time.Time, w io.Writer) (bool, error) {
	t, err := r.lookup(remote)
	if err != nil {
		return false, err
	}
	return t.FetchIfNewer(ctx, c, remote, since, w)
}
