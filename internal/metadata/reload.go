package metadata

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/version"
)

// DefaultSettle is how long Watch waits after the last change to the
// catalogue file before reloading it.
const DefaultSettle = 200 * time.Millisecond

// CatalogFile is a Source backed by a catalogue file that can be reloaded
// while it serves lookups.
type CatalogFile struct {
	// Settle is the quiet period Watch waits for before a reload. A file
	// written in several steps is only parsed once the writes stop.
	Settle time.Duration

	path    string
	current atomic.Pointer[Static]
	loads   atomic.Int64
}

// OpenCatalog loads path once.
func OpenCatalog(path string) (*CatalogFile, error) {
	f := &CatalogFile{path: filepath.Clean(path), Settle: DefaultSettle}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload replaces the served catalogue. A file that fails to parse leaves the
// previous one in place.
func (f *CatalogFile) Reload() error {
	s, err := LoadCatalog(f.path)
	if err != nil {
		return err
	}
	f.current.Store(s)
	f.loads.Add(1)
	return nil
}

// Loads counts successful loads, the initial one included.
func (f *CatalogFile) Loads() int64 { return f.loads.Load() }

func (f *CatalogFile) Len() int { return len(f.current.Load().Coordinates()) }

func (f *CatalogFile) Retrieve(ctx context.Context, c artifact.Coordinate, remotes []repository.Remote) (Descriptor, error) {
	return f.current.Load().Retrieve(ctx, c, remotes)
}

func (f *CatalogFile) AvailableVersions(ctx context.Context, c artifact.Coordinate, remotes []repository.Remote) ([]version.Version, error) {
	return f.current.Load().AvailableVersions(ctx, c, remotes)
}

// Watch reloads the catalogue once its file has been written or created
// (renames into place included) and then left alone for Settle. onReload
// runs after each successful reload. Watch blocks until ctx ends.
func (f *CatalogFile) Watch(ctx context.Context, onReload func()) error {
	logger := log.FromContext(ctx).WithValues("catalog", f.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("metadata: watch catalog: %w", err)
	}
	defer w.Close()
	// The directory is watched so that editors replacing the file by rename
	// are still seen.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("metadata: watch %s: %w", filepath.Dir(f.path), err)
	}

	settle := f.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if err := f.Reload(); err != nil {
				logger.Error(err, "catalog reload failed, keeping previous contents")
				continue
			}
			logger.Info("reloaded catalog", "artifacts", f.Len())
			if onReload != nil {
				onReload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error(err, "catalog watch error")
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(settle)
		}
	}
}
