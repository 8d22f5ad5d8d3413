package metadata

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/version"
)

// Static is an in-memory Source. It is safe for concurrent use.
type Static struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	versions    map[artifact.Key][]version.Version
	failures    map[string]error
}

func NewStatic() *Static {
	return &Static{
		descriptors: map[string]Descriptor{},
		versions:    map[artifact.Key][]version.Version{},
		failures:    map[string]error{},
	}
}

func id(c artifact.Coordinate) string { return c.Key().String() + ":" + c.Version }

// Add registers the descriptor of c and makes c.Version available.
func (s *Static) Add(c artifact.Coordinate, d Descriptor) error {
	v, err := version.Parse(c.Version)
	if err != nil {
		return fmt.Errorf("metadata: add %s: %w", c, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptors[id(c)] = d
	key := c.Key()
	for _, existing := range s.versions[key] {
		if existing.Equal(v) {
			return nil
		}
	}
	list := append(s.versions[key], v)
	sort.Slice(list, func(i, j int) bool { return list[i].Compare(list[j]) < 0 })
	s.versions[key] = list
	return nil
}

// Fail makes every retrieval of c return err.
func (s *Static) Fail(c artifact.Coordinate, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id(c)] = err
}

func (s *Static) Retrieve(ctx context.Context, c artifact.Coordinate, _ []repository.Remote) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.failures[id(c)]; ok {
		return Descriptor{}, err
	}
	d, ok := s.descriptors[id(c)]
	if !ok {
		return Descriptor{}, fmt.Errorf("metadata: %s: %w", c, ErrNotFound)
	}
	return d, nil
}

// AvailableVersions returns the known versions of c in ascending order.
func (s *Static) AvailableVersions(ctx context.Context, c artifact.Coordinate, _ []repository.Remote) ([]version.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.versions[c.Key()]
	if len(list) == 0 {
		return nil, fmt.Errorf("metadata: %s: %w", c.Key(), ErrNoVersions)
	}
	out := make([]version.Version, len(list))
	copy(out, list)
	return out, nil
}

// Coordinates lists every registered coordinate in a stable order.
func (s *Static) Coordinates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.descriptors))
	for k := range s.descriptors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
