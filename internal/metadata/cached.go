package metadata

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/version"
)

// Cached memoizes successful lookups of an underlying Source in bounded LRU
// caches whose entries expire after ttl. Failures are never cached. Entries
// are kept per repository list, so lookups against different repositories
// never share a result.
type Cached struct {
	src         Source
	descriptors *expirable.LRU[string, Descriptor]
	versions    *expirable.LRU[string, []version.Version]
}

// NewCached wraps src. size <= 0 defaults to 1024 entries; ttl <= 0 keeps
// entries until evicted.
func NewCached(src Source, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 1024
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cached{
		src:         src,
		descriptors: expirable.NewLRU[string, Descriptor](size, nil, ttl),
		versions:    expirable.NewLRU[string, []version.Version](size, nil, ttl),
	}
}

func (c *Cached) Retrieve(ctx context.Context, coord artifact.Coordinate, remotes []repository.Remote) (Descriptor, error) {
	k := cacheKey(id(coord), remotes)
	if d, ok := c.descriptors.Get(k); ok {
		return d, nil
	}
	d, err := c.src.Retrieve(ctx, coord, remotes)
	if err != nil {
		return Descriptor{}, err
	}
	c.descriptors.Add(k, d)
	return d, nil
}

func (c *Cached) AvailableVersions(ctx context.Context, coord artifact.Coordinate, remotes []repository.Remote) ([]version.Version, error) {
	k := cacheKey(coord.Key().String(), remotes)
	if v, ok := c.versions.Get(k); ok {
		return v, nil
	}
	v, err := c.src.AvailableVersions(ctx, coord, remotes)
	if err != nil {
		return nil, err
	}
	c.versions.Add(k, v)
	return v, nil
}

// Purge drops every cached entry.
func (c *Cached) Purge() {
	c.descriptors.Purge()
	c.versions.Purge()
}

func cacheKey(base string, remotes []repository.Remote) string {
	var b strings.Builder
	b.WriteString(base)
	for _, r := range remotes {
		b.WriteByte('|')
		b.WriteString(r.ID)
	}
	return b.String()
}
