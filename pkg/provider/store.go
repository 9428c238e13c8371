package provider

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"modm/pkg/blobcache"
	"modm/pkg/cache"
)

// batchConcurrency bounds how many resolve/fetch operations a batch call
// runs at once.
const batchConcurrency = 4

// Store caches constructed provider instances keyed by factory id.
// Construction can be expensive (credential checks, network probes), so
// instances are built once and looked up under a read-mostly
// reader/writer discipline afterwards.
// Mutable
type Store struct {
	mu        sync.RWMutex
	registry  *Registry
	params    map[string]map[string]string
	providers map[string]Provider
}

// NewStore builds an instance table over the given registry. params maps
// factory id to the configuration handed to that factory's constructor.
func NewStore(registry *Registry, params map[string]map[string]string) *Store {
	return &Store{
		registry:  registry,
		params:    params,
		providers: make(map[string]Provider),
	}
}

// Registry exposes the registry this store constructs from.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Get returns the provider responsible for the given address,
// constructing it on first use.
func (s *Store) Get(url string) (Provider, error) {
	f, err := s.registry.FactoryFor(url)
	if err != nil {
		return nil, err
	}
	return s.GetByID(f.ID)
}

// GetByID returns (constructing if needed) the provider instance for a
// factory id.
func (s *Store) GetByID(id string) (Provider, error) {
	s.mu.RLock()
	p, ok := s.providers[id]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	f, ok := s.registry.Get(id)
	if !ok {
		return nil, ErrProviderNotFound(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have built it while we waited for the lock.
	if p, ok := s.providers[id]; ok {
		return p, nil
	}
	p, err := f.New(s.params[id])
	if err != nil {
		return nil, err
	}
	s.providers[id] = p
	slog.Debug("constructed provider", "factory", id)
	return p, nil
}

// Resolve routes a single specification to its provider.
func (s *Store) Resolve(ctx context.Context, spec ModSpecification, update bool, c *cache.Cache) (*ModResponse, error) {
	p, err := s.Get(spec.ID)
	if err != nil {
		return nil, err
	}
	return p.Resolve(ctx, spec, update, c)
}

// Fetch routes a resolution back to the provider that produced it.
func (s *Store) Fetch(ctx context.Context, res ModResolution, update bool, c *cache.Cache, blobs *blobcache.Cache, sink Sink) (string, error) {
	p, err := s.GetByID(res.ProviderID)
	if err != nil {
		return "", err
	}
	return p.Fetch(ctx, res, update, c, blobs, sink)
}

// ResolveMods resolves many specifications concurrently against the same
// cache handle. The first failure cancels the remaining work; results
// for specs resolved before the failure are discarded with it.
func (s *Store) ResolveMods(ctx context.Context, specs []ModSpecification, update bool, c *cache.Cache) (map[ModSpecification]*ModResponse, error) {
	var mu sync.Mutex
	out := make(map[ModSpecification]*ModResponse, len(specs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, spec := range specs {
		g.Go(func() error {
			resp, err := s.Resolve(ctx, spec, update, c)
			if err != nil {
				return err
			}
			mu.Lock()
			out[spec] = resp
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchMods fetches many resolutions concurrently, multiplexing all
// progress onto one sink. Returned paths are index-aligned with the
// input resolutions.
func (s *Store) FetchMods(ctx context.Context, resolutions []ModResolution, update bool, c *cache.Cache, blobs *blobcache.Cache, sink Sink) ([]string, error) {
	paths := make([]string, len(resolutions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, res := range resolutions {
		g.Go(func() error {
			path, err := s.Fetch(ctx, res, update, c, blobs, sink)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// UpdateAll runs UpdateCache on every constructed provider. Providers
// that were never constructed have no cache entries to refresh.
func (s *Store) UpdateAll(ctx context.Context, c *cache.Cache) error {
	s.mu.RLock()
	providers := make(map[string]Provider, len(s.providers))
	for id, p := range s.providers {
		providers[id] = p
	}
	s.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for id, p := range providers {
		g.Go(func() error {
			if err := p.UpdateCache(ctx, c); err != nil {
				slog.Warn("cache update failed", "factory", id, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
