package provider

import (
	"context"

	"modm/pkg/blobcache"
	"modm/pkg/cache"
)

// Provider is the capability contract every back-end implements. All
// blocking operations take a context and may be cancelled; cancellation
// must release partial writes and drop the progress sink cleanly.
//
// The cache handle is shared: implementations read it under its reader
// discipline during resolution and write it only through its serialized
// update path. ModInfo, IsPinned and VersionName are cache-only and
// never perform network or disk I/O.
type Provider interface {
	// Resolve turns a specification into a concrete resolution plus
	// metadata. With update false a cached resolution consistent with
	// the spec's pinning semantics may be returned without network
	// access; with update true the authoritative source is consulted
	// and the cache entry refreshed before returning.
	Resolve(ctx context.Context, spec ModSpecification, update bool, c *cache.Cache) (*ModResponse, error)

	// Fetch downloads or copies the artifact the resolution points to
	// and returns its local path. The blob store is consulted first to
	// skip the transfer when unchanged content is already present;
	// update forces re-validation against the source. Progress events
	// go to sink (which may be nil) per the FetchEvent contract.
	Fetch(ctx context.Context, res ModResolution, update bool, c *cache.Cache, blobs *blobcache.Cache, sink Sink) (string, error)

	// UpdateCache refreshes every entry this provider manages in the
	// cache from the authoritative source, independent of any single
	// specification.
	UpdateCache(ctx context.Context, c *cache.Cache) error

	// Check is a lightweight, mutation-free self-test of the provider's
	// configuration (credentials, reachability of its own config).
	Check(ctx context.Context) error

	// ModInfo returns cached metadata for spec, or false when nothing
	// is cached.
	ModInfo(spec ModSpecification, c *cache.Cache) (ModInfo, bool)

	// IsPinned reports whether spec denotes an exact version (true) or
	// a floating "latest" pointer (false).
	IsPinned(spec ModSpecification, c *cache.Cache) bool

	// VersionName returns the cached human-readable version label for
	// spec, or false when nothing is cached.
	VersionName(spec ModSpecification, c *cache.Cache) (string, bool)
}
