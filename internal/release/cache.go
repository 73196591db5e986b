package release

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/blackwell-systems/appdock/internal/logging"
)

const (
	// DefaultCacheTTL bounds how often a fresh resolution hits the API.
	DefaultCacheTTL = 5 * time.Minute
	// FallbackCacheTTL is used when resolution failed and the static catalog
	// version had to be served; it is short so the next call retries sooner.
	FallbackCacheTTL = 1 * time.Minute
)

// Source resolves releases. *Resolver is the production implementation.
type Source interface {
	Resolve(ctx context.Context, repoURL string) (*Release, error)
}

// cacheEntry keeps its own timestamps so an expired value stays readable:
// a stale version is still a usable degraded fallback when refresh fails.
type cacheEntry struct {
	version   string
	fetchedAt time.Time
	ttl       time.Duration
}

func (e cacheEntry) fresh(now time.Time) bool {
	return now.Sub(e.fetchedAt) < e.ttl
}

// VersionCache is a time-bounded cache in front of a release Source. It does
// not deduplicate concurrent fetches for the same identity; duplicate calls
// each proceed, unlike the at-most-one guarantee on installs.
type VersionCache struct {
	source  Source
	ttl     time.Duration
	entries *gocache.Cache
	now     func() time.Time
	log     zerolog.Logger
}

// NewVersionCache creates a cache with the default TTL.
func NewVersionCache(source Source) *VersionCache {
	return &VersionCache{
		source: source,
		ttl:    DefaultCacheTTL,
		// Entries never auto-expire; staleness is judged per read so expired
		// values remain available for the degraded path.
		entries: gocache.New(gocache.NoExpiration, 0),
		now:     time.Now,
		log:     logging.GetLogger("release.cache"),
	}
}

// LatestVersion returns the latest known version for an identity. A fresh
// cache entry short-circuits the API. On resolution failure an expired entry
// is returned as-is; with no entry at all the catalog fallback version is
// cached briefly and returned. The resolved version always supersedes the
// catalog's static version.
func (c *VersionCache) LatestVersion(ctx context.Context, id, repoURL, fallback string) (string, error) {
	if v, ok := c.entries.Get(id); ok {
		entry := v.(cacheEntry)
		if entry.fresh(c.now()) {
			return entry.version, nil
		}
	}

	rel, err := c.source.Resolve(ctx, repoURL)
	if err == nil {
		c.put(id, rel.Version, c.ttl)
		return rel.Version, nil
	}

	if v, ok := c.entries.Get(id); ok {
		entry := v.(cacheEntry)
		c.log.Warn().Err(err).Str("app", id).Str("version", entry.version).
			Msg("release resolution failed, serving stale cached version")
		return entry.version, nil
	}

	c.log.Warn().Err(err).Str("app", id).Str("version", fallback).
		Msg("release resolution failed, serving catalog fallback version")
	c.put(id, fallback, FallbackCacheTTL)
	return fallback, nil
}

func (c *VersionCache) put(id, version string, ttl time.Duration) {
	c.entries.Set(id, cacheEntry{
		version:   version,
		fetchedAt: c.now(),
		ttl:       ttl,
	}, gocache.NoExpiration)
}
