package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
)

const responseCachePrefix = "facilities:response:"

// CachedResponse is a fully rendered response body
type CachedResponse struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ResponseCache memoizes rendered facility responses until they are
// invalidated. Entries never expire on their own.
//
// Keys carry a generation number. InvalidateAll moves to the next generation
// before clearing the backend, so a computation that started before the
// invalidation is never served after it returns.
type ResponseCache struct {
	provider   providers.CacheProvider
	metrics    *observability.Metrics
	generation atomic.Uint64
	group      singleflight.Group
}

// NewResponseCache creates a response cache over a cache backend
func NewResponseCache(provider providers.CacheProvider, metrics *observability.Metrics) *ResponseCache {
	return &ResponseCache{provider: provider, metrics: metrics}
}

// QueryKey derives a cache key from everything that shapes a response. Two
// requests with the same route, parameters (in any order) and encoding share
// a key.
func QueryKey(route string, params map[string][]string, encoding string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(route)
	b.WriteString("|")
	b.WriteString(encoding)
	for _, name := range names {
		values := append([]string(nil), params[name]...)
		sort.Strings(values)
		b.WriteString("|")
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(strings.Join(values, ","))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (c *ResponseCache) storageKey(gen uint64, key string) string {
	return fmt.Sprintf("%sg%d:%s", responseCachePrefix, gen, key)
}

// Get returns a cached response. Backend failures are reported as misses.
func (c *ResponseCache) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	return c.get(ctx, c.storageKey(c.generation.Load(), key))
}

func (c *ResponseCache) get(ctx context.Context, storageKey string) (*CachedResponse, bool) {
	data, err := c.provider.Get(ctx, storageKey)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("cache_key", storageKey).Msg("Response cache read failed")
		}
		return nil, false
	}

	var resp CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("cache_key", storageKey).Msg("Discarding unreadable cache entry")
		return nil, false
	}
	return &resp, true
}

// Put stores a response under the current generation
func (c *ResponseCache) Put(ctx context.Context, key string, resp *CachedResponse) {
	c.put(ctx, c.storageKey(c.generation.Load(), key), resp)
}

func (c *ResponseCache) put(ctx context.Context, storageKey string, resp *CachedResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("cache_key", storageKey).Msg("Failed to encode cache entry")
		return
	}
	if err := c.provider.Set(ctx, storageKey, data, 0); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("cache_key", storageKey).Msg("Response cache write failed")
	}
}

// GetOrCompute serves key from the cache or runs compute and stores its
// result. Concurrent misses for the same key share one computation. The
// second return value reports a cache hit.
func (c *ResponseCache) GetOrCompute(ctx context.Context, kind, key string, compute func(ctx context.Context) (*CachedResponse, error)) (*CachedResponse, bool, error) {
	ctx, span := observability.StartSpan(ctx, "cache.get_or_compute")
	defer span.End()

	gen := c.generation.Load()
	storageKey := c.storageKey(gen, key)

	if resp, ok := c.get(ctx, storageKey); ok {
		observability.RecordCacheHit(ctx, c.metrics, kind)
		return resp, true, nil
	}
	observability.RecordCacheMiss(ctx, c.metrics, kind)

	v, err, _ := c.group.Do(storageKey, func() (interface{}, error) {
		resp, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if c.generation.Load() == gen {
			c.put(ctx, storageKey, resp)
		}
		return resp, nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, false, err
	}
	return v.(*CachedResponse), false, nil
}

// InvalidateAll drops every cached response
func (c *ResponseCache) InvalidateAll(ctx context.Context, reason string) {
	gen := c.generation.Add(1)
	observability.RecordCacheInvalidation(ctx, c.metrics, reason)

	if err := c.provider.DeletePattern(ctx, responseCachePrefix+"*"); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("reason", reason).Msg("Failed to clear response cache backend")
		return
	}
	observability.LoggerFromContext(ctx).Debug().Uint64("generation", gen).Str("reason", reason).Msg("Response cache invalidated")
}

// Invalidate drops the responses that could include facility id. Every
// listing depends on every id, so this clears the whole cache.
func (c *ResponseCache) Invalidate(ctx context.Context, id string) {
	observability.LoggerFromContext(ctx).Debug().Str("facility_id", id).Msg("Invalidating responses for facility")
	c.InvalidateAll(ctx, "facility")
}
