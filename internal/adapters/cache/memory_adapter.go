package cache

import (
	"context"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
)

// MemoryAdapter implements CacheProvider in process. Entries never expire on
// their own; they are dropped by Delete and DeletePattern.
type MemoryAdapter struct {
	items *gocache.Cache
}

// NewMemoryAdapter creates an in-process cache
func NewMemoryAdapter() providers.CacheProvider {
	return &MemoryAdapter{
		items: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := a.items.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v.([]byte), nil
}

// Set stores a copy of value
func (a *MemoryAdapter) Set(_ context.Context, key string, value []byte, expirationSeconds int) error {
	expiration := gocache.NoExpiration
	if expirationSeconds > 0 {
		expiration = time.Duration(expirationSeconds) * time.Second
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	a.items.Set(key, stored, expiration)
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(_ context.Context, key string) error {
	a.items.Delete(key)
	return nil
}

// DeletePattern removes keys matching a glob pattern
func (a *MemoryAdapter) DeletePattern(_ context.Context, pattern string) error {
	for key := range a.items.Items() {
		if matched, err := path.Match(pattern, key); err != nil {
			return err
		} else if matched {
			a.items.Delete(key)
		}
	}
	return nil
}

// Exists checks if a key exists in cache
func (a *MemoryAdapter) Exists(_ context.Context, key string) (bool, error) {
	_, ok := a.items.Get(key)
	return ok, nil
}
