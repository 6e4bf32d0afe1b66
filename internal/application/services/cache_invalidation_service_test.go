package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facilitydirectory/internal/adapters/cache"
	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
)

// MockEventBus is an in-process EventBus
type MockEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.CacheEvent
	published   []*entities.CacheEvent
	publishErr  error
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{subscribers: make(map[string][]chan *entities.CacheEvent)}
}

func (m *MockEventBus) Publish(_ context.Context, channel string, event *entities.CacheEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, event)
	for _, ch := range m.subscribers[channel] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(_ context.Context, channel string) (<-chan *entities.CacheEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.CacheEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(_ context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers[channel] {
		close(ch)
	}
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	return m.Unsubscribe(context.Background(), providers.EventChannelCacheInvalidation)
}

func (m *MockEventBus) Published() []*entities.CacheEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.CacheEvent(nil), m.published...)
}

func TestCacheInvalidationService_InvalidateClearsLocalAndPublishes(t *testing.T) {
	rc := NewResponseCache(cache.NewMemoryAdapter(), nil)
	bus := NewMockEventBus()
	svc := NewCacheInvalidationService(rc, bus)

	rc.Put(context.Background(), "k", &CachedResponse{Body: []byte("cached")})
	svc.Invalidate(context.Background(), entities.CacheEventOverlayUpdated, "vha_688")

	_, ok := rc.Get(context.Background(), "k")
	assert.False(t, ok)

	published := bus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, entities.CacheEventOverlayUpdated, published[0].Type)
	assert.Equal(t, "vha_688", published[0].FacilityID)
	assert.Equal(t, svc.Origin(), published[0].Origin)
}

func TestCacheInvalidationService_PublishFailureStillClearsLocal(t *testing.T) {
	rc := NewResponseCache(cache.NewMemoryAdapter(), nil)
	bus := NewMockEventBus()
	bus.publishErr = errors.New("redis down")
	svc := NewCacheInvalidationService(rc, bus)

	rc.Put(context.Background(), "k", &CachedResponse{Body: []byte("cached")})
	svc.Invalidate(context.Background(), entities.CacheEventReloadCompleted, "")

	_, ok := rc.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestCacheInvalidationService_AppliesRemoteEvents(t *testing.T) {
	rc := NewResponseCache(cache.NewMemoryAdapter(), nil)
	bus := NewMockEventBus()
	svc := NewCacheInvalidationService(rc, bus)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	rc.Put(context.Background(), "k", &CachedResponse{Body: []byte("cached")})
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCacheInvalidation,
		entities.NewCacheEvent(entities.CacheEventFacilityDeleted, "vha_1", "other-replica")))

	assert.Eventually(t, func() bool {
		_, ok := rc.Get(context.Background(), "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestCacheInvalidationService_IgnoresOwnEvents(t *testing.T) {
	rc := NewResponseCache(cache.NewMemoryAdapter(), nil)
	bus := NewMockEventBus()
	svc := NewCacheInvalidationService(rc, bus)

	rc.Put(context.Background(), "k", &CachedResponse{Body: []byte("cached")})
	svc.handleEvent(entities.NewCacheEvent(entities.CacheEventReloadCompleted, "", svc.Origin()))

	_, ok := rc.Get(context.Background(), "k")
	assert.True(t, ok)
}

func TestCacheInvalidationService_WithoutBus(t *testing.T) {
	rc := NewResponseCache(cache.NewMemoryAdapter(), nil)
	svc := NewCacheInvalidationService(rc, nil)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	rc.Put(context.Background(), "k", &CachedResponse{Body: []byte("cached")})
	svc.Invalidate(context.Background(), entities.CacheEventReloadCompleted, "")

	_, ok := rc.Get(context.Background(), "k")
	assert.False(t, ok)
}
