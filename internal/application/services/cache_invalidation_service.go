package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
)

// CacheInvalidator is notified after every write that can change a served
// facility.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, eventType entities.CacheEventType, facilityID string)
}

// CacheInvalidationService drops the local response cache on writes and keeps
// other replicas in step over the event bus.
type CacheInvalidationService struct {
	cache    *ResponseCache
	eventBus providers.EventBus
	origin   string
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCacheInvalidationService creates a new cache invalidation service. A nil
// event bus limits invalidation to this process.
func NewCacheInvalidationService(cache *ResponseCache, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		origin:   uuid.NewString(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Origin identifies this process on the event bus
func (s *CacheInvalidationService) Origin() string {
	return s.origin
}

// Invalidate clears the local cache before returning, then tells the other
// replicas. A failed broadcast is logged; the local cache is already clean.
func (s *CacheInvalidationService) Invalidate(ctx context.Context, eventType entities.CacheEventType, facilityID string) {
	if facilityID != "" {
		s.cache.Invalidate(ctx, facilityID)
	} else {
		s.cache.InvalidateAll(ctx, string(eventType))
	}

	if s.eventBus == nil {
		return
	}
	event := entities.NewCacheEvent(eventType, facilityID, s.origin)
	if err := s.eventBus.Publish(ctx, providers.EventChannelCacheInvalidation, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("event_type", string(eventType)).
			Str("facility_id", facilityID).
			Msg("Failed to broadcast cache invalidation")
	}
}

// Start begins listening for invalidations from other replicas
func (s *CacheInvalidationService) Start() error {
	if s.eventBus == nil {
		return nil
	}
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelCacheInvalidation)
	if err != nil {
		return fmt.Errorf("failed to subscribe to cache invalidations: %w", err)
	}

	go s.processEvents(eventChan)
	log.Info().Str("origin", s.origin).Msg("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	log.Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.CacheEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.CacheEvent) {
	if event.Origin == s.origin {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Debug().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("facility_id", event.FacilityID).
		Str("origin", event.Origin).
		Msg("Applying remote cache invalidation")

	s.cache.InvalidateAll(ctx, "remote:"+string(event.Type))
}
