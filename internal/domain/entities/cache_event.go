package entities

import (
	"time"

	"github.com/google/uuid"
)

// CacheEventType names the write that made cached responses stale
type CacheEventType string

const (
	CacheEventReloadCompleted CacheEventType = "reload_completed"
	CacheEventFacilityDeleted CacheEventType = "facility_deleted"
	CacheEventOverlayUpdated  CacheEventType = "overlay_updated"
	CacheEventOverlayDeleted  CacheEventType = "overlay_deleted"
	CacheEventBandsImported   CacheEventType = "bands_imported"
)

// CacheEvent is broadcast to every replica after a repository write so each
// one can drop its local response cache.
type CacheEvent struct {
	ID         string         `json:"id"`
	Type       CacheEventType `json:"type"`
	FacilityID string         `json:"facility_id,omitempty"`
	Origin     string         `json:"origin"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewCacheEvent creates a cache event stamped with a fresh id
func NewCacheEvent(eventType CacheEventType, facilityID, origin string) *CacheEvent {
	return &CacheEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		FacilityID: facilityID,
		Origin:     origin,
		Timestamp:  time.Now().UTC(),
	}
}
