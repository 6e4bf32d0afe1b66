package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

// FacilityRepository defines the interface for facility data operations.
// Ids are matched case-insensitively and stored as given.
type FacilityRepository interface {
	// FindAll returns every stored facility, including ones flagged missing
	FindAll(ctx context.Context) ([]*entities.Facility, error)

	// FindByID retrieves a facility by ID
	FindByID(ctx context.Context, id string) (*entities.Facility, error)

	// FindByIDs retrieves the facilities that exist among ids
	FindByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error)

	// FindStored retrieves a facility with its bookkeeping columns
	FindStored(ctx context.Context, id string) (*StoredFacility, error)

	// Snapshot returns the bookkeeping state of every stored id
	Snapshot(ctx context.Context) (map[string]FacilityState, error)

	// Save writes a facility in its own transaction and clears its missing flag
	Save(ctx context.Context, facility *entities.Facility, contentHash string) error

	// MarkMissing flags ids that were absent from a reload
	MarkMissing(ctx context.Context, ids []string, at time.Time) error

	// Delete removes a facility. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

// FacilityState is what a reload needs to classify an id
type FacilityState struct {
	ID          string
	ContentHash string
	Missing     bool
}

// StoredFacility is a facility plus its storage bookkeeping
type StoredFacility struct {
	Facility     *entities.Facility `json:"facility"`
	ContentHash  string             `json:"content_hash"`
	MissingSince *time.Time         `json:"missing_since,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
