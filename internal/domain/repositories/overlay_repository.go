package repositories

import (
	"context"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

// OverlayRepository stores CMS overlays keyed by facility id
type OverlayRepository interface {
	// FindByID retrieves an overlay by facility ID
	FindByID(ctx context.Context, id string) (*entities.Overlay, error)

	// FindAll returns every readable overlay keyed by lower-cased facility id.
	// Entries that cannot be decoded are skipped.
	FindAll(ctx context.Context) (map[string]*entities.Overlay, error)

	// Update locks the overlay for id and passes it to fn, or nil when none
	// is stored. A non-nil result from fn is written before the lock is
	// released; a nil result leaves the store untouched. Update returns what
	// is stored afterwards.
	Update(ctx context.Context, id string, fn func(current *entities.Overlay) (*entities.Overlay, error)) (*entities.Overlay, error)

	// Delete removes an overlay. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}
