package repositories

import (
	"context"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

// DriveTimeBandRepository stores pre-computed drive-time bands
type DriveTimeBandRepository interface {
	// FindInBounds returns bands whose bounding box holds the point and whose
	// upper bound does not exceed maxMinutes
	FindInBounds(ctx context.Context, lat, lon float64, maxMinutes int) ([]*entities.DriveTimeBand, error)

	// Save inserts or replaces a band
	Save(ctx context.Context, band *entities.DriveTimeBand) error
}
