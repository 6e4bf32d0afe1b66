package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// DriveTimeBandAdapter implements DriveTimeBandRepository
type DriveTimeBandAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDriveTimeBandAdapter creates a new drive-time band adapter
func NewDriveTimeBandAdapter(client *postgres.Client) repositories.DriveTimeBandRepository {
	return &DriveTimeBandAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// FindInBounds returns bands whose bounding box holds the point
func (a *DriveTimeBandAdapter) FindInBounds(ctx context.Context, lat, lon float64, maxMinutes int) ([]*entities.DriveTimeBand, error) {
	query, args, err := a.db.Select(
		"id", "facility_id", "min_minutes", "max_minutes",
		"min_lat", "max_lat", "min_lon", "max_lon", "rings", "version",
	).From(driveTimeBandsTable).
		Where(
			goqu.C("min_lat").Lte(lat),
			goqu.C("max_lat").Gte(lat),
			goqu.C("min_lon").Lte(lon),
			goqu.C("max_lon").Gte(lon),
			goqu.C("max_minutes").Lte(maxMinutes),
		).
		Order(goqu.I("facility_id").Asc(), goqu.I("max_minutes").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query drive-time bands", err)
	}
	defer rows.Close()

	bands := make([]*entities.DriveTimeBand, 0)
	for rows.Next() {
		var (
			band  entities.DriveTimeBand
			rings []byte
		)
		if err := rows.Scan(
			&band.ID,
			&band.FacilityID,
			&band.MinMinutes,
			&band.MaxMinutes,
			&band.MinLat,
			&band.MaxLat,
			&band.MinLon,
			&band.MaxLon,
			&rings,
			&band.Version,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan drive-time band", err)
		}
		if err := json.Unmarshal(rings, &band.Rings); err != nil {
			log.Warn().Err(err).Str("band_id", band.ID).Msg("Skipping drive-time band with bad geometry")
			continue
		}
		bands = append(bands, &band)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate drive-time bands", err)
	}

	return bands, nil
}

// Save inserts or replaces a band
func (a *DriveTimeBandAdapter) Save(ctx context.Context, band *entities.DriveTimeBand) error {
	rings, err := json.Marshal(band.Rings)
	if err != nil {
		return apperrors.NewInternalError("failed to encode drive-time band rings", err)
	}

	update := goqu.Record{
		"facility_id": band.FacilityID,
		"min_minutes": band.MinMinutes,
		"max_minutes": band.MaxMinutes,
		"min_lat":     band.MinLat,
		"max_lat":     band.MaxLat,
		"min_lon":     band.MinLon,
		"max_lon":     band.MaxLon,
		"rings":       string(rings),
		"version":     band.Version,
		"updated_at":  time.Now().UTC(),
	}
	insert := goqu.Record{"id": band.ID}
	for k, v := range update {
		insert[k] = v
	}

	return upsertByID(ctx, a.client.DB(), a.db, driveTimeBandsTable, update, insert)
}
