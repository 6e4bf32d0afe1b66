package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// FacilityAdapter implements the FacilityRepository interface. Each row holds
// the whole record as a JSON document so a reader always sees one complete
// version of a facility.
type FacilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	now    func() time.Time
}

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) repositories.FacilityRepository {
	return &FacilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		now:    time.Now,
	}
}

// FindAll returns every stored facility ordered by id
func (a *FacilityAdapter) FindAll(ctx context.Context) ([]*entities.Facility, error) {
	query, args, err := a.db.Select("id", "document").
		From(facilitiesTable).
		Order(goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryDocuments(ctx, query, args)
}

// FindByID retrieves a facility by ID
func (a *FacilityAdapter) FindByID(ctx context.Context, id string) (*entities.Facility, error) {
	stored, err := a.FindStored(ctx, id)
	if err != nil {
		return nil, err
	}
	return stored.Facility, nil
}

// FindByIDs retrieves the facilities that exist among ids
func (a *FacilityAdapter) FindByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error) {
	if len(ids) == 0 {
		return []*entities.Facility{}, nil
	}

	query, args, err := a.db.Select("id", "document").
		From(facilitiesTable).
		Where(idIn(ids)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryDocuments(ctx, query, args)
}

// FindStored retrieves a facility with its bookkeeping columns
func (a *FacilityAdapter) FindStored(ctx context.Context, id string) (*repositories.StoredFacility, error) {
	query, args, err := a.db.Select("document", "content_hash", "missing_since", "updated_at").
		From(facilitiesTable).
		Where(idEquals(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var (
		document     []byte
		missingSince sql.NullTime
		stored       repositories.StoredFacility
	)
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&document,
		&stored.ContentHash,
		&missingSince,
		&stored.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get facility", err)
	}

	var facility entities.Facility
	if err := json.Unmarshal(document, &facility); err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to decode facility %s", id), err)
	}
	stored.Facility = &facility
	if missingSince.Valid {
		t := missingSince.Time
		stored.MissingSince = &t
	}

	return &stored, nil
}

// Snapshot returns the bookkeeping state of every stored id keyed by the
// lower-cased id
func (a *FacilityAdapter) Snapshot(ctx context.Context) (map[string]repositories.FacilityState, error) {
	query, args, err := a.db.Select("id", "content_hash", "missing_since").
		From(facilitiesTable).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read facility snapshot", err)
	}
	defer rows.Close()

	snapshot := make(map[string]repositories.FacilityState)
	for rows.Next() {
		var (
			state        repositories.FacilityState
			missingSince sql.NullTime
		)
		if err := rows.Scan(&state.ID, &state.ContentHash, &missingSince); err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility snapshot", err)
		}
		state.Missing = missingSince.Valid
		snapshot[strings.ToLower(state.ID)] = state
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate facility snapshot", err)
	}

	return snapshot, nil
}

// Save upserts a facility in one statement and clears its missing flag
func (a *FacilityAdapter) Save(ctx context.Context, facility *entities.Facility, contentHash string) error {
	document, err := json.Marshal(facility)
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to encode facility %s", facility.ID), err)
	}

	now := a.now().UTC()
	update := goqu.Record{
		"facility_type": string(facility.FacilityType),
		"document":      string(document),
		"content_hash":  contentHash,
		"missing_since": nil,
		"updated_at":    now,
	}
	insert := goqu.Record{
		"id":            facility.ID,
		"facility_type": string(facility.FacilityType),
		"document":      string(document),
		"content_hash":  contentHash,
		"missing_since": nil,
		"created_at":    now,
		"updated_at":    now,
	}

	return upsertByID(ctx, a.client.DB(), a.db, facilitiesTable, update, insert)
}

// MarkMissing flags ids that were absent from a reload. Ids already flagged
// keep their original timestamp.
func (a *FacilityAdapter) MarkMissing(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := a.db.Update(facilitiesTable).
		Set(goqu.Record{"missing_since": at.UTC()}).
		Where(idIn(ids), goqu.C("missing_since").IsNull()).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to mark facilities missing", err)
	}
	return nil
}

// Delete removes a facility. Deleting an unknown id is not an error.
func (a *FacilityAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(facilitiesTable).
		Where(idEquals(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete facility", err)
	}
	return nil
}

func (a *FacilityAdapter) queryDocuments(ctx context.Context, query string, args []interface{}) ([]*entities.Facility, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query facilities", err)
	}
	defer rows.Close()

	facilities := make([]*entities.Facility, 0)
	for rows.Next() {
		var (
			id       string
			document []byte
		)
		if err := rows.Scan(&id, &document); err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}

		var facility entities.Facility
		if err := json.Unmarshal(document, &facility); err != nil {
			log.Warn().Err(err).Str("facility_id", id).Msg("Skipping undecodable facility document")
			continue
		}
		facilities = append(facilities, &facility)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate facilities", err)
	}

	return facilities, nil
}
