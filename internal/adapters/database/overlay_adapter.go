package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// OverlayAdapter implements the OverlayRepository interface
type OverlayAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	now    func() time.Time
}

// NewOverlayAdapter creates a new overlay adapter
func NewOverlayAdapter(client *postgres.Client) repositories.OverlayRepository {
	return &OverlayAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		now:    time.Now,
	}
}

type overlayRow struct {
	id               string
	operatingStatus  []byte
	detailedServices []byte
	updatedAt        time.Time
}

func (r *overlayRow) decode() (*entities.Overlay, error) {
	overlay := &entities.Overlay{ID: r.id, UpdatedAt: r.updatedAt}
	if len(r.operatingStatus) > 0 {
		if err := json.Unmarshal(r.operatingStatus, &overlay.OperatingStatus); err != nil {
			return nil, fmt.Errorf("operating status: %w", err)
		}
	}
	if len(r.detailedServices) > 0 {
		if err := json.Unmarshal(r.detailedServices, &overlay.DetailedServices); err != nil {
			return nil, fmt.Errorf("detailed services: %w", err)
		}
	}
	return overlay, nil
}

// FindByID retrieves an overlay by facility ID
func (a *OverlayAdapter) FindByID(ctx context.Context, id string) (*entities.Overlay, error) {
	query, args, err := a.db.Select("id", "operating_status", "detailed_services", "updated_at").
		From(overlaysTable).
		Where(idEquals(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var row overlayRow
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&row.id,
		&row.operatingStatus,
		&row.detailedServices,
		&row.updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("overlay for facility %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get overlay", err)
	}

	overlay, err := row.decode()
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to decode overlay %s", id), err)
	}
	return overlay, nil
}

// FindAll returns every readable overlay keyed by lower-cased facility id.
// Rows that cannot be decoded are logged and skipped.
func (a *OverlayAdapter) FindAll(ctx context.Context) (map[string]*entities.Overlay, error) {
	query, args, err := a.db.Select("id", "operating_status", "detailed_services", "updated_at").
		From(overlaysTable).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query overlays", err)
	}
	defer rows.Close()

	overlays := make(map[string]*entities.Overlay)
	for rows.Next() {
		var row overlayRow
		if err := rows.Scan(&row.id, &row.operatingStatus, &row.detailedServices, &row.updatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan overlay", err)
		}

		overlay, err := row.decode()
		if err != nil {
			log.Warn().Err(err).Str("facility_id", row.id).Msg("Skipping undecodable overlay")
			continue
		}
		overlays[strings.ToLower(row.id)] = overlay
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate overlays", err)
	}

	return overlays, nil
}

// Update runs fn against the stored overlay inside one transaction. A
// transaction-scoped advisory lock on the lower-cased id serializes writers
// even before the row exists; SELECT ... FOR UPDATE holds the row against
// Delete.
func (a *OverlayAdapter) Update(ctx context.Context, id string, fn func(current *entities.Overlay) (*entities.Overlay, error)) (*entities.Overlay, error) {
	lockSQL, lockArgs, err := a.db.Select(goqu.Func("pg_advisory_xact_lock", goqu.Func("hashtext", strings.ToLower(id)))).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build lock query", err)
	}
	selectSQL, selectArgs, err := a.db.Select("id", "operating_status", "detailed_services", "updated_at").
		From(overlaysTable).
		Where(idEquals(id)).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, lockSQL, lockArgs...); err != nil {
		return nil, apperrors.NewInternalError("failed to lock overlay", err)
	}

	var current *entities.Overlay
	var row overlayRow
	err = tx.QueryRowContext(ctx, selectSQL, selectArgs...).Scan(
		&row.id,
		&row.operatingStatus,
		&row.detailedServices,
		&row.updatedAt,
	)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, apperrors.NewInternalError("failed to get overlay", err)
	default:
		if current, err = row.decode(); err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("failed to decode overlay %s", id), err)
		}
	}

	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		if err := tx.Commit(); err != nil {
			return nil, apperrors.NewInternalError("failed to commit transaction", err)
		}
		return current, nil
	}

	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = a.now().UTC()
	}
	record, err := overlayRecord(next)
	if err != nil {
		return nil, err
	}

	var writeSQL string
	var writeArgs []interface{}
	if current != nil {
		writeSQL, writeArgs, err = a.db.Update(overlaysTable).Set(record).Where(idEquals(id)).ToSQL()
	} else {
		record["id"] = next.ID
		writeSQL, writeArgs, err = a.db.Insert(overlaysTable).Rows(record).ToSQL()
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build write query", err)
	}
	if _, err := tx.ExecContext(ctx, writeSQL, writeArgs...); err != nil {
		return nil, apperrors.NewInternalError("failed to save overlay", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit transaction", err)
	}
	return next, nil
}

// overlayRecord encodes the stored columns of overlay, without the id
func overlayRecord(overlay *entities.Overlay) (goqu.Record, error) {
	status, err := nullableJSON(overlay.OperatingStatus != nil, overlay.OperatingStatus)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode operating status", err)
	}
	services, err := nullableJSON(len(overlay.DetailedServices) > 0, overlay.DetailedServices)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode detailed services", err)
	}
	return goqu.Record{
		"operating_status":  status,
		"detailed_services": services,
		"updated_at":        overlay.UpdatedAt,
	}, nil
}

// Delete removes an overlay. Deleting an unknown id is not an error.
func (a *OverlayAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(overlaysTable).
		Where(idEquals(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete overlay", err)
	}
	return nil
}

// nullableJSON encodes v, or returns nil for SQL NULL when present is false
func nullableJSON(present bool, v interface{}) (interface{}, error) {
	if !present {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
