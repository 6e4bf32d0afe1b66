package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// Table names
const (
	facilitiesTable     = "facilities"
	overlaysTable       = "facility_overlays"
	driveTimeBandsTable = "drive_time_bands"
)

// idEquals matches facility ids case-insensitively
func idEquals(id string) exp.BooleanExpression {
	return goqu.Func("LOWER", goqu.C("id")).Eq(strings.ToLower(id))
}

// idIn matches any of ids case-insensitively
func idIn(ids []string) exp.BooleanExpression {
	lowered := make([]string, len(ids))
	for i, id := range ids {
		lowered[i] = strings.ToLower(id)
	}
	return goqu.Func("LOWER", goqu.C("id")).In(lowered)
}

// lowerIDConflict is the conflict target of the unique LOWER(id) index each
// table carries
const lowerIDConflict = "(LOWER(id))"

// upsertByID inserts the row or, when a row with the same id in any casing
// exists, applies update to it. The stored id casing is kept.
func upsertByID(ctx context.Context, db *sql.DB, gdb *goqu.Database, table string, update, insert goqu.Record) error {
	query, args, err := gdb.Insert(table).
		Rows(insert).
		OnConflict(goqu.DoUpdate(lowerIDConflict, update)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert into "+table, err)
	}
	return nil
}
