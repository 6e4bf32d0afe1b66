// Package collectors turns upstream extracts and reference feeds into
// normalized facility records.
package collectors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
	"github.com/zatekoja/facilitydirectory/pkg/retry"
)

// ErrNoEntries is returned when an upstream source yields no facilities
var ErrNoEntries = errors.New("no entries")

// Reference file names
const (
	BenefitsFile        = "benefits.csv"
	CemeteriesFile      = "cemeteries.xml"
	StateCemeteriesFile = "state_cemeteries.xml"
)

// readReference loads a whole reference file, retrying transient failures.
// Missing files are not retried.
func readReference(ctx context.Context, src providers.ReferenceSource, name string) ([]byte, error) {
	cfg := retry.FetchConfig()
	cfg.OnRetry = func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).
			Str("file", name).
			Str("source", src.Describe()).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("Reference file read failed")
	}

	var data []byte
	err := retry.Do(ctx, cfg, name, func(ctx context.Context) error {
		rc, err := src.Open(ctx, name)
		if err != nil {
			if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
				return retry.Permanent(err)
			}
			return err
		}
		defer rc.Close()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, rc); err != nil {
			return err
		}
		data = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// finish applies the shared "no entries" rule to a collector run
func finish(name string, collection *providers.Collection) (*providers.Collection, error) {
	if len(collection.Facilities) == 0 {
		return collection, fmt.Errorf("%s: %w", name, ErrNoEntries)
	}
	return collection, nil
}

func problem(collector, facilityID, description, data string) entities.ReloadProblem {
	return entities.ReloadProblem{
		FacilityID:  facilityID,
		Collector:   collector,
		Description: description,
		Data:        data,
	}
}
