package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// OverlayService manages CMS overlays
type OverlayService struct {
	overlays    repositories.OverlayRepository
	source      providers.ReferenceSource
	covidFile   string
	invalidator CacheInvalidator
	now         func() time.Time
}

// NewOverlayService creates a new overlay service. source and covidFile locate
// the facility id to COVID-19 vaccine page mapping; a nil source disables
// the patch.
func NewOverlayService(overlays repositories.OverlayRepository, source providers.ReferenceSource, covidFile string, invalidator CacheInvalidator) *OverlayService {
	return &OverlayService{
		overlays:    overlays,
		source:      source,
		covidFile:   covidFile,
		invalidator: invalidator,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Put merges an uploaded overlay into the stored one. A missing operating
// status keeps the stored status; detailed services replace stored entries
// with the same canonical id and leave the others alone. The facility does
// not have to exist.
func (s *OverlayService) Put(ctx context.Context, id string, upload *entities.Overlay) (*entities.Overlay, error) {
	ctx, span := observability.StartSpan(ctx, "overlay.put")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewValidationError("facility id is required")
	}
	if upload == nil {
		return nil, apperrors.NewValidationError("overlay body is required")
	}
	if err := upload.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	paths := s.covidPaths(ctx)
	merged, err := s.overlays.Update(ctx, id, func(existing *entities.Overlay) (*entities.Overlay, error) {
		next := mergeOverlay(existing, upload)
		next.ID = id
		if existing != nil {
			next.ID = existing.ID
		}
		next.UpdatedAt = s.now()
		patchCovidPath(next, paths)
		return next, nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	s.invalidator.Invalidate(ctx, entities.CacheEventOverlayUpdated, merged.ID)

	observability.LoggerFromContext(ctx).Info().
		Str("facility_id", merged.ID).
		Int("detailed_services", len(merged.DetailedServices)).
		Bool("operating_status", merged.OperatingStatus != nil).
		Msg("Overlay saved")
	return merged, nil
}

// Get returns the stored overlay for id
func (s *OverlayService) Get(ctx context.Context, id string) (*entities.Overlay, error) {
	overlay, err := s.overlays.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.patchAndPersist(ctx, overlay, s.covidPaths(ctx))
	return overlay, nil
}

// Delete removes the overlay for id; the facility reverts to collected data
func (s *OverlayService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError("facility id is required")
	}
	if err := s.overlays.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidator.Invalidate(ctx, entities.CacheEventOverlayDeleted, id)
	observability.LoggerFromContext(ctx).Info().Str("facility_id", id).Msg("Overlay deleted")
	return nil
}

// LoadAll returns every readable overlay keyed by lower-cased facility id.
// COVID-19 vaccine paths are patched in and written back, so later loads find
// nothing left to patch.
func (s *OverlayService) LoadAll(ctx context.Context) (map[string]*entities.Overlay, error) {
	overlays, err := s.overlays.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	paths := s.covidPaths(ctx)
	for _, overlay := range overlays {
		s.patchAndPersist(ctx, overlay, paths)
	}
	return overlays, nil
}

func (s *OverlayService) patchAndPersist(ctx context.Context, overlay *entities.Overlay, paths map[string]string) {
	if !patchCovidPath(overlay, paths) {
		return
	}
	// Re-patch the locked row so a concurrent Put is never overwritten
	_, err := s.overlays.Update(ctx, overlay.ID, func(current *entities.Overlay) (*entities.Overlay, error) {
		if current == nil || !patchCovidPath(current, paths) {
			return nil, nil
		}
		return current, nil
	})
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("facility_id", overlay.ID).Msg("Failed to persist COVID-19 path")
	}
}

// covidPaths loads the facility id to vaccine page mapping. Keys are
// lower-cased. Any failure yields an empty mapping.
func (s *OverlayService) covidPaths(ctx context.Context) map[string]string {
	if s.source == nil || s.covidFile == "" {
		return nil
	}
	rc, err := s.source.Open(ctx, s.covidFile)
	if err != nil {
		logger := observability.LoggerFromContext(ctx)
		if apperrors.IsNotFound(err) {
			logger.Debug().Err(err).Str("file", s.covidFile).Msg("No COVID-19 vaccine paths")
		} else {
			logger.Warn().Err(err).Str("file", s.covidFile).Msg("COVID-19 vaccine paths unavailable")
		}
		return nil
	}
	defer rc.Close()

	paths, err := ParseCovidPaths(rc)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("file", s.covidFile).Msg("Malformed COVID-19 vaccine paths")
		return nil
	}
	return paths
}

// ParseCovidPaths reads "facility id,path" rows. A header row is skipped.
func ParseCovidPaths(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	paths := make(map[string]string)
	for line := 0; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return paths, nil
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line+1, err)
		}
		if len(record) < 2 {
			continue
		}
		id := strings.ToLower(strings.TrimSpace(record[0]))
		path := strings.TrimSpace(record[1])
		if line == 0 && (id == "id" || id == "facility_id") {
			continue
		}
		if id != "" && path != "" {
			paths[id] = path
		}
	}
}

// patchCovidPath sets the path of the COVID-19 vaccine service from paths.
// It reports whether anything changed. Facilities without a mapping entry are
// left as they are.
func patchCovidPath(overlay *entities.Overlay, paths map[string]string) bool {
	if overlay == nil || len(paths) == 0 {
		return false
	}
	path, ok := paths[strings.ToLower(overlay.ID)]
	if !ok {
		return false
	}
	changed := false
	for i := range overlay.DetailedServices {
		svc := &overlay.DetailedServices[i]
		if svc.CanonicalID() == entities.ServiceCovid19Vaccine && svc.Path != path {
			svc.Path = path
			changed = true
		}
	}
	return changed
}

// mergeOverlay applies an upload on top of the stored overlay, if any
func mergeOverlay(existing, upload *entities.Overlay) *entities.Overlay {
	merged := &entities.Overlay{}
	if existing != nil {
		merged = existing.Clone()
	}
	if upload.OperatingStatus != nil {
		status := *upload.OperatingStatus
		merged.OperatingStatus = &status
	}

	for i := range upload.DetailedServices {
		incoming := upload.DetailedServices[i].Clone()
		incoming.Link = ""
		id := incoming.CanonicalID()
		replaced := false
		for j := range merged.DetailedServices {
			if merged.DetailedServices[j].CanonicalID() == id {
				merged.DetailedServices[j] = incoming
				replaced = true
				break
			}
		}
		if !replaced {
			merged.DetailedServices = append(merged.DetailedServices, incoming)
		}
	}
	return merged
}
