package services

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// OverlaySource supplies overlays to the merge step
type OverlaySource interface {
	Get(ctx context.Context, id string) (*entities.Overlay, error)
	LoadAll(ctx context.Context) (map[string]*entities.Overlay, error)
}

// FacilityService serves merged facilities. Facilities flagged missing by a
// reload are still served until they are deleted.
type FacilityService struct {
	facilities   repositories.FacilityRepository
	overlays     OverlaySource
	invalidator  CacheInvalidator
	linksBaseURL string
}

// NewFacilityService creates a new facility service
func NewFacilityService(facilities repositories.FacilityRepository, overlays OverlaySource, invalidator CacheInvalidator, linksBaseURL string) *FacilityService {
	return &FacilityService{
		facilities:   facilities,
		overlays:     overlays,
		invalidator:  invalidator,
		linksBaseURL: linksBaseURL,
	}
}

// GetByID returns the merged facility or a NOT_FOUND error. An overlay alone
// never makes a facility exist.
func (s *FacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	ctx, span := observability.StartSpan(ctx, "facility.merge")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("facility.id", id))

	facility, err := s.facilities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	overlay, err := s.overlays.Get(ctx, facility.ID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			observability.RecordError(span, err)
			return nil, err
		}
		overlay = nil
	}
	return MergeFacility(facility, overlay, s.linksBaseURL), nil
}

// All returns every merged facility ordered by id
func (s *FacilityService) All(ctx context.Context) ([]*entities.Facility, error) {
	ctx, span := observability.StartSpan(ctx, "facility.merge_all")
	defer span.End()

	facilities, err := s.facilities.FindAll(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	overlays, err := s.overlays.LoadAll(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	merged := make([]*entities.Facility, 0, len(facilities))
	for _, f := range facilities {
		merged = append(merged, MergeFacility(f, overlays[strings.ToLower(f.ID)], s.linksBaseURL))
	}
	sort.Slice(merged, func(i, j int) bool {
		return strings.ToLower(merged[i].ID) < strings.ToLower(merged[j].ID)
	})
	span.SetAttributes(attribute.Int("facility.count", len(merged)))
	return merged, nil
}

// Search validates q and returns one page of matching merged facilities
func (s *FacilityService) Search(ctx context.Context, q *SearchQuery) (*SearchResult, error) {
	if _, err := q.normalize(); err != nil {
		return nil, err
	}
	corpus, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return runSearch(corpus, q)
}

// GetStored returns the collected record with its reload bookkeeping
func (s *FacilityService) GetStored(ctx context.Context, id string) (*repositories.StoredFacility, error) {
	return s.facilities.FindStored(ctx, id)
}

// Delete removes a facility. Its overlay is kept. Deleting an unknown id
// succeeds.
func (s *FacilityService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError("facility id is required")
	}
	if err := s.facilities.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidator.Invalidate(ctx, entities.CacheEventFacilityDeleted, id)
	observability.LoggerFromContext(ctx).Info().Str("facility_id", id).Msg("Facility deleted")
	return nil
}
