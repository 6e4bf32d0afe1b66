package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// DefaultDriveTime is the drive-time limit, in minutes, when none is given
const DefaultDriveTime = 90

// NearbyQuery asks which facilities can be reached from a point
type NearbyQuery struct {
	Lat       float64
	Long      float64
	DriveTime int
	Type      string
}

// NearbyFacility is one reachable facility and its drive-time band
type NearbyFacility struct {
	ID         string `json:"id"`
	MinMinutes int    `json:"min_time"`
	MaxMinutes int    `json:"max_time"`
}

// NearbyResult lists reachable facilities, closest band first
type NearbyResult struct {
	Facilities  []NearbyFacility
	BandVersion string
}

// NearbyService answers drive-time queries from pre-computed bands
type NearbyService struct {
	bands      repositories.DriveTimeBandRepository
	facilities repositories.FacilityRepository
}

// NewNearbyService creates a new nearby service
func NewNearbyService(bands repositories.DriveTimeBandRepository, facilities repositories.FacilityRepository) *NearbyService {
	return &NearbyService{bands: bands, facilities: facilities}
}

// newFacilityLoader batches facility lookups for one request. Keys are
// lower-cased ids.
func (s *NearbyService) newFacilityLoader() *dataloader.Loader[string, *entities.Facility] {
	return dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Facility] {
		results := make([]*dataloader.Result[*entities.Facility], len(keys))
		facilities, err := s.facilities.FindByIDs(ctx, keys)

		facilityMap := make(map[string]*entities.Facility)
		if err == nil {
			for _, f := range facilities {
				facilityMap[strings.ToLower(f.ID)] = f
			}
		}

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*entities.Facility]{Error: err}
			} else if f, ok := facilityMap[key]; ok {
				results[i] = &dataloader.Result[*entities.Facility]{Data: f}
			} else {
				results[i] = &dataloader.Result[*entities.Facility]{Error: apperrors.NewNotFoundError(fmt.Sprintf("facility %s not found", key))}
			}
		}
		return results
	})
}

// Nearby returns the facilities whose drive-time bands contain the point,
// each with its smallest such band. Bands for facilities that no longer exist
// are ignored.
func (s *NearbyService) Nearby(ctx context.Context, q NearbyQuery) (*NearbyResult, error) {
	ctx, span := observability.StartSpan(ctx, "facility.nearby")
	defer span.End()

	if !finite(q.Lat) || !finite(q.Long) || q.Lat < -90 || q.Lat > 90 || q.Long < -180 || q.Long > 180 {
		return nil, apperrors.NewValidationError("lat/long out of range")
	}
	if q.DriveTime == 0 {
		q.DriveTime = DefaultDriveTime
	}
	if q.DriveTime < 0 || q.DriveTime > DefaultDriveTime || q.DriveTime%10 != 0 {
		return nil, apperrors.NewValidationError("drive_time must be a multiple of 10 between 10 and 90")
	}
	var facilityType entities.FacilityType
	if q.Type != "" {
		t, ok := entities.ParseFacilityType(q.Type)
		if !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown facility type %q", q.Type))
		}
		facilityType = t
	}

	bands, err := s.bands.FindInBounds(ctx, q.Lat, q.Long, q.DriveTime)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result := &NearbyResult{Facilities: []NearbyFacility{}}
	best := make(map[string]*entities.DriveTimeBand)
	for _, band := range bands {
		if !band.Contains(q.Lat, q.Long) {
			continue
		}
		if band.Version > result.BandVersion {
			result.BandVersion = band.Version
		}
		key := strings.ToLower(band.FacilityID)
		if current, ok := best[key]; !ok || band.MaxMinutes < current.MaxMinutes {
			best[key] = band
		}
	}
	if len(best) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(best))
	for key := range best {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	loader := s.newFacilityLoader()
	facilities, errs := loader.LoadMany(ctx, keys)()
	for i, key := range keys {
		if errs != nil && errs[i] != nil {
			if apperrors.IsNotFound(errs[i]) {
				continue
			}
			observability.RecordError(span, errs[i])
			return nil, errs[i]
		}
		facility := facilities[i]
		if facilityType != "" && facility.FacilityType != facilityType {
			continue
		}
		band := best[key]
		result.Facilities = append(result.Facilities, NearbyFacility{
			ID:         facility.ID,
			MinMinutes: band.MinMinutes,
			MaxMinutes: band.MaxMinutes,
		})
	}

	sort.SliceStable(result.Facilities, func(i, j int) bool {
		a, b := result.Facilities[i], result.Facilities[j]
		if a.MaxMinutes != b.MaxMinutes {
			return a.MaxMinutes < b.MaxMinutes
		}
		return a.ID < b.ID
	})
	return result, nil
}
