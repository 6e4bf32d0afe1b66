package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// MockInvalidator records cache invalidations
type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Invalidate(ctx context.Context, eventType entities.CacheEventType, facilityID string) {
	m.Called(ctx, eventType, facilityID)
}

func newMockInvalidator() *MockInvalidator {
	m := &MockInvalidator{}
	m.On("Invalidate", mock.Anything, mock.Anything, mock.Anything).Return()
	return m
}

type storedRow struct {
	facility *entities.Facility
	hash     string
	missing  *time.Time
}

// memoryFacilityRepo is an in-memory FacilityRepository
type memoryFacilityRepo struct {
	mu       sync.Mutex
	rows     map[string]*storedRow
	saves    int
	saveErr  error
	findErr  error
	byIDsErr error
}

func newMemoryFacilityRepo(facilities ...*entities.Facility) *memoryFacilityRepo {
	r := &memoryFacilityRepo{rows: map[string]*storedRow{}}
	for _, f := range facilities {
		hash, _ := f.ContentHash()
		r.rows[strings.ToLower(f.ID)] = &storedRow{facility: f.Clone(), hash: hash}
	}
	return r
}

func (r *memoryFacilityRepo) FindAll(_ context.Context) ([]*entities.Facility, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := make([]*entities.Facility, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row.facility.Clone())
	}
	return out, nil
}

func (r *memoryFacilityRepo) FindByID(_ context.Context, id string) (*entities.Facility, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[strings.ToLower(id)]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	return row.facility.Clone(), nil
}

func (r *memoryFacilityRepo) FindByIDs(_ context.Context, ids []string) ([]*entities.Facility, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byIDsErr != nil {
		return nil, r.byIDsErr
	}
	var out []*entities.Facility
	for _, id := range ids {
		if row, ok := r.rows[strings.ToLower(id)]; ok {
			out = append(out, row.facility.Clone())
		}
	}
	return out, nil
}

func (r *memoryFacilityRepo) FindStored(_ context.Context, id string) (*repositories.StoredFacility, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[strings.ToLower(id)]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	return &repositories.StoredFacility{Facility: row.facility.Clone(), ContentHash: row.hash, MissingSince: row.missing}, nil
}

func (r *memoryFacilityRepo) Snapshot(_ context.Context) (map[string]repositories.FacilityState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := make(map[string]repositories.FacilityState, len(r.rows))
	for key, row := range r.rows {
		out[key] = repositories.FacilityState{ID: row.facility.ID, ContentHash: row.hash, Missing: row.missing != nil}
	}
	return out, nil
}

func (r *memoryFacilityRepo) Save(_ context.Context, facility *entities.Facility, contentHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.rows[strings.ToLower(facility.ID)] = &storedRow{facility: facility.Clone(), hash: contentHash}
	return nil
}

func (r *memoryFacilityRepo) MarkMissing(_ context.Context, ids []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if row, ok := r.rows[strings.ToLower(id)]; ok && row.missing == nil {
			t := at
			row.missing = &t
		}
	}
	return nil
}

func (r *memoryFacilityRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, strings.ToLower(id))
	return nil
}

func (r *memoryFacilityRepo) isMissing(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[strings.ToLower(id)]
	return ok && row.missing != nil
}

// memoryOverlayRepo is an in-memory OverlayRepository
type memoryOverlayRepo struct {
	mu      sync.Mutex
	rows    map[string]*entities.Overlay
	saves   int
	saveErr error
}

func newMemoryOverlayRepo(overlays ...*entities.Overlay) *memoryOverlayRepo {
	r := &memoryOverlayRepo{rows: map[string]*entities.Overlay{}}
	for _, o := range overlays {
		r.rows[strings.ToLower(o.ID)] = o.Clone()
	}
	return r
}

func (r *memoryOverlayRepo) FindByID(_ context.Context, id string) (*entities.Overlay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.rows[strings.ToLower(id)]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("overlay for facility %s not found", id))
	}
	return o.Clone(), nil
}

func (r *memoryOverlayRepo) FindAll(_ context.Context) (map[string]*entities.Overlay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*entities.Overlay, len(r.rows))
	for key, o := range r.rows {
		out[key] = o.Clone()
	}
	return out, nil
}

func (r *memoryOverlayRepo) Update(_ context.Context, id string, fn func(*entities.Overlay) (*entities.Overlay, error)) (*entities.Overlay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.rows[strings.ToLower(id)]
	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current.Clone(), nil
	}
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.saves++
	r.rows[strings.ToLower(id)] = next.Clone()
	return next, nil
}

func (r *memoryOverlayRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, strings.ToLower(id))
	return nil
}

// memoryBandRepo is an in-memory DriveTimeBandRepository
type memoryBandRepo struct {
	bands         []*entities.DriveTimeBand
	lastMaxMinute int
}

func (r *memoryBandRepo) FindInBounds(_ context.Context, lat, lon float64, maxMinutes int) ([]*entities.DriveTimeBand, error) {
	r.lastMaxMinute = maxMinutes
	var out []*entities.DriveTimeBand
	for _, b := range r.bands {
		if b.InBounds(lat, lon) && b.MaxMinutes <= maxMinutes {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memoryBandRepo) Save(_ context.Context, band *entities.DriveTimeBand) error {
	r.bands = append(r.bands, band)
	return nil
}

// stubCollector returns a fixed collection or error
type stubCollector struct {
	name       string
	facilities []*entities.Facility
	problems   []entities.ReloadProblem
	err        error
	block      bool
	panics     bool
}

func (c *stubCollector) Name() string { return c.name }

func (c *stubCollector) Collect(ctx context.Context) (*providers.Collection, error) {
	if c.panics {
		panic("upstream exploded")
	}
	if c.block {
		select {}
	}
	if c.err != nil {
		return nil, c.err
	}
	out := &providers.Collection{Problems: c.problems}
	for _, f := range c.facilities {
		out.Facilities = append(out.Facilities, f.Clone())
	}
	return out, nil
}

// memorySource serves reference files from memory
type memorySource struct {
	files map[string]string
}

func (s *memorySource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	body, ok := s.files[name]
	if !ok {
		return nil, apperrors.NewNotFoundError(name + " not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (s *memorySource) Describe() string { return "memory" }

func facility(id string, lat, lon float64) *entities.Facility {
	mobile := false
	prefix, _, _ := entities.SplitFacilityID(id)
	ft := entities.FacilityTypeHealth
	switch prefix {
	case entities.PrefixBenefits:
		ft = entities.FacilityTypeBenefits
	case entities.PrefixCemetery, entities.PrefixStateCemetery:
		ft = entities.FacilityTypeCemetery
	case entities.PrefixVetCenter:
		ft = entities.FacilityTypeVetCenter
	}
	return &entities.Facility{
		ID:              id,
		Name:            "Facility " + id,
		FacilityType:    ft,
		Latitude:        lat,
		Longitude:       lon,
		Address:         entities.Addresses{Physical: &entities.Address{City: "Springfield", State: "VA", Zip: "22150"}},
		OperatingStatus: &entities.OperatingStatus{Code: entities.OperatingStatusNormal},
		Mobile:          &mobile,
	}
}
