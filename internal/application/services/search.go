package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// Pagination limits
const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 1000
	// MaxPage keeps the page offset within int range
	MaxPage = math.MaxInt / MaxPerPage
)

const earthRadiusMiles = 3958.7613

// SearchQuery holds the public search parameters. Zero values mean "not given",
// except PerPage: zero asks for totals only, so callers fill in DefaultPerPage
// when the parameter is absent.
type SearchQuery struct {
	BBox     []float64
	Lat      *float64
	Long     *float64
	Radius   *float64
	State    string
	Visn     string
	Zip      string
	IDs      []string
	Type     string
	Services []string
	Mobile   *bool
	Page     int
	PerPage  int
}

// HasLocation reports whether distances are computed for this query
func (q *SearchQuery) HasLocation() bool {
	return q.Lat != nil && q.Long != nil
}

// OnlyTypeOrMobile reports whether the query filters by nothing but facility
// type and the mobile flag, the form accepted by the full-corpus downloads.
func (q *SearchQuery) OnlyTypeOrMobile() bool {
	return len(q.BBox) == 0 && q.Lat == nil && q.Long == nil && q.Radius == nil &&
		q.State == "" && q.Visn == "" && q.Zip == "" && len(q.IDs) == 0 && len(q.Services) == 0
}

// normalize validates the query, resolves aliases and applies defaults. Every
// rejection is a VALIDATION error.
func (q *SearchQuery) normalize() (*searchFilter, error) {
	f := &searchFilter{query: q}

	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Page < 1 || q.Page > MaxPage {
		return nil, apperrors.NewValidationError(fmt.Sprintf("page must be between 1 and %d", MaxPage))
	}
	if q.PerPage < 0 || q.PerPage > MaxPerPage {
		return nil, apperrors.NewValidationError(fmt.Sprintf("per_page must be between 0 and %d", MaxPerPage))
	}

	for _, v := range q.BBox {
		if !finite(v) {
			return nil, apperrors.NewValidationError("bbox values must be finite numbers")
		}
	}
	for _, p := range []*float64{q.Lat, q.Long, q.Radius} {
		if p != nil && !finite(*p) {
			return nil, apperrors.NewValidationError("lat, long and radius must be finite numbers")
		}
	}

	locators := 0
	if len(q.BBox) > 0 {
		if len(q.BBox) != 4 {
			return nil, apperrors.NewValidationError("bbox requires exactly 4 values")
		}
		f.minLon, f.maxLon = math.Min(q.BBox[0], q.BBox[2]), math.Max(q.BBox[0], q.BBox[2])
		f.minLat, f.maxLat = math.Min(q.BBox[1], q.BBox[3]), math.Max(q.BBox[1], q.BBox[3])
		locators++
	}
	if (q.Lat == nil) != (q.Long == nil) {
		return nil, apperrors.NewValidationError("lat and long must be given together")
	}
	if q.Radius != nil {
		if !q.HasLocation() {
			return nil, apperrors.NewValidationError("radius requires lat and long")
		}
		if *q.Radius < 0 {
			return nil, apperrors.NewValidationError("radius must not be negative")
		}
	}
	if q.HasLocation() {
		if *q.Lat < -90 || *q.Lat > 90 || *q.Long < -180 || *q.Long > 180 {
			return nil, apperrors.NewValidationError("lat/long out of range")
		}
		locators++
	}
	if q.State != "" {
		locators++
	}
	if q.Visn != "" {
		locators++
	}
	if q.Zip != "" {
		locators++
	}
	if locators > 1 {
		return nil, apperrors.NewValidationError("only one of bbox, lat/long, state, visn or zip may be given")
	}

	if q.Type != "" {
		t, ok := entities.ParseFacilityType(q.Type)
		if !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown facility type %q", q.Type))
		}
		f.facilityType = t
	}
	for _, name := range q.Services {
		_, id, ok := entities.ResolveService(name)
		if !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown service %q", name))
		}
		f.services = append(f.services, id)
	}
	if len(q.IDs) > 0 {
		f.ids = make(map[string]bool, len(q.IDs))
		for _, id := range q.IDs {
			if id = strings.TrimSpace(id); id != "" {
				f.ids[strings.ToLower(id)] = true
			}
		}
	}
	return f, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type searchFilter struct {
	query                          *SearchQuery
	minLat, maxLat, minLon, maxLon float64
	facilityType                   entities.FacilityType
	services                       []string
	ids                            map[string]bool
}

func (f *searchFilter) matches(facility *entities.Facility) bool {
	q := f.query
	if f.ids != nil && !f.ids[strings.ToLower(facility.ID)] {
		return false
	}
	if len(q.BBox) == 4 {
		if facility.Latitude < f.minLat || facility.Latitude > f.maxLat ||
			facility.Longitude < f.minLon || facility.Longitude > f.maxLon {
			return false
		}
	}
	if q.State != "" && !strings.EqualFold(facility.PhysicalAddress().State, q.State) {
		return false
	}
	if q.Zip != "" && !strings.HasPrefix(facility.PhysicalAddress().Zip, q.Zip) {
		return false
	}
	if q.Visn != "" && facility.Visn != q.Visn {
		return false
	}
	if f.facilityType != "" && facility.FacilityType != f.facilityType {
		return false
	}
	if q.Mobile != nil && facility.IsMobile() != *q.Mobile {
		return false
	}
	if len(f.services) > 0 && !hasAnyService(facility, f.services) {
		return false
	}
	return true
}

func hasAnyService(facility *entities.Facility, wanted []string) bool {
	for _, have := range facility.Services.All() {
		for _, w := range wanted {
			if have == w {
				return true
			}
		}
	}
	return false
}

// SearchResult is one page of matching facilities
type SearchResult struct {
	Facilities []*entities.Facility
	// Distances holds the miles from the query point, parallel to Facilities.
	// It is nil when the query has no location.
	Distances    []float64
	Page         int
	PerPage      int
	TotalEntries int
	TotalPages   int
}

// runSearch filters, orders and paginates a merged corpus
func runSearch(corpus []*entities.Facility, q *SearchQuery) (*SearchResult, error) {
	filter, err := q.normalize()
	if err != nil {
		return nil, err
	}

	type hit struct {
		facility *entities.Facility
		distance float64
	}
	var hits []hit
	for _, facility := range corpus {
		if !filter.matches(facility) {
			continue
		}
		h := hit{facility: facility}
		if q.HasLocation() {
			h.distance = HaversineMiles(*q.Lat, *q.Long, facility.Latitude, facility.Longitude)
			if q.Radius != nil && h.distance > *q.Radius {
				continue
			}
		}
		hits = append(hits, h)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if q.HasLocation() && hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return strings.ToLower(hits[i].facility.ID) < strings.ToLower(hits[j].facility.ID)
	})

	result := &SearchResult{
		Facilities:   []*entities.Facility{},
		Page:         q.Page,
		PerPage:      q.PerPage,
		TotalEntries: len(hits),
	}
	if q.HasLocation() {
		result.Distances = []float64{}
	}
	if q.PerPage == 0 {
		return result, nil
	}
	result.TotalPages = (len(hits) + q.PerPage - 1) / q.PerPage

	start := (q.Page - 1) * q.PerPage
	if start >= len(hits) {
		return result, nil
	}
	end := min(start+q.PerPage, len(hits))
	for _, h := range hits[start:end] {
		result.Facilities = append(result.Facilities, h.facility)
		if q.HasLocation() {
			result.Distances = append(result.Distances, math.Round(h.distance*100)/100)
		}
	}
	return result, nil
}

// HaversineMiles is the great-circle distance between two points
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}
