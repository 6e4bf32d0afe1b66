package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool        { return &v }

func searchCorpus() []*entities.Facility {
	dc := facility("vha_688", 38.9293, -77.0109)
	dc.Address.Physical.State = "DC"
	dc.Address.Physical.Zip = "20422"
	dc.Visn = "5"
	dc.Services.Health = []string{"primaryCare", "dental"}

	baltimore := facility("vha_512", 39.2976, -76.6136)
	baltimore.Address.Physical.State = "MD"
	baltimore.Address.Physical.Zip = "21201"
	baltimore.Visn = "5"
	baltimore.Services.Health = []string{"audiology"}

	benefits := facility("vba_372", 38.9, -77.03)
	benefits.Address.Physical.State = "DC"
	benefits.Address.Physical.Zip = "20420"
	benefits.Services.Benefits = []string{"pensions"}

	mobile := facility("vc_0101V", 34.05, -118.24)
	mobile.Address.Physical.State = "CA"
	*mobile.Mobile = true

	return []*entities.Facility{dc, baltimore, benefits, mobile}
}

func ids(result *SearchResult) []string {
	out := make([]string, 0, len(result.Facilities))
	for _, f := range result.Facilities {
		out = append(out, f.ID)
	}
	return out
}

func TestSearch_Validation(t *testing.T) {
	tests := []struct {
		name  string
		query SearchQuery
	}{
		{"radius without location", SearchQuery{Radius: fp(10), PerPage: 10}},
		{"lat without long", SearchQuery{Lat: fp(38), PerPage: 10}},
		{"short bbox", SearchQuery{BBox: []float64{1, 2, 3}, PerPage: 10}},
		{"bbox and state", SearchQuery{BBox: []float64{-78, 38, -76, 40}, State: "DC", PerPage: 10}},
		{"state and zip", SearchQuery{State: "DC", Zip: "20422", PerPage: 10}},
		{"lat out of range", SearchQuery{Lat: fp(91), Long: fp(0), PerPage: 10}},
		{"negative radius", SearchQuery{Lat: fp(38), Long: fp(-77), Radius: fp(-1), PerPage: 10}},
		{"unknown type", SearchQuery{Type: "spaceport", PerPage: 10}},
		{"unknown service", SearchQuery{Services: []string{"teleportation"}, PerPage: 10}},
		{"page zero after default", SearchQuery{Page: -1, PerPage: 10}},
		{"per page too large", SearchQuery{PerPage: MaxPerPage + 1}},
		{"page beyond addressable range", SearchQuery{Page: math.MaxInt, PerPage: 10}},
		{"NaN latitude", SearchQuery{Lat: fp(math.NaN()), Long: fp(-77), PerPage: 10}},
		{"infinite longitude", SearchQuery{Lat: fp(38), Long: fp(math.Inf(1)), PerPage: 10}},
		{"NaN radius", SearchQuery{Lat: fp(38), Long: fp(-77), Radius: fp(math.NaN()), PerPage: 10}},
		{"NaN bbox corner", SearchQuery{BBox: []float64{-78, math.NaN(), -76, 40}, PerPage: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			_, err := runSearch(searchCorpus(), &q)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestSearch_Filters(t *testing.T) {
	tests := []struct {
		name  string
		query SearchQuery
		want  []string
	}{
		{"everything", SearchQuery{}, []string{"vba_372", "vc_0101V", "vha_512", "vha_688"}},
		{"state", SearchQuery{State: "dc"}, []string{"vba_372", "vha_688"}},
		{"zip prefix", SearchQuery{Zip: "2042"}, []string{"vba_372", "vha_688"}},
		{"visn", SearchQuery{Visn: "5"}, []string{"vha_512", "vha_688"}},
		{"type", SearchQuery{Type: "health"}, []string{"vha_512", "vha_688"}},
		{"ids ignore case", SearchQuery{IDs: []string{"VHA_688", "vc_0101v", "vha_404"}}, []string{"vc_0101V", "vha_688"}},
		{"bbox any corner order", SearchQuery{BBox: []float64{-76, 40, -78, 38}}, []string{"vba_372", "vha_512", "vha_688"}},
		{"services any via alias", SearchQuery{Services: []string{"Dental Services", "pensions"}}, []string{"vba_372", "vha_688"}},
		{"mobile", SearchQuery{Mobile: bp(true)}, []string{"vc_0101V"}},
		{"not mobile with type", SearchQuery{Mobile: bp(false), Type: "benefits"}, []string{"vba_372"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			q.PerPage = DefaultPerPage
			result, err := runSearch(searchCorpus(), &q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(result))
			assert.Nil(t, result.Distances)
		})
	}
}

func TestSearch_DistanceOrderAndRadius(t *testing.T) {
	q := SearchQuery{Lat: fp(38.9), Long: fp(-77.0), Radius: fp(50), PerPage: DefaultPerPage}

	result, err := runSearch(searchCorpus(), &q)
	require.NoError(t, err)

	assert.Equal(t, []string{"vba_372", "vha_688", "vha_512"}, ids(result))
	require.Len(t, result.Distances, 3)
	assert.LessOrEqual(t, result.Distances[0], result.Distances[1])
	assert.LessOrEqual(t, result.Distances[1], result.Distances[2])
	assert.InDelta(t, 35, result.Distances[2], 2)
}

func TestSearch_Pagination(t *testing.T) {
	q := SearchQuery{Page: 2, PerPage: 3}
	result, err := runSearch(searchCorpus(), &q)
	require.NoError(t, err)
	assert.Equal(t, []string{"vha_688"}, ids(result))
	assert.Equal(t, 4, result.TotalEntries)
	assert.Equal(t, 2, result.TotalPages)

	q = SearchQuery{Page: 5, PerPage: 3}
	result, err = runSearch(searchCorpus(), &q)
	require.NoError(t, err)
	assert.Empty(t, result.Facilities)
	assert.Equal(t, 4, result.TotalEntries)

	q = SearchQuery{PerPage: 0}
	result, err = runSearch(searchCorpus(), &q)
	require.NoError(t, err)
	assert.Empty(t, result.Facilities)
	assert.Equal(t, 4, result.TotalEntries)
	assert.Equal(t, 1, result.Page)

	q = SearchQuery{Page: MaxPage, PerPage: MaxPerPage}
	assert.NotPanics(t, func() {
		result, err = runSearch(searchCorpus(), &q)
	})
	require.NoError(t, err)
	assert.Empty(t, result.Facilities)

	q = SearchQuery{Page: math.MaxInt64, PerPage: 10}
	assert.NotPanics(t, func() {
		_, err = runSearch(searchCorpus(), &q)
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestHaversineMiles(t *testing.T) {
	// Washington DC to Baltimore
	d := HaversineMiles(38.9072, -77.0369, 39.2904, -76.6122)
	assert.InDelta(t, 35.0, d, 0.5)
	assert.Zero(t, HaversineMiles(10, 10, 10, 10))
}

func TestSearchQuery_OnlyTypeOrMobile(t *testing.T) {
	assert.True(t, (&SearchQuery{Type: "health", Mobile: bp(true)}).OnlyTypeOrMobile())
	assert.False(t, (&SearchQuery{State: "VA"}).OnlyTypeOrMobile())
}
