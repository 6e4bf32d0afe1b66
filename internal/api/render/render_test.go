package render_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facilitydirectory/internal/api/render"
	"github.com/zatekoja/facilitydirectory/internal/application/services"
	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

const base = "https://api.example.gov/services/va_facilities"

func boolPtr(b bool) *bool { return &b }

func mergedFacility() *entities.Facility {
	return &entities.Facility{
		ID:             "vha_688",
		Name:           "Washington VA Medical Center",
		FacilityType:   entities.FacilityTypeHealth,
		Classification: "VA Medical Center (VAMC)",
		Website:        "https://www.washingtondc.va.gov",
		Latitude:       38.9293,
		Longitude:      -77.0108,
		Address: entities.Addresses{
			Physical: &entities.Address{Address1: "50 Irving Street, Northwest", City: "Washington", State: "DC", Zip: "20422-0001"},
			Mailing:  &entities.Address{Address1: "PO Box 1", City: "Washington", State: "DC", Zip: "20422"},
		},
		Phone:           entities.Phone{Main: "202-745-8000", Fax: "202-745-8530"},
		Hours:           entities.Hours{Monday: "24/7", Tuesday: "24/7", Saturday: "Closed"},
		OperatingStatus: &entities.OperatingStatus{Code: entities.OperatingStatusLimited, AdditionalInfo: "Main entrance closed"},
		Services:        entities.Services{Health: []string{"dental", "primaryCare"}, Other: []string{"onlineScheduling"}},
		DetailedServices: []entities.DetailedService{
			{Name: "Primary Care", ServiceID: "primaryCare", Active: true, Link: base + "/v1/facilities/vha_688/services/primaryCare"},
		},
		Mobile:       boolPtr(false),
		ActiveStatus: "A",
		Visn:         "5",
	}
}

func TestFacility_V0RoundTrip(t *testing.T) {
	f := mergedFacility()

	data, err := render.New(base).Facility(f, render.V0)
	require.NoError(t, err)

	decoded, err := render.DecodeFacility(data)
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestFacility_V1LinksServices(t *testing.T) {
	data, err := render.New(base+"/").Facility(mergedFacility(), render.V1)
	require.NoError(t, err)

	var doc struct {
		Data struct {
			ID         string `json:"id"`
			Type       string `json:"type"`
			Attributes struct {
				FacilityType string `json:"facilityType"`
				Services     struct {
					Health []struct {
						Name      string `json:"name"`
						ServiceID string `json:"serviceId"`
						Link      string `json:"link"`
					} `json:"health"`
					Link string `json:"link"`
				} `json:"services"`
				DetailedServices interface{} `json:"detailed_services"`
			} `json:"attributes"`
			Links struct {
				Self string `json:"self"`
			} `json:"links"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "vha_688", doc.Data.ID)
	assert.Equal(t, render.ResourceType, doc.Data.Type)
	assert.Equal(t, base+"/v1/facilities/vha_688", doc.Data.Links.Self)
	assert.Equal(t, "va_health_facility", doc.Data.Attributes.FacilityType)
	assert.Nil(t, doc.Data.Attributes.DetailedServices)

	health := doc.Data.Attributes.Services.Health
	require.Len(t, health, 2)
	assert.Equal(t, "dental", health[0].Name)
	assert.Equal(t, "Primary Care", health[1].Name)
	assert.Equal(t, base+"/v1/facilities/vha_688/services/primaryCare", health[1].Link)
	assert.Equal(t, base+"/v1/facilities/vha_688/services", doc.Data.Attributes.Services.Link)
}

func TestSearch_PaginationLinksAndDistances(t *testing.T) {
	a, b := mergedFacility(), mergedFacility()
	b.ID = "vha_512"
	result := &services.SearchResult{
		Facilities:   []*entities.Facility{a, b},
		Distances:    []float64{0.5, 31.27},
		Page:         2,
		PerPage:      2,
		TotalEntries: 7,
		TotalPages:   4,
	}
	params := url.Values{"lat": {"38.9"}, "long": {"-77.0"}, "page": {"2"}}

	data, err := render.New(base).Search(result, render.V1, "/v1/facilities", params)
	require.NoError(t, err)

	var doc render.CollectionDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Data, 2)
	assert.Equal(t, render.Pagination{CurrentPage: 2, PerPage: 2, TotalPages: 4, TotalEntries: 7}, doc.Meta.Pagination)
	assert.Equal(t, []render.Distance{{ID: "vha_688", Distance: 0.5}, {ID: "vha_512", Distance: 31.27}}, doc.Meta.Distances)

	assert.Equal(t, base+"/v1/facilities?lat=38.9&long=-77.0&page=2&per_page=2", doc.Links.Self)
	assert.Equal(t, base+"/v1/facilities?lat=38.9&long=-77.0&page=1&per_page=2", doc.Links.First)
	assert.Equal(t, base+"/v1/facilities?lat=38.9&long=-77.0&page=4&per_page=2", doc.Links.Last)
	require.NotNil(t, doc.Links.Prev)
	require.NotNil(t, doc.Links.Next)
	assert.Equal(t, base+"/v1/facilities?lat=38.9&long=-77.0&page=3&per_page=2", *doc.Links.Next)

	// the caller's parameters are not modified
	assert.Equal(t, []string{"2"}, params["page"])
	assert.NotContains(t, params, "per_page")
}

func TestSearch_EdgesHaveNullLinks(t *testing.T) {
	result := &services.SearchResult{Facilities: []*entities.Facility{}, Page: 1, PerPage: 10}

	data, err := render.New(base).Search(result, render.V0, "/v0/facilities", url.Values{"state": {"DC"}})
	require.NoError(t, err)

	var raw struct {
		Links map[string]interface{} `json:"links"`
		Meta  map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw.Links, "prev")
	assert.Nil(t, raw.Links["prev"])
	assert.Nil(t, raw.Links["next"])
	assert.NotContains(t, raw.Meta, "distances")

	var doc render.CollectionDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotNil(t, doc.Data)
	assert.Empty(t, doc.Data)
}

func TestGeoJSON_RoundTrip(t *testing.T) {
	mobile := mergedFacility()
	mobile.ID = "vc_0101V"
	mobile.FacilityType = entities.FacilityTypeVetCenter
	mobile.Mobile = boolPtr(true)
	mobile.Latitude, mobile.Longitude = 34.05, -118.25
	facilities := []*entities.Facility{mergedFacility(), mobile}

	data, err := render.GeoJSON(facilities)
	require.NoError(t, err)

	var fc render.FeatureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Point", fc.Features[1].Geometry.Type)
	assert.Equal(t, [2]float64{-118.25, 34.05}, fc.Features[1].Geometry.Coordinates)

	decoded, err := render.DecodeGeoJSON(data)
	require.NoError(t, err)
	assert.Equal(t, facilities, decoded)
}

func TestDecodeGeoJSON_RejectsOtherTypes(t *testing.T) {
	_, err := render.DecodeGeoJSON([]byte(`{"type":"Feature"}`))
	assert.Error(t, err)
}

func TestCSV_RoundTrip(t *testing.T) {
	f := mergedFacility()
	// detailed services and the services timestamp are not part of the CSV form
	f.DetailedServices = nil
	bare := &entities.Facility{ID: "nca_s_802", Name: "Oregon State Veterans Cemetery", FacilityType: entities.FacilityTypeCemetery, Latitude: 44.5, Longitude: -123.1}

	data, err := render.CSV([]*entities.Facility{f, bare})
	require.NoError(t, err)

	decoded, err := render.ParseCSV(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, f, decoded[0])
	assert.Equal(t, bare, decoded[1])
}

func TestCSV_HeaderOnlyForEmptyCorpus(t *testing.T) {
	data, err := render.CSV(nil)
	require.NoError(t, err)

	decoded, err := render.ParseCSV(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, decoded)
	assert.Equal(t, "id", render.CSVHeaders()[0])
}

func TestParseCSV_BadNumber(t *testing.T) {
	_, err := render.ParseCSV(bytes.NewBufferString("id,latitude\nvha_1,north\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestNearby_Document(t *testing.T) {
	result := &services.NearbyResult{
		Facilities:  []services.NearbyFacility{{ID: "vha_688", MinMinutes: 0, MaxMinutes: 10}},
		BandVersion: "2024-02",
	}

	data, err := render.New(base).Nearby(result)
	require.NoError(t, err)

	var doc render.NearbyDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Data, 1)
	assert.Equal(t, render.NearbyAttrs{MinTime: 0, MaxTime: 10}, doc.Data[0].Attributes)
	assert.Equal(t, base+"/v1/facilities/vha_688", doc.Data[0].Relationships.Facility.Links.Related)
	assert.Equal(t, "2024-02", doc.Meta.BandVersion)
}

func TestError_MapsTypes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"not found", apperrors.NewNotFoundError("facility vha_1 not found"), http.StatusNotFound, "facility vha_1 not found"},
		{"validation", apperrors.NewValidationError("radius requires lat and long"), http.StatusBadRequest, "radius requires lat and long"},
		{"unauthorized", apperrors.NewUnauthorizedError("missing token"), http.StatusUnauthorized, "missing token"},
		{"internal", apperrors.NewInternalError("query failed", errors.New("pq: connection refused")), http.StatusInternalServerError, "An unexpected error occurred"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := render.Error(tt.err)
			assert.Equal(t, tt.status, status)

			var doc render.ErrorDocument
			require.NoError(t, json.Unmarshal(body, &doc))
			require.Len(t, doc.Errors, 1)
			assert.Equal(t, tt.detail, doc.Errors[0].Detail)
			assert.Equal(t, http.StatusText(tt.status), doc.Errors[0].Title)
		})
	}
}
