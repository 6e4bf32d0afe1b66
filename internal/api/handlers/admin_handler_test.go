package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facilitydirectory/internal/api/handlers"
	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

type MockOverlayManager struct {
	mock.Mock
}

func (m *MockOverlayManager) Put(ctx context.Context, id string, upload *entities.Overlay) (*entities.Overlay, error) {
	args := m.Called(ctx, id, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Overlay), args.Error(1)
}

func (m *MockOverlayManager) Get(ctx context.Context, id string) (*entities.Overlay, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Overlay), args.Error(1)
}

func (m *MockOverlayManager) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockFacilityAdmin struct {
	mock.Mock
}

func (m *MockFacilityAdmin) GetStored(ctx context.Context, id string) (*repositories.StoredFacility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.StoredFacility), args.Error(1)
}

func (m *MockFacilityAdmin) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockReloader struct {
	mock.Mock
}

func (m *MockReloader) Reload(ctx context.Context) (*entities.ReloadReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReloadReport), args.Error(1)
}

type adminFixture struct {
	overlays   *MockOverlayManager
	facilities *MockFacilityAdmin
	reloader   *MockReloader
	mux        *http.ServeMux
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		overlays:   new(MockOverlayManager),
		facilities: new(MockFacilityAdmin),
		reloader:   new(MockReloader),
		mux:        http.NewServeMux(),
	}
	h := handlers.NewAdminHandler(f.overlays, f.facilities, f.reloader)
	f.mux.HandleFunc("POST /v0/facilities/{id}/cms-overlay", h.PutOverlay)
	f.mux.HandleFunc("GET /v0/facilities/{id}/cms-overlay", h.GetOverlay)
	f.mux.HandleFunc("DELETE /v0/facilities/{id}/cms-overlay", h.DeleteOverlay)
	f.mux.HandleFunc("POST /internal/management/reload", h.Reload)
	f.mux.HandleFunc("GET /internal/management/facilities/{id}", h.GetStoredFacility)
	f.mux.HandleFunc("DELETE /internal/management/facilities/{id}", h.DeleteFacility)
	return f
}

func (f *adminFixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestAdminHandler_PutOverlay(t *testing.T) {
	f := newAdminFixture()
	stored := &entities.Overlay{
		ID:              "vha_999",
		OperatingStatus: &entities.OperatingStatus{Code: entities.OperatingStatusLimited, AdditionalInfo: "Limited"},
		DetailedServices: []entities.DetailedService{
			{Name: "COVID-19 vaccines", ServiceID: "covid19Vaccine", Active: true, Path: "/erie-health-care/programs/covid-19-vaccines"},
		},
	}
	f.overlays.On("Put", mock.Anything, "vha_999", mock.MatchedBy(func(o *entities.Overlay) bool {
		return o.OperatingStatus != nil && o.OperatingStatus.Code == entities.OperatingStatusLimited &&
			len(o.DetailedServices) == 1 && o.DetailedServices[0].Name == "COVID-19 vaccines"
	})).Return(stored, nil).Once()

	rec := f.do(http.MethodPost, "/v0/facilities/vha_999/cms-overlay", `{
		"operating_status": {"code": "LIMITED", "additional_info": "Limited"},
		"detailed_services": [{"name": "COVID-19 vaccines", "active": true}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data entities.Overlay `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "vha_999", resp.Data.ID)
	assert.Equal(t, "/erie-health-care/programs/covid-19-vaccines", resp.Data.DetailedServices[0].Path)
	f.overlays.AssertExpectations(t)
}

func TestAdminHandler_PutOverlay_BadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"malformed", `{"operating_status": `},
		{"wrong shape", `{"detailed_services": "dental"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()
			rec := f.do(http.MethodPost, "/v0/facilities/vha_999/cms-overlay", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			f.overlays.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAdminHandler_PutOverlay_ValidationFromService(t *testing.T) {
	f := newAdminFixture()
	f.overlays.On("Put", mock.Anything, "vha_999", mock.Anything).
		Return(nil, apperrors.NewValidationError(`unknown operating status code "OPEN"`))

	rec := f.do(http.MethodPost, "/v0/facilities/vha_999/cms-overlay", `{"operating_status": {"code": "OPEN"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown operating status code")
}

func TestAdminHandler_GetAndDeleteOverlay(t *testing.T) {
	f := newAdminFixture()
	f.overlays.On("Get", mock.Anything, "vha_000").Return(nil, apperrors.NewNotFoundError("overlay vha_000 not found"))
	f.overlays.On("Delete", mock.Anything, "vha_999").Return(nil)

	rec := f.do(http.MethodGet, "/v0/facilities/vha_000/cms-overlay", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, "/v0/facilities/vha_999/cms-overlay", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	f.overlays.AssertExpectations(t)
}

func TestAdminHandler_Reload(t *testing.T) {
	f := newAdminFixture()
	start := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	report := entities.NewReloadReport("reload-1", start)
	report.Created = append(report.Created, "vha_688")
	report.AddProblem(entities.ReloadProblem{Collector: "cemeteries", Description: "no entries"})
	report.Finish(start.Add(90 * time.Second))
	f.reloader.On("Reload", mock.Anything).Return(report, nil).Once()

	rec := f.do(http.MethodPost, "/internal/management/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got entities.ReloadReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"vha_688"}, got.Created)
	assert.Equal(t, "no entries", got.Problems[0].Description)
	assert.Equal(t, 90*time.Second, got.Timing.TotalDuration)
}

func TestAdminHandler_Reload_StorageFailure(t *testing.T) {
	f := newAdminFixture()
	f.reloader.On("Reload", mock.Anything).Return(nil, apperrors.NewInternalError("failed to save facility", assert.AnError))

	rec := f.do(http.MethodPost, "/internal/management/reload", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminHandler_StoredFacility(t *testing.T) {
	f := newAdminFixture()
	missingSince := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	f.facilities.On("GetStored", mock.Anything, "vha_512").Return(&repositories.StoredFacility{
		Facility:     sampleFacility("vha_512", entities.FacilityTypeHealth),
		ContentHash:  "abc",
		MissingSince: &missingSince,
	}, nil)
	f.facilities.On("Delete", mock.Anything, "vha_512").Return(nil)

	rec := f.do(http.MethodGet, "/internal/management/facilities/vha_512", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"missing_since":"2026-03-01T02:00:00Z"`)

	rec = f.do(http.MethodDelete, "/internal/management/facilities/vha_512", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	f.facilities.AssertExpectations(t)
}
