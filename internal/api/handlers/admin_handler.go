package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

const maxOverlayBody = 1 << 20

// OverlayManager writes and reads CMS overlays
type OverlayManager interface {
	Put(ctx context.Context, id string, upload *entities.Overlay) (*entities.Overlay, error)
	Get(ctx context.Context, id string) (*entities.Overlay, error)
	Delete(ctx context.Context, id string) error
}

// FacilityAdmin reads and removes stored facilities
type FacilityAdmin interface {
	GetStored(ctx context.Context, id string) (*repositories.StoredFacility, error)
	Delete(ctx context.Context, id string) error
}

// Reloader runs a reload cycle
type Reloader interface {
	Reload(ctx context.Context) (*entities.ReloadReport, error)
}

// AdminHandler serves the overlay and management endpoints
type AdminHandler struct {
	overlays   OverlayManager
	facilities FacilityAdmin
	reloader   Reloader
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(overlays OverlayManager, facilities FacilityAdmin, reloader Reloader) *AdminHandler {
	return &AdminHandler{
		overlays:   overlays,
		facilities: facilities,
		reloader:   reloader,
	}
}

// overlayUpload is the body of an overlay upload
type overlayUpload struct {
	OperatingStatus  *entities.OperatingStatus  `json:"operating_status"`
	DetailedServices []entities.DetailedService `json:"detailed_services"`
}

// PutOverlay handles POST /v0/facilities/{id}/cms-overlay
func (h *AdminHandler) PutOverlay(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	var upload overlayUpload
	body := http.MaxBytesReader(w, r.Body, maxOverlayBody)
	if err := json.NewDecoder(body).Decode(&upload); err != nil {
		if errors.Is(err, io.EOF) {
			respondWithError(w, r, apperrors.NewValidationError("overlay body is required"))
			return
		}
		respondWithError(w, r, apperrors.NewValidationError("malformed overlay body: "+err.Error()))
		return
	}

	overlay, err := h.overlays.Put(r.Context(), id, &entities.Overlay{
		OperatingStatus:  upload.OperatingStatus,
		DetailedServices: upload.DetailedServices,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": overlay})
}

// GetOverlay handles GET /v0/facilities/{id}/cms-overlay
func (h *AdminHandler) GetOverlay(w http.ResponseWriter, r *http.Request) {
	overlay, err := h.overlays.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": overlay})
}

// DeleteOverlay handles DELETE /v0/facilities/{id}/cms-overlay
func (h *AdminHandler) DeleteOverlay(w http.ResponseWriter, r *http.Request) {
	if err := h.overlays.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reload handles GET and POST /internal/management/reload
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	report, err := h.reloader.Reload(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	observability.LoggerFromContext(r.Context()).Info().
		Str("reload_id", report.ReloadID).
		Int("problems", len(report.Problems)).
		Msg("Reload requested over HTTP finished")
	respondWithJSON(w, http.StatusOK, report)
}

// GetStoredFacility handles GET /internal/management/facilities/{id}
func (h *AdminHandler) GetStoredFacility(w http.ResponseWriter, r *http.Request) {
	stored, err := h.facilities.GetStored(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": stored})
}

// DeleteFacility handles DELETE /internal/management/facilities/{id}
func (h *AdminHandler) DeleteFacility(w http.ResponseWriter, r *http.Request) {
	if err := h.facilities.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
