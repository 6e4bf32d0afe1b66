package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/zatekoja/facilitydirectory/internal/api/render"
	"github.com/zatekoja/facilitydirectory/internal/application/services"
	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// FacilityQueries is the read side of the facility service
type FacilityQueries interface {
	GetByID(ctx context.Context, id string) (*entities.Facility, error)
	All(ctx context.Context) ([]*entities.Facility, error)
	Search(ctx context.Context, q *services.SearchQuery) (*services.SearchResult, error)
}

// NearbyQueries answers drive-time queries
type NearbyQueries interface {
	Nearby(ctx context.Context, q services.NearbyQuery) (*services.NearbyResult, error)
}

// FacilityHandler serves the public facility endpoints. Every successful
// response goes through the response cache.
type FacilityHandler struct {
	facilities FacilityQueries
	nearby     NearbyQueries
	cache      *services.ResponseCache
	renderer   *render.Renderer
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(facilities FacilityQueries, nearby NearbyQueries, cache *services.ResponseCache, renderer *render.Renderer) *FacilityHandler {
	return &FacilityHandler{
		facilities: facilities,
		nearby:     nearby,
		cache:      cache,
		renderer:   renderer,
	}
}

// serveCached writes the cached response for the request, computing it on a
// miss. kind labels the cache metrics.
func (h *FacilityHandler) serveCached(w http.ResponseWriter, r *http.Request, kind, encoding string, compute func(ctx context.Context) (*services.CachedResponse, error)) {
	key := services.QueryKey(r.URL.Path, r.URL.Query(), encoding)
	resp, hit, err := h.cache.GetOrCompute(r.Context(), kind, key, compute)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	respondWithBody(w, http.StatusOK, resp.ContentType, resp.Body)
}

// SearchV0 handles GET /v0/facilities
func (h *FacilityHandler) SearchV0(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, render.V0)
}

// SearchV1 handles GET /v1/facilities
func (h *FacilityHandler) SearchV1(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, render.V1)
}

func (h *FacilityHandler) search(w http.ResponseWriter, r *http.Request, v render.Version) {
	q, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	h.serveCached(w, r, "search", render.ContentTypeJSON, func(ctx context.Context) (*services.CachedResponse, error) {
		result, err := h.facilities.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		body, err := h.renderer.Search(result, v, r.URL.Path, r.URL.Query())
		if err != nil {
			return nil, apperrors.NewInternalError("failed to render search results", err)
		}
		return &services.CachedResponse{ContentType: render.ContentTypeJSON, Body: body}, nil
	})
}

// GetFacilityV0 handles GET /v0/facilities/{id}
func (h *FacilityHandler) GetFacilityV0(w http.ResponseWriter, r *http.Request) {
	h.getFacility(w, r, render.V0)
}

// GetFacilityV1 handles GET /v1/facilities/{id}
func (h *FacilityHandler) GetFacilityV1(w http.ResponseWriter, r *http.Request) {
	h.getFacility(w, r, render.V1)
}

func (h *FacilityHandler) getFacility(w http.ResponseWriter, r *http.Request, v render.Version) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		respondWithError(w, r, apperrors.NewValidationError("facility ID is required"))
		return
	}

	h.serveCached(w, r, "facility", render.ContentTypeJSON, func(ctx context.Context) (*services.CachedResponse, error) {
		facility, err := h.facilities.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		body, err := h.renderer.Facility(facility, v)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to render facility", err)
		}
		return &services.CachedResponse{ContentType: render.ContentTypeJSON, Body: body}, nil
	})
}

// wantsCSV reports whether the client asked for the CSV download
func wantsCSV(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), render.ContentTypeCSV)
}

// AllFacilities handles GET /v0/facilities/all. The whole corpus is rendered
// as GeoJSON, or as CSV when asked for. Only type and mobile filters apply.
func (h *FacilityHandler) AllFacilities(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if !q.OnlyTypeOrMobile() {
		respondWithError(w, r, apperrors.NewValidationError("only type and mobile filters are supported for the full download"))
		return
	}
	var facilityType entities.FacilityType
	if q.Type != "" {
		t, ok := entities.ParseFacilityType(q.Type)
		if !ok {
			respondWithError(w, r, apperrors.NewValidationError(fmt.Sprintf("unknown facility type %q", q.Type)))
			return
		}
		facilityType = t
	}

	encoding := render.ContentTypeGeoJSON
	if wantsCSV(r) {
		encoding = render.ContentTypeCSV
	}

	h.serveCached(w, r, "all", encoding, func(ctx context.Context) (*services.CachedResponse, error) {
		all, err := h.facilities.All(ctx)
		if err != nil {
			return nil, err
		}
		selected := make([]*entities.Facility, 0, len(all))
		for _, f := range all {
			if facilityType != "" && f.FacilityType != facilityType {
				continue
			}
			if q.Mobile != nil && f.IsMobile() != *q.Mobile {
				continue
			}
			selected = append(selected, f)
		}

		var body []byte
		if encoding == render.ContentTypeCSV {
			body, err = render.CSV(selected)
		} else {
			body, err = render.GeoJSON(selected)
		}
		if err != nil {
			return nil, apperrors.NewInternalError("failed to render facilities", err)
		}
		return &services.CachedResponse{ContentType: encoding, Body: body}, nil
	})
}

// Nearby handles GET /v1/nearby
func (h *FacilityHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q, err := parseNearbyQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	h.serveCached(w, r, "nearby", render.ContentTypeJSON, func(ctx context.Context) (*services.CachedResponse, error) {
		result, err := h.nearby.Nearby(ctx, q)
		if err != nil {
			return nil, err
		}
		body, err := h.renderer.Nearby(result)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to render nearby facilities", err)
		}
		return &services.CachedResponse{ContentType: render.ContentTypeJSON, Body: body}, nil
	})
}
