package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/zatekoja/facilitydirectory/internal/api/render"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", render.ContentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithBody(w http.ResponseWriter, statusCode int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// respondWithError writes the JSON API error document for err. Server errors
// are logged with their cause.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := render.Error(err)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	respondWithBody(w, status, render.ContentTypeJSON, body)
}
