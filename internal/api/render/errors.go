package render

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// ErrorObject is one entry of a JSON API error document
type ErrorObject struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

// ErrorDocument is the body of every error response
type ErrorDocument struct {
	Errors []ErrorObject `json:"errors"`
}

// StatusFor maps an error to its HTTP status code
func StatusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error builds the error document for err. Internal details are not exposed
// for server errors.
func Error(err error) (int, []byte) {
	status := StatusFor(err)
	detail := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		detail = appErr.Message
	}
	if status == http.StatusInternalServerError {
		detail = "An unexpected error occurred"
	}

	body, _ := json.Marshal(ErrorDocument{Errors: []ErrorObject{{
		Title:  http.StatusText(status),
		Detail: detail,
		Code:   strconv.Itoa(status),
		Status: strconv.Itoa(status),
	}}})
	return status, body
}
