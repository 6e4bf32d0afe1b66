package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/zatekoja/facilitydirectory/internal/api/render"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// AdminAuth requires "Authorization: Bearer <token>" on admin routes. With
// no token configured every admin request is refused.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(token)) != 1 {
				status, body := render.Error(apperrors.NewUnauthorizedError("a valid admin token is required"))
				w.Header().Set("Content-Type", render.ContentTypeJSON)
				w.WriteHeader(status)
				_, _ = w.Write(body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
