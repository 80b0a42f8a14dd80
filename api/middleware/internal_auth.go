package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cashdash/cashdash-backend/api/responses"
	pkgerrors "github.com/cashdash/cashdash-backend/pkg/errors"
	"github.com/cashdash/cashdash-backend/pkg/logger"
)

const internalSecretHeader = "X-Internal-Secret"

// InternalAuth gates system-to-system routes behind a shared secret header.
// The comparison is constant time so header probing leaks nothing.
func InternalAuth(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "internal auth not configured"))
				return
			}
			provided := strings.TrimSpace(r.Header.Get(internalSecretHeader))
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid internal credentials"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
