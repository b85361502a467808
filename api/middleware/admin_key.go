package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/ordersync-backend/api/responses"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/security"
)

const adminKeyHeader = "X-Admin-Key"

// RequireAdminKey checks the X-Admin-Key header against the configured argon2id hash.
// With no hash configured every request is refused.
func RequireAdminKey(encodedHash string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if encodedHash == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin key not configured"))
				return
			}
			key := strings.TrimSpace(r.Header.Get(adminKeyHeader))
			if key == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin key required"))
				return
			}
			ok, err := security.VerifyAdminKey(key, encodedHash)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify admin key"))
				return
			}
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "invalid admin key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
