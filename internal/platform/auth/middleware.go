package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/animus-labs/trialflow/internal/platform/httpserver"
	"github.com/animus-labs/trialflow/internal/platform/requestid"
)

// Middleware authenticates the caller and enforces the role required by the
// request. Paths listed in public bypass both.
func Middleware(logger *slog.Logger, authn Authenticator, next http.Handler, public ...string) http.Handler {
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := open[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		id, err := authn.Authenticate(r.Context(), r)
		if err != nil {
			rid, _ := requestid.FromContext(r.Context())
			logger.Warn("auth denied", "request_id", rid, "path", r.URL.Path, "reason", "unauthenticated", "error", err)
			if errors.Is(err, ErrUnauthenticated) {
				httpserver.WriteError(w, r, http.StatusUnauthorized, "unauthenticated")
				return
			}
			httpserver.WriteError(w, r, http.StatusInternalServerError, "auth_failed")
			return
		}
		required := RequiredRole(r)
		if !id.Allows(required) {
			rid, _ := requestid.FromContext(r.Context())
			logger.Warn("auth denied", "request_id", rid, "path", r.URL.Path, "reason", "forbidden", "subject", id.Subject, "required_role", required)
			httpserver.WriteError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
