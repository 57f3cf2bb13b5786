package rbac

import (
	"log/slog"
	"net/http"

	"github.com/atlas-eam/atlas-eam/internal/platform/httpx"
	"github.com/atlas-eam/atlas-eam/internal/shared"
)

// Middleware wires the authorization gate for HTTP handlers. The gate wraps
// guarded operations declaratively; handler code never branches on
// capabilities itself.
type Middleware struct {
	Logger *slog.Logger
}

// Require rejects the request with 403 unless the attached principal holds
// the capability. An unauthenticated request hitting a guarded operation is
// rejected here, not at the token filter.
func (m Middleware) Require(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			if !principal.HasAuthority(capability) {
				if m.Logger != nil {
					m.Logger.Warn("authority missing",
						slog.String("subject", principal.Subject),
						slog.String("capability", capability))
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
