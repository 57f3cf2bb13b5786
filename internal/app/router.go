package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atlas-eam/atlas-eam/internal/auth"
	"github.com/atlas-eam/atlas-eam/internal/identity"
	"github.com/atlas-eam/atlas-eam/internal/observability"
	"github.com/atlas-eam/atlas-eam/internal/rbac"
	"github.com/atlas-eam/atlas-eam/internal/token"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Tokens          *token.Service
	Expander        RoleCodeExpander
	AuthHandler     *auth.Handler
	IdentityHandler *identity.Handler
	Gate            rbac.Middleware
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with the default stack: request
// context, recovery, security headers, rate limiting, then bearer-token
// reconstruction, then the routed handlers with their capability gates.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(BearerToken(params.Tokens, params.Expander, params.Logger))
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Get("/metrics", params.Metrics.Handler().ServeHTTP)
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	if params.IdentityHandler != nil {
		r.Route("/users", func(r chi.Router) {
			params.IdentityHandler.MountUserRoutes(r, params.Gate)
		})
		r.Route("/roles", func(r chi.Router) {
			params.IdentityHandler.MountRoleRoutes(r, params.Gate)
		})
	}

	return r
}
