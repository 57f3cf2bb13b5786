package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"golang.org/x/text/language"

	"github.com/atlas-eam/atlas-eam/internal/observability"
	"github.com/atlas-eam/atlas-eam/internal/platform/httpx"
	"github.com/atlas-eam/atlas-eam/internal/shared"
	"github.com/atlas-eam/atlas-eam/internal/token"
)

const tenantHeader = "X-Tenant-ID"

// RoleCodeExpander expands a role code into its effective permission set at
// request time, so already-issued tokens pick up grant changes.
type RoleCodeExpander interface {
	EffectivePermissionsForRoleCode(ctx context.Context, code string) ([]string, error)
}

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// RequestContext resolves tenant and locale for the request and stores both
// on the request context. Missing or malformed headers silently fall back to
// defaults; values die with the request, so nothing leaks into pooled
// goroutines.
func RequestContext(cfg *Config) func(http.Handler) http.Handler {
	defaultTenant := shared.DefaultTenant
	supported := []language.Tag{shared.DefaultLocale}
	if cfg != nil {
		if cfg.DefaultTenant != "" {
			defaultTenant = cfg.DefaultTenant
		}
		var tags []language.Tag
		// The first tag is the matcher's fallback, so the default locale leads.
		if tag, err := language.Parse(strings.TrimSpace(cfg.DefaultLocale)); err == nil {
			tags = append(tags, tag)
		}
		for _, raw := range cfg.SupportedLocales {
			tag, err := language.Parse(strings.TrimSpace(raw))
			if err != nil {
				continue
			}
			if len(tags) > 0 && tag == tags[0] {
				continue
			}
			tags = append(tags, tag)
		}
		if len(tags) > 0 {
			supported = tags
		}
	}
	matcher := language.NewMatcher(supported)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := strings.TrimSpace(r.Header.Get(tenantHeader))
			if tenantID == "" {
				tenantID = defaultTenant
			}
			locale, _ := language.MatchStrings(matcher, r.Header.Get("Accept-Language"))

			ctx := shared.ContextWithTenant(r.Context(), tenantID)
			ctx = shared.ContextWithLocale(ctx, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken validates an inbound bearer token, expands its role codes into
// permissions and attaches the resulting principal to the request. A request
// without a token passes through unauthenticated; the authorization gate
// rejects it later if the route is guarded.
func BearerToken(tokens *token.Service, expander RoleCodeExpander, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, err := tokens.Validate(raw)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}

			authorities := make(map[string]struct{}, len(claims.Permissions))
			for _, code := range claims.Permissions {
				authorities[code] = struct{}{}
			}
			for _, roleCode := range claims.Roles {
				perms, err := expander.EffectivePermissionsForRoleCode(r.Context(), roleCode)
				if err != nil {
					// Unknown role in a signed token is a data-integrity
					// fault; never silently drop the expansion.
					if logger != nil {
						logger.Error("expand role code", slog.String("role", roleCode), slog.Any("error", err))
					}
					httpx.RespondError(w, shared.ErrInvalidToken)
					return
				}
				for _, code := range perms {
					authorities[code] = struct{}{}
				}
			}

			principal := &shared.Principal{
				Subject:     claims.Subject,
				Roles:       claims.Roles,
				Authorities: authorities,
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// MiddlewareStack installs the default middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		FeaturePolicy:         "none",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		RequestContext(cfg.Config),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					if cfg.Logger != nil {
						cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					}
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(60, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}
