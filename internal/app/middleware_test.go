package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/atlas-eam/atlas-eam/internal/shared"
	"github.com/atlas-eam/atlas-eam/internal/token"
)

func requestContextConfig() *Config {
	return &Config{
		DefaultTenant:    "default",
		DefaultLocale:    "en",
		SupportedLocales: []string{"en", "id", "es", "fr"},
	}
}

func resolveRequest(t *testing.T, headers map[string]string) (tenant string, locale language.Tag) {
	t.Helper()
	handler := RequestContext(requestContextConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant = shared.TenantFromContext(r.Context())
		locale = shared.LocaleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	return tenant, locale
}

func TestRequestContextDefaults(t *testing.T) {
	tenant, locale := resolveRequest(t, nil)
	assert.Equal(t, "default", tenant)
	assert.Equal(t, language.English, locale)
}

func TestRequestContextHeaders(t *testing.T) {
	tenant, locale := resolveRequest(t, map[string]string{
		"X-Tenant-ID":     "acme",
		"Accept-Language": "id-ID, id;q=0.9, en;q=0.5",
	})
	assert.Equal(t, "acme", tenant)
	base, _ := locale.Base()
	assert.Equal(t, "id", base.String())
}

func TestRequestContextBlankAndUnsupportedFallBack(t *testing.T) {
	tenant, locale := resolveRequest(t, map[string]string{
		"X-Tenant-ID":     "   ",
		"Accept-Language": "zz-not-a-language",
	})
	assert.Equal(t, "default", tenant)
	assert.Equal(t, language.English, locale)
}

func TestRequestContextNoLeakBetweenRequests(t *testing.T) {
	_, _ = resolveRequest(t, map[string]string{
		"X-Tenant-ID":     "acme",
		"Accept-Language": "es",
	})
	tenant, locale := resolveRequest(t, nil)
	assert.Equal(t, "default", tenant)
	assert.Equal(t, language.English, locale)
}

type staticExpander map[string][]string

func (e staticExpander) EffectivePermissionsForRoleCode(_ context.Context, code string) ([]string, error) {
	perms, ok := e[code]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return perms, nil
}

func bearerFixture(t *testing.T) (*token.Service, http.Handler, *shared.Principal) {
	t.Helper()
	tokens, err := token.NewService("0123456789abcdef0123456789abcdef", 24*time.Hour)
	require.NoError(t, err)

	expander := staticExpander{"ADMIN": {"USER_CREATE", "ROLE_MANAGE"}}

	captured := &shared.Principal{}
	handler := BearerToken(tokens, expander, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := shared.PrincipalFromContext(r.Context()); p != nil {
			*captured = *p
		} else {
			*captured = shared.Principal{}
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	return tokens, handler, captured
}

func TestBearerTokenAbsentPassesThrough(t *testing.T) {
	_, handler, captured := bearerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, captured.Subject)
}

func TestBearerTokenRejectsTampered(t *testing.T) {
	tokens, handler, _ := bearerFixture(t)

	raw, err := tokens.Issue("jane.doe", nil, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw+"x")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerTokenBuildsAuthorities(t *testing.T) {
	tokens, handler, captured := bearerFixture(t)

	raw, err := tokens.Issue("jane.doe", []string{"ADMIN"}, []string{"REPORT_EXPORT"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "jane.doe", captured.Subject)
	assert.Equal(t, []string{"ADMIN"}, captured.Roles)
	// Authorities are the token's direct permissions plus the expansion of
	// every role code.
	assert.True(t, captured.HasAuthority("REPORT_EXPORT"))
	assert.True(t, captured.HasAuthority("USER_CREATE"))
	assert.True(t, captured.HasAuthority("ROLE_MANAGE"))
	assert.False(t, captured.HasAuthority("ASSET_VIEW"))
}

func TestBearerTokenUnknownRoleRejected(t *testing.T) {
	tokens, handler, _ := bearerFixture(t)

	raw, err := tokens.Issue("jane.doe", []string{"GHOST"}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
