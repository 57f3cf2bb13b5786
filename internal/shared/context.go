package shared

import (
	"context"

	"golang.org/x/text/language"
)

// DefaultTenant is used when a request carries no X-Tenant-ID header.
const DefaultTenant = "default"

// DefaultLocale is used when Accept-Language is absent or unparseable.
var DefaultLocale = language.English

type tenantContextKey struct{}
type localeContextKey struct{}
type principalContextKey struct{}

// Principal describes the authenticated actor attached to a request after
// token validation and role expansion.
type Principal struct {
	Subject     string
	Roles       []string
	Authorities map[string]struct{}
}

// HasAuthority reports whether the principal holds the given capability code.
func (p *Principal) HasAuthority(code string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Authorities[code]
	return ok
}

// ContextWithTenant stores the tenant identifier in context. Request contexts
// die with the request, so the value can never leak into a reused goroutine.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext extracts the tenant identifier, falling back to DefaultTenant.
func TenantFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(tenantContextKey{}).(string); ok && id != "" {
		return id
	}
	return DefaultTenant
}

// ContextWithLocale stores the resolved locale in context.
func ContextWithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, localeContextKey{}, tag)
}

// LocaleFromContext extracts the resolved locale, falling back to DefaultLocale.
func LocaleFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(localeContextKey{}).(language.Tag); ok {
		return tag
	}
	return DefaultLocale
}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the authenticated principal, or nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
