// Package rbac computes effective permission sets and gates guarded
// operations on capability codes.
package rbac

import (
	"context"
	"sort"

	"github.com/atlas-eam/atlas-eam/internal/identity"
)

// Store is the slice of the identity store the resolver reads. An unknown
// role or feature referenced by an assignment is a data-integrity fault and
// surfaces as shared.ErrNotFound; permissions are never silently dropped.
type Store interface {
	FindRoleByCode(ctx context.Context, code string) (*identity.Role, error)
	RolesForUser(ctx context.Context, userID int64) ([]identity.Role, error)
	DirectPermissionsForUser(ctx context.Context, userID int64) ([]identity.Permission, error)
	DirectPermissionsForRole(ctx context.Context, roleID int64) ([]identity.Permission, error)
	FeaturesForRole(ctx context.Context, roleID int64) ([]identity.Feature, error)
	PermissionsForFeature(ctx context.Context, featureID int64) ([]identity.Permission, error)
}

// Resolver expands the layered role/feature/permission model into flat
// authority sets. Every call recomputes from the store; features and their
// permissions change independently of roles, so caching here would go stale.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// EffectivePermissionsForRole returns the role's direct permissions unioned
// with every permission of every attached feature.
func (r *Resolver) EffectivePermissionsForRole(ctx context.Context, roleID int64) ([]string, error) {
	set := make(map[string]struct{})
	if err := r.collectRole(ctx, roleID, set); err != nil {
		return nil, err
	}
	return sorted(set), nil
}

// EffectivePermissionsForRoleCode is the same expansion rooted at a role
// code, used when a token carries role codes instead of permission lists.
func (r *Resolver) EffectivePermissionsForRoleCode(ctx context.Context, code string) ([]string, error) {
	role, err := r.store.FindRoleByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return r.EffectivePermissionsForRole(ctx, role.ID)
}

// EffectivePermissionsForUser returns the union of the user's direct
// permissions and the effective set of every assigned role.
func (r *Resolver) EffectivePermissionsForUser(ctx context.Context, userID int64) ([]string, error) {
	set := make(map[string]struct{})
	direct, err := r.store.DirectPermissionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, p := range direct {
		set[p.Code] = struct{}{}
	}
	roles, err := r.store.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if err := r.collectRole(ctx, role.ID, set); err != nil {
			return nil, err
		}
	}
	return sorted(set), nil
}

// RoleCodesForUser lists the codes of every role assigned to the user, for
// embedding in issued tokens.
func (r *Resolver) RoleCodesForUser(ctx context.Context, userID int64) ([]string, error) {
	roles, err := r.store.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(roles))
	for _, role := range roles {
		codes = append(codes, role.Code)
	}
	sort.Strings(codes)
	return codes, nil
}

func (r *Resolver) collectRole(ctx context.Context, roleID int64, set map[string]struct{}) error {
	direct, err := r.store.DirectPermissionsForRole(ctx, roleID)
	if err != nil {
		return err
	}
	for _, p := range direct {
		set[p.Code] = struct{}{}
	}
	features, err := r.store.FeaturesForRole(ctx, roleID)
	if err != nil {
		return err
	}
	for _, f := range features {
		perms, err := r.store.PermissionsForFeature(ctx, f.ID)
		if err != nil {
			return err
		}
		for _, p := range perms {
			set[p.Code] = struct{}{}
		}
	}
	return nil
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
