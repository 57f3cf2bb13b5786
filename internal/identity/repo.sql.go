package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-eam/atlas-eam/internal/shared"
)

const uniqueViolation = "23505"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return shared.ErrDuplicate
	}
	return err
}

const userColumns = `id, username, email, phone_number, first_name, last_name, password_hash, enabled, verified, created_at, updated_at`

func (r *PGRepository) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PhoneNumber, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.Enabled, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// GetUser fetches a user by id.
func (r *PGRepository) GetUser(ctx context.Context, id int64) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindUserByUsername fetches a user by username.
func (r *PGRepository) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// FindUserByEmail fetches a user by email.
func (r *PGRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// FindUserByPhone fetches a user by phone number.
func (r *PGRepository) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone))
}

// CreateUser inserts a user and returns it with generated fields populated.
func (r *PGRepository) CreateUser(ctx context.Context, user *User) (*User, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, phone_number, first_name, last_name, password_hash, enabled, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING `+userColumns,
		user.Username, user.Email, user.PhoneNumber, user.FirstName, user.LastName,
		user.PasswordHash, user.Enabled, user.Verified, now)
	return r.scanUser(row)
}

// UpdateUserPassword replaces the stored password hash.
func (r *PGRepository) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (*Role, error) {
	return r.scanRole(r.pool.QueryRow(ctx, `SELECT id, code, name, description, role_type FROM roles WHERE id = $1`, id))
}

// FindRoleByCode fetches a role by its unique code.
func (r *PGRepository) FindRoleByCode(ctx context.Context, code string) (*Role, error) {
	return r.scanRole(r.pool.QueryRow(ctx, `SELECT id, code, name, description, role_type FROM roles WHERE code = $1`, code))
}

func (r *PGRepository) scanRole(row pgx.Row) (*Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Code, &role.Name, &role.Description, &role.RoleType); err != nil {
		return nil, mapError(err)
	}
	return &role, nil
}

// GetPermission fetches a permission by id.
func (r *PGRepository) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, description FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.Description)
	if err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

// GetFeature fetches a feature by id.
func (r *PGRepository) GetFeature(ctx context.Context, id int64) (*Feature, error) {
	var f Feature
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, description FROM features WHERE id = $1`, id).
		Scan(&f.ID, &f.Code, &f.Name, &f.Description)
	if err != nil {
		return nil, mapError(err)
	}
	return &f, nil
}

// GetGroup fetches a group by id.
func (r *PGRepository) GetGroup(ctx context.Context, id int64) (*Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, name, description, active FROM user_groups WHERE id = $1`, id).
		Scan(&g.ID, &g.TenantID, &g.Name, &g.Description, &g.Active)
	if err != nil {
		return nil, mapError(err)
	}
	return &g, nil
}

// GetLocation fetches a location node by id.
func (r *PGRepository) GetLocation(ctx context.Context, id int64) (*Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, name, parent_id FROM locations WHERE id = $1`, id).
		Scan(&l.ID, &l.TenantID, &l.Name, &l.ParentID)
	if err != nil {
		return nil, mapError(err)
	}
	return &l, nil
}

// RolesForUser lists the roles assigned to a user.
func (r *PGRepository) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.code, r.name, r.description, r.role_type
		FROM roles r JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Description, &role.RoleType); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GroupsForUser lists the groups a user belongs to.
func (r *PGRepository) GroupsForUser(ctx context.Context, userID int64) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.tenant_id, g.name, g.description, g.active
		FROM user_groups g JOIN user_group_members m ON m.group_id = g.id
		WHERE m.user_id = $1`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.TenantID, &g.Name, &g.Description, &g.Active); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *PGRepository) queryPermissions(ctx context.Context, query string, arg any) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// DirectPermissionsForUser lists permissions granted directly to a user.
func (r *PGRepository) DirectPermissionsForUser(ctx context.Context, userID int64) ([]Permission, error) {
	return r.queryPermissions(ctx, `
		SELECT p.id, p.code, p.name, p.description
		FROM permissions p JOIN user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = $1`, userID)
}

// DirectPermissionsForRole lists permissions granted directly to a role.
func (r *PGRepository) DirectPermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error) {
	return r.queryPermissions(ctx, `
		SELECT p.id, p.code, p.name, p.description
		FROM permissions p JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1`, roleID)
}

// PermissionsForFeature lists the permissions bundled by a feature.
func (r *PGRepository) PermissionsForFeature(ctx context.Context, featureID int64) ([]Permission, error) {
	return r.queryPermissions(ctx, `
		SELECT p.id, p.code, p.name, p.description
		FROM permissions p JOIN feature_permissions fp ON fp.permission_id = p.id
		WHERE fp.feature_id = $1`, featureID)
}

// FeaturesForRole lists the features attached to a role.
func (r *PGRepository) FeaturesForRole(ctx context.Context, roleID int64) ([]Feature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.id, f.code, f.name, f.description
		FROM features f JOIN role_features rf ON rf.feature_id = f.id
		WHERE rf.role_id = $1`, roleID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var features []Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.ID, &f.Code, &f.Name, &f.Description); err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// AssignRoleToUser links a role to a user. Re-assignment is a no-op.
func (r *PGRepository) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, roleID)
	return mapNil(err)
}

// AssignPermissionToUser grants a permission directly to a user.
func (r *PGRepository) AssignPermissionToUser(ctx context.Context, userID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_permissions (user_id, permission_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, permissionID)
	return mapNil(err)
}

// AddPermissionToRole grants a permission directly to a role.
func (r *PGRepository) AddPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, roleID, permissionID)
	return mapNil(err)
}

// AddFeatureToRole attaches a feature to a role.
func (r *PGRepository) AddFeatureToRole(ctx context.Context, roleID, featureID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_features (role_id, feature_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, roleID, featureID)
	return mapNil(err)
}

// AddUserToGroup records a group membership. Re-adding is a no-op.
func (r *PGRepository) AddUserToGroup(ctx context.Context, groupID, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_group_members (group_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, groupID, userID)
	return mapNil(err)
}

// RemoveUserFromGroup removes a group membership. Removing a non-member is a
// no-op.
func (r *PGRepository) RemoveUserFromGroup(ctx context.Context, groupID, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM user_group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return mapNil(err)
}

// CreateUserRoleLocation records a location-scoped role assignment. Rows are
// always created active.
func (r *PGRepository) CreateUserRoleLocation(ctx context.Context, userID, roleID, locationID int64) (*UserRoleLocation, error) {
	var url UserRoleLocation
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_role_locations (user_id, role_id, location_id, active, created_at)
		VALUES ($1, $2, $3, TRUE, now())
		RETURNING id, user_id, role_id, location_id, active, created_at`,
		userID, roleID, locationID).
		Scan(&url.ID, &url.UserID, &url.RoleID, &url.LocationID, &url.Active, &url.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &url, nil
}

// CreatePasswordResetToken stores a reset token.
func (r *PGRepository) CreatePasswordResetToken(ctx context.Context, token PasswordResetToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_reset_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token.Token, token.UserID, token.ExpiresAt.UTC())
	return mapNil(err)
}

// GetPasswordResetToken fetches a reset token.
func (r *PGRepository) GetPasswordResetToken(ctx context.Context, token string) (*PasswordResetToken, error) {
	var t PasswordResetToken
	err := r.pool.QueryRow(ctx, `SELECT token, user_id, expires_at FROM password_reset_tokens WHERE token = $1`, token).
		Scan(&t.Token, &t.UserID, &t.ExpiresAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

// DeletePasswordResetToken removes a reset token.
func (r *PGRepository) DeletePasswordResetToken(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE token = $1`, token)
	return mapNil(err)
}

// DeletePasswordResetTokensForUser removes every reset token a user holds.
func (r *PGRepository) DeletePasswordResetTokensForUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID)
	return mapNil(err)
}

func mapNil(err error) error {
	if err == nil {
		return nil
	}
	return mapError(err)
}

var _ Repository = (*PGRepository)(nil)
