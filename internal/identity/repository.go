package identity

import "context"

// Repository defines persistence operations over the identity store. The
// store is reached by id lookups and set operations only; callers never see
// SQL.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByPhone(ctx context.Context, phone string) (*User, error)
	CreateUser(ctx context.Context, user *User) (*User, error)
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error

	GetRole(ctx context.Context, id int64) (*Role, error)
	FindRoleByCode(ctx context.Context, code string) (*Role, error)
	GetPermission(ctx context.Context, id int64) (*Permission, error)
	GetFeature(ctx context.Context, id int64) (*Feature, error)
	GetGroup(ctx context.Context, id int64) (*Group, error)
	GetLocation(ctx context.Context, id int64) (*Location, error)

	RolesForUser(ctx context.Context, userID int64) ([]Role, error)
	GroupsForUser(ctx context.Context, userID int64) ([]Group, error)
	DirectPermissionsForUser(ctx context.Context, userID int64) ([]Permission, error)
	DirectPermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error)
	FeaturesForRole(ctx context.Context, roleID int64) ([]Feature, error)
	PermissionsForFeature(ctx context.Context, featureID int64) ([]Permission, error)

	AssignRoleToUser(ctx context.Context, userID, roleID int64) error
	AssignPermissionToUser(ctx context.Context, userID, permissionID int64) error
	AddPermissionToRole(ctx context.Context, roleID, permissionID int64) error
	AddFeatureToRole(ctx context.Context, roleID, featureID int64) error
	AddUserToGroup(ctx context.Context, groupID, userID int64) error
	RemoveUserFromGroup(ctx context.Context, groupID, userID int64) error
	CreateUserRoleLocation(ctx context.Context, userID, roleID, locationID int64) (*UserRoleLocation, error)

	CreatePasswordResetToken(ctx context.Context, token PasswordResetToken) error
	GetPasswordResetToken(ctx context.Context, token string) (*PasswordResetToken, error)
	DeletePasswordResetToken(ctx context.Context, token string) error
	DeletePasswordResetTokensForUser(ctx context.Context, userID int64) error
}
