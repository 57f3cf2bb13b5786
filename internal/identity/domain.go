// Package identity owns the user/role/permission/feature store consumed by
// authentication and permission resolution.
package identity

import "time"

// RoleType distinguishes system-provided roles from custom ones.
type RoleType string

const (
	RoleTypeStandard RoleType = "STANDARD"
	RoleTypeSystem   RoleType = "SYSTEM"
)

// User is a principal of the system. Identified by username, which falls back
// to email or phone number at creation time.
type User struct {
	ID           int64
	Username     string
	Email        string
	PhoneNumber  string
	FirstName    string
	LastName     string
	PasswordHash string
	Enabled      bool
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Permission is an atomic capability identified by a globally unique code.
type Permission struct {
	ID          int64
	Code        string
	Name        string
	Description string
}

// Feature is a named, reusable bundle of permissions attachable to roles.
type Feature struct {
	ID          int64
	Code        string
	Name        string
	Description string
}

// Role groups direct permissions and features under a globally unique code.
// Its effective permission set is recomputed on demand, never cached.
type Role struct {
	ID          int64
	Code        string
	Name        string
	Description string
	RoleType    RoleType
}

// Group is a named collection of users, scoped to a tenant. Membership is a
// plain association; groups carry no permissions of their own.
type Group struct {
	ID          int64
	TenantID    string
	Name        string
	Description string
	Active      bool
}

// Location is a node in the tenant-scoped location tree.
type Location struct {
	ID       int64
	TenantID string
	Name     string
	ParentID *int64
}

// UserRoleLocation assigns a role to a user scoped to a location node.
// Rows are created active; the flag is a soft-disable hook.
type UserRoleLocation struct {
	ID         int64
	UserID     int64
	RoleID     int64
	LocationID int64
	Active     bool
	CreatedAt  time.Time
}

// PasswordResetToken is a single-use, time-bounded reset credential.
type PasswordResetToken struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}
