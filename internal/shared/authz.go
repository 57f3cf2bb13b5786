package shared

// Capability codes guarding the identity management surface.
const (
	CapUserCreate     = "USER_CREATE"
	CapUserView       = "USER_VIEW"
	CapUserAssignRole = "USER_ASSIGN_ROLE"
	CapUserGrantPerm  = "USER_GRANT_PERMISSION"
	CapRoleManage     = "ROLE_MANAGE"
	CapFeatureManage  = "FEATURE_MANAGE"
	CapGroupManage    = "GROUP_MANAGE"
	CapPermissionView = "PERMISSION_VIEW"
	CapLocationAssign = "LOCATION_ASSIGN_ROLE"
)
