package auth

import "errors"

// RBAC errors.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidRole      = errors.New("invalid role")
)

// Role is the role carried by a token.
type Role string

const (
	// RoleOperator may start imports and change tags.
	RoleOperator Role = "operator"
	// RoleViewer may only read.
	RoleViewer Role = "viewer"
)

// Permission represents an action that can be performed.
type Permission string

const (
	// PermissionViewImports allows reading jobs, tags and Brew builds.
	PermissionViewImports Permission = "view_imports"
	// PermissionImport allows starting milestone imports.
	PermissionImport Permission = "import"
	// PermissionUntag allows removing builds from candidate tags.
	PermissionUntag Permission = "untag"
)

var rolePermissions = map[Role][]Permission{
	RoleOperator: {
		PermissionViewImports,
		PermissionImport,
		PermissionUntag,
	},
	RoleViewer: {
		PermissionViewImports,
	},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// CheckPermission returns ErrPermissionDenied when role lacks perm.
func CheckPermission(role Role, perm Permission) error {
	if !HasPermission(role, perm) {
		return ErrPermissionDenied
	}
	return nil
}
