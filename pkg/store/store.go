package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by every repository when no live row matches.
var ErrNotFound = errors.New("record not found")

// AppRepository manages apps.
type AppRepository interface {
	CreateApp(ctx context.Context, app App) (App, error)
	ReadApps(ctx context.Context) ([]App, error)
	ReadApp(ctx context.Context, id int64) (App, error)
	ReadAppByName(ctx context.Context, name string) (App, error)
	UpdateApp(ctx context.Context, app App) (App, error)
	SoftDeleteApp(ctx context.Context, id int64) error
	HardDeleteApp(ctx context.Context, id int64) error
	RestoreApp(ctx context.Context, id int64) (App, error)
}

// UserRepository manages users and their addresses. Status is resolved by
// User.Status.Name on create and update.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	ReadUsers(ctx context.Context) ([]User, error)
	ReadUser(ctx context.Context, id int64) (User, error)
	ReadUserByEmail(ctx context.Context, email string) (User, error)
	// UpdateUser writes names, status, validation flag, last login and
	// upserts the given addresses. Email and password are left untouched.
	UpdateUser(ctx context.Context, user User) (User, error)
	UpdateUserEmail(ctx context.Context, id int64, email string) (User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	DeleteUserAddress(ctx context.Context, userID, addressID int64) error
	SoftDeleteUser(ctx context.Context, id int64) error
	// HardDeleteUser removes addresses and tokens with the user. Join rows
	// are never removed and make the delete fail.
	HardDeleteUser(ctx context.Context, id int64) error
	RestoreUser(ctx context.Context, id int64) (User, error)
}

// RoleRepository manages roles. An appID <= 0 in ReadRoles lists every app.
type RoleRepository interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	ReadRoles(ctx context.Context, appID int64) ([]Role, error)
	ReadRole(ctx context.Context, id int64) (Role, error)
	ReadRoleByName(ctx context.Context, appID int64, name string) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	SoftDeleteRole(ctx context.Context, id int64) error
	HardDeleteRole(ctx context.Context, id int64) error
	RestoreRole(ctx context.Context, id int64) (Role, error)
}

// PermissionRepository manages permissions. An appID <= 0 in ReadPermissions
// lists every app.
type PermissionRepository interface {
	CreatePermission(ctx context.Context, permission Permission) (Permission, error)
	ReadPermissions(ctx context.Context, appID int64) ([]Permission, error)
	ReadPermission(ctx context.Context, id int64) (Permission, error)
	ReadPermissionByName(ctx context.Context, appID int64, name string) (Permission, error)
	UpdatePermission(ctx context.Context, permission Permission) (Permission, error)
	SoftDeletePermission(ctx context.Context, id int64) error
	HardDeletePermission(ctx context.Context, id int64) error
	RestorePermission(ctx context.Context, id int64) (Permission, error)
}

// AssignmentRepository manages the composite keyed join tables.
type AssignmentRepository interface {
	AssignAppUser(ctx context.Context, appID, userID int64) (AppUser, error)
	UnassignAppUser(ctx context.Context, appID, userID int64) error
	ReadAppUser(ctx context.Context, appID, userID int64) (AppUser, error)
	ReadAppUsers(ctx context.Context, appID int64) ([]User, error)
	ReadAppUserByEmail(ctx context.Context, appID int64, email string) (User, error)

	AssignRolePermission(ctx context.Context, roleID, permissionID int64) error
	UnassignRolePermission(ctx context.Context, roleID, permissionID int64) error
	// ReadRolePermissions is the grouped lookup behind permission
	// aggregation: every live role_permission row for the given roles whose
	// permission belongs to appID, ordered by permission name ascending.
	ReadRolePermissions(ctx context.Context, appID int64, roleIDs []int64) ([]RolePermission, error)

	AssignUserRole(ctx context.Context, appID, userID, roleID int64) error
	UnassignUserRole(ctx context.Context, appID, userID, roleID int64) error
	// ReadUserRoles is the grouped lookup behind nested user expansion:
	// every live app_user_role row for the given users within appID,
	// ordered by role name ascending.
	ReadUserRoles(ctx context.Context, appID int64, userIDs []int64) ([]UserRole, error)
}

// TokenRepository persists issued token pairs so they can be refreshed and revoked.
type TokenRepository interface {
	CreateToken(ctx context.Context, token Token) (Token, error)
	ReadTokenByAccessToken(ctx context.Context, accessToken string) (Token, error)
	ReadTokenByRefreshToken(ctx context.Context, refreshToken string) (Token, error)
	UpdateToken(ctx context.Context, token Token) (Token, error)
	RevokeToken(ctx context.Context, id int64) error
}

// AuditRepository stores audit entries.
type AuditRepository interface {
	CreateAuditEntry(ctx context.Context, entry AuditEntry) error
}

// Store bundles every repository. WithTx runs fn against a store bound to a
// single transaction; a non-nil error from fn rolls it back.
type Store interface {
	AppRepository
	UserRepository
	RoleRepository
	PermissionRepository
	AssignmentRepository
	TokenRepository
	AuditRepository

	WithTx(ctx context.Context, fn func(Store) error) error
}
