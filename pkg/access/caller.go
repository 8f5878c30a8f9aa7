package access

import (
	"context"
	"log/slog"
	"slices"
	"strings"
)

// Resources and actions composing permission names such as USER_READ.
const (
	ResourceApp        = "APP"
	ResourceUser       = "USER"
	ResourceRole       = "ROLE"
	ResourcePermission = "PERMISSION"

	ActionCreate = "CREATE"
	ActionRead   = "READ"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// DefaultSuperuserRole is the role name that bypasses every check.
const DefaultSuperuserRole = "SUPERUSER"

// PermissionName builds the permission required for action on resource.
func PermissionName(resource, action string) string {
	return resource + "_" + action
}

// Caller is the authenticated identity of a request: the user, the app the
// token was issued for, and the role and permission names resolved in that app.
type Caller struct {
	UserID      int64
	Email       string
	AppID       int64
	Roles       []string
	Permissions []string
}

// HasRole reports whether the caller holds the named role.
func (c *Caller) HasRole(role string) bool {
	return c != nil && slices.Contains(c.Roles, role)
}

// HasPermission reports whether the caller holds the named permission.
func (c *Caller) HasPermission(permission string) bool {
	return c != nil && slices.Contains(c.Permissions, permission)
}

// IsSelf reports whether the target user is the caller, by ID or by email.
func (c *Caller) IsSelf(userID int64, email string) bool {
	if c == nil {
		return false
	}
	if userID > 0 && userID == c.UserID {
		return true
	}
	return email != "" && strings.EqualFold(email, c.Email)
}

func (c *Caller) LogValue() slog.Value {
	if c == nil {
		return slog.StringValue("anonymous")
	}
	return slog.GroupValue(
		slog.Int64("user_id", c.UserID),
		slog.String("email", c.Email),
		slog.Int64("app_id", c.AppID),
		slog.Any("roles", c.Roles),
	)
}

type contextKey struct {
	name string
}

var callerKey = &contextKey{"Caller"}

// WithCaller stores the caller in ctx.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFrom returns the caller stored in ctx, or nil.
func CallerFrom(ctx context.Context) *Caller {
	caller, _ := ctx.Value(callerKey).(*Caller)
	return caller
}
