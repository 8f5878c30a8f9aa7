package access

import (
	"fmt"

	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/store"
)

// Filter decides whether a caller may see or change a record.
type Filter struct {
	superuserRole  string
	superuserAppID int64
}

// NewFilter grants the superuser bypass to callers holding superuserRole in
// the admin app superuserAppID. With superuserAppID <= 0 nobody is a
// superuser.
func NewFilter(superuserRole string, superuserAppID int64) *Filter {
	if superuserRole == "" {
		superuserRole = DefaultSuperuserRole
	}
	return &Filter{superuserRole: superuserRole, superuserAppID: superuserAppID}
}

// IsSuperuser reports whether the caller logged in to the admin app with the
// superuser role. The same role name held in any other app grants nothing.
func (f *Filter) IsSuperuser(caller *Caller) bool {
	if caller == nil || f.superuserAppID <= 0 || caller.AppID != f.superuserAppID {
		return false
	}
	return caller.HasRole(f.superuserRole)
}

// CheckSuperuser fails unless the caller holds the superuser role.
func (f *Filter) CheckSuperuser(caller *Caller) error {
	if f.IsSuperuser(caller) {
		return nil
	}
	return apperrors.PermissionDenied("superuser role required")
}

// CheckScoped requires resource_action in the caller's permissions and the
// record to live in the caller's app.
func (f *Filter) CheckScoped(caller *Caller, resource, action string, appID int64) error {
	if f.IsSuperuser(caller) {
		return nil
	}
	if caller == nil {
		return apperrors.PermissionDenied("no caller")
	}
	permission := PermissionName(resource, action)
	if !caller.HasPermission(permission) {
		return apperrors.PermissionDenied(fmt.Sprintf("%s required", permission))
	}
	if appID <= 0 || appID != caller.AppID {
		return apperrors.PermissionDenied(fmt.Sprintf("app [%d] is outside the caller scope", appID))
	}
	return nil
}

// CheckUser allows a caller to read or update their own user record, and
// otherwise falls back to the scoped USER_<action> check in appID.
func (f *Filter) CheckUser(caller *Caller, userID int64, email, action string, appID int64) error {
	if f.IsSuperuser(caller) {
		return nil
	}
	if (action == ActionRead || action == ActionUpdate) && caller.IsSelf(userID, email) {
		return nil
	}
	return f.CheckScoped(caller, ResourceUser, action, appID)
}

// FilterUsers keeps the users the caller may read. For appID > 0 the caller
// must be scoped to that app; USER_READ holders then see every user and
// everybody else only themselves. The cross-tenant list (appID <= 0) is
// reduced to the caller for non-superusers.
func (f *Filter) FilterUsers(caller *Caller, users []store.User, appID int64) ([]store.User, error) {
	if f.IsSuperuser(caller) {
		return users, nil
	}
	if caller == nil {
		return nil, apperrors.PermissionDenied("no caller")
	}
	if appID > 0 {
		if appID != caller.AppID {
			return nil, apperrors.PermissionDenied(fmt.Sprintf("app [%d] is outside the caller scope", appID))
		}
		if caller.HasPermission(PermissionName(ResourceUser, ActionRead)) {
			return users, nil
		}
	}

	self := []store.User{}
	for _, u := range users {
		if caller.IsSelf(u.ID, u.Email) {
			self = append(self, u)
		}
	}
	return self, nil
}

func (f *Filter) FilterRoles(caller *Caller, roles []store.Role) []store.Role {
	if f.IsSuperuser(caller) {
		return roles
	}
	return keepScoped(caller, ResourceRole, roles, func(r store.Role) int64 { return r.AppID })
}

func (f *Filter) FilterPermissions(caller *Caller, permissions []store.Permission) []store.Permission {
	if f.IsSuperuser(caller) {
		return permissions
	}
	return keepScoped(caller, ResourcePermission, permissions, func(p store.Permission) int64 { return p.AppID })
}

func (f *Filter) FilterApps(caller *Caller, apps []store.App) []store.App {
	if f.IsSuperuser(caller) {
		return apps
	}
	return keepScoped(caller, ResourceApp, apps, func(a store.App) int64 { return a.ID })
}

func keepScoped[T any](caller *Caller, resource string, records []T, scope func(T) int64) []T {
	kept := []T{}
	if !caller.HasPermission(PermissionName(resource, ActionRead)) {
		return kept
	}
	for _, record := range records {
		if scope(record) == caller.AppID {
			kept = append(kept, record)
		}
	}
	return kept
}
