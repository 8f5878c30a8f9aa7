package access

import (
	"context"
	"fmt"
	"sort"

	"github.com/tendant/simple-ums/pkg/store"
)

// Lookup is the slice of the store the aggregator needs.
type Lookup interface {
	ReadUserRoles(ctx context.Context, appID int64, userIDs []int64) ([]store.UserRole, error)
	ReadRolePermissions(ctx context.Context, appID int64, roleIDs []int64) ([]store.RolePermission, error)
}

// Aggregator resolves the permissions granted by a set of roles within an app.
type Aggregator struct {
	lookup Lookup
}

func NewAggregator(lookup Lookup) *Aggregator {
	return &Aggregator{lookup: lookup}
}

// PermissionsByRole groups the permissions of every role under appID with a
// single lookup. Each requested role is present in the result; a role with no
// permissions maps to an empty slice. Nothing is resolved for appID <= 0.
func (a *Aggregator) PermissionsByRole(ctx context.Context, roleIDs []int64, appID int64) (map[int64][]store.Permission, error) {
	if appID <= 0 || len(roleIDs) == 0 {
		return map[int64][]store.Permission{}, nil
	}

	rows, err := a.lookup.ReadRolePermissions(ctx, appID, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read role permissions: %w", err)
	}

	grouped := make(map[int64][]store.Permission, len(roleIDs))
	for _, id := range roleIDs {
		grouped[id] = []store.Permission{}
	}
	for _, row := range rows {
		grouped[row.RoleID] = append(grouped[row.RoleID], row.Permission)
	}
	for _, permissions := range grouped {
		sortPermissions(permissions)
	}
	return grouped, nil
}

// Permissions returns the union of permissions reachable from roleIDs under
// appID, deduplicated and ordered by name ascending.
func (a *Aggregator) Permissions(ctx context.Context, roleIDs []int64, appID int64) ([]store.Permission, error) {
	grouped, err := a.PermissionsByRole(ctx, roleIDs, appID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	result := []store.Permission{}
	for _, permissions := range grouped {
		for _, p := range permissions {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			result = append(result, p)
		}
	}
	sortPermissions(result)
	return result, nil
}

// ForUser resolves the role and permission names a user holds within appID.
func (a *Aggregator) ForUser(ctx context.Context, userID, appID int64) (roles []string, permissions []string, err error) {
	roles, permissions = []string{}, []string{}
	if appID <= 0 {
		return roles, permissions, nil
	}

	userRoles, err := a.lookup.ReadUserRoles(ctx, appID, []int64{userID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read user roles: %w", err)
	}

	roleIDs := make([]int64, 0, len(userRoles))
	for _, ur := range userRoles {
		roles = append(roles, ur.Role.Name)
		roleIDs = append(roleIDs, ur.Role.ID)
	}
	sort.Strings(roles)

	granted, err := a.Permissions(ctx, roleIDs, appID)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range granted {
		permissions = append(permissions, p.Name)
	}
	return roles, permissions, nil
}

func sortPermissions(permissions []store.Permission) {
	sort.SliceStable(permissions, func(i, j int) bool {
		if permissions[i].Name != permissions[j].Name {
			return permissions[i].Name < permissions[j].Name
		}
		return permissions[i].ID < permissions[j].ID
	})
}
