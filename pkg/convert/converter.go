package convert

import (
	"context"
	"fmt"

	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/store"
)

// Converter maps store entities to response DTOs. Users and roles are expanded
// with their roles and permissions in one app; nothing is expanded when the
// app ID is not positive.
type Converter struct {
	lookup     access.Lookup
	aggregator *access.Aggregator
}

func NewConverter(lookup access.Lookup) *Converter {
	return &Converter{
		lookup:     lookup,
		aggregator: access.NewAggregator(lookup),
	}
}

func (c *Converter) App(a store.App) AppDTO {
	return appDTO(a)
}

func (c *Converter) Apps(apps []store.App) []AppDTO {
	result := make([]AppDTO, 0, len(apps))
	for _, a := range apps {
		result = append(result, appDTO(a))
	}
	return result
}

func (c *Converter) Permission(p store.Permission) PermissionDTO {
	return permissionDTO(p)
}

func (c *Converter) Permissions(permissions []store.Permission) []PermissionDTO {
	result := make([]PermissionDTO, 0, len(permissions))
	for _, p := range permissions {
		result = append(result, permissionDTO(p))
	}
	return result
}

func (c *Converter) Role(ctx context.Context, role store.Role, appID int64) (RoleDTO, error) {
	roles, err := c.Roles(ctx, []store.Role{role}, appID)
	if err != nil {
		return RoleDTO{}, err
	}
	return roles[0], nil
}

// Roles converts roles, attaching the permissions each role holds in appID
// with one grouped lookup.
func (c *Converter) Roles(ctx context.Context, roles []store.Role, appID int64) ([]RoleDTO, error) {
	result := make([]RoleDTO, 0, len(roles))
	if len(roles) == 0 {
		return result, nil
	}

	roleIDs := make([]int64, 0, len(roles))
	for _, r := range roles {
		roleIDs = append(roleIDs, r.ID)
	}

	grouped, err := c.aggregator.PermissionsByRole(ctx, roleIDs, appID)
	if err != nil {
		return nil, err
	}

	for _, r := range roles {
		result = append(result, roleDTO(r, c.Permissions(grouped[r.ID])))
	}
	return result, nil
}

func (c *Converter) User(ctx context.Context, user store.User, appID int64) (UserDTO, error) {
	users, err := c.Users(ctx, []store.User{user}, appID)
	if err != nil {
		return UserDTO{}, err
	}
	return users[0], nil
}

// Users converts users, attaching the roles each user holds in appID and the
// permissions of those roles. Exactly one user-role lookup and one
// role-permission lookup are issued regardless of the number of users.
func (c *Converter) Users(ctx context.Context, users []store.User, appID int64) ([]UserDTO, error) {
	result := make([]UserDTO, 0, len(users))
	if len(users) == 0 {
		return result, nil
	}
	if appID <= 0 {
		for _, u := range users {
			result = append(result, userDTO(u, nil))
		}
		return result, nil
	}

	userIDs := make([]int64, 0, len(users))
	for _, u := range users {
		userIDs = append(userIDs, u.ID)
	}

	userRoles, err := c.lookup.ReadUserRoles(ctx, appID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read user roles: %w", err)
	}

	rolesByUser := make(map[int64][]store.Role, len(users))
	seen := make(map[int64]bool)
	distinct := []store.Role{}
	for _, ur := range userRoles {
		rolesByUser[ur.UserID] = append(rolesByUser[ur.UserID], ur.Role)
		if !seen[ur.Role.ID] {
			seen[ur.Role.ID] = true
			distinct = append(distinct, ur.Role)
		}
	}

	roleDTOs, err := c.Roles(ctx, distinct, appID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]RoleDTO, len(roleDTOs))
	for _, dto := range roleDTOs {
		byID[dto.ID] = dto
	}

	for _, u := range users {
		roles := make([]RoleDTO, 0, len(rolesByUser[u.ID]))
		for _, r := range rolesByUser[u.ID] {
			roles = append(roles, byID[r.ID])
		}
		result = append(result, userDTO(u, roles))
	}
	return result, nil
}
