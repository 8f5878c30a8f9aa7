// Package role manages the roles of each app.
//
// A role belongs to exactly one app and its name is unique within that app.
// Permissions are granted to roles through the assignment package.
//
//	service := role.NewRoleService(store)
//	created, err := service.CreateRole(ctx, role.CreateRoleParams{AppID: 1, Name: "EDITOR"})
package role

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendant/simple-ums/pkg/access"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/store"
)

// RoleService provides methods for role management
type RoleService struct {
	store store.Store

	reservedName  string
	reservedAppID int64
}

// NewRoleService reserves the default superuser role name in every app until
// WithReservedRole names the admin app.
func NewRoleService(s store.Store) *RoleService {
	return &RoleService{
		store:        s,
		reservedName: access.DefaultSuperuserRole,
	}
}

// WithReservedRole lets only adminAppID own a role called name.
func (s *RoleService) WithReservedRole(name string, adminAppID int64) *RoleService {
	if name != "" {
		s.reservedName = name
	}
	s.reservedAppID = adminAppID
	return s
}

func (s *RoleService) checkReserved(appID int64, name string) error {
	if !strings.EqualFold(strings.TrimSpace(name), s.reservedName) {
		return nil
	}
	if s.reservedAppID > 0 && appID == s.reservedAppID {
		return nil
	}
	return apperrors.PermissionDenied(fmt.Sprintf("role name [%s] is reserved", name))
}

type CreateRoleParams struct {
	AppID       int64
	Name        string
	Description string
}

type UpdateRoleParams struct {
	Name        string
	Description string
}

func notFound(err error, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("Role", id)
	}
	return err
}

// FindRoles lists live roles. An appID <= 0 lists every app.
func (s *RoleService) FindRoles(ctx context.Context, appID int64) ([]store.Role, error) {
	return s.store.ReadRoles(ctx, appID)
}

// CreateRole adds a new role to an existing app
func (s *RoleService) CreateRole(ctx context.Context, params CreateRoleParams) (store.Role, error) {
	if params.Name == "" {
		return store.Role{}, apperrors.Missing("name", "Role")
	}
	if err := s.checkReserved(params.AppID, params.Name); err != nil {
		return store.Role{}, err
	}
	if _, err := s.store.ReadApp(ctx, params.AppID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Role{}, apperrors.NotFound("App", params.AppID)
		}
		return store.Role{}, err
	}

	created, err := s.store.CreateRole(ctx, store.Role{
		AppID:       params.AppID,
		Name:        params.Name,
		Description: params.Description,
	})
	if err != nil {
		return store.Role{}, err
	}
	slog.Info("Role created", "role_id", created.ID, "app_id", created.AppID, "name", created.Name)
	return created, nil
}

// GetRole retrieves a live role by ID
func (s *RoleService) GetRole(ctx context.Context, id int64) (store.Role, error) {
	r, err := s.store.ReadRole(ctx, id)
	if err != nil {
		return store.Role{}, notFound(err, id)
	}
	return r, nil
}

// UpdateRole modifies the name and description. The owning app never changes.
func (s *RoleService) UpdateRole(ctx context.Context, id int64, params UpdateRoleParams) (store.Role, error) {
	if params.Name == "" {
		return store.Role{}, apperrors.Missing("name", "Role")
	}
	existing, err := s.GetRole(ctx, id)
	if err != nil {
		return store.Role{}, err
	}
	if err := s.checkReserved(existing.AppID, params.Name); err != nil {
		return store.Role{}, err
	}
	existing.Name = params.Name
	existing.Description = params.Description

	updated, err := s.store.UpdateRole(ctx, existing)
	if err != nil {
		return store.Role{}, notFound(err, id)
	}
	return updated, nil
}

func (s *RoleService) SoftDeleteRole(ctx context.Context, id int64) error {
	return notFound(s.store.SoftDeleteRole(ctx, id), id)
}

// HardDeleteRole fails with a conflict while the role is still granted
// permissions or assigned to users.
func (s *RoleService) HardDeleteRole(ctx context.Context, id int64) error {
	return notFound(s.store.HardDeleteRole(ctx, id), id)
}

func (s *RoleService) RestoreRole(ctx context.Context, id int64) (store.Role, error) {
	r, err := s.store.RestoreRole(ctx, id)
	if err != nil {
		return store.Role{}, notFound(err, id)
	}
	return r, nil
}
