// Package permission manages the named permissions of each app, such as
// USER_READ or ROLE_UPDATE.
package permission

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/store"
)

type PermissionService struct {
	store store.Store
}

func NewPermissionService(s store.Store) *PermissionService {
	return &PermissionService{
		store: s,
	}
}

type CreatePermissionParams struct {
	AppID       int64
	Name        string
	Description string
}

type UpdatePermissionParams struct {
	Name        string
	Description string
}

func notFound(err error, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("Permission", id)
	}
	return err
}

// FindPermissions lists live permissions. An appID <= 0 lists every app.
func (s *PermissionService) FindPermissions(ctx context.Context, appID int64) ([]store.Permission, error) {
	return s.store.ReadPermissions(ctx, appID)
}

// CreatePermission adds a new permission to an existing app
func (s *PermissionService) CreatePermission(ctx context.Context, params CreatePermissionParams) (store.Permission, error) {
	if params.Name == "" {
		return store.Permission{}, apperrors.Missing("name", "Permission")
	}
	if _, err := s.store.ReadApp(ctx, params.AppID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Permission{}, apperrors.NotFound("App", params.AppID)
		}
		return store.Permission{}, err
	}

	created, err := s.store.CreatePermission(ctx, store.Permission{
		AppID:       params.AppID,
		Name:        params.Name,
		Description: params.Description,
	})
	if err != nil {
		return store.Permission{}, err
	}
	slog.Info("Permission created", "permission_id", created.ID, "app_id", created.AppID, "name", created.Name)
	return created, nil
}

// GetPermission retrieves a live permission by ID
func (s *PermissionService) GetPermission(ctx context.Context, id int64) (store.Permission, error) {
	r, err := s.store.ReadPermission(ctx, id)
	if err != nil {
		return store.Permission{}, notFound(err, id)
	}
	return r, nil
}

// UpdatePermission modifies the name and description. The owning app never changes.
func (s *PermissionService) UpdatePermission(ctx context.Context, id int64, params UpdatePermissionParams) (store.Permission, error) {
	if params.Name == "" {
		return store.Permission{}, apperrors.Missing("name", "Permission")
	}
	existing, err := s.GetPermission(ctx, id)
	if err != nil {
		return store.Permission{}, err
	}
	existing.Name = params.Name
	existing.Description = params.Description

	updated, err := s.store.UpdatePermission(ctx, existing)
	if err != nil {
		return store.Permission{}, notFound(err, id)
	}
	return updated, nil
}

func (s *PermissionService) SoftDeletePermission(ctx context.Context, id int64) error {
	return notFound(s.store.SoftDeletePermission(ctx, id), id)
}

// HardDeletePermission fails with a conflict while any role still holds the
// permission.
func (s *PermissionService) HardDeletePermission(ctx context.Context, id int64) error {
	return notFound(s.store.HardDeletePermission(ctx, id), id)
}

func (s *PermissionService) RestorePermission(ctx context.Context, id int64) (store.Permission, error) {
	r, err := s.store.RestorePermission(ctx, id)
	if err != nil {
		return store.Permission{}, notFound(err, id)
	}
	return r, nil
}
