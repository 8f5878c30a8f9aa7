// Package assignment manages the three join tables: users in apps, permissions
// granted to roles and roles held by users within an app.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/store"
)

type AssignmentService struct {
	store store.Store
}

func NewAssignmentService(s store.Store) *AssignmentService {
	return &AssignmentService{store: s}
}

func (s *AssignmentService) readApp(ctx context.Context, appID int64) (store.App, error) {
	a, err := s.store.ReadApp(ctx, appID)
	if errors.Is(err, store.ErrNotFound) {
		return store.App{}, apperrors.NotFound("App", appID)
	}
	return a, err
}

func (s *AssignmentService) readUser(ctx context.Context, userID int64) (store.User, error) {
	u, err := s.store.ReadUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, apperrors.NotFound("User", userID)
	}
	return u, err
}

func (s *AssignmentService) readRole(ctx context.Context, roleID int64) (store.Role, error) {
	r, err := s.store.ReadRole(ctx, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Role{}, apperrors.NotFound("Role", roleID)
	}
	return r, err
}

// AssignAppUser adds an existing user to an existing app.
func (s *AssignmentService) AssignAppUser(ctx context.Context, appID, userID int64) (store.User, error) {
	if _, err := s.readApp(ctx, appID); err != nil {
		return store.User{}, err
	}
	u, err := s.readUser(ctx, userID)
	if err != nil {
		return store.User{}, err
	}
	if _, err := s.store.AssignAppUser(ctx, appID, userID); err != nil {
		return store.User{}, err
	}
	slog.Info("User assigned to app", "app_id", appID, "user_id", userID)
	return u, nil
}

// UnassignAppUser fails with a conflict while the user still holds roles in
// the app.
func (s *AssignmentService) UnassignAppUser(ctx context.Context, appID, userID int64) error {
	err := s.store.UnassignAppUser(ctx, appID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("App User", fmt.Sprintf("%d, %d", appID, userID))
	}
	return err
}

// RolePermission loads both sides of a grant and requires them to share an app.
func (s *AssignmentService) RolePermission(ctx context.Context, roleID, permissionID int64) (store.Role, store.Permission, error) {
	r, err := s.readRole(ctx, roleID)
	if err != nil {
		return store.Role{}, store.Permission{}, err
	}
	p, err := s.store.ReadPermission(ctx, permissionID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Role{}, store.Permission{}, apperrors.NotFound("Permission", permissionID)
	}
	if err != nil {
		return store.Role{}, store.Permission{}, err
	}
	if r.AppID != p.AppID {
		return store.Role{}, store.Permission{}, apperrors.ValidationFailed(
			fmt.Sprintf("Role [%d] and Permission [%d] belong to different apps", roleID, permissionID))
	}
	return r, p, nil
}

func (s *AssignmentService) AssignRolePermission(ctx context.Context, roleID, permissionID int64) error {
	if _, _, err := s.RolePermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	return s.store.AssignRolePermission(ctx, roleID, permissionID)
}

func (s *AssignmentService) UnassignRolePermission(ctx context.Context, roleID, permissionID int64) error {
	err := s.store.UnassignRolePermission(ctx, roleID, permissionID)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("Role Permission", fmt.Sprintf("%d, %d", roleID, permissionID))
	}
	return err
}

// AssignUserRole gives a member of appID one of the app's roles.
func (s *AssignmentService) AssignUserRole(ctx context.Context, appID, userID, roleID int64) (store.User, error) {
	u, err := s.readUser(ctx, userID)
	if err != nil {
		return store.User{}, err
	}
	if _, err := s.store.ReadAppUser(ctx, appID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, apperrors.NotFound("App User", fmt.Sprintf("%d, %d", appID, userID))
		}
		return store.User{}, err
	}
	r, err := s.readRole(ctx, roleID)
	if err != nil {
		return store.User{}, err
	}
	if r.AppID != appID {
		return store.User{}, apperrors.ValidationFailed(fmt.Sprintf("Role [%d] does not belong to App [%d]", roleID, appID))
	}

	if err := s.store.AssignUserRole(ctx, appID, userID, roleID); err != nil {
		return store.User{}, err
	}
	return u, nil
}

func (s *AssignmentService) UnassignUserRole(ctx context.Context, appID, userID, roleID int64) error {
	err := s.store.UnassignUserRole(ctx, appID, userID, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("App User Role", fmt.Sprintf("%d, %d, %d", appID, userID, roleID))
	}
	return err
}
