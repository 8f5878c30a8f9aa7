package assignment

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/store"
)

type fixture struct {
	store   *store.InMemoryStore
	service *AssignmentService
	app     store.App
	other   store.App
	user    store.User
	role    store.Role
	perm    store.Permission
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewInMemoryStore()

	a, err := s.CreateApp(ctx, store.App{Name: "app-1"})
	require.NoError(t, err)
	other, err := s.CreateApp(ctx, store.App{Name: "app-2"})
	require.NoError(t, err)
	u, err := s.CreateUser(ctx, store.User{Email: "jane@example.com", FirstName: "Jane"})
	require.NoError(t, err)
	r, err := s.CreateRole(ctx, store.Role{AppID: a.ID, Name: "EDITOR"})
	require.NoError(t, err)
	p, err := s.CreatePermission(ctx, store.Permission{AppID: a.ID, Name: "USER_READ"})
	require.NoError(t, err)

	return fixture{store: s, service: NewAssignmentService(s), app: a, other: other, user: u, role: r, perm: p}
}

func TestAssignAppUser(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	u, err := f.service.AssignAppUser(ctx, f.app.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, f.user.Email, u.Email)

	_, err = f.service.AssignAppUser(ctx, f.app.ID, f.user.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict), "second assignment conflicts")

	_, err = f.service.AssignAppUser(ctx, 999, f.user.ID)
	require.Error(t, err)
	assert.Equal(t, "App Not Found for [999]", apperrors.Message(err))

	_, err = f.service.AssignAppUser(ctx, f.app.ID, 999)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestUnassignAppUserBlockedByRoles(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.service.AssignAppUser(ctx, f.app.ID, f.user.ID)
	require.NoError(t, err)
	_, err = f.service.AssignUserRole(ctx, f.app.ID, f.user.ID, f.role.ID)
	require.NoError(t, err)

	err = f.service.UnassignAppUser(ctx, f.app.ID, f.user.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))

	require.NoError(t, f.service.UnassignUserRole(ctx, f.app.ID, f.user.ID, f.role.ID))
	require.NoError(t, f.service.UnassignAppUser(ctx, f.app.ID, f.user.ID))

	err = f.service.UnassignAppUser(ctx, f.app.ID, f.user.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestAssignUserRole(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	t.Run("requires app membership", func(t *testing.T) {
		_, err := f.service.AssignUserRole(ctx, f.app.ID, f.user.ID, f.role.ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	})

	_, err := f.service.AssignAppUser(ctx, f.other.ID, f.user.ID)
	require.NoError(t, err)

	t.Run("role from another app", func(t *testing.T) {
		_, err := f.service.AssignUserRole(ctx, f.other.ID, f.user.ID, f.role.ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
	})

	t.Run("assigned", func(t *testing.T) {
		_, err := f.service.AssignAppUser(ctx, f.app.ID, f.user.ID)
		require.NoError(t, err)
		_, err = f.service.AssignUserRole(ctx, f.app.ID, f.user.ID, f.role.ID)
		require.NoError(t, err)

		roles, err := f.store.ReadUserRoles(ctx, f.app.ID, []int64{f.user.ID})
		require.NoError(t, err)
		require.Len(t, roles, 1)
		assert.Equal(t, f.role.ID, roles[0].Role.ID)
	})

	t.Run("unknown assignment", func(t *testing.T) {
		err := f.service.UnassignUserRole(ctx, f.other.ID, f.user.ID, f.role.ID)
		require.Error(t, err)
		assert.Equal(t, fmt.Sprintf("App User Role Not Found for [%d, %d, %d]", f.other.ID, f.user.ID, f.role.ID), apperrors.Message(err))
	})
}

func TestRolePermission(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	foreign, err := f.store.CreatePermission(ctx, store.Permission{AppID: f.other.ID, Name: "USER_READ"})
	require.NoError(t, err)

	err = f.service.AssignRolePermission(ctx, f.role.ID, foreign.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed), "apps must match")

	require.NoError(t, f.service.AssignRolePermission(ctx, f.role.ID, f.perm.ID))
	err = f.service.AssignRolePermission(ctx, f.role.ID, f.perm.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))

	grants, err := f.store.ReadRolePermissions(ctx, f.app.ID, []int64{f.role.ID})
	require.NoError(t, err)
	assert.Len(t, grants, 1)

	require.NoError(t, f.service.UnassignRolePermission(ctx, f.role.ID, f.perm.ID))
	err = f.service.UnassignRolePermission(ctx, f.role.ID, f.perm.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	_, _, err = f.service.RolePermission(ctx, 999, f.perm.ID)
	require.Error(t, err)
	assert.Equal(t, "Role Not Found for [999]", apperrors.Message(err))
}
