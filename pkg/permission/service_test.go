package permission

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/store"
)

func TestPermissionService(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	service := NewPermissionService(s)

	a, err := s.CreateApp(ctx, store.App{Name: "app-1"})
	require.NoError(t, err)

	_, err = service.CreatePermission(ctx, CreatePermissionParams{AppID: a.ID})
	assert.Equal(t, "[name] is Missing in [Permission] request", apperrors.Message(err))

	_, err = service.CreatePermission(ctx, CreatePermissionParams{AppID: 999, Name: "USER_READ"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	p, err := service.CreatePermission(ctx, CreatePermissionParams{AppID: a.ID, Name: "USER_READ"})
	require.NoError(t, err)

	updated, err := service.UpdatePermission(ctx, p.ID, UpdatePermissionParams{Name: "USER_LIST"})
	require.NoError(t, err)
	assert.Equal(t, "USER_LIST", updated.Name)

	_, err = service.UpdatePermission(ctx, p.ID, UpdatePermissionParams{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMissingRequired))

	perms, err := service.FindPermissions(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, perms, 1)

	require.NoError(t, service.SoftDeletePermission(ctx, p.ID))
	perms, err = service.FindPermissions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)

	_, err = service.RestorePermission(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, service.HardDeletePermission(ctx, p.ID))

	_, err = service.GetPermission(ctx, p.ID)
	assert.Equal(t, "Permission Not Found for ["+strconv.FormatInt(p.ID, 10)+"]", apperrors.Message(err))
}
