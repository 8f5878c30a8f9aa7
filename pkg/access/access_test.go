package access

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/store"
)

type countingLookup struct {
	store.Store
	userRoleCalls       int
	rolePermissionCalls int
}

func (c *countingLookup) ReadUserRoles(ctx context.Context, appID int64, userIDs []int64) ([]store.UserRole, error) {
	c.userRoleCalls++
	return c.Store.ReadUserRoles(ctx, appID, userIDs)
}

func (c *countingLookup) ReadRolePermissions(ctx context.Context, appID int64, roleIDs []int64) ([]store.RolePermission, error) {
	c.rolePermissionCalls++
	return c.Store.ReadRolePermissions(ctx, appID, roleIDs)
}

type fixture struct {
	lookup *countingLookup
	app    store.App
	user   store.User
	reader store.Role
	editor store.Role
	empty  store.Role
	perms  map[string]store.Permission
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	s := store.NewInMemoryStore()

	app, err := s.CreateApp(ctx, store.App{Name: "app-1"})
	require.NoError(t, err)
	user, err := s.CreateUser(ctx, store.User{FirstName: "A", LastName: "B", Email: "a@example.com", Password: "x"})
	require.NoError(t, err)

	f := &fixture{lookup: &countingLookup{Store: s}, app: app, user: user, perms: map[string]store.Permission{}}
	f.reader, err = s.CreateRole(ctx, store.Role{AppID: app.ID, Name: "READER"})
	require.NoError(t, err)
	f.editor, err = s.CreateRole(ctx, store.Role{AppID: app.ID, Name: "EDITOR"})
	require.NoError(t, err)
	f.empty, err = s.CreateRole(ctx, store.Role{AppID: app.ID, Name: "EMPTY"})
	require.NoError(t, err)

	for _, name := range []string{"USER_READ", "APP_READ", "USER_UPDATE"} {
		p, err := s.CreatePermission(ctx, store.Permission{AppID: app.ID, Name: name})
		require.NoError(t, err)
		f.perms[name] = p
	}

	require.NoError(t, s.AssignRolePermission(ctx, f.reader.ID, f.perms["USER_READ"].ID))
	require.NoError(t, s.AssignRolePermission(ctx, f.reader.ID, f.perms["APP_READ"].ID))
	require.NoError(t, s.AssignRolePermission(ctx, f.editor.ID, f.perms["USER_READ"].ID))
	require.NoError(t, s.AssignRolePermission(ctx, f.editor.ID, f.perms["USER_UPDATE"].ID))

	_, err = s.AssignAppUser(ctx, app.ID, user.ID)
	require.NoError(t, err)
	require.NoError(t, s.AssignUserRole(ctx, app.ID, user.ID, f.reader.ID))
	require.NoError(t, s.AssignUserRole(ctx, app.ID, user.ID, f.editor.ID))
	return f
}

func names(permissions []store.Permission) []string {
	result := []string{}
	for _, p := range permissions {
		result = append(result, p.Name)
	}
	return result
}

func TestAggregatorPermissions(t *testing.T) {
	f := newFixture(t)
	agg := NewAggregator(f.lookup)

	permissions, err := agg.Permissions(context.Background(), []int64{f.reader.ID, f.editor.ID}, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"APP_READ", "USER_READ", "USER_UPDATE"}, names(permissions), "sorted and deduplicated")
	assert.Equal(t, 1, f.lookup.rolePermissionCalls)
}

func TestAggregatorPermissionsByRole(t *testing.T) {
	f := newFixture(t)
	agg := NewAggregator(f.lookup)

	grouped, err := agg.PermissionsByRole(context.Background(), []int64{f.reader.ID, f.editor.ID, f.empty.ID}, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"APP_READ", "USER_READ"}, names(grouped[f.reader.ID]))
	assert.Equal(t, []string{"USER_READ", "USER_UPDATE"}, names(grouped[f.editor.ID]))
	assert.NotNil(t, grouped[f.empty.ID])
	assert.Empty(t, grouped[f.empty.ID])
	assert.Equal(t, 1, f.lookup.rolePermissionCalls)
}

func TestAggregatorWithoutScope(t *testing.T) {
	f := newFixture(t)
	agg := NewAggregator(f.lookup)
	ctx := context.Background()

	permissions, err := agg.Permissions(ctx, []int64{f.reader.ID}, 0)
	require.NoError(t, err)
	assert.Empty(t, permissions)

	permissions, err = agg.Permissions(ctx, nil, f.app.ID)
	require.NoError(t, err)
	assert.Empty(t, permissions)

	roles, granted, err := agg.ForUser(ctx, f.user.ID, -1)
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.Empty(t, granted)

	assert.Zero(t, f.lookup.rolePermissionCalls)
	assert.Zero(t, f.lookup.userRoleCalls)
}

func TestAggregatorForUser(t *testing.T) {
	f := newFixture(t)
	agg := NewAggregator(f.lookup)

	roles, permissions, err := agg.ForUser(context.Background(), f.user.ID, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"EDITOR", "READER"}, roles)
	assert.Equal(t, []string{"APP_READ", "USER_READ", "USER_UPDATE"}, permissions)
}

func TestFilterUsers(t *testing.T) {
	filter := NewFilter("", 1)
	users := []store.User{
		{ID: 1, Email: "root@example.com"},
		{ID: 2, Email: "me@example.com"},
		{ID: 3, Email: "other@example.com"},
	}

	t.Run("superuser sees everything", func(t *testing.T) {
		caller := &Caller{UserID: 1, AppID: 1, Roles: []string{DefaultSuperuserRole}}
		kept, err := filter.FilterUsers(caller, users, 0)
		require.NoError(t, err)
		assert.Len(t, kept, 3)

		kept, err = filter.FilterUsers(caller, users, 42)
		require.NoError(t, err)
		assert.Len(t, kept, 3)
	})

	t.Run("other app is forbidden", func(t *testing.T) {
		caller := &Caller{UserID: 2, Email: "me@example.com", AppID: 1, Permissions: []string{"APP_READ"}}
		_, err := filter.FilterUsers(caller, users, 2)
		require.Error(t, err)
		assert.Equal(t, 403, apperrors.HTTPStatus(err))
	})

	t.Run("USER_READ in scope sees all", func(t *testing.T) {
		caller := &Caller{UserID: 2, AppID: 1, Permissions: []string{"USER_READ"}}
		kept, err := filter.FilterUsers(caller, users, 1)
		require.NoError(t, err)
		assert.Len(t, kept, 3)
	})

	t.Run("without USER_READ only self", func(t *testing.T) {
		caller := &Caller{UserID: 99, Email: "ME@example.com", AppID: 1, Permissions: []string{"APP_READ"}}
		kept, err := filter.FilterUsers(caller, users, 1)
		require.NoError(t, err)
		require.Len(t, kept, 1)
		assert.Equal(t, int64(2), kept[0].ID)
	})

	t.Run("cross tenant list is self only", func(t *testing.T) {
		caller := &Caller{UserID: 3, AppID: 1, Permissions: []string{"USER_READ"}}
		kept, err := filter.FilterUsers(caller, users, 0)
		require.NoError(t, err)
		require.Len(t, kept, 1)
		assert.Equal(t, int64(3), kept[0].ID)
	})
}

func TestCheckUser(t *testing.T) {
	filter := NewFilter("ROOT", 9)
	caller := &Caller{UserID: 2, Email: "me@example.com", AppID: 1, Permissions: []string{"APP_READ"}}

	assert.NoError(t, filter.CheckUser(caller, 2, "", ActionRead, 5))
	assert.NoError(t, filter.CheckUser(caller, 0, "Me@Example.com", ActionUpdate, 0))
	assert.Error(t, filter.CheckUser(caller, 2, "", ActionDelete, 1), "self access covers read and update only")
	assert.Error(t, filter.CheckUser(caller, 3, "", ActionRead, 1))

	editor := &Caller{UserID: 4, AppID: 1, Permissions: []string{"USER_UPDATE"}}
	assert.NoError(t, filter.CheckUser(editor, 3, "", ActionUpdate, 1))
	assert.Error(t, filter.CheckUser(editor, 3, "", ActionUpdate, 2))

	root := &Caller{UserID: 5, AppID: 9, Roles: []string{"ROOT"}}
	assert.NoError(t, filter.CheckUser(root, 3, "", ActionDelete, 0))
	assert.NoError(t, filter.CheckSuperuser(root))
	assert.Error(t, filter.CheckSuperuser(editor))
	assert.Error(t, filter.CheckSuperuser(nil))
}

func TestSuperuserIsScopedToAdminApp(t *testing.T) {
	filter := NewFilter("", 1)

	admin := &Caller{UserID: 1, AppID: 1, Roles: []string{DefaultSuperuserRole}}
	assert.True(t, filter.IsSuperuser(admin))

	tenant := &Caller{UserID: 2, AppID: 99, Roles: []string{DefaultSuperuserRole}, Permissions: []string{"ROLE_CREATE"}}
	assert.False(t, filter.IsSuperuser(tenant))
	assert.Error(t, filter.CheckSuperuser(tenant))
	assert.Error(t, filter.CheckScoped(tenant, ResourceApp, ActionDelete, 1))
	assert.Empty(t, filter.FilterApps(tenant, []store.App{{ID: 1}, {ID: 99}}))

	kept, err := filter.FilterUsers(tenant, []store.User{{ID: 1}, {ID: 2}}, 0)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, int64(2), kept[0].ID)

	_, err = filter.FilterUsers(tenant, []store.User{{ID: 1}}, 1)
	assert.Error(t, err)

	assert.False(t, NewFilter("", 0).IsSuperuser(admin), "no admin app means no superuser")
	assert.False(t, filter.IsSuperuser(nil))
}

func TestCheckScoped(t *testing.T) {
	filter := NewFilter("", 1)
	caller := &Caller{UserID: 1, AppID: 7, Permissions: []string{"ROLE_UPDATE"}}

	assert.NoError(t, filter.CheckScoped(caller, ResourceRole, ActionUpdate, 7))

	err := filter.CheckScoped(caller, ResourceRole, ActionUpdate, 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Permission Denied:")

	assert.Error(t, filter.CheckScoped(caller, ResourceRole, ActionDelete, 7))
	assert.Error(t, filter.CheckScoped(nil, ResourceRole, ActionRead, 7))
}

func TestFilterScopedLists(t *testing.T) {
	filter := NewFilter("", 1)
	caller := &Caller{UserID: 1, AppID: 1, Permissions: []string{"ROLE_READ", "APP_READ"}}

	roles := filter.FilterRoles(caller, []store.Role{{ID: 1, AppID: 1}, {ID: 2, AppID: 2}})
	require.Len(t, roles, 1)
	assert.Equal(t, int64(1), roles[0].ID)

	permissions := filter.FilterPermissions(caller, []store.Permission{{ID: 1, AppID: 1}})
	assert.Empty(t, permissions)
	assert.NotNil(t, permissions)

	apps := filter.FilterApps(caller, []store.App{{ID: 1}, {ID: 2}})
	require.Len(t, apps, 1)
	assert.Equal(t, int64(1), apps[0].ID)
}

func TestCallerContextAndLogValue(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, CallerFrom(ctx))

	caller := &Caller{UserID: 1, Email: "a@example.com", AppID: 2, Roles: []string{"GUEST"}}
	ctx = WithCaller(ctx, caller)
	assert.Same(t, caller, CallerFrom(ctx))

	assert.Equal(t, slog.KindGroup, caller.LogValue().Kind())
	var anonymous *Caller
	assert.Equal(t, "anonymous", anonymous.LogValue().String())
}
