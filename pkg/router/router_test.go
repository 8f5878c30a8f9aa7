package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/bootstrap"
	"github.com/tendant/simple-ums/pkg/convert"
	"github.com/tendant/simple-ums/pkg/login"
	"github.com/tendant/simple-ums/pkg/metrics"
	"github.com/tendant/simple-ums/pkg/notification"
	"github.com/tendant/simple-ums/pkg/ratelimit"
	"github.com/tendant/simple-ums/pkg/store"
	"github.com/tendant/simple-ums/pkg/tokengenerator"
	"golang.org/x/crypto/bcrypt"
)

const (
	basicUser     = "ums"
	basicPassword = "pwd"
	adminEmail    = "admin@example.com"
	adminPassword = "admin-pass"
)

type env struct {
	store      *store.InMemoryStore
	hasher     *login.BcryptHasher
	dispatcher *audit.Dispatcher
	router     chi.Router
	admin      *bootstrap.AdminBootstrapResult
	app        store.App
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	s := store.NewInMemoryStore()
	hasher := login.NewBcryptHasher(bcrypt.MinCost)

	admin, err := bootstrap.BootstrapAdmin(ctx, bootstrap.AdminBootstrapConfig{
		AppName:       "ums-admin",
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
		Store:         s,
		Hasher:        hasher,
	})
	require.NoError(t, err)

	app, err := s.CreateApp(ctx, store.App{Name: "app-99", RedirectURL: "http://client.local/done"})
	require.NoError(t, err)

	dispatcher := audit.NewDispatcher(audit.NewStoreSink(s), audit.Options{})
	t.Cleanup(func() { dispatcher.Shutdown(time.Second) })

	cfg := NewConfig(Options{
		Store:                s,
		Codec:                tokengenerator.NewJwtCodec("router-secret", "ums", "ums"),
		Hasher:               hasher,
		Sender:               &notification.RecordingSender{},
		Dispatcher:           dispatcher,
		BaseURL:              "http://ums.local",
		SuperuserAppID:       admin.App.ID,
		BasicAuthCredentials: map[string]string{basicUser: basicPassword},
		Metrics:              metrics.NewMetrics(nil),
	})

	return &env{
		store:      s,
		hasher:     hasher,
		dispatcher: dispatcher,
		router:     NewRouter(cfg),
		admin:      admin,
		app:        app,
	}
}

type request struct {
	method string
	path   string
	body   interface{}
	token  string
	basic  bool
}

func (e *env) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(req.body))
	}
	r := httptest.NewRequest(req.method, req.path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.basic {
		r.SetBasicAuth(basicUser, basicPassword)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, r)
	return rec
}

func (e *env) login(t *testing.T, appID int64, email, password string) string {
	t.Helper()
	rec := e.do(t, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/v1/basic_app_users/user/%d/login", appID),
		body:   map[string]string{"email": email, "password": password},
		basic:  true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		AToken string `json:"a_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AToken)
	return resp.AToken
}

func (e *env) superuser(t *testing.T) string {
	return e.login(t, e.admin.App.ID, adminEmail, adminPassword)
}

// member creates an active user of appID holding a role with the given
// permissions and returns the user with a bearer token.
func (e *env) member(t *testing.T, appID int64, email string, permissions ...string) (store.User, string) {
	t.Helper()
	ctx := context.Background()
	hash, err := e.hasher.Hash("member-pass")
	require.NoError(t, err)

	u, err := e.store.CreateUser(ctx, store.User{
		FirstName:   "Member",
		LastName:    "User",
		Email:       email,
		Password:    hash,
		Status:      &store.StatusType{Name: store.StatusActive},
		IsValidated: true,
	})
	require.NoError(t, err)
	_, err = e.store.AssignAppUser(ctx, appID, u.ID)
	require.NoError(t, err)

	role, err := e.store.CreateRole(ctx, store.Role{AppID: appID, Name: "ROLE_" + email})
	require.NoError(t, err)
	for _, name := range permissions {
		p, err := e.store.ReadPermissionByName(ctx, appID, name)
		if err != nil {
			p, err = e.store.CreatePermission(ctx, store.Permission{AppID: appID, Name: name})
			require.NoError(t, err)
		}
		require.NoError(t, e.store.AssignRolePermission(ctx, role.ID, p.ID))
	}
	require.NoError(t, e.store.AssignUserRole(ctx, appID, u.ID, role.ID))

	return u, e.login(t, appID, email, "member-pass")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) convert.Response[T] {
	t.Helper()
	var resp convert.Response[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func errMsg(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode[json.RawMessage](t, rec)
	require.NotNil(t, resp.StatusInfo, rec.Body.String())
	return resp.StatusInfo.ErrMsg
}

func TestCreatedUserGetsGuestRole(t *testing.T) {
	e := newEnv(t)
	token := e.superuser(t)

	rec := e.do(t, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/v1/basic_app_users/user/%d/create", e.app.ID),
		body: map[string]string{
			"first_name": "Jane",
			"last_name":  "Doe",
			"email":      "jane@example.com",
			"password":   "jane-pass",
		},
		basic: true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[convert.UserDTO](t, rec).Items[0]

	rec = e.do(t, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/v1/app_users/user/%d?app_id=%d", created.ID, e.app.ID),
		token:  token,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[convert.UserDTO](t, rec).Items
	require.Len(t, got, 1)
	require.Len(t, got[0].Roles, 1)
	assert.Equal(t, "GUEST", got[0].Roles[0].Name)
	assert.Empty(t, got[0].Roles[0].Permissions)
	assert.Equal(t, store.StatusPending, got[0].Status.Name)
}

func TestHardDeleteUserNeedsUnassign(t *testing.T) {
	e := newEnv(t)
	token := e.superuser(t)

	rec := e.do(t, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/v1/basic_app_users/user/%d/create", e.app.ID),
		body:   map[string]string{"first_name": "Bob", "last_name": "Roe", "email": "bob@example.com", "password": "bob-pass"},
		basic:  true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[convert.UserDTO](t, rec).Items[0]
	require.Len(t, created.Roles, 1)
	guestID := created.Roles[0].ID

	hard := request{method: http.MethodDelete, path: fmt.Sprintf("/api/v1/app_users/user/%d/hard", created.ID), token: token}
	rec = e.do(t, hard)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = e.do(t, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/v1/app_user_role/%d/%d/%d", e.app.ID, created.ID, guestID),
		token:  token,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/v1/apps_app_user/%d/%d", e.app.ID, created.ID),
		token:  token,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, hard)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[json.RawMessage](t, rec).CrudInfo.DeletedRowsCount)

	rec = e.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/api/v1/app_users/user/%d", created.ID), token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, fmt.Sprintf("User Not Found for [%d]", created.ID), errMsg(t, rec))
}

func TestSuperuserReadsAllUsers(t *testing.T) {
	e := newEnv(t)
	token := e.superuser(t)
	e.member(t, e.app.ID, "reader@example.com", "APP_READ")

	rec := e.do(t, request{method: http.MethodGet, path: "/api/v1/app_users", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[convert.UserDTO](t, rec).Items, 2)
}

func TestAppReadCallerIsScoped(t *testing.T) {
	e := newEnv(t)
	self, token := e.member(t, e.app.ID, "reader@example.com", "APP_READ")

	rec := e.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/api/v1/app_users/app/%d", e.admin.App.ID), token: token})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Contains(t, errMsg(t, rec), "Permission Denied")

	rec = e.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/api/v1/app_users/user/%d", self.ID), token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "reader@example.com", decode[convert.UserDTO](t, rec).Items[0].Email)

	rec = e.do(t, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("/api/v1/app_users/user/%d", self.ID),
		body:   map[string]string{"first_name": "Renamed", "last_name": "Reader", "status": "INACTIVE"},
		token:  token,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[convert.UserDTO](t, rec).Items[0]
	assert.Equal(t, "Renamed", updated.FirstName)
	assert.Equal(t, store.StatusActive, updated.Status.Name)

	rec = e.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/api/v1/app_users/user/%d", e.admin.User.ID), token: token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/api/v1/apps/%d", e.app.ID), token: token})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/api/v1/apps/%d", e.admin.App.ID), token: token})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAssignmentAuthorization(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, request{method: http.MethodPost, path: "/api/v1/apps_app_user", body: map[string]int64{"app_id": 1, "user_id": 1}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User Unauthorized", errMsg(t, rec))

	_, token := e.member(t, e.app.ID, "creator@example.com", "APP_CREATE", "USER_CREATE")
	rec = e.do(t, request{
		method: http.MethodPost,
		path:   "/api/v1/apps_app_user",
		body:   map[string]int64{"app_id": e.app.ID, "user_id": e.admin.User.ID},
		token:  token,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = e.do(t, request{method: http.MethodPost, path: "/api/v1/apps_app_user", token: token})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AppID is required, UserID is required", errMsg(t, rec))
}

func TestRolePermissionLifecycle(t *testing.T) {
	e := newEnv(t)
	token := e.superuser(t)

	rec := e.do(t, request{method: http.MethodPost, path: "/api/v1/roles", token: token,
		body: map[string]interface{}{"app_id": e.app.ID, "name": "EDITOR"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	role := decode[convert.RoleDTO](t, rec).Items[0]

	rec = e.do(t, request{method: http.MethodPost, path: "/api/v1/permissions", token: token,
		body: map[string]interface{}{"app_id": e.app.ID, "name": "USER_UPDATE"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	perm := decode[convert.PermissionDTO](t, rec).Items[0]

	rec = e.do(t, request{method: http.MethodPost, path: "/api/v1/role_permission", token: token,
		body: map[string]int64{"role_id": role.ID, "permission_id": perm.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[convert.RoleDTO](t, rec).Items[0]
	require.Len(t, got.Permissions, 1)
	assert.Equal(t, "USER_UPDATE", got.Permissions[0].Name)

	rec = e.do(t, request{method: http.MethodDelete, path: fmt.Sprintf("/api/v1/roles/%d/hard", role.ID), token: token})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = e.do(t, request{method: http.MethodDelete, path: fmt.Sprintf("/api/v1/permissions/%d/hard", perm.ID), token: token})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, request{method: http.MethodDelete, path: fmt.Sprintf("/api/v1/role_permission/%d/%d", role.ID, perm.ID), token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, request{method: http.MethodDelete, path: fmt.Sprintf("/api/v1/roles/%d/hard", role.ID), token: token})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, request{method: http.MethodDelete, path: fmt.Sprintf("/api/v1/permissions/%d/hard", perm.ID), token: token})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSoftDeleteAndRestoreApp(t *testing.T) {
	e := newEnv(t)
	token := e.superuser(t)

	rec := e.do(t, request{method: http.MethodPost, path: "/api/v1/apps", token: token,
		body: map[string]string{"name": "app-100", "redirect_url": "http://client.local/100"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[convert.AppDTO](t, rec).Items[0]

	path := fmt.Sprintf("/api/v1/apps/%d", created.ID)
	rec = e.do(t, request{method: http.MethodDelete, path: path, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, request{method: http.MethodGet, path: path, token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, request{method: http.MethodPatch, path: path + "/restore", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, request{method: http.MethodGet, path: path, token: token})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesBearer(t *testing.T) {
	e := newEnv(t)
	token := e.superuser(t)

	rec := e.do(t, request{method: http.MethodPost, path: fmt.Sprintf("/api/v1/basic_app_users/user/%d/logout", e.admin.App.ID),
		body: map[string]string{"access_token": token}, basic: true})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = e.do(t, request{method: http.MethodGet, path: "/api/v1/apps", token: token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBasicRoutesRequireCredentials(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/v1/basic_app_users/user/%d/login", e.app.ID),
		body:   map[string]string{"email": adminEmail, "password": adminPassword},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsAndHealth(t *testing.T) {
	e := newEnv(t)
	e.superuser(t)

	rec := e.do(t, request{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ums_http_requests_total")
	assert.True(t, strings.Contains(body, `ums_logins_total{result="success"} 1`), body)
}

func TestRateLimitedBasicRoutes(t *testing.T) {
	s := store.NewInMemoryStore()
	dispatcher := audit.NewDispatcher(audit.NewLogSink(nil), audit.Options{})
	t.Cleanup(func() { dispatcher.Shutdown(time.Second) })

	cfg := NewConfig(Options{
		Store:                s,
		Codec:                tokengenerator.NewJwtCodec("router-secret", "ums", "ums"),
		Dispatcher:           dispatcher,
		SuperuserRole:        access.DefaultSuperuserRole,
		BasicAuthCredentials: map[string]string{basicUser: basicPassword},
		RateLimit:            &ratelimit.Config{Enabled: true, RequestsPerSecond: 0.001, Burst: 2, BucketTTL: time.Minute},
	})
	e := &env{store: s, router: NewRouter(cfg)}

	login := request{method: http.MethodPost, path: "/api/v1/basic_app_users/user/1/login",
		body: map[string]string{"email": "nobody@example.com", "password": "x"}, basic: true}
	for i := 0; i < 2; i++ {
		rec := e.do(t, login)
		assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}
	rec := e.do(t, login)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestTenantCannotBecomeSuperuser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	me, token := e.member(t, e.app.ID, "tenant@example.com", "ROLE_CREATE", "ROLE_UPDATE", "USER_UPDATE")

	rec := e.do(t, request{method: http.MethodPost, path: "/api/v1/roles", token: token,
		body: map[string]interface{}{"app_id": e.app.ID, "name": "SUPERUSER"}})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, "Permission Denied: role name [SUPERUSER] is reserved", errMsg(t, rec))

	own, err := e.store.ReadRoleByName(ctx, e.app.ID, "ROLE_tenant@example.com")
	require.NoError(t, err)
	rec = e.do(t, request{method: http.MethodPut, path: fmt.Sprintf("/api/v1/roles/%d", own.ID), token: token,
		body: map[string]interface{}{"name": "SUPERUSER"}})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	// A role carrying the reserved name outside the admin app grants nothing.
	planted, err := e.store.CreateRole(ctx, store.Role{AppID: e.app.ID, Name: access.DefaultSuperuserRole})
	require.NoError(t, err)
	require.NoError(t, e.store.AssignUserRole(ctx, e.app.ID, me.ID, planted.ID))
	token = e.login(t, e.app.ID, "tenant@example.com", "member-pass")

	rec = e.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/api/v1/app_users/app/%d", e.admin.App.ID), token: token})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = e.do(t, request{method: http.MethodDelete, path: fmt.Sprintf("/api/v1/apps/%d", e.admin.App.ID), token: token})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	_, err = e.store.ReadApp(ctx, e.admin.App.ID)
	assert.NoError(t, err)

	rec = e.do(t, request{method: http.MethodPost, path: "/api/v1/roles", token: e.superuser(t),
		body: map[string]interface{}{"app_id": e.admin.App.ID, "name": "SUPERUSER"}})
	assert.Equal(t, http.StatusConflict, rec.Code, "admin app may own the name, it already does")
}

func TestRequestIsValidatedBeforeAccess(t *testing.T) {
	e := newEnv(t)
	_, token := e.member(t, e.app.ID, "reader@example.com", "APP_READ")
	target := e.admin.User.ID

	tests := []struct {
		name     string
		method   string
		path     string
		body     interface{}
		expected int
	}{
		{"update without names", http.MethodPut, fmt.Sprintf("/api/v1/app_users/user/%d", target), map[string]string{}, http.StatusBadRequest},
		{"update of another user", http.MethodPut, fmt.Sprintf("/api/v1/app_users/user/%d", target),
			map[string]string{"first_name": "Eve", "last_name": "Doe"}, http.StatusForbidden},
		{"password without fields", http.MethodPut, fmt.Sprintf("/api/v1/app_users/user/%d/password", target), map[string]string{}, http.StatusBadRequest},
		{"password of another user", http.MethodPut, fmt.Sprintf("/api/v1/app_users/user/%d/password", target),
			map[string]string{"email": adminEmail, "password": "stolen"}, http.StatusForbidden},
		{"address with bad id", http.MethodDelete, fmt.Sprintf("/api/v1/app_users/user/%d/address/x", target), nil, http.StatusBadRequest},
		{"address of another user", http.MethodDelete, fmt.Sprintf("/api/v1/app_users/user/%d/address/1", target), nil, http.StatusForbidden},
		{"app update without name", http.MethodPut, fmt.Sprintf("/api/v1/apps/%d", e.admin.App.ID), map[string]string{}, http.StatusBadRequest},
		{"role restore with bad id", http.MethodPatch, "/api/v1/roles/0/restore", nil, http.StatusBadRequest},
		{"role restore", http.MethodPatch, "/api/v1/roles/1/restore", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, request{method: tt.method, path: tt.path, body: tt.body, token: token})
			assert.Equal(t, tt.expected, rec.Code, rec.Body.String())
		})
	}

	found, err := e.store.ReadUser(context.Background(), target)
	require.NoError(t, err)
	ok, err := e.hasher.Verify(adminPassword, found.Password)
	require.NoError(t, err)
	assert.True(t, ok, "password is unchanged")
}
