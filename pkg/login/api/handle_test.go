package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/convert"
	"github.com/tendant/simple-ums/pkg/login"
	"github.com/tendant/simple-ums/pkg/notification"
	"github.com/tendant/simple-ums/pkg/store"
	"github.com/tendant/simple-ums/pkg/tokengenerator"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	store      *store.InMemoryStore
	codec      *tokengenerator.JwtCodec
	sender     *notification.RecordingSender
	dispatcher *audit.Dispatcher
	router     chi.Router
	app        store.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := store.NewInMemoryStore()
	app, err := s.CreateApp(context.Background(), store.App{Name: "app-99", RedirectURL: "http://client.local/done"})
	require.NoError(t, err)

	codec := tokengenerator.NewJwtCodec("test-secret", "ums", "ums")
	sender := &notification.RecordingSender{}
	dispatcher := audit.NewDispatcher(audit.NewStoreSink(s), audit.Options{})

	h := NewHandle(
		login.NewLoginService(s, codec, login.NewBcryptHasher(bcrypt.MinCost), login.Options{}),
		login.NewMailer(notification.NewNotifier(sender), codec, "http://ums.local", 0, 0),
		convert.NewConverter(s),
		dispatcher,
	)

	r := chi.NewRouter()
	r.Mount("/api/v1/basic_app_users/user/{appId}", BasicRoutes(h))
	r.Mount("/api/v1/na_app_users/user/{appId}", NoAuthRoutes(h))

	return &testServer{store: s, codec: codec, sender: sender, dispatcher: dispatcher, router: r, app: app}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) basic(path string) string {
	return "/api/v1/basic_app_users/user/" + strconv.FormatInt(ts.app.ID, 10) + path
}

func (ts *testServer) noAuth(path string) string {
	return "/api/v1/na_app_users/user/" + strconv.FormatInt(ts.app.ID, 10) + path
}

// drain waits for audit events and background emails.
func (ts *testServer) drain(t *testing.T) {
	require.NoError(t, ts.dispatcher.Shutdown(time.Second))
}

func (ts *testServer) auditTypes() []string {
	var types []string
	for _, e := range ts.store.AuditEntries() {
		types = append(types, e.EventType)
	}
	return types
}

func TestCreateUserRespondsWithGuestRole(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, ts.basic("/create"), CreateUserRequest{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "pw",
		Addresses: []AddressRequest{{Type: "HOME", City: "London"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp convert.Response[convert.UserDTO]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	user := resp.Items[0]
	require.Len(t, user.Roles, 1)
	assert.Equal(t, login.DefaultGuestRole, user.Roles[0].Name)
	assert.Empty(t, user.Roles[0].Permissions)
	assert.NotContains(t, rec.Body.String(), "password")

	ts.drain(t)
	assert.Contains(t, ts.auditTypes(), string(audit.CreateUser))
	require.Len(t, ts.sender.Messages(), 1)
	assert.Contains(t, ts.sender.Messages()[0].Text, "to_validate=")
}

func TestCreateUserValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, ts.basic("/create"), CreateUserRequest{FirstName: "A", LastName: "B", Email: "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "[password] is Missing in [User] request")

	rec = ts.do(t, http.MethodPost, "/api/v1/basic_app_users/user/777/create", CreateUserRequest{FirstName: "A", LastName: "B", Email: "a@example.com", Password: "pw"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "App Not Found for [777]")
}

func TestLoginRefreshLogout(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, ts.basic("/create"), CreateUserRequest{FirstName: "Ada", LastName: "L", Email: "ada@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, ts.basic("/login"), LoginRequest{Email: "ada@example.com", Password: "pw"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, ts.basic("/reset"), ResetRequest{Email: "ada@example.com", Password: "new-pw"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodPost, ts.basic("/login"), LoginRequest{Email: "ada@example.com", Password: "new-pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tokens LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	assert.NotEmpty(t, tokens.AToken)
	assert.NotEmpty(t, tokens.RToken)
	assert.Equal(t, "ada@example.com", tokens.User.Email)

	rec = ts.do(t, http.MethodPost, ts.basic("/refresh"), RefreshRequest{RefreshToken: tokens.RToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))

	rec = ts.do(t, http.MethodPost, ts.basic("/logout"), LogoutRequest{AccessToken: refreshed.AToken})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodPost, ts.basic("/logout"), LogoutRequest{AccessToken: refreshed.AToken})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.drain(t)
	types := ts.auditTypes()
	for _, want := range []audit.EventType{audit.UserLoginError, audit.UserReset, audit.UserLogin, audit.TokenRefresh, audit.UserLogout, audit.UserLogoutError} {
		assert.Contains(t, types, string(want))
	}
}

func TestValidateFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, ts.basic("/create"), CreateUserRequest{FirstName: "Ada", LastName: "L", Email: "ada@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, ts.basic("/validate_init?email=nobody@example.com"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, ts.basic("/validate_init?email=ada@example.com"), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, ts.noAuth("/validate_exit?to_validate=garbage"), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://client.local/done?is_validated=false", rec.Header().Get("Location"))

	user, err := ts.store.ReadUserByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	token, _, err := ts.codec.Encode(tokengenerator.Identity{UserID: user.ID, Email: user.Email, AppID: ts.app.ID, Purpose: tokengenerator.PurposeValidate}, time.Hour)
	require.NoError(t, err)

	rec = ts.do(t, http.MethodGet, ts.noAuth("/validate_exit?to_validate="+url.QueryEscape(token)), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://client.local/done?is_validated=true", rec.Header().Get("Location"))

	user, err = ts.store.ReadUserByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsActive())

	ts.drain(t)
	assert.Len(t, ts.sender.Messages(), 2)
	types := ts.auditTypes()
	assert.Contains(t, types, string(audit.UserValidateInit))
	assert.Contains(t, types, string(audit.UserValidateError))
	assert.Contains(t, types, string(audit.UserValidateExit))
}

func TestResetExit(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, ts.basic("/create"), CreateUserRequest{FirstName: "Ada", LastName: "L", Email: "ada@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, ts.basic("/reset_init?email=ada@example.com"), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	user, err := ts.store.ReadUserByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	token, _, err := ts.codec.Encode(tokengenerator.Identity{UserID: user.ID, Email: user.Email, AppID: ts.app.ID, Purpose: tokengenerator.PurposeReset}, time.Hour)
	require.NoError(t, err)

	rec = ts.do(t, http.MethodGet, ts.noAuth("/reset_exit?to_reset="+url.QueryEscape(token)), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "true", location.Query().Get("is_reset"))
	assert.Equal(t, "ada@example.com", location.Query().Get("to_reset"))

	rec = ts.do(t, http.MethodGet, ts.noAuth("/reset_exit?to_reset=garbage"), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://client.local/done?is_reset=false", rec.Header().Get("Location"))
}

func TestExitWithoutRedirectURL(t *testing.T) {
	ts := newTestServer(t)
	bare, err := ts.store.CreateApp(context.Background(), store.App{Name: "bare"})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/api/v1/na_app_users/user/"+strconv.FormatInt(bare.ID, 10)+"/validate_exit?to_validate=x", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Redirect URL cannot be null or empty")
}
