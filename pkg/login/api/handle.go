package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/convert"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/login"
	"github.com/tendant/simple-ums/pkg/store"
)

type AddressRequest struct {
	Type       string `json:"type" validate:"required"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

type CreateUserRequest struct {
	FirstName string           `json:"first_name" validate:"required"`
	LastName  string           `json:"last_name" validate:"required"`
	Email     string           `json:"email" validate:"required,email"`
	Password  string           `json:"password"`
	Addresses []AddressRequest `json:"addresses" validate:"dive"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type ResetRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AToken string          `json:"a_token"`
	RToken string          `json:"r_token"`
	User   convert.UserDTO `json:"user"`
}

// Handle serves the basic-auth and no-auth account flows of one app
type Handle struct {
	loginService *login.LoginService
	mailer       *login.Mailer
	converter    *convert.Converter
	dispatcher   *audit.Dispatcher
	logins       *prometheus.CounterVec
}

func NewHandle(loginService *login.LoginService, mailer *login.Mailer, converter *convert.Converter, dispatcher *audit.Dispatcher) *Handle {
	return &Handle{
		loginService: loginService,
		mailer:       mailer,
		converter:    converter,
		dispatcher:   dispatcher,
	}
}

// WithLoginCounter counts login attempts by "result"
func (h *Handle) WithLoginCounter(logins *prometheus.CounterVec) *Handle {
	h.logins = logins
	return h
}

func (h *Handle) countLogin(result string) {
	if h.logins != nil {
		h.logins.WithLabelValues(result).Inc()
	}
}

// BasicRoutes are mounted under /basic_app_users/user/{appId} behind basic auth
func BasicRoutes(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/create", h.CreateUser)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	r.Post("/reset", h.Reset)
	r.Get("/validate_init", h.ValidateInit)
	r.Get("/reset_init", h.ResetInit)
	return r
}

// NoAuthRoutes are mounted under /na_app_users/user/{appId}
func NoAuthRoutes(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/validate_exit", h.ValidateExit)
	r.Get("/reset_exit", h.ResetExit)
	return r
}

func addresses(in []AddressRequest) []store.Address {
	out := make([]store.Address, 0, len(in))
	for _, a := range in {
		out = append(out, store.Address{
			Type:       a.Type,
			Street:     a.Street,
			City:       a.City,
			State:      a.State,
			Country:    a.Country,
			PostalCode: a.PostalCode,
		})
	}
	return out
}

func (h *Handle) sendLater(name string, send func(ctx context.Context) error) {
	h.dispatcher.Go(name, send)
}

// CreateUser handles POST /create
func (h *Handle) CreateUser(w http.ResponseWriter, r *http.Request) {
	appID, err := convert.PathID(r, "appId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	var req CreateUserRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	user, err := h.loginService.CreateUser(r.Context(), appID, login.CreateUserParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Addresses: addresses(req.Addresses),
	})
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}

	h.dispatcher.Dispatch(audit.NewEvent(r, audit.CreateUser, audit.EntityUser, user.ID, appID).
		WithActor(user.ID, user.Email))

	if app, err := h.loginService.ReadApp(r.Context(), appID); err == nil {
		h.sendLater("validation email", func(ctx context.Context) error {
			return h.mailer.SendValidation(ctx, app, user)
		})
	}

	dto, err := h.converter.User(r.Context(), user, appID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteSingle(w, r, &dto)
}

// Login handles POST /login
func (h *Handle) Login(w http.ResponseWriter, r *http.Request) {
	appID, err := convert.PathID(r, "appId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	var req LoginRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	result, err := h.loginService.Login(r.Context(), appID, req.Email, req.Password)
	if err != nil {
		h.countLogin(string(apperrors.GetCode(err)))
		h.dispatcher.Dispatch(audit.NewEvent(r, audit.UserLoginError, audit.EntityUser, 0, appID).
			WithMetadata("email", req.Email).
			WithMetadata("error", apperrors.Message(err)))
		convert.WriteError(w, r, err)
		return
	}

	h.countLogin("success")
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UserLogin, audit.EntityUser, result.User.ID, appID).
		WithActor(result.User.ID, result.User.Email))

	h.writeTokens(w, r, result)
}

func (h *Handle) writeTokens(w http.ResponseWriter, r *http.Request, result login.LoginResult) {
	dto, err := h.converter.User(r.Context(), result.User, result.AppID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginResponse{
		AToken: result.AccessToken,
		RToken: result.RefreshToken,
		User:   dto,
	})
}

// Refresh handles POST /refresh
func (h *Handle) Refresh(w http.ResponseWriter, r *http.Request) {
	appID, err := convert.PathID(r, "appId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	var req RefreshRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	result, err := h.loginService.Refresh(r.Context(), appID, req.RefreshToken)
	if err != nil {
		h.dispatcher.Dispatch(audit.NewEvent(r, audit.TokenRefreshError, audit.EntityUser, 0, appID).
			WithMetadata("error", apperrors.Message(err)))
		convert.WriteError(w, r, err)
		return
	}

	h.dispatcher.Dispatch(audit.NewEvent(r, audit.TokenRefresh, audit.EntityUser, result.User.ID, appID).
		WithActor(result.User.ID, result.User.Email))

	h.writeTokens(w, r, result)
}

// Logout handles POST /logout
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) {
	appID, err := convert.PathID(r, "appId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	var req LogoutRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	token, err := h.loginService.Logout(r.Context(), appID, req.AccessToken)
	if err != nil {
		h.dispatcher.Dispatch(audit.NewEvent(r, audit.UserLogoutError, audit.EntityUser, 0, appID).
			WithMetadata("error", apperrors.Message(err)))
		convert.WriteError(w, r, err)
		return
	}

	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UserLogout, audit.EntityUser, token.UserID, appID).
		WithActor(token.UserID, ""))

	w.WriteHeader(http.StatusNoContent)
}

// Reset handles POST /reset
func (h *Handle) Reset(w http.ResponseWriter, r *http.Request) {
	appID, err := convert.PathID(r, "appId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	var req ResetRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	user, err := h.loginService.Reset(r.Context(), appID, req.Email, req.Password)
	if err != nil {
		h.dispatcher.Dispatch(audit.NewEvent(r, audit.UserResetError, audit.EntityUser, 0, appID).
			WithMetadata("email", req.Email).
			WithMetadata("error", apperrors.Message(err)))
		convert.WriteError(w, r, err)
		return
	}

	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UserReset, audit.EntityUser, user.ID, appID).
		WithActor(user.ID, user.Email))

	w.WriteHeader(http.StatusNoContent)
}

// ValidateInit handles GET /validate_init?email=
func (h *Handle) ValidateInit(w http.ResponseWriter, r *http.Request) {
	h.init(w, r, audit.UserValidateInit, h.mailer.SendValidation)
}

// ResetInit handles GET /reset_init?email=
func (h *Handle) ResetInit(w http.ResponseWriter, r *http.Request) {
	h.init(w, r, audit.UserResetInit, h.mailer.SendReset)
}

func (h *Handle) init(w http.ResponseWriter, r *http.Request, eventType audit.EventType, send func(context.Context, store.App, store.User) error) {
	appID, err := convert.PathID(r, "appId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}

	app, user, err := h.loginService.InitUser(r.Context(), appID, r.URL.Query().Get("email"))
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}

	h.sendLater(string(eventType), func(ctx context.Context) error {
		return send(ctx, app, user)
	})
	h.dispatcher.Dispatch(audit.NewEvent(r, eventType, audit.EntityUser, user.ID, appID).
		WithActor(user.ID, user.Email))

	w.WriteHeader(http.StatusNoContent)
}

// ValidateExit handles GET /validate_exit?to_validate=
func (h *Handle) ValidateExit(w http.ResponseWriter, r *http.Request) {
	appID, err := convert.PathID(r, "appId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	app, err := h.loginService.ReadApp(r.Context(), appID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}

	user, err := h.loginService.ValidateExit(r.Context(), appID, r.URL.Query().Get("to_validate"))
	if err != nil {
		slog.Info("Validation failed", "app_id", appID, "err", err)
		h.dispatcher.Dispatch(audit.NewEvent(r, audit.UserValidateError, audit.EntityUser, 0, appID).
			WithMetadata("error", apperrors.Message(err)))
		convert.RedirectValidate(w, r, app.RedirectURL, false)
		return
	}

	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UserValidateExit, audit.EntityUser, user.ID, appID).
		WithActor(user.ID, user.Email))
	convert.RedirectValidate(w, r, app.RedirectURL, true)
}

// ResetExit handles GET /reset_exit?to_reset=
func (h *Handle) ResetExit(w http.ResponseWriter, r *http.Request) {
	appID, err := convert.PathID(r, "appId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	app, err := h.loginService.ReadApp(r.Context(), appID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}

	email, err := h.loginService.ResetExit(r.Context(), appID, r.URL.Query().Get("to_reset"))
	if err != nil {
		slog.Info("Reset link rejected", "app_id", appID, "err", err)
		h.dispatcher.Dispatch(audit.NewEvent(r, audit.UserResetError, audit.EntityUser, 0, appID).
			WithMetadata("error", apperrors.Message(err)))
		convert.RedirectReset(w, r, app.RedirectURL, false, "")
		return
	}

	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UserResetExit, audit.EntityUser, 0, appID).
		WithActor(0, email))
	convert.RedirectReset(w, r, app.RedirectURL, true, email)
}
