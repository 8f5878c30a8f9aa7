package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/convert"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/login"
	"github.com/tendant/simple-ums/pkg/store"
	"github.com/tendant/simple-ums/pkg/user"
)

type AddressRequest struct {
	ID         int64  `json:"id"`
	Type       string `json:"type" validate:"required"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

type UpdateUserRequest struct {
	FirstName string           `json:"first_name" validate:"required"`
	LastName  string           `json:"last_name" validate:"required"`
	Status    string           `json:"status" validate:"omitempty,oneof=PENDING ACTIVE INACTIVE"`
	Addresses []AddressRequest `json:"addresses" validate:"dive"`
}

type UpdateEmailRequest struct {
	OldEmail string `json:"old_email" validate:"required,email"`
	NewEmail string `json:"new_email" validate:"required,email"`
}

type UpdatePasswordRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Handle struct {
	userService *user.UserService
	mailer      *login.Mailer
	converter   *convert.Converter
	filter      *access.Filter
	dispatcher  *audit.Dispatcher
}

func NewHandle(userService *user.UserService, mailer *login.Mailer, converter *convert.Converter, filter *access.Filter, dispatcher *audit.Dispatcher) *Handle {
	return &Handle{
		userService: userService,
		mailer:      mailer,
		converter:   converter,
		filter:      filter,
		dispatcher:  dispatcher,
	}
}

// Routes are mounted under /api/v1/app_users behind bearer auth
func Routes(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/app/{appId}", h.ListByApp)
	r.Put("/app/{appId}/user/{id}/email", h.UpdateEmail)
	r.Get("/user/email/{email}", h.GetByEmail)
	r.Get("/user/{id}", h.Get)
	r.Put("/user/{id}", h.Update)
	r.Put("/user/{id}/password", h.UpdatePassword)
	r.Delete("/user/{userId}/address/{addressId}", h.DeleteAddress)
	r.Delete("/user/{id}", h.SoftDelete)
	r.Delete("/user/{id}/hard", h.HardDelete)
	r.Patch("/user/{id}/restore", h.Restore)
	return r
}

// scope returns appID, or the caller's app when appID is not set.
func scope(caller *access.Caller, appID int64) int64 {
	if appID <= 0 && caller != nil {
		return caller.AppID
	}
	return appID
}

// authorize checks the caller may act on target within appID. Callers acting
// on someone else also need the target to be a member of that app.
func (h *Handle) authorize(ctx context.Context, target store.User, action string, appID int64) error {
	caller := access.CallerFrom(ctx)
	appID = scope(caller, appID)
	if err := h.filter.CheckUser(caller, target.ID, target.Email, action, appID); err != nil {
		return err
	}
	if h.filter.IsSuperuser(caller) || caller.IsSelf(target.ID, target.Email) {
		return nil
	}
	member, err := h.userService.IsAppUser(ctx, appID, target.ID)
	if err != nil {
		return err
	}
	if !member {
		return apperrors.PermissionDenied(fmt.Sprintf("user [%d] is not assigned to app [%d]", target.ID, appID))
	}
	return nil
}

func (h *Handle) writeUser(w http.ResponseWriter, r *http.Request, u store.User, appID int64) {
	dto, err := h.converter.User(r.Context(), u, appID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteSingle(w, r, &dto)
}

func (h *Handle) writeUsers(w http.ResponseWriter, r *http.Request, users []store.User, appID int64) {
	users, err := h.filter.FilterUsers(access.CallerFrom(r.Context()), users, appID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	users, page := convert.Paginate(users, convert.ParsePage(r))

	dtos, err := h.converter.Users(r.Context(), users, appID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteList(w, r, dtos, page)
}

// List handles GET /?app_id=
func (h *Handle) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.FindUsers(r.Context())
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.writeUsers(w, r, users, convert.QueryAppID(r))
}

// ListByApp handles GET /app/{appId}
func (h *Handle) ListByApp(w http.ResponseWriter, r *http.Request) {
	appID, err := convert.PathID(r, "appId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	users, err := h.userService.FindAppUsers(r.Context(), appID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.writeUsers(w, r, users, appID)
}

// Get handles GET /user/{id}?app_id=
func (h *Handle) Get(w http.ResponseWriter, r *http.Request) {
	id, err := convert.PathID(r, "id")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	found, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	appID := convert.QueryAppID(r)
	if err := h.authorize(r.Context(), found, access.ActionRead, appID); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.writeUser(w, r, found, appID)
}

// GetByEmail handles GET /user/email/{email}?app_id=
func (h *Handle) GetByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		convert.WriteError(w, r, apperrors.Missing("email", "User"))
		return
	}
	found, err := h.userService.GetUserByEmail(r.Context(), email)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	appID := convert.QueryAppID(r)
	if err := h.authorize(r.Context(), found, access.ActionRead, appID); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.writeUser(w, r, found, appID)
}

// load reads the user named by the path parameter and authorizes action on it
// within the ?app_id= scope.
func (h *Handle) load(w http.ResponseWriter, r *http.Request, param, action string) (store.User, bool) {
	id, err := convert.PathID(r, param)
	if err != nil {
		convert.WriteError(w, r, err)
		return store.User{}, false
	}
	found, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		convert.WriteError(w, r, err)
		return store.User{}, false
	}
	if err := h.authorize(r.Context(), found, action, convert.QueryAppID(r)); err != nil {
		convert.WriteError(w, r, err)
		return store.User{}, false
	}
	return found, true
}

// Update handles PUT /user/{id}. Only a caller holding USER_UPDATE may change
// the status; for everybody else it is kept.
func (h *Handle) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	found, ok := h.load(w, r, "id", access.ActionUpdate)
	if !ok {
		return
	}

	caller := access.CallerFrom(r.Context())
	appID := scope(caller, convert.QueryAppID(r))
	status := req.Status
	if h.filter.CheckScoped(caller, access.ResourceUser, access.ActionUpdate, appID) != nil {
		status = ""
	}

	addresses := make([]store.Address, 0, len(req.Addresses))
	for _, a := range req.Addresses {
		addresses = append(addresses, store.Address{
			ID:         a.ID,
			Type:       a.Type,
			Street:     a.Street,
			City:       a.City,
			State:      a.State,
			Country:    a.Country,
			PostalCode: a.PostalCode,
		})
	}

	updated, err := h.userService.UpdateUser(r.Context(), found.ID, user.UpdateUserParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Status:    status,
		Addresses: addresses,
	})
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UpdateUser, audit.EntityUser, updated.ID, appID))
	h.writeUser(w, r, updated, convert.QueryAppID(r))
}

// UpdateEmail handles PUT /app/{appId}/user/{id}/email and sends the user a
// new validation link.
func (h *Handle) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	appID, err := convert.PathID(r, "appId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	id, err := convert.PathID(r, "id")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	var req UpdateEmailRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	found, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.authorize(r.Context(), found, access.ActionUpdate, appID); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	app, updated, err := h.userService.UpdateEmail(r.Context(), appID, id, req.OldEmail, req.NewEmail)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}

	h.dispatcher.Go("validation email", func(ctx context.Context) error {
		return h.mailer.SendValidation(ctx, app, updated)
	})
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UpdateUserEmail, audit.EntityUser, updated.ID, appID).
		WithMetadata("old_email", req.OldEmail).
		WithMetadata("new_email", req.NewEmail))

	h.writeUser(w, r, updated, appID)
}

// UpdatePassword handles PUT /user/{id}/password
func (h *Handle) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req UpdatePasswordRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	found, ok := h.load(w, r, "id", access.ActionUpdate)
	if !ok {
		return
	}

	updated, err := h.userService.UpdatePassword(r.Context(), found.ID, req.Email, req.Password)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UpdateUserPassword, audit.EntityUser, updated.ID, convert.QueryAppID(r)))
	h.writeUser(w, r, updated, convert.QueryAppID(r))
}

// DeleteAddress handles DELETE /user/{userId}/address/{addressId}
func (h *Handle) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	addressID, err := convert.PathID(r, "addressId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	found, ok := h.load(w, r, "userId", access.ActionUpdate)
	if !ok {
		return
	}

	if err := h.userService.DeleteAddress(r.Context(), found.ID, addressID); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UpdateUser, audit.EntityUser, found.ID, convert.QueryAppID(r)).
		WithMetadata("deleted_address_id", addressID))
	convert.WriteDeleted(w, r)
}

func (h *Handle) superuserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := convert.PathID(r, "id")
	if err != nil {
		convert.WriteError(w, r, err)
		return 0, false
	}
	if err := h.filter.CheckSuperuser(access.CallerFrom(r.Context())); err != nil {
		convert.WriteError(w, r, err)
		return 0, false
	}
	return id, true
}

// SoftDelete handles DELETE /user/{id}
func (h *Handle) SoftDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.superuserID(w, r)
	if !ok {
		return
	}
	if err := h.userService.SoftDeleteUser(r.Context(), id); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.SoftDeleteUser, audit.EntityUser, id, 0))
	convert.WriteDeleted(w, r)
}

// HardDelete handles DELETE /user/{id}/hard
func (h *Handle) HardDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.superuserID(w, r)
	if !ok {
		return
	}
	if err := h.userService.HardDeleteUser(r.Context(), id); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.HardDeleteUser, audit.EntityUser, id, 0))
	convert.WriteDeleted(w, r)
}

// Restore handles PATCH /user/{id}/restore
func (h *Handle) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.superuserID(w, r)
	if !ok {
		return
	}
	restored, err := h.userService.RestoreUser(r.Context(), id)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.RestoreUser, audit.EntityUser, id, 0))
	h.writeUser(w, r, restored, 0)
}
