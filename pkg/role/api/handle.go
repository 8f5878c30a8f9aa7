package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/convert"
	"github.com/tendant/simple-ums/pkg/role"
	"github.com/tendant/simple-ums/pkg/store"
)

type CreateRoleRequest struct {
	AppID       int64  `json:"app_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type UpdateRoleRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type Handle struct {
	roleService *role.RoleService
	converter   *convert.Converter
	filter      *access.Filter
	dispatcher  *audit.Dispatcher
}

func NewHandle(roleService *role.RoleService, converter *convert.Converter, filter *access.Filter, dispatcher *audit.Dispatcher) *Handle {
	return &Handle{
		roleService: roleService,
		converter:   converter,
		filter:      filter,
		dispatcher:  dispatcher,
	}
}

// Routes are mounted under /api/v1/roles behind bearer auth
func Routes(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.SoftDelete)
	r.Delete("/{id}/hard", h.HardDelete)
	r.Patch("/{id}/restore", h.Restore)
	return r
}

// List handles GET /?app_id=. Permissions are expanded when app_id > 0.
func (h *Handle) List(w http.ResponseWriter, r *http.Request) {
	caller := access.CallerFrom(r.Context())
	appID := convert.QueryAppID(r)

	roles, err := h.roleService.FindRoles(r.Context(), appID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	roles = h.filter.FilterRoles(caller, roles)
	roles, page := convert.Paginate(roles, convert.ParsePage(r))

	dtos, err := h.converter.Roles(r.Context(), roles, appID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteList(w, r, dtos, page)
}

// Get handles GET /{id}?app_id=
func (h *Handle) Get(w http.ResponseWriter, r *http.Request) {
	found, ok := h.load(w, r, access.ActionRead)
	if !ok {
		return
	}
	dto, err := h.converter.Role(r.Context(), found, convert.QueryAppID(r))
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteSingle(w, r, &dto)
}

// load reads the role named by {id} and checks the caller may act on it.
func (h *Handle) load(w http.ResponseWriter, r *http.Request, action string) (found store.Role, ok bool) {
	id, err := convert.PathID(r, "id")
	if err != nil {
		convert.WriteError(w, r, err)
		return found, false
	}
	found, err = h.roleService.GetRole(r.Context(), id)
	if err != nil {
		convert.WriteError(w, r, err)
		return found, false
	}
	if err := h.filter.CheckScoped(access.CallerFrom(r.Context()), access.ResourceRole, action, found.AppID); err != nil {
		convert.WriteError(w, r, err)
		return found, false
	}
	return found, true
}

// Create handles POST /
func (h *Handle) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.filter.CheckScoped(access.CallerFrom(r.Context()), access.ResourceRole, access.ActionCreate, req.AppID); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	created, err := h.roleService.CreateRole(r.Context(), role.CreateRoleParams{
		AppID:       req.AppID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.CreateRole, audit.EntityRole, created.ID, created.AppID))

	dto, err := h.converter.Role(r.Context(), created, created.AppID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteSingle(w, r, &dto)
}

// Update handles PUT /{id}
func (h *Handle) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	found, ok := h.load(w, r, access.ActionUpdate)
	if !ok {
		return
	}

	updated, err := h.roleService.UpdateRole(r.Context(), found.ID, role.UpdateRoleParams{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UpdateRole, audit.EntityRole, updated.ID, updated.AppID))

	dto, err := h.converter.Role(r.Context(), updated, updated.AppID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteSingle(w, r, &dto)
}

// SoftDelete handles DELETE /{id}
func (h *Handle) SoftDelete(w http.ResponseWriter, r *http.Request) {
	found, ok := h.load(w, r, access.ActionDelete)
	if !ok {
		return
	}
	if err := h.roleService.SoftDeleteRole(r.Context(), found.ID); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.SoftDeleteRole, audit.EntityRole, found.ID, found.AppID))
	convert.WriteDeleted(w, r)
}

// HardDelete handles DELETE /{id}/hard. A superuser may also remove a role
// that is already soft deleted.
func (h *Handle) HardDelete(w http.ResponseWriter, r *http.Request) {
	id, err := convert.PathID(r, "id")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	appID := int64(0)
	if !h.filter.IsSuperuser(access.CallerFrom(r.Context())) {
		found, ok := h.load(w, r, access.ActionDelete)
		if !ok {
			return
		}
		appID = found.AppID
	}

	if err := h.roleService.HardDeleteRole(r.Context(), id); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.HardDeleteRole, audit.EntityRole, id, appID))
	convert.WriteDeleted(w, r)
}

// Restore handles PATCH /{id}/restore. Only a superuser can see soft deleted
// roles, so only a superuser can restore them.
func (h *Handle) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := convert.PathID(r, "id")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.filter.CheckSuperuser(access.CallerFrom(r.Context())); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	restored, err := h.roleService.RestoreRole(r.Context(), id)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.RestoreRole, audit.EntityRole, restored.ID, restored.AppID))

	dto, err := h.converter.Role(r.Context(), restored, restored.AppID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteSingle(w, r, &dto)
}
