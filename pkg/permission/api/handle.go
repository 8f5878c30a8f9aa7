package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/convert"
	"github.com/tendant/simple-ums/pkg/permission"
	"github.com/tendant/simple-ums/pkg/store"
)

type CreatePermissionRequest struct {
	AppID       int64  `json:"app_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type UpdatePermissionRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type Handle struct {
	permissionService *permission.PermissionService
	converter   *convert.Converter
	filter      *access.Filter
	dispatcher  *audit.Dispatcher
}

func NewHandle(permissionService *permission.PermissionService, converter *convert.Converter, filter *access.Filter, dispatcher *audit.Dispatcher) *Handle {
	return &Handle{
		permissionService: permissionService,
		converter:   converter,
		filter:      filter,
		dispatcher:  dispatcher,
	}
}

// Routes are mounted under /api/v1/permissions behind bearer auth
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

// List handles GET /?app_id=
func (h *Handle) List(w http.ResponseWriter, r *http.Request) {
	caller := access.CallerFrom(r.Context())
	appID := convert.QueryAppID(r)

	permissions, err := h.permissionService.FindPermissions(r.Context(), appID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	permissions = h.filter.FilterPermissions(caller, permissions)
	permissions, page := convert.Paginate(permissions, convert.ParsePage(r))

	convert.WriteList(w, r, h.converter.Permissions(permissions), page)
}

// Get handles GET /{id}
func (h *Handle) Get(w http.ResponseWriter, r *http.Request) {
	found, ok := h.load(w, r, access.ActionRead)
	if !ok {
		return
	}
	dto := h.converter.Permission(found)
	convert.WriteSingle(w, r, &dto)
}

// load reads the permission named by {id} and checks the caller may act on it.
func (h *Handle) load(w http.ResponseWriter, r *http.Request, action string) (found store.Permission, ok bool) {
	id, err := convert.PathID(r, "id")
	if err != nil {
		convert.WriteError(w, r, err)
		return found, false
	}
	found, err = h.permissionService.GetPermission(r.Context(), id)
	if err != nil {
		convert.WriteError(w, r, err)
		return found, false
	}
	if err := h.filter.CheckScoped(access.CallerFrom(r.Context()), access.ResourcePermission, action, found.AppID); err != nil {
		convert.WriteError(w, r, err)
		return found, false
	}
	return found, true
}

// Create handles POST /
func (h *Handle) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePermissionRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.filter.CheckScoped(access.CallerFrom(r.Context()), access.ResourcePermission, access.ActionCreate, req.AppID); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	created, err := h.permissionService.CreatePermission(r.Context(), permission.CreatePermissionParams{
		AppID:       req.AppID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.CreatePermission, audit.EntityPermission, created.ID, created.AppID))

	dto := h.converter.Permission(created)
	convert.WriteSingle(w, r, &dto)
}

// Update handles PUT /{id}
func (h *Handle) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdatePermissionRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	found, ok := h.load(w, r, access.ActionUpdate)
	if !ok {
		return
	}

	updated, err := h.permissionService.UpdatePermission(r.Context(), found.ID, permission.UpdatePermissionParams{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UpdatePermission, audit.EntityPermission, updated.ID, updated.AppID))

	dto := h.converter.Permission(updated)
	convert.WriteSingle(w, r, &dto)
}

// SoftDelete handles DELETE /{id}
func (h *Handle) SoftDelete(w http.ResponseWriter, r *http.Request) {
	found, ok := h.load(w, r, access.ActionDelete)
	if !ok {
		return
	}
	if err := h.permissionService.SoftDeletePermission(r.Context(), found.ID); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.SoftDeletePermission, audit.EntityPermission, found.ID, found.AppID))
	convert.WriteDeleted(w, r)
}

// HardDelete handles DELETE /{id}/hard. A superuser may also remove a permission
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

	if err := h.permissionService.HardDeletePermission(r.Context(), id); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.HardDeletePermission, audit.EntityPermission, id, appID))
	convert.WriteDeleted(w, r)
}

// Restore handles PATCH /{id}/restore. Only a superuser can see soft deleted
// permissions, so only a superuser can restore them.
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

	restored, err := h.permissionService.RestorePermission(r.Context(), id)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.RestorePermission, audit.EntityPermission, restored.ID, restored.AppID))

	dto := h.converter.Permission(restored)
	convert.WriteSingle(w, r, &dto)
}
