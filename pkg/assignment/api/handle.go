package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/assignment"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/convert"
)

type AppUserRequest struct {
	AppID  int64 `json:"app_id" validate:"required"`
	UserID int64 `json:"user_id" validate:"required"`
}

type RolePermissionRequest struct {
	RoleID       int64 `json:"role_id" validate:"required"`
	PermissionID int64 `json:"permission_id" validate:"required"`
}

type UserRoleRequest struct {
	AppID  int64 `json:"app_id" validate:"required"`
	UserID int64 `json:"user_id" validate:"required"`
	RoleID int64 `json:"role_id" validate:"required"`
}

type Handle struct {
	assignmentService *assignment.AssignmentService
	converter         *convert.Converter
	filter            *access.Filter
	dispatcher        *audit.Dispatcher
}

func NewHandle(assignmentService *assignment.AssignmentService, converter *convert.Converter, filter *access.Filter, dispatcher *audit.Dispatcher) *Handle {
	return &Handle{
		assignmentService: assignmentService,
		converter:         converter,
		filter:            filter,
		dispatcher:        dispatcher,
	}
}

// AppUserRoutes are mounted under /api/v1/apps_app_user
func AppUserRoutes(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.AssignAppUser)
	r.Delete("/{appId}/{userId}", h.UnassignAppUser)
	return r
}

// RolePermissionRoutes are mounted under /api/v1/role_permission
func RolePermissionRoutes(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.AssignRolePermission)
	r.Delete("/{roleId}/{permissionId}", h.UnassignRolePermission)
	return r
}

// UserRoleRoutes are mounted under /api/v1/app_user_role
func UserRoleRoutes(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.AssignUserRole)
	r.Delete("/{appId}/{userId}/{roleId}", h.UnassignUserRole)
	return r
}

// pathIDs parses the named positive path parameters in order.
func pathIDs(r *http.Request, names ...string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, err := convert.PathID(r, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *Handle) AssignAppUser(w http.ResponseWriter, r *http.Request) {
	var req AppUserRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.filter.CheckSuperuser(access.CallerFrom(r.Context())); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	u, err := h.assignmentService.AssignAppUser(r.Context(), req.AppID, req.UserID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.AssignApp, audit.EntityUser, req.UserID, req.AppID))

	dto, err := h.converter.User(r.Context(), u, req.AppID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteSingle(w, r, &dto)
}

func (h *Handle) UnassignAppUser(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "appId", "userId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.filter.CheckSuperuser(access.CallerFrom(r.Context())); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	appID, userID := ids[0], ids[1]

	if err := h.assignmentService.UnassignAppUser(r.Context(), appID, userID); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UnassignApp, audit.EntityUser, userID, appID))
	convert.WriteDeleted(w, r)
}

func (h *Handle) AssignRolePermission(w http.ResponseWriter, r *http.Request) {
	var req RolePermissionRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	role, _, err := h.assignmentService.RolePermission(r.Context(), req.RoleID, req.PermissionID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.filter.CheckScoped(access.CallerFrom(r.Context()), access.ResourceRole, access.ActionUpdate, role.AppID); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	if err := h.assignmentService.AssignRolePermission(r.Context(), req.RoleID, req.PermissionID); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.AssignPermission, audit.EntityRole, role.ID, role.AppID).
		WithMetadata("permission_id", req.PermissionID))

	dto, err := h.converter.Role(r.Context(), role, role.AppID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteSingle(w, r, &dto)
}

func (h *Handle) UnassignRolePermission(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "roleId", "permissionId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	roleID, permissionID := ids[0], ids[1]

	caller := access.CallerFrom(r.Context())
	appID := int64(0)
	if !h.filter.IsSuperuser(caller) {
		role, _, err := h.assignmentService.RolePermission(r.Context(), roleID, permissionID)
		if err != nil {
			convert.WriteError(w, r, err)
			return
		}
		if err := h.filter.CheckScoped(caller, access.ResourceRole, access.ActionUpdate, role.AppID); err != nil {
			convert.WriteError(w, r, err)
			return
		}
		appID = role.AppID
	}

	if err := h.assignmentService.UnassignRolePermission(r.Context(), roleID, permissionID); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UnassignPermission, audit.EntityRole, roleID, appID).
		WithMetadata("permission_id", permissionID))
	convert.WriteDeleted(w, r)
}

func (h *Handle) AssignUserRole(w http.ResponseWriter, r *http.Request) {
	var req UserRoleRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.filter.CheckScoped(access.CallerFrom(r.Context()), access.ResourceUser, access.ActionUpdate, req.AppID); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	u, err := h.assignmentService.AssignUserRole(r.Context(), req.AppID, req.UserID, req.RoleID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.AssignRole, audit.EntityUser, req.UserID, req.AppID).
		WithMetadata("role_id", req.RoleID))

	dto, err := h.converter.User(r.Context(), u, req.AppID)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	convert.WriteSingle(w, r, &dto)
}

func (h *Handle) UnassignUserRole(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "appId", "userId", "roleId")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	appID, userID, roleID := ids[0], ids[1], ids[2]

	if err := h.filter.CheckScoped(access.CallerFrom(r.Context()), access.ResourceUser, access.ActionUpdate, appID); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.assignmentService.UnassignUserRole(r.Context(), appID, userID, roleID); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UnassignRole, audit.EntityUser, userID, appID).
		WithMetadata("role_id", roleID))
	convert.WriteDeleted(w, r)
}
