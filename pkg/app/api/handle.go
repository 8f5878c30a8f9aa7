package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/app"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/convert"
)

type AppRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	RedirectURL string `json:"redirect_url" validate:"omitempty,url"`
}

func (req AppRequest) params() app.AppParams {
	return app.AppParams{Name: req.Name, Description: req.Description, RedirectURL: req.RedirectURL}
}

type Handle struct {
	appService *app.AppService
	converter  *convert.Converter
	filter     *access.Filter
	dispatcher *audit.Dispatcher
}

func NewHandle(appService *app.AppService, converter *convert.Converter, filter *access.Filter, dispatcher *audit.Dispatcher) *Handle {
	return &Handle{
		appService: appService,
		converter:  converter,
		filter:     filter,
		dispatcher: dispatcher,
	}
}

// Routes are mounted under /api/v1/apps
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

func (h *Handle) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.appService.FindApps(r.Context())
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	apps = h.filter.FilterApps(access.CallerFrom(r.Context()), apps)
	apps, page := convert.Paginate(apps, convert.ParsePage(r))
	convert.WriteList(w, r, h.converter.Apps(apps), page)
}

func (h *Handle) Get(w http.ResponseWriter, r *http.Request) {
	id, err := convert.PathID(r, "id")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.filter.CheckScoped(access.CallerFrom(r.Context()), access.ResourceApp, access.ActionRead, id); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	found, err := h.appService.GetApp(r.Context(), id)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	dto := h.converter.App(found)
	convert.WriteSingle(w, r, &dto)
}

// Create handles POST /. Only a superuser creates tenants.
func (h *Handle) Create(w http.ResponseWriter, r *http.Request) {
	var req AppRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.filter.CheckSuperuser(access.CallerFrom(r.Context())); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	created, err := h.appService.CreateApp(r.Context(), req.params())
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.CreateApp, audit.EntityApp, created.ID, created.ID))

	dto := h.converter.App(created)
	convert.WriteSingle(w, r, &dto)
}

func (h *Handle) Update(w http.ResponseWriter, r *http.Request) {
	id, err := convert.PathID(r, "id")
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	var req AppRequest
	if err := convert.Bind(r, &req); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	if err := h.filter.CheckScoped(access.CallerFrom(r.Context()), access.ResourceApp, access.ActionUpdate, id); err != nil {
		convert.WriteError(w, r, err)
		return
	}

	updated, err := h.appService.UpdateApp(r.Context(), id, req.params())
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.UpdateApp, audit.EntityApp, updated.ID, updated.ID))

	dto := h.converter.App(updated)
	convert.WriteSingle(w, r, &dto)
}

// superuserID parses {id} and checks the caller is a superuser.
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

func (h *Handle) SoftDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.superuserID(w, r)
	if !ok {
		return
	}
	if err := h.appService.SoftDeleteApp(r.Context(), id); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.SoftDeleteApp, audit.EntityApp, id, id))
	convert.WriteDeleted(w, r)
}

func (h *Handle) HardDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.superuserID(w, r)
	if !ok {
		return
	}
	if err := h.appService.HardDeleteApp(r.Context(), id); err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.HardDeleteApp, audit.EntityApp, id, id))
	convert.WriteDeleted(w, r)
}

func (h *Handle) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.superuserID(w, r)
	if !ok {
		return
	}
	restored, err := h.appService.RestoreApp(r.Context(), id)
	if err != nil {
		convert.WriteError(w, r, err)
		return
	}
	h.dispatcher.Dispatch(audit.NewEvent(r, audit.RestoreApp, audit.EntityApp, id, id))

	dto := h.converter.App(restored)
	convert.WriteSingle(w, r, &dto)
}
