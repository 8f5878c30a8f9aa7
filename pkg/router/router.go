package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	appapi "github.com/tendant/simple-ums/pkg/app/api"
	assignmentapi "github.com/tendant/simple-ums/pkg/assignment/api"
	"github.com/tendant/simple-ums/pkg/login"
	loginapi "github.com/tendant/simple-ums/pkg/login/api"
	"github.com/tendant/simple-ums/pkg/metrics"
	permissionapi "github.com/tendant/simple-ums/pkg/permission/api"
	"github.com/tendant/simple-ums/pkg/ratelimit"
	roleapi "github.com/tendant/simple-ums/pkg/role/api"
	userapi "github.com/tendant/simple-ums/pkg/user/api"
)

const (
	APIPrefix      = "/api/v1"
	BasicAuthRealm = "simple-ums"
)

// Config holds the handlers and middleware the routes are built from
type Config struct {
	LoginHandle      *loginapi.Handle
	UserHandle       *userapi.Handle
	AppHandle        *appapi.Handle
	RoleHandle       *roleapi.Handle
	PermissionHandle *permissionapi.Handle
	AssignmentHandle *assignmentapi.Handle

	// Bearer authentication
	JWTAuth       *jwtauth.JWTAuth
	Authenticator login.Authenticator

	// Credentials for the sign up and login routes
	BasicAuthCredentials map[string]string

	// Optional
	RateLimit *ratelimit.Middleware
	Metrics   *metrics.Metrics
}

// SetupRoutes mounts every route of the service on router. Everything sits in
// one group so the middleware can be added to a router that already has
// routes.
func SetupRoutes(router chi.Router, cfg Config) {
	router.Group(func(router chi.Router) {
		if cfg.Metrics != nil {
			router.Use(cfg.Metrics.Middleware)
			router.Handle("/metrics", cfg.Metrics.Handler())
		}
		router.Route(APIPrefix, func(r chi.Router) {
			apiRoutes(r, cfg)
		})
	})
}

func apiRoutes(r chi.Router, cfg Config) {
	// Sign up, login and the init side of the email flows
	r.Group(func(r chi.Router) {
		r.Use(middleware.BasicAuth(BasicAuthRealm, cfg.BasicAuthCredentials))
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit.Handler)
		}
		r.Mount("/basic_app_users/user/{appId}", loginapi.BasicRoutes(cfg.LoginHandle))
	})

	// Links followed from emails
	r.Group(func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit.Handler)
		}
		r.Mount("/na_app_users/user/{appId}", loginapi.NoAuthRoutes(cfg.LoginHandle))
	})

	r.Group(func(r chi.Router) {
		r.Use(login.Verifier(cfg.JWTAuth))
		r.Use(login.Authenticated(cfg.JWTAuth))
		r.Use(login.CallerMiddleware(cfg.Authenticator))

		r.Mount("/app_users", userapi.Routes(cfg.UserHandle))
		r.Mount("/apps", appapi.Routes(cfg.AppHandle))
		r.Mount("/roles", roleapi.Routes(cfg.RoleHandle))
		r.Mount("/permissions", permissionapi.Routes(cfg.PermissionHandle))
		r.Mount("/apps_app_user", assignmentapi.AppUserRoutes(cfg.AssignmentHandle))
		r.Mount("/role_permission", assignmentapi.RolePermissionRoutes(cfg.AssignmentHandle))
		r.Mount("/app_user_role", assignmentapi.UserRoleRoutes(cfg.AssignmentHandle))
	})
}

// NewRouter returns a chi router with the standard middleware stack and all
// routes mounted. Binaries that already own a router call SetupRoutes.
func NewRouter(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	SetupRoutes(r, cfg)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
	return r
}
