package router

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/app"
	appapi "github.com/tendant/simple-ums/pkg/app/api"
	"github.com/tendant/simple-ums/pkg/assignment"
	assignmentapi "github.com/tendant/simple-ums/pkg/assignment/api"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/convert"
	"github.com/tendant/simple-ums/pkg/login"
	loginapi "github.com/tendant/simple-ums/pkg/login/api"
	"github.com/tendant/simple-ums/pkg/metrics"
	"github.com/tendant/simple-ums/pkg/notification"
	"github.com/tendant/simple-ums/pkg/permission"
	permissionapi "github.com/tendant/simple-ums/pkg/permission/api"
	"github.com/tendant/simple-ums/pkg/ratelimit"
	"github.com/tendant/simple-ums/pkg/role"
	roleapi "github.com/tendant/simple-ums/pkg/role/api"
	"github.com/tendant/simple-ums/pkg/store"
	"github.com/tendant/simple-ums/pkg/tokengenerator"
	"github.com/tendant/simple-ums/pkg/user"
	userapi "github.com/tendant/simple-ums/pkg/user/api"
)

// Options are the dependencies NewConfig builds the services from
type Options struct {
	Store      store.Store
	Codec      *tokengenerator.JwtCodec
	Hasher     login.PasswordHasher
	Sender     notification.Sender
	Dispatcher *audit.Dispatcher

	// BaseURL is where the links in validation and reset emails point
	BaseURL string

	AccessTokenExpiry   time.Duration
	RefreshTokenExpiry  time.Duration
	ValidateTokenExpiry time.Duration
	ResetTokenExpiry    time.Duration

	// SuperuserRole only bypasses checks for callers of SuperuserAppID,
	// the app BootstrapAdmin created. Zero disables the bypass.
	SuperuserRole        string
	SuperuserAppID       int64
	GuestRole            string
	BasicAuthCredentials map[string]string

	// Optional
	RateLimit *ratelimit.Config
	Metrics   *metrics.Metrics
}

// NewConfig wires services and handlers over one store.
//
// Example:
//
//	cfg := router.NewConfig(router.Options{
//	    Store:      store.NewPostgresStore(pool),
//	    Codec:      tokengenerator.NewJwtCodec(secret, "simple-ums", "simple-ums"),
//	    Hasher:     login.NewBcryptHasher(bcrypt.DefaultCost),
//	    Sender:     notification.LogSender{},
//	    Dispatcher: dispatcher,
//	})
//	router.SetupRoutes(server.R, cfg)
func NewConfig(opts Options) Config {
	if opts.Hasher == nil {
		opts.Hasher = login.NewBcryptHasher(0)
	}
	if opts.Sender == nil {
		opts.Sender = notification.LogSender{}
	}

	converter := convert.NewConverter(opts.Store)
	filter := access.NewFilter(opts.SuperuserRole, opts.SuperuserAppID)
	notifier := notification.NewNotifier(opts.Sender)
	mailer := login.NewMailer(notifier, opts.Codec, opts.BaseURL, opts.ValidateTokenExpiry, opts.ResetTokenExpiry)

	loginService := login.NewLoginService(opts.Store, opts.Codec, opts.Hasher, login.Options{
		AccessTokenExpiry:  opts.AccessTokenExpiry,
		RefreshTokenExpiry: opts.RefreshTokenExpiry,
		GuestRole:          opts.GuestRole,
	})
	userService := user.NewUserService(opts.Store, opts.Hasher)
	appService := app.NewAppService(opts.Store)
	roleService := role.NewRoleService(opts.Store).WithReservedRole(opts.SuperuserRole, opts.SuperuserAppID)
	permissionService := permission.NewPermissionService(opts.Store)
	assignmentService := assignment.NewAssignmentService(opts.Store)

	loginHandle := loginapi.NewHandle(loginService, mailer, converter, opts.Dispatcher)

	cfg := Config{
		LoginHandle:          loginHandle,
		UserHandle:           userapi.NewHandle(userService, mailer, converter, filter, opts.Dispatcher),
		AppHandle:            appapi.NewHandle(appService, converter, filter, opts.Dispatcher),
		RoleHandle:           roleapi.NewHandle(roleService, converter, filter, opts.Dispatcher),
		PermissionHandle:     permissionapi.NewHandle(permissionService, converter, filter, opts.Dispatcher),
		AssignmentHandle:     assignmentapi.NewHandle(assignmentService, converter, filter, opts.Dispatcher),
		JWTAuth:              opts.Codec.JWTAuth(),
		Authenticator:        loginService,
		BasicAuthCredentials: opts.BasicAuthCredentials,
		Metrics:              opts.Metrics,
	}

	if opts.Metrics != nil {
		loginHandle.WithLoginCounter(opts.Metrics.LoginsTotal)
	}
	if opts.RateLimit != nil {
		var limited *prometheus.CounterVec
		if opts.Metrics != nil {
			limited = opts.Metrics.RateLimitedTotal
		}
		cfg.RateLimit = ratelimit.NewMiddleware(*opts.RateLimit, limited)
	}
	return cfg
}
