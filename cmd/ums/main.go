package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/bootstrap"
	"github.com/tendant/simple-ums/pkg/config"
	"github.com/tendant/simple-ums/pkg/login"
	"github.com/tendant/simple-ums/pkg/metrics"
	"github.com/tendant/simple-ums/pkg/router"
	"github.com/tendant/simple-ums/pkg/store"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file loaded before the environment")
	seed := flag.Bool("bootstrap", true, "Create the admin app, role and user on startup when missing")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(-1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseConfig.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", cfg.DatabaseConfig.Database, "host", cfg.DatabaseConfig.Host, "port", cfg.DatabaseConfig.Port, "user", cfg.DatabaseConfig.User, "schema", cfg.DatabaseConfig.Schema)
		os.Exit(-1)
	}
	defer pool.Close()

	repo := store.NewPostgresStore(pool)
	hasher := login.NewBcryptHasher(bcrypt.DefaultCost)

	var adminAppID int64
	if *seed {
		result, err := bootstrap.BootstrapAdmin(ctx, bootstrap.AdminBootstrapConfig{
			AppName:       cfg.BootstrapConfig.AppName,
			RedirectURL:   cfg.BootstrapConfig.RedirectURL,
			SuperuserRole: cfg.SecurityConfig.SuperuserRole,
			AdminEmail:    cfg.BootstrapConfig.AdminEmail,
			AdminPassword: cfg.BootstrapConfig.AdminPassword,
			Store:         repo,
			Hasher:        hasher,
		})
		if err != nil {
			slog.Error("Admin bootstrap failed", "err", err)
			os.Exit(-1)
		}
		bootstrap.PrintBootstrapResult(os.Stdout, result)
		bootstrap.LogBootstrapSummary(result)
		adminAppID = result.App.ID
	} else {
		adminApp, err := repo.ReadAppByName(ctx, cfg.BootstrapConfig.AppName)
		if err != nil {
			slog.Warn("Admin app not found, superuser access disabled", "app", cfg.BootstrapConfig.AppName, "err", err)
		} else {
			adminAppID = adminApp.ID
		}
	}

	m := metrics.NewMetrics(prometheus.NewRegistry())

	var sink audit.Sink = audit.NewStoreSink(repo)
	if cfg.AuditConfig.Sink == config.AuditSinkLog {
		sink = audit.NewLogSink(logger)
	}
	auditOpts := cfg.AuditConfig.ToOptions()
	auditOpts.Events = m.AuditEventsTotal
	auditOpts.Tasks = m.BackgroundTasksTotal
	dispatcher := audit.NewDispatcher(sink, auditOpts)
	defer func() {
		if err := dispatcher.Shutdown(auditOpts.Timeout); err != nil {
			slog.Warn("Audit dispatcher did not drain", "err", err)
		}
	}()

	sender, err := cfg.EmailConfig.Sender()
	if err != nil {
		slog.Error("Failed initialize email sender", "err", err)
		os.Exit(-1)
	}

	opts := router.Options{
		Store:                repo,
		Codec:                cfg.JwtConfig.Codec(),
		Hasher:               hasher,
		Sender:               sender,
		Dispatcher:           dispatcher,
		BaseURL:              cfg.BaseUrl,
		AccessTokenExpiry:    cfg.JwtConfig.AccessTTL(),
		RefreshTokenExpiry:   cfg.JwtConfig.RefreshTTL(),
		ValidateTokenExpiry:  cfg.JwtConfig.ValidateTTL(),
		ResetTokenExpiry:     cfg.JwtConfig.ResetTTL(),
		SuperuserRole:        cfg.SecurityConfig.SuperuserRole,
		SuperuserAppID:       adminAppID,
		GuestRole:            cfg.SecurityConfig.GuestRole,
		BasicAuthCredentials: cfg.SecurityConfig.BasicAuthCredentials(),
		Metrics:              m,
	}
	if cfg.RateLimitConfig.Enabled {
		rl := cfg.RateLimitConfig.ToConfig()
		opts.RateLimit = &rl
		slog.Info("Rate limiting configured", "rps", rl.RequestsPerSecond, "burst", rl.Burst)
	}

	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)
	router.SetupRoutes(server.R, router.NewConfig(opts))

	server.Run()
}
