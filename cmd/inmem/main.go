// Package main runs the user management service without a database. Every
// record lives in memory and is lost when the process stops, so it suits
// local development and demos. Use cmd/ums against PostgreSQL otherwise.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-ums/pkg/audit"
	"github.com/tendant/simple-ums/pkg/bootstrap"
	"github.com/tendant/simple-ums/pkg/login"
	"github.com/tendant/simple-ums/pkg/notification"
	"github.com/tendant/simple-ums/pkg/router"
	"github.com/tendant/simple-ums/pkg/store"
	"github.com/tendant/simple-ums/pkg/tokengenerator"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtSecret = "inmem-dev-secret-change-in-production"
	baseURL   = "http://localhost:3000"
	issuer    = "inmem-ums"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting in-memory user management service (no database required)")
	slog.Info(strings.Repeat("=", 60))

	repo := store.NewInMemoryStore()
	hasher := login.NewBcryptHasher(bcrypt.DefaultCost)

	result, err := bootstrap.BootstrapAdmin(context.Background(), bootstrap.AdminBootstrapConfig{
		AppName:     "ums-admin",
		AdminEmail:  "admin@example.com",
		Store:       repo,
		Hasher:      hasher,
		RedirectURL: baseURL,
	})
	if err != nil {
		slog.Error("Failed seeding admin", "err", err)
		os.Exit(1)
	}
	bootstrap.PrintBootstrapResult(os.Stdout, result)

	dispatcher := audit.NewDispatcher(audit.NewLogSink(logger), audit.Options{LogFailures: true})
	defer dispatcher.Shutdown(audit.DefaultTimeout)

	cfg := router.NewConfig(router.Options{
		Store:                repo,
		Codec:                tokengenerator.NewJwtCodec(jwtSecret, issuer, issuer),
		Hasher:               hasher,
		Sender:               notification.LogSender{},
		Dispatcher:           dispatcher,
		BaseURL:              baseURL,
		SuperuserAppID:       result.App.ID,
		BasicAuthCredentials: map[string]string{"ums": "pwd"},
	})

	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)
	router.SetupRoutes(server.R, cfg)

	slog.Info("Basic auth credentials for sign up and login", "user", "ums", "password", "pwd")
	server.Run()
}
