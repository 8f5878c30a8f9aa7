// Command inituser seeds the admin app, the superuser role with its
// permissions and the first admin user. Running it again is a no-op.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-ums/pkg/bootstrap"
	"github.com/tendant/simple-ums/pkg/config"
	"github.com/tendant/simple-ums/pkg/login"
	"github.com/tendant/simple-ums/pkg/store"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file loaded before the environment")
	email := flag.String("email", "", "Admin email (defaults to ADMIN_EMAIL)")
	password := flag.String("password", "", "Admin password (defaults to ADMIN_PASSWORD, generated when both are empty)")
	appName := flag.String("app", "", "Admin app name (defaults to BOOTSTRAP_APP_NAME)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	bootstrapCfg := bootstrap.AdminBootstrapConfig{
		AppName:       firstNonEmpty(*appName, cfg.BootstrapConfig.AppName),
		RedirectURL:   cfg.BootstrapConfig.RedirectURL,
		SuperuserRole: cfg.SecurityConfig.SuperuserRole,
		AdminEmail:    firstNonEmpty(*email, cfg.BootstrapConfig.AdminEmail),
		AdminPassword: firstNonEmpty(*password, cfg.BootstrapConfig.AdminPassword),
	}

	dbConfig := cfg.DatabaseConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(1)
	}
	defer pool.Close()

	bootstrapCfg.Store = store.NewPostgresStore(pool)
	bootstrapCfg.Hasher = login.NewBcryptHasher(bcrypt.DefaultCost)

	result, err := bootstrap.BootstrapAdmin(context.Background(), bootstrapCfg)
	if err != nil {
		slog.Error("Admin bootstrap failed", "err", err)
		os.Exit(1)
	}

	bootstrap.LogBootstrapSummary(result)
	if !(result.AppCreated || result.RoleCreated || result.UserCreated || len(result.PermissionsCreated) > 0) {
		fmt.Println("Nothing to do, the admin app, role and user already exist.")
		return
	}
	bootstrap.PrintBootstrapResult(os.Stdout, result)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
