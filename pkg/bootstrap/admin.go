// Package bootstrap seeds the superuser app of a fresh installation: the app,
// the superuser role holding every permission of that app, and an admin user
// assigned to both. Seeding is idempotent.
package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/login"
	"github.com/tendant/simple-ums/pkg/store"
)

type AdminBootstrapConfig struct {
	AppName       string
	RedirectURL   string
	SuperuserRole string

	// A blank AdminPassword gets a generated one
	AdminEmail    string
	AdminPassword string

	Store  store.Store
	Hasher login.PasswordHasher
}

type AdminBootstrapResult struct {
	App         store.App
	AppCreated  bool
	Role        store.Role
	RoleCreated bool

	// Permission names created in this run
	PermissionsCreated []string

	User        store.User
	UserCreated bool

	// Only set when the password was generated
	Password        string
	PasswordFromEnv bool
}

// Resources and actions every superuser app carries permissions for
var (
	Resources = []string{access.ResourceApp, access.ResourceUser, access.ResourceRole, access.ResourcePermission}
	Actions   = []string{access.ActionCreate, access.ActionRead, access.ActionUpdate, access.ActionDelete}
)

// BootstrapAdmin ensures the superuser app, role, permissions and admin user
// exist. Existing records are reused, never updated.
func BootstrapAdmin(ctx context.Context, cfg AdminBootstrapConfig) (*AdminBootstrapResult, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid bootstrap configuration: %w", err)
	}

	result := &AdminBootstrapResult{PasswordFromEnv: cfg.AdminPassword != ""}
	err := cfg.Store.WithTx(ctx, func(tx store.Store) error {
		var err error
		if result.App, result.AppCreated, err = ensureApp(ctx, tx, cfg); err != nil {
			return err
		}
		appID := result.App.ID
		if result.Role, result.RoleCreated, err = ensureRole(ctx, tx, appID, cfg.SuperuserRole); err != nil {
			return err
		}
		if result.PermissionsCreated, err = ensurePermissions(ctx, tx, appID, result.Role.ID); err != nil {
			return err
		}
		return ensureAdminUser(ctx, tx, cfg, result)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Admin bootstrap completed",
		"app", result.App.Name,
		"app_created", result.AppCreated,
		"role_created", result.RoleCreated,
		"permissions_created", len(result.PermissionsCreated),
		"user_created", result.UserCreated)
	return result, nil
}

func validateConfig(cfg *AdminBootstrapConfig) error {
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Hasher == nil {
		return errors.New("password hasher is required")
	}
	if cfg.AppName == "" {
		return errors.New("app name is required")
	}
	if cfg.AdminEmail == "" {
		return errors.New("admin email is required")
	}
	if cfg.SuperuserRole == "" {
		cfg.SuperuserRole = access.DefaultSuperuserRole
	}
	return nil
}

func ensureApp(ctx context.Context, tx store.Store, cfg AdminBootstrapConfig) (store.App, bool, error) {
	app, err := tx.ReadAppByName(ctx, cfg.AppName)
	if err == nil {
		return app, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.App{}, false, fmt.Errorf("failed to read app %s: %w", cfg.AppName, err)
	}
	app, err = tx.CreateApp(ctx, store.App{
		Name:        cfg.AppName,
		Description: "Superuser app",
		RedirectURL: cfg.RedirectURL,
	})
	if err != nil {
		return store.App{}, false, fmt.Errorf("failed to create app %s: %w", cfg.AppName, err)
	}
	slog.Info("Superuser app created", "app", app.Name, "id", app.ID)
	return app, true, nil
}

func ensureRole(ctx context.Context, tx store.Store, appID int64, name string) (store.Role, bool, error) {
	role, err := tx.ReadRoleByName(ctx, appID, name)
	if err == nil {
		return role, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Role{}, false, fmt.Errorf("failed to read role %s: %w", name, err)
	}
	role, err = tx.CreateRole(ctx, store.Role{AppID: appID, Name: name, Description: "Bypasses every permission check"})
	if err != nil {
		return store.Role{}, false, fmt.Errorf("failed to create role %s: %w", name, err)
	}
	slog.Info("Superuser role created", "role", role.Name, "id", role.ID)
	return role, true, nil
}

// ensurePermissions creates the missing <RESOURCE>_<ACTION> permissions and
// grants all of them to the role.
func ensurePermissions(ctx context.Context, tx store.Store, appID, roleID int64) ([]string, error) {
	granted, err := tx.ReadRolePermissions(ctx, appID, []int64{roleID})
	if err != nil {
		return nil, fmt.Errorf("failed to read role permissions: %w", err)
	}
	has := make(map[int64]bool, len(granted))
	for _, rp := range granted {
		has[rp.Permission.ID] = true
	}

	var created []string
	for _, resource := range Resources {
		for _, action := range Actions {
			name := access.PermissionName(resource, action)
			p, err := tx.ReadPermissionByName(ctx, appID, name)
			if errors.Is(err, store.ErrNotFound) {
				p, err = tx.CreatePermission(ctx, store.Permission{AppID: appID, Name: name})
				if err == nil {
					created = append(created, name)
				}
			}
			if err != nil {
				return nil, fmt.Errorf("failed to ensure permission %s: %w", name, err)
			}
			if has[p.ID] {
				continue
			}
			if err := tx.AssignRolePermission(ctx, roleID, p.ID); err != nil {
				return nil, fmt.Errorf("failed to grant permission %s: %w", name, err)
			}
		}
	}
	return created, nil
}

func ensureAdminUser(ctx context.Context, tx store.Store, cfg AdminBootstrapConfig, result *AdminBootstrapResult) error {
	appID, roleID := result.App.ID, result.Role.ID

	u, err := tx.ReadUserByEmail(ctx, cfg.AdminEmail)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		password := cfg.AdminPassword
		if password == "" {
			if password, err = generatePassword(); err != nil {
				return err
			}
			result.Password = password
		}
		hash, err := cfg.Hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		u, err = tx.CreateUser(ctx, store.User{
			FirstName:   "Admin",
			LastName:    "User",
			Email:       cfg.AdminEmail,
			Password:    hash,
			Status:      &store.StatusType{Name: store.StatusActive},
			IsValidated: true,
		})
		if err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		result.UserCreated = true
		slog.Info("Admin user created", "email", u.Email, "user_id", u.ID)
	default:
		return fmt.Errorf("failed to read admin user: %w", err)
	}
	result.User = u

	if _, err := tx.ReadAppUser(ctx, appID, u.ID); errors.Is(err, store.ErrNotFound) {
		if _, err := tx.AssignAppUser(ctx, appID, u.ID); err != nil {
			return fmt.Errorf("failed to assign admin to app: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to read app user: %w", err)
	}

	roles, err := tx.ReadUserRoles(ctx, appID, []int64{u.ID})
	if err != nil {
		return fmt.Errorf("failed to read admin roles: %w", err)
	}
	for _, ur := range roles {
		if ur.Role.ID == roleID {
			return nil
		}
	}
	if err := tx.AssignUserRole(ctx, appID, u.ID, roleID); err != nil {
		return fmt.Errorf("failed to assign superuser role: %w", err)
	}
	return nil
}

func generatePassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate admin password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
