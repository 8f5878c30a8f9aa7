package bootstrap

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// PrintBootstrapResult writes a summary for the operator. Nothing is printed
// when every record already existed.
func PrintBootstrapResult(w io.Writer, result *AdminBootstrapResult) {
	if result == nil || !(result.AppCreated || result.RoleCreated || result.UserCreated || len(result.PermissionsCreated) > 0) {
		return
	}

	border := strings.Repeat("=", 80)
	fmt.Fprintf(w, "\n%s\nADMIN BOOTSTRAP COMPLETED\n%s\n", border, border)

	fmt.Fprintf(w, "\nApp:   %s (id %d)%s\n", result.App.Name, result.App.ID, created(result.AppCreated))
	fmt.Fprintf(w, "Role:  %s (id %d)%s\n", result.Role.Name, result.Role.ID, created(result.RoleCreated))
	if len(result.PermissionsCreated) > 0 {
		fmt.Fprintf(w, "Permissions created: %s\n", strings.Join(result.PermissionsCreated, ", "))
	}

	fmt.Fprintf(w, "\nAdmin: %s (id %d)%s\n", result.User.Email, result.User.ID, created(result.UserCreated))
	if result.UserCreated {
		if result.Password != "" {
			fmt.Fprintf(w, "Password: %s\n", result.Password)
			fmt.Fprintln(w, "\nTHIS PASSWORD WILL NOT BE DISPLAYED AGAIN. Change it after the first login.")
		} else {
			fmt.Fprintln(w, "Password: (configured via ADMIN_PASSWORD)")
			fmt.Fprintln(w, "\nRemove ADMIN_PASSWORD from the environment after the first login.")
		}
	}
	fmt.Fprintf(w, "%s\n\n", border)
}

func created(ok bool) string {
	if ok {
		return " created"
	}
	return " already existed"
}

// LogBootstrapSummary logs the result without the password
func LogBootstrapSummary(result *AdminBootstrapResult) {
	if result == nil {
		return
	}
	slog.Info("Admin bootstrap summary",
		"app_id", result.App.ID,
		"app", result.App.Name,
		"role", result.Role.Name,
		"permissions_created", result.PermissionsCreated,
		"admin_email", result.User.Email,
		"user_id", result.User.ID,
		"user_created", result.UserCreated,
		"password_from_env", result.PasswordFromEnv,
	)
}
