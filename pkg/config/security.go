package config

type SecurityConfig struct {
	SuperuserRole string `env:"SUPERUSER_ROLE" env-default:"SUPERUSER"`
	GuestRole     string `env:"GUEST_ROLE" env-default:"GUEST"`

	// Credentials guarding the sign up and login routes
	BasicAuthUser     string `env:"BASIC_AUTH_USER" env-default:"ums"`
	BasicAuthPassword string `env:"BASIC_AUTH_PASSWORD" env-default:"pwd"`
}

// BasicAuthCredentials is the form chi's BasicAuth middleware takes
func (s SecurityConfig) BasicAuthCredentials() map[string]string {
	return map[string]string{s.BasicAuthUser: s.BasicAuthPassword}
}

type BootstrapConfig struct {
	AppName       string `env:"BOOTSTRAP_APP_NAME" env-default:"ums-admin"`
	RedirectURL   string `env:"BOOTSTRAP_REDIRECT_URL" env-default:""`
	AdminEmail    string `env:"ADMIN_EMAIL" env-default:"admin@example.com"`
	AdminPassword string `env:"ADMIN_PASSWORD" env-default:""`
}
