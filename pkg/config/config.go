package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/sosodev/duration"
	"github.com/tendant/chi-demo/app"
)

type Config struct {
	BaseUrl         string `env:"BASE_URL" env-default:"http://localhost:4000"`
	AppConfig       app.AppConfig
	DatabaseConfig  DatabaseConfig
	JwtConfig       JwtConfig
	EmailConfig     EmailConfig
	AuditConfig     AuditConfig
	RateLimitConfig RateLimitConfig
	SecurityConfig  SecurityConfig
	BootstrapConfig BootstrapConfig
}

// Load reads envFile when it exists, then the environment. An empty envFile
// skips the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			slog.Info("No .env file found", "path", envFile)
		} else {
			slog.Info("Configuration loaded from .env file", "path", envFile)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values cleanenv cannot check by itself
func (c Config) Validate() error {
	var errs []error
	if c.JwtConfig.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	for name, value := range map[string]string{
		"ACCESS_TOKEN_EXPIRY":   c.JwtConfig.AccessTokenExpiry,
		"REFRESH_TOKEN_EXPIRY":  c.JwtConfig.RefreshTokenExpiry,
		"VALIDATE_TOKEN_EXPIRY": c.JwtConfig.ValidateTokenExpiry,
		"RESET_TOKEN_EXPIRY":    c.JwtConfig.ResetTokenExpiry,
		"AUDIT_TIMEOUT":         c.AuditConfig.Timeout,
		"RATELIMIT_BUCKET_TTL":  c.RateLimitConfig.BucketTTL,
	} {
		if _, err := ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.AuditConfig.Sink != AuditSinkPostgres && c.AuditConfig.Sink != AuditSinkLog {
		errs = append(errs, fmt.Errorf("AUDIT_SINK: unknown sink %q", c.AuditConfig.Sink))
	}
	if c.SecurityConfig.SuperuserRole == "" {
		errs = append(errs, errors.New("SUPERUSER_ROLE must not be empty"))
	}
	return errors.Join(errs...)
}

// ParseDuration accepts ISO-8601 durations first, then Go durations
func ParseDuration(s string) (time.Duration, error) {
	if d, err := duration.Parse(s); err == nil {
		return d.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}

// mustDuration is for values Validate has already accepted
func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
