package config

import (
	"time"

	"github.com/tendant/simple-ums/pkg/tokengenerator"
)

// JwtConfig signs every token the service issues with one HS256 secret
type JwtConfig struct {
	Secret              string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer              string `env:"JWT_ISSUER" env-default:"simple-ums"`
	Audience            string `env:"JWT_AUDIENCE" env-default:"simple-ums"`
	AccessTokenExpiry   string `env:"ACCESS_TOKEN_EXPIRY" env-default:"PT15M"`
	RefreshTokenExpiry  string `env:"REFRESH_TOKEN_EXPIRY" env-default:"P1D"`
	ValidateTokenExpiry string `env:"VALIDATE_TOKEN_EXPIRY" env-default:"P1D"`
	ResetTokenExpiry    string `env:"RESET_TOKEN_EXPIRY" env-default:"PT1H"`
}

func (j JwtConfig) Codec() *tokengenerator.JwtCodec {
	return tokengenerator.NewJwtCodec(j.Secret, j.Issuer, j.Audience)
}

func (j JwtConfig) AccessTTL() time.Duration {
	return mustDuration(j.AccessTokenExpiry, tokengenerator.DefaultAccessTokenExpiry)
}

func (j JwtConfig) RefreshTTL() time.Duration {
	return mustDuration(j.RefreshTokenExpiry, tokengenerator.DefaultRefreshTokenExpiry)
}

func (j JwtConfig) ValidateTTL() time.Duration {
	return mustDuration(j.ValidateTokenExpiry, tokengenerator.DefaultValidateTokenExpiry)
}

func (j JwtConfig) ResetTTL() time.Duration {
	return mustDuration(j.ResetTokenExpiry, tokengenerator.DefaultResetTokenExpiry)
}
