package tokengenerator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

// Purpose separates tokens that share a signing key but must not be
// interchangeable.
type Purpose string

const (
	PurposeAccess   Purpose = "access"
	PurposeRefresh  Purpose = "refresh"
	PurposeValidate Purpose = "validate"
	PurposeReset    Purpose = "reset"
)

// Default token expiry durations
const (
	DefaultAccessTokenExpiry   = 15 * time.Minute
	DefaultRefreshTokenExpiry  = 24 * time.Hour
	DefaultValidateTokenExpiry = 24 * time.Hour
	DefaultResetTokenExpiry    = 1 * time.Hour
)

// Identity is what a token says about its bearer
type Identity struct {
	UserID      int64
	Email       string
	AppID       int64
	Roles       []string
	Permissions []string
	Purpose     Purpose
}

// Claims struct for JWT claims
type Claims struct {
	UserID      int64    `json:"user_id"`
	Email       string   `json:"email,omitempty"`
	AppID       int64    `json:"app_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Purpose     Purpose  `json:"purpose"`
	jwt.RegisteredClaims
}

// Codec encodes identities into tokens and back
type Codec interface {
	Encode(identity Identity, ttl time.Duration) (string, time.Time, error)
	Decode(tokenStr string) (*Identity, error)
}

// JwtCodec signs HS256 tokens
type JwtCodec struct {
	Secret   string
	Issuer   string
	Audience string
}

func NewJwtCodec(secret, issuer, audience string) *JwtCodec {
	return &JwtCodec{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
	}
}

// Encode creates a signed token for identity that expires after ttl
func (c *JwtCodec) Encode(identity Identity, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:      identity.UserID,
		Email:       identity.Email,
		AppID:       identity.AppID,
		Roles:       identity.Roles,
		Permissions: identity.Permissions,
		Purpose:     identity.Purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.Issuer,
			Subject:   fmt.Sprintf("%d", identity.UserID),
			ID:        ulid.Make().String(),
			Audience:  jwt.ClaimStrings{c.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(c.Secret))
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return "", time.Time{}, err
	}
	return ss, claims.ExpiresAt.Time, nil
}

// Decode parses and validates a token string. Expired, malformed and foreign
// tokens all fail with ErrCodeTokenInvalid.
func (c *JwtCodec) Decode(tokenStr string) (*Identity, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if c.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.Issuer))
	}
	if c.Audience != "" {
		opts = append(opts, jwt.WithAudience(c.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(c.Secret), nil
	}, opts...)
	if err != nil {
		slog.Debug("Failed parse JWT string!", "err", err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, "Invalid or expired token")
	}
	if !token.Valid {
		return nil, apperrors.New(apperrors.ErrCodeTokenInvalid, "Invalid or expired token")
	}

	return &Identity{
		UserID:      claims.UserID,
		Email:       claims.Email,
		AppID:       claims.AppID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		Purpose:     claims.Purpose,
	}, nil
}

// DecodeFor decodes the token and requires the given purpose
func DecodeFor(codec Codec, tokenStr string, purpose Purpose) (*Identity, error) {
	identity, err := codec.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if identity.Purpose != purpose {
		return nil, apperrors.Newf(apperrors.ErrCodeTokenInvalid, "Token is not a %s token", purpose)
	}
	return identity, nil
}

// JWTAuth returns the jwtauth verifier for bearer middleware sharing the
// codec's secret.
func (c *JwtCodec) JWTAuth() *jwtauth.JWTAuth {
	return jwtauth.New(jwt.SigningMethodHS256.Alg(), []byte(c.Secret), nil)
}
