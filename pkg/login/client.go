package login

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/convert"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

const AccessTokenCookie = "accessToken"

// Authenticator resolves a live access token into a caller
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*access.Caller, error)
}

// Verifier reads the bearer token from the Authorization header or the
// access token cookie.
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Authenticated answers 401 with the error envelope unless jwtauth verified a
// token.
func Authenticated(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				convert.WriteError(w, r, apperrors.Unauthorized("User Unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerMiddleware requires the verified token to be live in the token table
// and stores the resulting caller in the request context.
func CallerMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := jwtauth.TokenFromHeader(r)
			if raw == "" {
				raw = TokenFromCookie(r)
			}
			if raw == "" {
				convert.WriteError(w, r, apperrors.Unauthorized("User Unauthorized"))
				return
			}

			caller, err := auth.Authenticate(r.Context(), raw)
			if err != nil {
				slog.Debug("Bearer token rejected", "err", err)
				if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
					convert.WriteError(w, r, err)
					return
				}
				convert.WriteError(w, r, apperrors.Unauthorized("User Unauthorized"))
				return
			}

			slog.Debug("Caller resolved", "caller", caller)
			next.ServeHTTP(w, r.WithContext(access.WithCaller(r.Context(), caller)))
		})
	}
}
