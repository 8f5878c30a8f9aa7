package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-ums/pkg/access"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/store"
	"github.com/tendant/simple-ums/pkg/tokengenerator"
)

const DefaultGuestRole = "GUEST"

type Options struct {
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	GuestRole          string
}

// LoginService owns the account flows that run before a caller has a bearer
// token: sign up, login, refresh, logout, reset and email validation.
type LoginService struct {
	store      store.Store
	codec      tokengenerator.Codec
	hasher     PasswordHasher
	aggregator *access.Aggregator
	opts       Options
}

func NewLoginService(s store.Store, codec tokengenerator.Codec, hasher PasswordHasher, opts Options) *LoginService {
	if opts.AccessTokenExpiry <= 0 {
		opts.AccessTokenExpiry = tokengenerator.DefaultAccessTokenExpiry
	}
	if opts.RefreshTokenExpiry <= 0 {
		opts.RefreshTokenExpiry = tokengenerator.DefaultRefreshTokenExpiry
	}
	if opts.GuestRole == "" {
		opts.GuestRole = DefaultGuestRole
	}
	return &LoginService{
		store:      s,
		codec:      codec,
		hasher:     hasher,
		aggregator: access.NewAggregator(s),
		opts:       opts,
	}
}

type CreateUserParams struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Addresses []store.Address
}

// LoginResult is returned by Login and Refresh
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         store.User
	AppID        int64
}

// ReadApp returns the app or NotFound carrying its ID.
func (s *LoginService) ReadApp(ctx context.Context, appID int64) (store.App, error) {
	app, err := s.store.ReadApp(ctx, appID)
	if errors.Is(err, store.ErrNotFound) {
		return store.App{}, apperrors.NotFound("App", appID)
	}
	return app, err
}

// CreateUser signs a user up in appID. The user starts PENDING, is assigned to
// the app and receives the app's guest role, which is created on first use.
func (s *LoginService) CreateUser(ctx context.Context, appID int64, params CreateUserParams) (store.User, error) {
	if params.Password == "" {
		return store.User{}, apperrors.Missing("password", "User")
	}
	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return store.User{}, apperrors.Internal(err, "failed to hash password")
	}

	var created store.User
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.ReadApp(ctx, appID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.NotFound("App", appID)
			}
			return err
		}

		user, err := tx.CreateUser(ctx, store.User{
			FirstName: params.FirstName,
			LastName:  params.LastName,
			Email:     params.Email,
			Password:  hash,
			Status:    &store.StatusType{Name: store.StatusPending},
			Addresses: params.Addresses,
		})
		if err != nil {
			return err
		}
		if _, err := tx.AssignAppUser(ctx, appID, user.ID); err != nil {
			return err
		}

		guest, err := s.guestRole(ctx, tx, appID)
		if err != nil {
			return err
		}
		if err := tx.AssignUserRole(ctx, appID, user.ID, guest.ID); err != nil {
			return err
		}
		created = user
		return nil
	})
	if err != nil {
		return store.User{}, err
	}

	slog.Info("User created", "user_id", created.ID, "app_id", appID)
	return created, nil
}

func (s *LoginService) guestRole(ctx context.Context, tx store.Store, appID int64) (store.Role, error) {
	role, err := tx.ReadRoleByName(ctx, appID, s.opts.GuestRole)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Role{}, err
	}
	slog.Info("Creating guest role", "app_id", appID, "role", s.opts.GuestRole)
	return tx.CreateRole(ctx, store.Role{AppID: appID, Name: s.opts.GuestRole, Description: "Default role of new users"})
}

func (s *LoginService) appUser(ctx context.Context, appID int64, email string) (store.User, error) {
	user, err := s.store.ReadAppUserByEmail(ctx, appID, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, apperrors.NotFound("User", email)
	}
	return user, err
}

// Login checks the credentials of a user assigned to appID and issues a token
// pair carrying the roles and permissions the user holds in that app.
func (s *LoginService) Login(ctx context.Context, appID int64, email, password string) (LoginResult, error) {
	if email == "" {
		return LoginResult{}, apperrors.Missing("email", "Login")
	}
	if password == "" {
		return LoginResult{}, apperrors.Missing("password", "Login")
	}

	user, err := s.appUser(ctx, appID, email)
	if err != nil {
		return LoginResult{}, err
	}

	ok, err := s.hasher.Verify(password, user.Password)
	if err != nil || !ok {
		slog.Debug("Password mismatch", "user_id", user.ID, "err", err)
		return LoginResult{}, apperrors.Unauthorized("User Unauthorized")
	}
	if !user.IsActive() {
		return LoginResult{}, apperrors.UserNotActive()
	}

	accessToken, refreshToken, err := s.issue(ctx, user, appID)
	if err != nil {
		return LoginResult{}, err
	}
	if _, err := s.store.CreateToken(ctx, store.Token{
		UserID:       user.ID,
		AppID:        appID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}); err != nil {
		return LoginResult{}, fmt.Errorf("failed to save token: %w", err)
	}

	now := time.Now().UTC()
	user.LastLogin = &now
	updated, err := s.store.UpdateUser(ctx, store.User{
		ID:          user.ID,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Status:      user.Status,
		IsValidated: user.IsValidated,
		LastLogin:   user.LastLogin,
	})
	if err != nil {
		slog.Warn("Failed to update last login", "user_id", user.ID, "err", err)
		updated = user
	}

	return LoginResult{AccessToken: accessToken, RefreshToken: refreshToken, User: updated, AppID: appID}, nil
}

func (s *LoginService) issue(ctx context.Context, user store.User, appID int64) (string, string, error) {
	roles, permissions, err := s.aggregator.ForUser(ctx, user.ID, appID)
	if err != nil {
		return "", "", err
	}
	identity := tokengenerator.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		AppID:       appID,
		Roles:       roles,
		Permissions: permissions,
	}

	identity.Purpose = tokengenerator.PurposeAccess
	accessToken, _, err := s.codec.Encode(identity, s.opts.AccessTokenExpiry)
	if err != nil {
		return "", "", apperrors.Internal(err, "failed to create access token")
	}
	identity.Purpose = tokengenerator.PurposeRefresh
	refreshToken, _, err := s.codec.Encode(identity, s.opts.RefreshTokenExpiry)
	if err != nil {
		return "", "", apperrors.Internal(err, "failed to create refresh token")
	}
	return accessToken, refreshToken, nil
}

// Refresh re-issues both tokens of a live token row. Roles and permissions are
// resolved again so changes since login take effect.
func (s *LoginService) Refresh(ctx context.Context, appID int64, refreshToken string) (LoginResult, error) {
	if refreshToken == "" {
		return LoginResult{}, apperrors.Missing("refresh_token", "Refresh")
	}

	token, err := s.store.ReadTokenByRefreshToken(ctx, refreshToken)
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, apperrors.NotFound("Token", "refresh_token")
	}
	if err != nil {
		return LoginResult{}, err
	}

	identity, err := tokengenerator.DecodeFor(s.codec, refreshToken, tokengenerator.PurposeRefresh)
	if err != nil {
		return LoginResult{}, err
	}
	if identity.AppID != appID || token.AppID != appID {
		return LoginResult{}, apperrors.Unauthorized("Token was issued for another app")
	}

	user, err := s.store.ReadUser(ctx, token.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, apperrors.NotFound("User", token.UserID)
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !user.IsActive() {
		return LoginResult{}, apperrors.UserNotActive()
	}

	accessToken, newRefreshToken, err := s.issue(ctx, user, appID)
	if err != nil {
		return LoginResult{}, err
	}
	token.AccessToken = accessToken
	token.RefreshToken = newRefreshToken
	if _, err := s.store.UpdateToken(ctx, token); err != nil {
		return LoginResult{}, fmt.Errorf("failed to update token: %w", err)
	}

	return LoginResult{AccessToken: accessToken, RefreshToken: newRefreshToken, User: user, AppID: appID}, nil
}

// Logout revokes the live token row holding accessToken.
func (s *LoginService) Logout(ctx context.Context, appID int64, accessToken string) (store.Token, error) {
	if accessToken == "" {
		return store.Token{}, apperrors.Missing("access_token", "Logout")
	}
	token, err := s.store.ReadTokenByAccessToken(ctx, accessToken)
	if errors.Is(err, store.ErrNotFound) {
		return store.Token{}, apperrors.NotFound("Token", "access_token")
	}
	if err != nil {
		return store.Token{}, err
	}
	if token.AppID != appID {
		return store.Token{}, apperrors.Unauthorized("Token was issued for another app")
	}
	if err := s.store.RevokeToken(ctx, token.ID); err != nil {
		return store.Token{}, err
	}
	return token, nil
}

// Reset sets a new password and marks the user validated and active.
func (s *LoginService) Reset(ctx context.Context, appID int64, email, password string) (store.User, error) {
	if password == "" {
		return store.User{}, apperrors.Missing("password", "Reset")
	}
	user, err := s.appUser(ctx, appID, email)
	if err != nil {
		return store.User{}, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return store.User{}, apperrors.Internal(err, "failed to hash password")
	}

	var updated store.User
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.UpdateUserPassword(ctx, user.ID, hash); err != nil {
			return err
		}
		updated, err = s.activate(ctx, tx, user)
		return err
	})
	return updated, err
}

func (s *LoginService) activate(ctx context.Context, tx store.Store, user store.User) (store.User, error) {
	return tx.UpdateUser(ctx, store.User{
		ID:          user.ID,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Status:      &store.StatusType{Name: store.StatusActive},
		IsValidated: true,
		LastLogin:   user.LastLogin,
	})
}

// InitUser looks up the app and a user assigned to it, for the validate and
// reset init flows which then email the user.
func (s *LoginService) InitUser(ctx context.Context, appID int64, email string) (store.App, store.User, error) {
	if email == "" {
		return store.App{}, store.User{}, apperrors.Missing("email", "User")
	}
	app, err := s.ReadApp(ctx, appID)
	if err != nil {
		return store.App{}, store.User{}, err
	}
	user, err := s.appUser(ctx, appID, email)
	if err != nil {
		return store.App{}, store.User{}, err
	}
	return app, user, nil
}

// ValidateExit consumes a validation token and activates the user.
func (s *LoginService) ValidateExit(ctx context.Context, appID int64, tokenStr string) (store.User, error) {
	identity, err := s.exitIdentity(tokenStr, appID, tokengenerator.PurposeValidate)
	if err != nil {
		return store.User{}, err
	}
	user, err := s.appUser(ctx, appID, identity.Email)
	if err != nil {
		return store.User{}, err
	}
	if user.ID != identity.UserID {
		return store.User{}, apperrors.Unauthorized("Token does not match user")
	}
	return s.activate(ctx, s.store, user)
}

// ResetExit checks a reset token and returns the email to reset.
func (s *LoginService) ResetExit(ctx context.Context, appID int64, tokenStr string) (string, error) {
	identity, err := s.exitIdentity(tokenStr, appID, tokengenerator.PurposeReset)
	if err != nil {
		return "", err
	}
	if _, err := s.appUser(ctx, appID, identity.Email); err != nil {
		return "", err
	}
	return identity.Email, nil
}

func (s *LoginService) exitIdentity(tokenStr string, appID int64, purpose tokengenerator.Purpose) (*tokengenerator.Identity, error) {
	if tokenStr == "" {
		return nil, apperrors.Missing("token", "User")
	}
	identity, err := tokengenerator.DecodeFor(s.codec, tokenStr, purpose)
	if err != nil {
		return nil, err
	}
	if identity.AppID != appID {
		return nil, apperrors.Unauthorized("Token was issued for another app")
	}
	return identity, nil
}

// Authenticate resolves the caller of a bearer request. The token must decode
// as an access token and still be live in the token table.
func (s *LoginService) Authenticate(ctx context.Context, accessToken string) (*access.Caller, error) {
	identity, err := tokengenerator.DecodeFor(s.codec, accessToken, tokengenerator.PurposeAccess)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.ReadTokenByAccessToken(ctx, accessToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Unauthorized("Token is revoked or unknown")
		}
		return nil, err
	}
	return &access.Caller{
		UserID:      identity.UserID,
		Email:       identity.Email,
		AppID:       identity.AppID,
		Roles:       identity.Roles,
		Permissions: identity.Permissions,
	}, nil
}
