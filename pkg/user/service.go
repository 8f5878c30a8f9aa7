// Package user manages user accounts once they exist. Sign up, login and the
// email driven flows live in the login package.
package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/login"
	"github.com/tendant/simple-ums/pkg/store"
)

type UserService struct {
	store  store.Store
	hasher login.PasswordHasher
}

func NewUserService(s store.Store, hasher login.PasswordHasher) *UserService {
	return &UserService{
		store:  s,
		hasher: hasher,
	}
}

// UpdateUserParams are the fields a user update may change. An empty Status
// keeps the current one. Addresses with an ID are updated, the rest added.
type UpdateUserParams struct {
	FirstName string
	LastName  string
	Status    string
	Addresses []store.Address
}

func notFound(err error, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("User", id)
	}
	return err
}

func (s *UserService) FindUsers(ctx context.Context) ([]store.User, error) {
	return s.store.ReadUsers(ctx)
}

// FindAppUsers lists the live users assigned to an existing app
func (s *UserService) FindAppUsers(ctx context.Context, appID int64) ([]store.User, error) {
	if _, err := s.store.ReadApp(ctx, appID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("App", appID)
		}
		return nil, err
	}
	return s.store.ReadAppUsers(ctx, appID)
}

func (s *UserService) GetUser(ctx context.Context, id int64) (store.User, error) {
	u, err := s.store.ReadUser(ctx, id)
	if err != nil {
		return store.User{}, notFound(err, id)
	}
	return u, nil
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	u, err := s.store.ReadUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, apperrors.NotFound("User", email)
	}
	return u, err
}

// IsAppUser reports whether the user is assigned to the app
func (s *UserService) IsAppUser(ctx context.Context, appID, userID int64) (bool, error) {
	_, err := s.store.ReadAppUser(ctx, appID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// UpdateUser changes names, status and addresses. Email and password have
// their own operations.
func (s *UserService) UpdateUser(ctx context.Context, id int64, params UpdateUserParams) (store.User, error) {
	existing, err := s.GetUser(ctx, id)
	if err != nil {
		return store.User{}, err
	}

	status := existing.Status
	if params.Status != "" {
		status = &store.StatusType{Name: params.Status}
	}
	updated, err := s.store.UpdateUser(ctx, store.User{
		ID:          id,
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		Status:      status,
		IsValidated: existing.IsValidated,
		LastLogin:   existing.LastLogin,
		Addresses:   params.Addresses,
	})
	if err != nil {
		return store.User{}, notFound(err, id)
	}
	return updated, nil
}

// UpdateEmail moves a user of appID to a new email. The old email must match.
// The user has to validate again, so the account goes back to PENDING.
func (s *UserService) UpdateEmail(ctx context.Context, appID, id int64, oldEmail, newEmail string) (store.App, store.User, error) {
	app, err := s.store.ReadApp(ctx, appID)
	if errors.Is(err, store.ErrNotFound) {
		return store.App{}, store.User{}, apperrors.NotFound("App", appID)
	}
	if err != nil {
		return store.App{}, store.User{}, err
	}
	existing, err := s.GetUser(ctx, id)
	if err != nil {
		return store.App{}, store.User{}, err
	}
	if ok, err := s.IsAppUser(ctx, appID, id); err != nil {
		return store.App{}, store.User{}, err
	} else if !ok {
		return store.App{}, store.User{}, apperrors.NotFound("App User", id)
	}
	if !strings.EqualFold(existing.Email, oldEmail) {
		return store.App{}, store.User{}, apperrors.ValidationFailed("old_email does not match the user")
	}

	var updated store.User
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.UpdateUserEmail(ctx, id, newEmail); err != nil {
			return err
		}
		updated, err = tx.UpdateUser(ctx, store.User{
			ID:          id,
			FirstName:   existing.FirstName,
			LastName:    existing.LastName,
			Status:      &store.StatusType{Name: store.StatusPending},
			IsValidated: false,
			LastLogin:   existing.LastLogin,
		})
		return err
	})
	if err != nil {
		return store.App{}, store.User{}, notFound(err, id)
	}

	slog.Info("User email changed", "user_id", id, "app_id", appID)
	return app, updated, nil
}

// UpdatePassword sets a new password. The email must match the user.
func (s *UserService) UpdatePassword(ctx context.Context, id int64, email, password string) (store.User, error) {
	if password == "" {
		return store.User{}, apperrors.Missing("password", "User")
	}
	existing, err := s.GetUser(ctx, id)
	if err != nil {
		return store.User{}, err
	}
	if !strings.EqualFold(existing.Email, email) {
		return store.User{}, apperrors.ValidationFailed("email does not match the user")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return store.User{}, apperrors.Internal(err, "failed to hash password")
	}
	if err := s.store.UpdateUserPassword(ctx, id, hash); err != nil {
		return store.User{}, notFound(err, id)
	}
	return existing, nil
}

func (s *UserService) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	err := s.store.DeleteUserAddress(ctx, userID, addressID)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("Address", addressID)
	}
	return err
}

func (s *UserService) SoftDeleteUser(ctx context.Context, id int64) error {
	return notFound(s.store.SoftDeleteUser(ctx, id), id)
}

// HardDeleteUser removes the user with its addresses and tokens. It fails
// with a conflict while the user is still assigned to an app.
func (s *UserService) HardDeleteUser(ctx context.Context, id int64) error {
	return notFound(s.store.HardDeleteUser(ctx, id), id)
}

func (s *UserService) RestoreUser(ctx context.Context, id int64) (store.User, error) {
	u, err := s.store.RestoreUser(ctx, id)
	if err != nil {
		return store.User{}, notFound(err, id)
	}
	return u, nil
}
