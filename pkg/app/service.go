// Package app manages the tenants of the system. Every role, permission and
// role assignment is scoped to one app.
package app

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/tendant/simple-ums/pkg/errors"
	"github.com/tendant/simple-ums/pkg/store"
)

type AppService struct {
	store store.AppRepository
}

func NewAppService(s store.AppRepository) *AppService {
	return &AppService{store: s}
}

// AppParams carries the writable fields of an app
type AppParams struct {
	Name        string
	Description string
	RedirectURL string
}

func notFound(err error, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("App", id)
	}
	return err
}

func (s *AppService) FindApps(ctx context.Context) ([]store.App, error) {
	return s.store.ReadApps(ctx)
}

// CreateApp fails with a conflict when the name is taken.
func (s *AppService) CreateApp(ctx context.Context, params AppParams) (store.App, error) {
	if params.Name == "" {
		return store.App{}, apperrors.Missing("name", "App")
	}
	created, err := s.store.CreateApp(ctx, store.App{
		Name:        params.Name,
		Description: params.Description,
		RedirectURL: params.RedirectURL,
	})
	if err != nil {
		return store.App{}, err
	}
	slog.Info("App created", "app_id", created.ID, "name", created.Name)
	return created, nil
}

func (s *AppService) GetApp(ctx context.Context, id int64) (store.App, error) {
	a, err := s.store.ReadApp(ctx, id)
	if err != nil {
		return store.App{}, notFound(err, id)
	}
	return a, nil
}

// GetAppByName is used by bootstrap to find the superuser app
func (s *AppService) GetAppByName(ctx context.Context, name string) (store.App, error) {
	a, err := s.store.ReadAppByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return store.App{}, apperrors.NotFound("App", name)
	}
	return a, err
}

func (s *AppService) UpdateApp(ctx context.Context, id int64, params AppParams) (store.App, error) {
	if params.Name == "" {
		return store.App{}, apperrors.Missing("name", "App")
	}
	updated, err := s.store.UpdateApp(ctx, store.App{
		ID:          id,
		Name:        params.Name,
		Description: params.Description,
		RedirectURL: params.RedirectURL,
	})
	if err != nil {
		return store.App{}, notFound(err, id)
	}
	return updated, nil
}

func (s *AppService) SoftDeleteApp(ctx context.Context, id int64) error {
	return notFound(s.store.SoftDeleteApp(ctx, id), id)
}

// HardDeleteApp fails with a conflict while users, roles or permissions still
// reference the app.
func (s *AppService) HardDeleteApp(ctx context.Context, id int64) error {
	return notFound(s.store.HardDeleteApp(ctx, id), id)
}

func (s *AppService) RestoreApp(ctx context.Context, id int64) (store.App, error) {
	a, err := s.store.RestoreApp(ctx, id)
	if err != nil {
		return store.App{}, notFound(err, id)
	}
	return a, nil
}
