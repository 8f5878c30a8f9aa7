package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by a connection pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool, pool: pool}
}

// WithTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Warn("Failed to rollback transaction", "error", rbErr)
		}
	}()

	if err := fn(&PostgresStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.FromPostgres(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// notFound translates pgx.ErrNoRows into ErrNotFound
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// execOne runs a statement that must touch exactly one live row
func (s *PostgresStore) execOne(ctx context.Context, query string, args ...interface{}) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return apperrors.FromPostgres(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const appColumns = `id, name, COALESCE(description, ''), COALESCE(redirect_url, ''), created_date, updated_date, deleted_date`

func scanApp(row pgx.Row) (App, error) {
	var a App
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.RedirectURL, &a.CreatedDate, &a.UpdatedDate, &a.DeletedDate)
	return a, err
}

// CreateApp inserts a new app
func (s *PostgresStore) CreateApp(ctx context.Context, app App) (App, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO apps (name, description, redirect_url)
		VALUES ($1, $2, $3)
		RETURNING `+appColumns,
		app.Name, app.Description, app.RedirectURL)
	created, err := scanApp(row)
	if err != nil {
		return App{}, apperrors.FromPostgres(fmt.Errorf("failed to create app: %w", err))
	}
	return created, nil
}

// ReadApps lists live apps ordered by name
func (s *PostgresStore) ReadApps(ctx context.Context) ([]App, error) {
	rows, err := s.db.Query(ctx, `SELECT `+appColumns+` FROM apps WHERE deleted_date IS NULL ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to read apps: %w", err)
	}
	defer rows.Close()

	var apps []App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// ReadApp reads a live app by ID
func (s *PostgresStore) ReadApp(ctx context.Context, id int64) (App, error) {
	a, err := scanApp(s.db.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE id = $1 AND deleted_date IS NULL`, id))
	return a, notFound(err)
}

// ReadAppByName reads a live app by its unique name
func (s *PostgresStore) ReadAppByName(ctx context.Context, name string) (App, error) {
	a, err := scanApp(s.db.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE name = $1 AND deleted_date IS NULL`, name))
	return a, notFound(err)
}

// UpdateApp updates name, description and redirect URL
func (s *PostgresStore) UpdateApp(ctx context.Context, app App) (App, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE apps SET name = $2, description = $3, redirect_url = $4, updated_date = now()
		WHERE id = $1 AND deleted_date IS NULL
		RETURNING `+appColumns,
		app.ID, app.Name, app.Description, app.RedirectURL)
	updated, err := scanApp(row)
	if err != nil {
		return App{}, apperrors.FromPostgres(notFound(err))
	}
	return updated, nil
}

// SoftDeleteApp marks an app deleted
func (s *PostgresStore) SoftDeleteApp(ctx context.Context, id int64) error {
	return s.execOne(ctx, `UPDATE apps SET deleted_date = now() WHERE id = $1 AND deleted_date IS NULL`, id)
}

// HardDeleteApp removes an app; fails while roles, permissions or assignments reference it
func (s *PostgresStore) HardDeleteApp(ctx context.Context, id int64) error {
	return s.execOne(ctx, `DELETE FROM apps WHERE id = $1`, id)
}

// RestoreApp clears the deleted marker
func (s *PostgresStore) RestoreApp(ctx context.Context, id int64) (App, error) {
	a, err := scanApp(s.db.QueryRow(ctx, `
		UPDATE apps SET deleted_date = NULL, updated_date = now()
		WHERE id = $1
		RETURNING `+appColumns, id))
	return a, notFound(err)
}
