package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

const roleColumns = `id, app_id, name, COALESCE(description, ''), created_date, updated_date, deleted_date`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.AppID, &r.Name, &r.Description, &r.CreatedDate, &r.UpdatedDate, &r.DeletedDate)
	return r, err
}

// CreateRole inserts a role into its app
func (s *PostgresStore) CreateRole(ctx context.Context, role Role) (Role, error) {
	created, err := scanRole(s.db.QueryRow(ctx, `
		INSERT INTO roles (app_id, name, description) VALUES ($1, $2, $3)
		RETURNING `+roleColumns, role.AppID, role.Name, role.Description))
	if err != nil {
		return Role{}, apperrors.FromPostgres(fmt.Errorf("failed to create role: %w", err))
	}
	return created, nil
}

// ReadRoles lists live roles, optionally restricted to one app
func (s *PostgresStore) ReadRoles(ctx context.Context, appID int64) ([]Role, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+roleColumns+` FROM roles
		WHERE deleted_date IS NULL AND ($1::bigint <= 0 OR app_id = $1::bigint)
		ORDER BY name, id`, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// ReadRole reads a live role by ID
func (s *PostgresStore) ReadRole(ctx context.Context, id int64) (Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1 AND deleted_date IS NULL`, id))
	return r, notFound(err)
}

// ReadRoleByName reads a live role by app and name
func (s *PostgresStore) ReadRoleByName(ctx context.Context, appID int64, name string) (Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx, `
		SELECT `+roleColumns+` FROM roles
		WHERE app_id = $1 AND name = $2 AND deleted_date IS NULL`, appID, name))
	return r, notFound(err)
}

// UpdateRole updates name and description
func (s *PostgresStore) UpdateRole(ctx context.Context, role Role) (Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx, `
		UPDATE roles SET name = $2, description = $3, updated_date = now()
		WHERE id = $1 AND deleted_date IS NULL
		RETURNING `+roleColumns, role.ID, role.Name, role.Description))
	if err != nil {
		return Role{}, apperrors.FromPostgres(notFound(err))
	}
	return r, nil
}

// SoftDeleteRole marks a role deleted
func (s *PostgresStore) SoftDeleteRole(ctx context.Context, id int64) error {
	return s.execOne(ctx, `UPDATE roles SET deleted_date = now() WHERE id = $1 AND deleted_date IS NULL`, id)
}

// HardDeleteRole removes a role; fails while role_permission or app_user_role rows reference it
func (s *PostgresStore) HardDeleteRole(ctx context.Context, id int64) error {
	return s.execOne(ctx, `DELETE FROM roles WHERE id = $1`, id)
}

// RestoreRole clears the deleted marker
func (s *PostgresStore) RestoreRole(ctx context.Context, id int64) (Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx, `
		UPDATE roles SET deleted_date = NULL, updated_date = now()
		WHERE id = $1
		RETURNING `+roleColumns, id))
	return r, notFound(err)
}

const permissionColumns = `id, app_id, name, COALESCE(description, ''), created_date, updated_date, deleted_date`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.AppID, &p.Name, &p.Description, &p.CreatedDate, &p.UpdatedDate, &p.DeletedDate)
	return p, err
}

// CreatePermission inserts a permission into its app
func (s *PostgresStore) CreatePermission(ctx context.Context, permission Permission) (Permission, error) {
	created, err := scanPermission(s.db.QueryRow(ctx, `
		INSERT INTO permissions (app_id, name, description) VALUES ($1, $2, $3)
		RETURNING `+permissionColumns, permission.AppID, permission.Name, permission.Description))
	if err != nil {
		return Permission{}, apperrors.FromPostgres(fmt.Errorf("failed to create permission: %w", err))
	}
	return created, nil
}

// ReadPermissions lists live permissions, optionally restricted to one app
func (s *PostgresStore) ReadPermissions(ctx context.Context, appID int64) ([]Permission, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+permissionColumns+` FROM permissions
		WHERE deleted_date IS NULL AND ($1::bigint <= 0 OR app_id = $1::bigint)
		ORDER BY name, id`, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to read permissions: %w", err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

// ReadPermission reads a live permission by ID
func (s *PostgresStore) ReadPermission(ctx context.Context, id int64) (Permission, error) {
	p, err := scanPermission(s.db.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1 AND deleted_date IS NULL`, id))
	return p, notFound(err)
}

// ReadPermissionByName reads a live permission by app and name
func (s *PostgresStore) ReadPermissionByName(ctx context.Context, appID int64, name string) (Permission, error) {
	p, err := scanPermission(s.db.QueryRow(ctx, `
		SELECT `+permissionColumns+` FROM permissions
		WHERE app_id = $1 AND name = $2 AND deleted_date IS NULL`, appID, name))
	return p, notFound(err)
}

// UpdatePermission updates name and description
func (s *PostgresStore) UpdatePermission(ctx context.Context, permission Permission) (Permission, error) {
	p, err := scanPermission(s.db.QueryRow(ctx, `
		UPDATE permissions SET name = $2, description = $3, updated_date = now()
		WHERE id = $1 AND deleted_date IS NULL
		RETURNING `+permissionColumns, permission.ID, permission.Name, permission.Description))
	if err != nil {
		return Permission{}, apperrors.FromPostgres(notFound(err))
	}
	return p, nil
}

// SoftDeletePermission marks a permission deleted
func (s *PostgresStore) SoftDeletePermission(ctx context.Context, id int64) error {
	return s.execOne(ctx, `UPDATE permissions SET deleted_date = now() WHERE id = $1 AND deleted_date IS NULL`, id)
}

// HardDeletePermission removes a permission; fails while role_permission rows reference it
func (s *PostgresStore) HardDeletePermission(ctx context.Context, id int64) error {
	return s.execOne(ctx, `DELETE FROM permissions WHERE id = $1`, id)
}

// RestorePermission clears the deleted marker
func (s *PostgresStore) RestorePermission(ctx context.Context, id int64) (Permission, error) {
	p, err := scanPermission(s.db.QueryRow(ctx, `
		UPDATE permissions SET deleted_date = NULL, updated_date = now()
		WHERE id = $1
		RETURNING `+permissionColumns, id))
	return p, notFound(err)
}
