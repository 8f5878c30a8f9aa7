package store

import (
	"context"
	"fmt"

	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

// AssignAppUser inserts the app_user row
func (s *PostgresStore) AssignAppUser(ctx context.Context, appID, userID int64) (AppUser, error) {
	au := AppUser{AppID: appID, UserID: userID}
	err := s.db.QueryRow(ctx, `
		INSERT INTO app_user (app_id, user_id) VALUES ($1, $2)
		RETURNING created_date`, appID, userID).Scan(&au.CreatedDate)
	if err != nil {
		return AppUser{}, apperrors.FromPostgres(fmt.Errorf("failed to assign user to app: %w", err))
	}
	return au, nil
}

// UnassignAppUser deletes the app_user row; fails while app_user_role rows reference it
func (s *PostgresStore) UnassignAppUser(ctx context.Context, appID, userID int64) error {
	return s.execOne(ctx, `DELETE FROM app_user WHERE app_id = $1 AND user_id = $2`, appID, userID)
}

// ReadAppUser reads one app_user row
func (s *PostgresStore) ReadAppUser(ctx context.Context, appID, userID int64) (AppUser, error) {
	au := AppUser{AppID: appID, UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT created_date FROM app_user WHERE app_id = $1 AND user_id = $2`, appID, userID).Scan(&au.CreatedDate)
	return au, notFound(err)
}

// ReadAppUsers lists the live users assigned to an app
func (s *PostgresStore) ReadAppUsers(ctx context.Context, appID int64) ([]User, error) {
	return s.queryUsers(ctx, userSelect+`
		JOIN app_user au ON au.user_id = u.id
		WHERE au.app_id = $1 AND u.deleted_date IS NULL
		ORDER BY u.id`, appID)
}

// ReadAppUserByEmail reads a live user by email, only when assigned to the app
func (s *PostgresStore) ReadAppUserByEmail(ctx context.Context, appID int64, email string) (User, error) {
	return s.queryUser(ctx, userSelect+`
		JOIN app_user au ON au.user_id = u.id
		WHERE au.app_id = $1 AND lower(u.email) = lower($2) AND u.deleted_date IS NULL`, appID, email)
}

// AssignRolePermission inserts the role_permission row
func (s *PostgresStore) AssignRolePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.db.Exec(ctx, `INSERT INTO role_permission (role_id, permission_id) VALUES ($1, $2)`, roleID, permissionID)
	if err != nil {
		return apperrors.FromPostgres(fmt.Errorf("failed to assign permission to role: %w", err))
	}
	return nil
}

// UnassignRolePermission deletes the role_permission row
func (s *PostgresStore) UnassignRolePermission(ctx context.Context, roleID, permissionID int64) error {
	return s.execOne(ctx, `DELETE FROM role_permission WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
}

// ReadRolePermissions returns the role_permission rows of every given role in one query
func (s *PostgresStore) ReadRolePermissions(ctx context.Context, appID int64, roleIDs []int64) ([]RolePermission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT rp.role_id, rp.created_date,
		       p.id, p.app_id, p.name, COALESCE(p.description, ''), p.created_date, p.updated_date, p.deleted_date
		FROM role_permission rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE p.app_id = $1 AND rp.role_id = ANY($2) AND p.deleted_date IS NULL
		ORDER BY p.name ASC, rp.role_id`, appID, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read role permissions: %w", err)
	}
	defer rows.Close()

	var result []RolePermission
	for rows.Next() {
		var rp RolePermission
		p := &rp.Permission
		if err := rows.Scan(&rp.RoleID, &rp.CreatedDate,
			&p.ID, &p.AppID, &p.Name, &p.Description, &p.CreatedDate, &p.UpdatedDate, &p.DeletedDate); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		result = append(result, rp)
	}
	return result, rows.Err()
}

// AssignUserRole inserts the app_user_role row
func (s *PostgresStore) AssignUserRole(ctx context.Context, appID, userID, roleID int64) error {
	_, err := s.db.Exec(ctx, `INSERT INTO app_user_role (app_id, user_id, role_id) VALUES ($1, $2, $3)`, appID, userID, roleID)
	if err != nil {
		return apperrors.FromPostgres(fmt.Errorf("failed to assign role to user: %w", err))
	}
	return nil
}

// UnassignUserRole deletes the app_user_role row
func (s *PostgresStore) UnassignUserRole(ctx context.Context, appID, userID, roleID int64) error {
	return s.execOne(ctx, `DELETE FROM app_user_role WHERE app_id = $1 AND user_id = $2 AND role_id = $3`, appID, userID, roleID)
}

// ReadUserRoles returns the app_user_role rows of every given user in one query
func (s *PostgresStore) ReadUserRoles(ctx context.Context, appID int64, userIDs []int64) ([]UserRole, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT aur.app_id, aur.user_id, aur.created_date,
		       r.id, r.app_id, r.name, COALESCE(r.description, ''), r.created_date, r.updated_date, r.deleted_date
		FROM app_user_role aur
		JOIN roles r ON r.id = aur.role_id
		WHERE aur.app_id = $1 AND aur.user_id = ANY($2) AND r.deleted_date IS NULL
		ORDER BY r.name ASC, aur.user_id`, appID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read user roles: %w", err)
	}
	defer rows.Close()

	var result []UserRole
	for rows.Next() {
		var ur UserRole
		r := &ur.Role
		if err := rows.Scan(&ur.AppID, &ur.UserID, &ur.CreatedDate,
			&r.ID, &r.AppID, &r.Name, &r.Description, &r.CreatedDate, &r.UpdatedDate, &r.DeletedDate); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		result = append(result, ur)
	}
	return result, rows.Err()
}
