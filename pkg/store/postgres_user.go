package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

const userSelect = `
	SELECT u.id, u.first_name, u.last_name, u.email, u.password,
	       s.id, s.name, COALESCE(s.description, ''),
	       u.is_validated, u.last_login, u.created_date, u.updated_date, u.deleted_date
	FROM users u
	JOIN status_type s ON s.id = u.status_id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	status := &StatusType{}
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password,
		&status.ID, &status.Name, &status.Description,
		&u.IsValidated, &u.LastLogin, &u.CreatedDate, &u.UpdatedDate, &u.DeletedDate)
	u.Status = status
	return u, err
}

func (s *PostgresStore) queryUsers(ctx context.Context, query string, args ...interface{}) ([]User, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachAddresses(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *PostgresStore) queryUser(ctx context.Context, query string, args ...interface{}) (User, error) {
	users, err := s.queryUsers(ctx, query, args...)
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, ErrNotFound
	}
	return users[0], nil
}

// attachAddresses loads addresses for every user with one query
func (s *PostgresStore) attachAddresses(ctx context.Context, users []User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int64, len(users))
	index := make(map[int64]int, len(users))
	for i, u := range users {
		ids[i] = u.ID
		index[u.ID] = i
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, type, COALESCE(street, ''), COALESCE(city, ''), COALESCE(state, ''),
		       COALESCE(country, ''), COALESCE(postal_code, '')
		FROM user_address
		WHERE user_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("failed to read addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Street, &a.City, &a.State, &a.Country, &a.PostalCode); err != nil {
			return fmt.Errorf("failed to scan address: %w", err)
		}
		i := index[a.UserID]
		users[i].Addresses = append(users[i].Addresses, a)
	}
	return rows.Err()
}

func (s *PostgresStore) upsertAddresses(ctx context.Context, userID int64, addresses []Address) error {
	for _, a := range addresses {
		var err error
		if a.ID > 0 {
			err = s.execOne(ctx, `
				UPDATE user_address SET type = $3, street = $4, city = $5, state = $6, country = $7, postal_code = $8
				WHERE id = $1 AND user_id = $2`,
				a.ID, userID, a.Type, a.Street, a.City, a.State, a.Country, a.PostalCode)
		} else {
			_, err = s.db.Exec(ctx, `
				INSERT INTO user_address (user_id, type, street, city, state, country, postal_code)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				userID, a.Type, a.Street, a.City, a.State, a.Country, a.PostalCode)
		}
		if err != nil {
			return apperrors.FromPostgres(fmt.Errorf("failed to save address: %w", err))
		}
	}
	return nil
}

// CreateUser inserts a user and its addresses
func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (first_name, last_name, email, password, status_id, is_validated)
		VALUES ($1, $2, $3, $4, (SELECT id FROM status_type WHERE name = $5), $6)
		RETURNING id`,
		user.FirstName, user.LastName, user.Email, user.Password, statusName(user), user.IsValidated).Scan(&id)
	if err != nil {
		return User{}, apperrors.FromPostgres(fmt.Errorf("failed to create user: %w", err))
	}
	if err := s.upsertAddresses(ctx, id, user.Addresses); err != nil {
		return User{}, err
	}
	return s.ReadUser(ctx, id)
}

// ReadUsers lists live users ordered by ID
func (s *PostgresStore) ReadUsers(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx, userSelect+` WHERE u.deleted_date IS NULL ORDER BY u.id`)
}

// ReadUser reads a live user by ID
func (s *PostgresStore) ReadUser(ctx context.Context, id int64) (User, error) {
	return s.queryUser(ctx, userSelect+` WHERE u.id = $1 AND u.deleted_date IS NULL`, id)
}

// ReadUserByEmail reads a live user by email, case-insensitively
func (s *PostgresStore) ReadUserByEmail(ctx context.Context, email string) (User, error) {
	return s.queryUser(ctx, userSelect+` WHERE lower(u.email) = lower($1) AND u.deleted_date IS NULL`, email)
}

// UpdateUser updates profile fields and upserts addresses
func (s *PostgresStore) UpdateUser(ctx context.Context, user User) (User, error) {
	err := s.execOne(ctx, `
		UPDATE users SET first_name = $2, last_name = $3,
		       status_id = (SELECT id FROM status_type WHERE name = $4),
		       is_validated = $5, last_login = $6, updated_date = now()
		WHERE id = $1 AND deleted_date IS NULL`,
		user.ID, user.FirstName, user.LastName, statusName(user), user.IsValidated, user.LastLogin)
	if err != nil {
		return User{}, err
	}
	if err := s.upsertAddresses(ctx, user.ID, user.Addresses); err != nil {
		return User{}, err
	}
	return s.ReadUser(ctx, user.ID)
}

// UpdateUserEmail changes the email address
func (s *PostgresStore) UpdateUserEmail(ctx context.Context, id int64, email string) (User, error) {
	err := s.execOne(ctx, `UPDATE users SET email = $2, updated_date = now() WHERE id = $1 AND deleted_date IS NULL`, id, email)
	if err != nil {
		return User{}, err
	}
	return s.ReadUser(ctx, id)
}

// UpdateUserPassword stores a new password hash
func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return s.execOne(ctx, `UPDATE users SET password = $2, updated_date = now() WHERE id = $1 AND deleted_date IS NULL`, id, passwordHash)
}

// DeleteUserAddress removes one address of a user
func (s *PostgresStore) DeleteUserAddress(ctx context.Context, userID, addressID int64) error {
	return s.execOne(ctx, `DELETE FROM user_address WHERE id = $1 AND user_id = $2`, addressID, userID)
}

// SoftDeleteUser marks a user deleted
func (s *PostgresStore) SoftDeleteUser(ctx context.Context, id int64) error {
	return s.execOne(ctx, `UPDATE users SET deleted_date = now() WHERE id = $1 AND deleted_date IS NULL`, id)
}

// HardDeleteUser removes the user with its addresses and tokens in one transaction
func (s *PostgresStore) HardDeleteUser(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx Store) error {
		ps := tx.(*PostgresStore)
		if _, err := ps.db.Exec(ctx, `DELETE FROM user_address WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete addresses: %w", err)
		}
		if _, err := ps.db.Exec(ctx, `DELETE FROM token WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete tokens: %w", err)
		}
		return ps.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
	})
}

// RestoreUser clears the deleted marker
func (s *PostgresStore) RestoreUser(ctx context.Context, id int64) (User, error) {
	if err := s.execOne(ctx, `UPDATE users SET deleted_date = NULL, updated_date = now() WHERE id = $1`, id); err != nil {
		return User{}, err
	}
	return s.ReadUser(ctx, id)
}

func statusName(u User) string {
	if u.Status == nil || u.Status.Name == "" {
		return StatusPending
	}
	return u.Status.Name
}
