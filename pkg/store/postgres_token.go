package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

const tokenColumns = `id, user_id, app_id, access_token, refresh_token, created_date, updated_date, deleted_date`

func scanToken(row pgx.Row) (Token, error) {
	var t Token
	err := row.Scan(&t.ID, &t.UserID, &t.AppID, &t.AccessToken, &t.RefreshToken, &t.CreatedDate, &t.UpdatedDate, &t.DeletedDate)
	return t, err
}

// CreateToken stores a newly issued token pair
func (s *PostgresStore) CreateToken(ctx context.Context, token Token) (Token, error) {
	t, err := scanToken(s.db.QueryRow(ctx, `
		INSERT INTO token (user_id, app_id, access_token, refresh_token)
		VALUES ($1, $2, $3, $4)
		RETURNING `+tokenColumns, token.UserID, token.AppID, token.AccessToken, token.RefreshToken))
	if err != nil {
		return Token{}, apperrors.FromPostgres(fmt.Errorf("failed to create token: %w", err))
	}
	return t, nil
}

// ReadTokenByAccessToken reads a live token row
func (s *PostgresStore) ReadTokenByAccessToken(ctx context.Context, accessToken string) (Token, error) {
	t, err := scanToken(s.db.QueryRow(ctx, `
		SELECT `+tokenColumns+` FROM token WHERE access_token = $1 AND deleted_date IS NULL`, accessToken))
	return t, notFound(err)
}

// ReadTokenByRefreshToken reads a live token row
func (s *PostgresStore) ReadTokenByRefreshToken(ctx context.Context, refreshToken string) (Token, error) {
	t, err := scanToken(s.db.QueryRow(ctx, `
		SELECT `+tokenColumns+` FROM token WHERE refresh_token = $1 AND deleted_date IS NULL`, refreshToken))
	return t, notFound(err)
}

// UpdateToken replaces the token pair of a live row
func (s *PostgresStore) UpdateToken(ctx context.Context, token Token) (Token, error) {
	t, err := scanToken(s.db.QueryRow(ctx, `
		UPDATE token SET access_token = $2, refresh_token = $3, updated_date = now()
		WHERE id = $1 AND deleted_date IS NULL
		RETURNING `+tokenColumns, token.ID, token.AccessToken, token.RefreshToken))
	return t, notFound(err)
}

// RevokeToken marks a token row deleted
func (s *PostgresStore) RevokeToken(ctx context.Context, id int64) error {
	return s.execOne(ctx, `UPDATE token SET deleted_date = now(), updated_date = now() WHERE id = $1 AND deleted_date IS NULL`, id)
}

// CreateAuditEntry appends one audit_log row
func (s *PostgresStore) CreateAuditEntry(ctx context.Context, entry AuditEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_log (event_type, entity_type, entity_id, app_id, actor_id, actor_email, method, uri, metadata)
		VALUES ($1, $2, $3, NULLIF($4::bigint, 0), NULLIF($5::bigint, 0), $6, $7, $8, $9)`,
		entry.EventType, entry.EntityType, entry.EntityID, entry.AppID, entry.ActorID,
		entry.ActorEmail, entry.Method, entry.URI, entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}
