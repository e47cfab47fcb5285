package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UserToken is the Asana OAuth token stored for one Slack user. A user has at
// most one live token; re-authorization overwrites the previous one.
type UserToken struct {
	UserID       string
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// PutToken inserts or replaces a user's token.
func (s *Store) PutToken(ctx context.Context, t UserToken) error {
	if t.TokenType == "" {
		t.TokenType = "bearer"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_tokens (user_id, access_token, token_type, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at;`,
		t.UserID, t.AccessToken, t.TokenType, t.RefreshToken, t.ExpiresAt, time.Now().UTC())
	return err
}

// TokenByUserID returns a user's token, or nil when the user never authorized.
func (s *Store) TokenByUserID(ctx context.Context, userID string) (*UserToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, access_token, token_type, refresh_token, expires_at, updated_at
		FROM user_tokens WHERE user_id = ?;`, userID)
	return scanToken(row)
}

// AnyToken returns the most recently refreshed token from any user. Webhook
// deliveries are server-to-server and have no session, so detail lookups
// borrow whichever credential was stored last.
func (s *Store) AnyToken(ctx context.Context) (*UserToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, access_token, token_type, refresh_token, expires_at, updated_at
		FROM user_tokens ORDER BY updated_at DESC LIMIT 1;`)
	return scanToken(row)
}

// DeleteToken removes a user's token (logout).
func (s *Store) DeleteToken(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?;`, userID)
	return err
}

func scanToken(row *sql.Row) (*UserToken, error) {
	var t UserToken
	var expiresAt sql.NullTime
	err := row.Scan(&t.UserID, &t.AccessToken, &t.TokenType, &t.RefreshToken, &expiresAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t.ExpiresAt = expiresAt.Time
	}
	return &t, nil
}
