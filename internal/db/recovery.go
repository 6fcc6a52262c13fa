package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// recoveryTokenTTL bounds how long a recovery token stays usable.
const recoveryTokenTTL = "1 hour"

// GenerateRecoveryToken issues a single-use, time-limited token for the user.
func (s *Store) GenerateRecoveryToken(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO recovery_tokens (token, user_id, expires_at, used)
		VALUES ($1, $2, now() + interval '`+recoveryTokenTTL+`', false)
	`, token, userID)
	if err != nil {
		return "", err
	}
	return token, nil
}

// VerifyRecoveryToken reports whether a token exists, is unused, and has not
// expired. It does not consume the token.
func (s *Store) VerifyRecoveryToken(ctx context.Context, token string) (bool, error) {
	var valid bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM recovery_tokens
			WHERE token = $1 AND NOT used AND expires_at > now()
		)
	`, token).Scan(&valid)
	if err != nil {
		return false, err
	}
	return valid, nil
}

// ResetPasswordWithToken applies a pre-hashed password and invalidates the
// token in the same transaction. Returns false when the token is invalid,
// expired, or already consumed.
func (s *Store) ResetPasswordWithToken(ctx context.Context, token, newPasswordHash string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var userID string
	err = tx.QueryRow(ctx, `
		UPDATE recovery_tokens
		SET used = true
		WHERE token = $1 AND NOT used AND expires_at > now()
		RETURNING user_id
	`, token).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, newPasswordHash); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
