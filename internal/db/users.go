package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/mizunoto/tankwatch/internal/model"
	"github.com/mizunoto/tankwatch/pkg/apperr"
)

const userColumns = "id, username, password_hash, is_admin, dark_mode, COALESCE(email, ''), created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var created time.Time
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.DarkMode, &u.Email, &created); err != nil {
		return model.User{}, err
	}
	u.CreatedAt = created.UTC()
	return u, nil
}

// VerifyUser checks raw credentials against the stored bcrypt hash. An
// unknown username and a wrong password both report (_, false, nil) so
// callers cannot tell the two apart.
func (s *Store) VerifyUser(ctx context.Context, username, password string) (model.User, bool, error) {
	user, found, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return model.User{}, false, err
	}
	if !found {
		return model.User{}, false, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.User{}, false, nil
	}
	return user, true, nil
}

// CreateUser inserts a new account with a server-side hash. A duplicate
// username, including one racing past an earlier existence check, surfaces as
// a username_exists error.
func (s *Store) CreateUser(ctx context.Context, username, password string) (string, error) {
	hash, err := s.HashPassword(ctx, password)
	if err != nil {
		return "", err
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id
	`, username, hash).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", apperr.Wrap(apperr.CodeUsernameExists, "username already exists", err)
		}
		return "", err
	}
	return id, nil
}

// GetUser fetches an account by id.
func (s *Store) GetUser(ctx context.Context, id string) (model.User, bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		return model.User{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return model.User{}, false, rows.Err()
	}
	user, err := scanUser(rows)
	if err != nil {
		return model.User{}, false, err
	}
	return user, true, rows.Err()
}

// GetUserByUsername fetches an account by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 LIMIT 1`, username)
	if err != nil {
		return model.User{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return model.User{}, false, rows.Err()
	}
	user, err := scanUser(rows)
	if err != nil {
		return model.User{}, false, err
	}
	return user, true, rows.Err()
}

// ListUsers returns all accounts ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetAdmin grants or revokes admin rights.
func (s *Store) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET is_admin = $2 WHERE id = $1`, id, isAdmin)
	return err
}

// SetDarkMode persists the display preference.
func (s *Store) SetDarkMode(ctx context.Context, id string, darkMode bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET dark_mode = $2 WHERE id = $1`, id, darkMode)
	return err
}

// ChangePassword replaces an account's password with a fresh server-side hash.
func (s *Store) ChangePassword(ctx context.Context, id, newPassword string) error {
	hash, err := s.HashPassword(ctx, newPassword)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	return err
}

// DeleteUser removes an account.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

// HashPassword produces a bcrypt hash. Hashing always happens server-side;
// clients never compute or compare hashes.
func (s *Store) HashPassword(_ context.Context, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
