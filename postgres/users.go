package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	authcore "github.com/karsvik/authcore"
)

const userColumns = `id, email, password_hash, role, two_factor_enabled, two_factor_secret, last_login`

// GetUserByEmail looks a user up by unique email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*authcore.UserRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	row := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetUserByID looks a user up by primary key.
func (s *Store) GetUserByID(ctx context.Context, id string) (*authcore.UserRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	row := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdatePasswordHash replaces the stored credential hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.execUser(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
}

// UpdateLastLogin records the successful login instant.
func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.execUser(ctx,
		`UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
}

// SetTwoFactorSecret stores a pending (not yet enabled) TOTP secret.
func (s *Store) SetTwoFactorSecret(ctx context.Context, id, secret string) error {
	return s.execUser(ctx,
		`UPDATE users SET two_factor_secret = $2, two_factor_enabled = FALSE WHERE id = $1`,
		id, secret)
}

// EnableTwoFactor flips 2FA on. Only valid after a successful verification
// of the pending secret; the orchestrator enforces that ordering.
func (s *Store) EnableTwoFactor(ctx context.Context, id string) error {
	return s.execUser(ctx,
		`UPDATE users SET two_factor_enabled = TRUE WHERE id = $1 AND two_factor_secret IS NOT NULL`,
		id)
}

// DisableTwoFactor clears both the flag and the secret.
func (s *Store) DisableTwoFactor(ctx context.Context, id string) error {
	return s.execUser(ctx,
		`UPDATE users SET two_factor_enabled = FALSE, two_factor_secret = NULL WHERE id = $1`,
		id)
}

func (s *Store) execUser(ctx context.Context, sql string, args ...any) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*authcore.UserRecord, error) {
	var u authcore.UserRecord
	var secret *string
	var lastLogin *time.Time

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role,
		&u.TwoFactorEnabled, &secret, &lastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if secret != nil {
		u.TwoFactorSecret = *secret
	}
	if lastLogin != nil {
		u.LastLogin = *lastLogin
	}
	return &u, nil
}
