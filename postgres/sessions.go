package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/karsvik/authcore/session"
)

// Insert persists a new session row.
func (s *Store) Insert(ctx context.Context, sess *session.Session) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx,
		`INSERT INTO sessions (id, user_id, user_agent, ip, created_at, expires_at, last_accessed, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.UserID, sess.UserAgent, sess.IP,
		sess.CreatedAt, sess.ExpiresAt, sess.LastAccessed, sess.IsActive)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	return nil
}

// Get loads one session by ID.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	row := s.db.QueryRow(ctx,
		`SELECT id, user_id, user_agent, ip, created_at, expires_at, last_accessed, is_active
		 FROM sessions WHERE id = $1`, id)

	var sess session.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.UserAgent, &sess.IP,
		&sess.CreatedAt, &sess.ExpiresAt, &sess.LastAccessed, &sess.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	return &sess, nil
}

// Update rewrites the mutable columns of an existing row.
func (s *Store) Update(ctx context.Context, sess *session.Session) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE sessions
		 SET user_agent = $2, ip = $3, expires_at = $4, last_accessed = $5, is_active = $6
		 WHERE id = $1`,
		sess.ID, sess.UserAgent, sess.IP, sess.ExpiresAt, sess.LastAccessed, sess.IsActive)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes one session, keeping the row for audit.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// DeactivateAllForUser soft-deletes every active session of the user.
func (s *Store) DeactivateAllForUser(ctx context.Context, userID string) (int, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

// ActiveForUser lists the user's active session rows.
func (s *Store) ActiveForUser(ctx context.Context, userID string) ([]*session.Session, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, user_agent, ip, created_at, expires_at, last_accessed, is_active
		 FROM sessions WHERE user_id = $1 AND is_active
		 ORDER BY last_accessed DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		var sess session.Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.UserAgent, &sess.IP,
			&sess.CreatedAt, &sess.ExpiresAt, &sess.LastAccessed, &sess.IsActive); err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
		}
		out = append(out, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	return out, nil
}
