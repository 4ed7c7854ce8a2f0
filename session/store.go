package session

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports a session ID with no record.
	ErrNotFound = errors.New("session not found")
	// ErrInvalid reports a session that exists but fails ownership or
	// liveness checks.
	ErrInvalid = errors.New("session invalid")
	// ErrStoreUnavailable wraps backend faults.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Store is the persistence boundary for session records. Implementations
// must return [ErrNotFound] for unknown IDs and wrap backend faults with
// [ErrStoreUnavailable].
type Store interface {
	Insert(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Deactivate(ctx context.Context, id string) error
	DeactivateAllForUser(ctx context.Context, userID string) (int, error)
	ActiveForUser(ctx context.Context, userID string) ([]*Session, error)
}
