package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Manager implements session lifecycle over a [Store] with an injected clock.
type Manager struct {
	store    Store
	lifetime time.Duration
	now      func() time.Time
}

// NewManager returns a Manager. A nil clock falls back to time.Now.
func NewManager(store Store, lifetime time.Duration, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, lifetime: lifetime, now: now}
}

// Create inserts a fresh active session for the user/device pair.
func (m *Manager) Create(ctx context.Context, userID, userAgent, ip string) (*Session, error) {
	now := m.now()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		UserAgent:    userAgent,
		IP:           ip,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.lifetime),
		LastAccessed: now,
		IsActive:     true,
	}
	if err := m.store.Insert(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks existence, ownership, and liveness, then touches
// lastAccessed. The touch is best-effort; a concurrent touch losing the
// write is harmless.
func (m *Manager) Validate(ctx context.Context, sessionID, userID string) (*Session, error) {
	s, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// Ownership mismatch is reported identically to a dead session so a
	// session ID cannot be probed across users.
	if s.UserID != userID || !s.Live(m.now()) {
		return nil, ErrInvalid
	}

	s.LastAccessed = m.now()
	if err := m.store.Update(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Extend validates the session like [Manager.Validate] and rolls its expiry,
// lastAccessed, IP, and user agent forward. Called on refresh rotation.
func (m *Manager) Extend(ctx context.Context, sessionID, userID, ip, userAgent string) (*Session, error) {
	s, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if s.UserID != userID || !s.Live(now) {
		return nil, ErrInvalid
	}

	s.ExpiresAt = now.Add(m.lifetime)
	s.LastAccessed = now
	if ip != "" {
		s.IP = ip
	}
	if userAgent != "" {
		s.UserAgent = userAgent
	}
	if err := m.store.Update(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Invalidate soft-deletes one session. Idempotent for already-inactive rows.
func (m *Manager) Invalidate(ctx context.Context, sessionID string) error {
	return m.store.Deactivate(ctx, sessionID)
}

// InvalidateAll soft-deletes every active session of the user and returns
// how many were deactivated. Supports logout-everywhere.
func (m *Manager) InvalidateAll(ctx context.Context, userID string) (int, error) {
	return m.store.DeactivateAllForUser(ctx, userID)
}

// Active lists the user's live sessions.
func (m *Manager) Active(ctx context.Context, userID string) ([]*Session, error) {
	all, err := m.store.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	live := all[:0]
	for _, s := range all {
		if s.Live(now) {
			live = append(live, s)
		}
	}
	return live, nil
}
