package session

import "time"

// Session binds a user and device to refresh-token validity. Invariant: while
// IsActive is true, ExpiresAt is in the future (expired sessions fail
// liveness checks even before the store deactivates them).
type Session struct {
	ID           string
	UserID       string
	UserAgent    string
	IP           string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastAccessed time.Time
	IsActive     bool
}

// Live reports whether the session passes liveness at the given instant.
func (s *Session) Live(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}
