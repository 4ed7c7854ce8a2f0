package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/karsvik/authcore/audit"
	"github.com/karsvik/authcore/metrics"
	"github.com/karsvik/authcore/session"
)

// Logout invalidates the session bound to the refresh token. The session
// row is kept, deactivated, for audit trails. Idempotent: logging out an
// already-dead session succeeds.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token required", ErrValidation)
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return tokenError(err)
	}

	if err := s.sessions.Invalidate(ctx, claims.SessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionInvalid
		}
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	s.metricInc(metrics.SessionInvalidated)
	s.emit(ctx, audit.Event{
		Type:      audit.EventLogout,
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Success:   true,
	})
	return nil
}

// LogoutAll invalidates every active session of the user and reports how
// many were dropped. Used after a password change or a compromise report.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user ID required", ErrValidation)
	}

	n, err := s.sessions.InvalidateAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	for i := 0; i < n; i++ {
		s.metricInc(metrics.SessionInvalidated)
	}
	s.emit(ctx, audit.Event{
		Type:     audit.EventLogoutAll,
		UserID:   userID,
		Success:  true,
		Metadata: audit.SessionsMeta{Invalidated: n},
	})
	return n, nil
}

// ActiveSessions lists the user's live sessions, for logout-everywhere UIs.
func (s *Service) ActiveSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID required", ErrValidation)
	}
	live, err := s.sessions.Active(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return live, nil
}
