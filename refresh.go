package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/karsvik/authcore/audit"
	"github.com/karsvik/authcore/metrics"
	"github.com/karsvik/authcore/session"
	"github.com/karsvik/authcore/token"
)

// Refresh exchanges a refresh token for a fresh token pair. The session the
// token is bound to is the source of truth: a correctly signed, unexpired
// token is still rejected once its session has been logged out or has
// lapsed. A successful refresh rolls the session's expiry forward.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token required", ErrValidation)
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, s.refreshRejected(ctx, "", "", tokenError(err))
	}

	ip := clientIPFromContext(ctx)
	userAgent := userAgentFromContext(ctx)

	sess, err := s.sessions.Extend(ctx, claims.SessionID, claims.UserID, ip, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrInvalid):
			return nil, s.refreshRejected(ctx, claims.UserID, claims.SessionID, ErrSessionInvalid)
		default:
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, s.refreshRejected(ctx, claims.UserID, claims.SessionID, ErrSessionInvalid)
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	pair, err := s.tokens.NewPair(user.ID, user.Email, user.Role, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	s.metricInc(metrics.TokenRefreshed)
	s.emit(ctx, audit.Event{
		Type:      audit.EventTokenRefreshed,
		UserID:    user.ID,
		SessionID: sess.ID,
		Success:   true,
	})

	return &LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    sess.ID,
		User:         user,
	}, nil
}

// VerifyAccess validates an access token and returns its claims. Purely
// cryptographic: no store lookups, which is what makes access tokens cheap
// and also what bounds their lifetime.
func (s *Service) VerifyAccess(tokenStr string) (*token.AccessClaims, error) {
	claims, err := s.tokens.VerifyAccess(tokenStr)
	if err != nil {
		return nil, tokenError(err)
	}
	return claims, nil
}

func (s *Service) refreshRejected(ctx context.Context, userID, sessionID string, cause error) error {
	s.metricInc(metrics.RefreshRejected)
	s.emit(ctx, audit.Event{
		Type:      audit.EventRefreshRejected,
		UserID:    userID,
		SessionID: sessionID,
		Success:   false,
		Error:     cause.Error(),
		Metadata:  audit.RefreshMeta{Reason: cause.Error()},
	})
	return cause
}

// tokenError folds token-package sentinels into the service taxonomy.
func tokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}
