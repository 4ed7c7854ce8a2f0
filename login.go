package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/karsvik/authcore/audit"
	"github.com/karsvik/authcore/internal/challenge"
	"github.com/karsvik/authcore/metrics"
	"github.com/karsvik/authcore/ratelimit"
	"github.com/karsvik/authcore/session"
)

// Login verifies an email/password pair. Unknown accounts and wrong
// passwords both come back as ErrInvalidCredentials, and the rate limit is
// consulted before the account is even looked up.
//
// When the account has two-factor enabled, the result carries
// RequiresTwoFactor and a LoginAttemptID instead of tokens; complete the
// login with [Service.VerifyTwoFactor].
func (s *Service) Login(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	if email == "" || plainPassword == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	ip := clientIPFromContext(ctx)
	userAgent := userAgentFromContext(ctx)
	key := clientKey(ip, email)
	policy := s.loginPolicy()

	d := s.limiter.Check(ctx, key, policy)
	if d.FailedOpen {
		s.metricInc(metrics.RateLimiterFailOpen)
	}
	if !d.Allowed {
		s.metricInc(metrics.LoginRateLimited)
		s.emit(ctx, audit.Event{
			Type:    audit.EventLoginRateLimited,
			Success: false,
			Error:   ErrRateLimited.Error(),
			Metadata: audit.RateLimitedMeta{
				Identifier:        email,
				Attempts:          d.Attempts,
				RetryAfterSeconds: int(d.RetryAfter.Seconds()),
			},
		})
		return nil, denied(d)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		return nil, s.loginFailure(ctx, key, policy, "", email, "user_not_found")
	}

	ok, err := s.passwords.Verify(plainPassword, user.PasswordHash)
	if err != nil || !ok {
		return nil, s.loginFailure(ctx, key, policy, user.ID, email, "password_mismatch")
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.log.Warn("rate limit reset failed", "error", err)
	}
	s.maybeRehash(ctx, user, plainPassword)

	if user.TwoFactorEnabled {
		attemptID, err := s.challenges.Create(ctx, user.ID, ip, userAgent, s.config.TwoFactor.ChallengeTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		s.metricInc(metrics.TwoFactorRequired)
		s.emit(ctx, audit.Event{
			Type:     audit.EventTwoFactorRequired,
			UserID:   user.ID,
			Success:  true,
			Metadata: audit.TwoFactorMeta{AttemptID: attemptID},
		})
		return &LoginResult{
			User:              user,
			RequiresTwoFactor: true,
			LoginAttemptID:    attemptID,
		}, nil
	}

	return s.grantLogin(ctx, user, ip, userAgent)
}

// VerifyTwoFactor completes a two-factor login. The challenge is
// single-use: a correct code consumes it, and wrong codes burn its attempt
// budget. Expired, consumed, and unknown attempt IDs all come back as
// ErrTwoFactorInvalid.
func (s *Service) VerifyTwoFactor(ctx context.Context, attemptID, code string) (*LoginResult, error) {
	if attemptID == "" || code == "" {
		return nil, fmt.Errorf("%w: attempt ID and code required", ErrValidation)
	}

	record, err := s.challenges.Get(ctx, attemptID)
	if err != nil {
		switch {
		case errors.Is(err, challenge.ErrNotFound), errors.Is(err, challenge.ErrExpired):
			return nil, ErrTwoFactorInvalid
		default:
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
	}

	if err := s.guard.Check(ctx, record.UserID); err != nil {
		s.metricInc(metrics.TwoFactorFailure)
		s.emit(ctx, audit.Event{
			Type:     audit.EventTwoFactorFailed,
			UserID:   record.UserID,
			Success:  false,
			Error:    err.Error(),
			Metadata: audit.TwoFactorMeta{AttemptID: attemptID, Reason: "cooldown"},
		})
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTwoFactorInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		return nil, ErrTwoFactorInvalid
	}

	ok, err := s.totp.VerifyCode(user.TwoFactorSecret, code, s.now())
	if err != nil {
		return nil, ErrTwoFactorInvalid
	}
	if !ok {
		return nil, s.twoFactorFailure(ctx, attemptID, user.ID)
	}

	consumed, err := s.challenges.Consume(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if !consumed {
		// Lost the race against a concurrent verification of the same
		// challenge; only one login may come out of it.
		return nil, ErrTwoFactorInvalid
	}
	s.guard.Reset(ctx, record.UserID)

	s.metricInc(metrics.TwoFactorSuccess)
	s.emit(ctx, audit.Event{
		Type:     audit.EventTwoFactorSuccess,
		UserID:   user.ID,
		Success:  true,
		Metadata: audit.TwoFactorMeta{AttemptID: attemptID},
	})

	return s.grantLogin(ctx, user, clientIPFromContext(ctx), userAgentFromContext(ctx))
}

// loginFailure counts the failure against the client's budget and returns
// the uniform credentials error. The denial, if this failure armed one,
// surfaces on the next attempt; the current response stays
// indistinguishable from any other bad credential.
func (s *Service) loginFailure(ctx context.Context, key string, policy ratelimit.Policy, userID, email, reason string) error {
	s.limiter.RecordFailure(ctx, key, policy)
	s.metricInc(metrics.LoginFailure)
	s.emit(ctx, audit.Event{
		Type:    audit.EventLoginFailed,
		UserID:  userID,
		Success: false,
		Error:   ErrInvalidCredentials.Error(),
		Metadata: audit.LoginFailedMeta{
			Identifier: email,
			Reason:     reason,
		},
	})
	return ErrInvalidCredentials
}

// twoFactorFailure burns one attempt on the challenge and the per-user
// cooldown counter.
func (s *Service) twoFactorFailure(ctx context.Context, attemptID, userID string) error {
	s.guard.RecordFailure(ctx, userID)
	exceeded, err := s.challenges.RecordFailure(ctx, attemptID, s.config.TwoFactor.ChallengeAttempts)
	if err != nil && !errors.Is(err, challenge.ErrNotFound) && !errors.Is(err, challenge.ErrExpired) {
		s.log.Warn("two-factor attempt accounting failed", "error", err)
	}

	s.metricInc(metrics.TwoFactorFailure)
	reason := "code_mismatch"
	if exceeded {
		reason = "attempts_exceeded"
	}
	s.emit(ctx, audit.Event{
		Type:     audit.EventTwoFactorFailed,
		UserID:   userID,
		Success:  false,
		Error:    ErrTwoFactorInvalid.Error(),
		Metadata: audit.TwoFactorMeta{AttemptID: attemptID, Reason: reason},
	})

	if exceeded {
		return ErrTwoFactorAttempts
	}
	return ErrTwoFactorInvalid
}

// maybeRehash upgrades the stored hash after a successful password check
// when parameters have been strengthened. Best-effort: failures are logged
// and never block the login.
func (s *Service) maybeRehash(ctx context.Context, user *UserRecord, plainPassword string) {
	if !s.config.Password.RehashOnLogin {
		return
	}
	stale, err := s.passwords.NeedsRehash(user.PasswordHash)
	if err != nil || !stale {
		return
	}
	rehashed, err := s.passwords.Hash(plainPassword)
	if err != nil {
		s.log.Warn("password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, rehashed); err != nil {
		s.log.Warn("password rehash update failed", "user_id", user.ID, "error", err)
	}
}

// grantLogin creates the session, signs the token pair, and emits the
// success event.
func (s *Service) grantLogin(ctx context.Context, user *UserRecord, ip, userAgent string) (*LoginResult, error) {
	sess, err := s.sessions.Create(ctx, user.ID, userAgent, ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	s.metricInc(metrics.SessionCreated)

	pair, err := s.tokens.NewPair(user.ID, user.Email, user.Role, sess.ID)
	if err != nil {
		// A session without a reachable token pair is dead weight.
		if derr := s.sessions.Invalidate(ctx, sess.ID); derr != nil && !errors.Is(derr, session.ErrNotFound) {
			s.log.Warn("orphan session cleanup failed", "session_id", sess.ID, "error", derr)
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.log.Warn("last login update failed", "user_id", user.ID, "error", err)
	}

	s.metricInc(metrics.LoginSuccess)
	s.emit(ctx, audit.Event{
		Type:      audit.EventLoginSuccess,
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
