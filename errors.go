package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for unknown identifiers and wrong
	// passwords alike, so callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by user stores for missing records. The
	// login path folds it into ErrInvalidCredentials before it reaches callers.
	ErrUserNotFound = errors.New("user not found")
	// ErrRateLimited is the target of RateLimitedError for errors.Is checks.
	ErrRateLimited = errors.New("rate limited")
	// ErrSessionInvalid covers missing, expired, deactivated, and
	// wrong-owner sessions without distinguishing between them.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrTokenExpired is returned when a presented token's lifetime has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTwoFactorRequired means the password matched but a TOTP code is
	// still owed; no tokens are issued until VerifyTwoFactor succeeds.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrTwoFactorInvalid is returned for wrong codes and for challenges
	// that expired or were already consumed.
	ErrTwoFactorInvalid = errors.New("invalid two-factor code")
	// ErrTwoFactorAttempts means the per-challenge code budget is exhausted;
	// the caller must restart the login.
	ErrTwoFactorAttempts = errors.New("two-factor attempts exceeded")
	// ErrTwoFactorNotEnabled is returned when a two-factor operation is
	// requested for an account that has not enabled it.
	ErrTwoFactorNotEnabled = errors.New("two-factor not enabled")
	// ErrTwoFactorNotPending is returned by ConfirmTOTP when no setup was
	// started for the account.
	ErrTwoFactorNotPending = errors.New("two-factor setup not pending")
	// ErrServiceUnavailable wraps backend faults on paths that cannot
	// fail open.
	ErrServiceUnavailable = errors.New("backend unavailable")
	// ErrValidation covers rejected inputs such as empty identifiers.
	ErrValidation = errors.New("invalid input")
)

// RateLimitedError carries the deny decision's detail. It matches
// ErrRateLimited under errors.Is.
type RateLimitedError struct {
	// RetryAfter is how long the caller should wait before retrying.
	RetryAfter time.Duration
	// Attempts is the failure count inside the current window.
	Attempts int
	// LockedUntil is the lockout deadline, zero when the denial comes
	// from the sliding window alone.
	LockedUntil time.Time
}

func (e *RateLimitedError) Error() string {
	if !e.LockedUntil.IsZero() {
		return fmt.Sprintf("rate limited: locked out, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: %d attempts in window, retry after %s", e.Attempts, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
