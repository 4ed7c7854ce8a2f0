package authcore

import (
	"errors"
	"fmt"
	"time"
)

// TokenConfig controls signed token issuance.
type TokenConfig struct {
	// SigningMethod is "hs256" or "ed25519".
	SigningMethod string
	// Key is the HMAC secret for HS256; at least 32 bytes.
	Key []byte
	// PrivateKey and PublicKey are the Ed25519 pair for EdDSA.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Leeway tolerates clock drift during verification; capped at 2 minutes.
	Leeway time.Duration
}

// SessionConfig controls server-side session records.
type SessionConfig struct {
	// Lifetime bounds how long a session stays valid; refresh rotation
	// rolls it forward.
	Lifetime time.Duration
}

// RateLimitConfig controls the login sliding window and lockout.
type RateLimitConfig struct {
	Window      time.Duration
	MaxAttempts int
	Lockout     time.Duration
}

// TwoFactorConfig controls TOTP generation and the pending-login challenge.
type TwoFactorConfig struct {
	Issuer string
	Digits int
	// Period is seconds per code step.
	Period int
	// Skew counts accepted steps on each side of the current one.
	Skew int
	// ChallengeTTL bounds how long a password-verified login may wait for
	// its code; ChallengeAttempts caps wrong codes per challenge.
	ChallengeTTL      time.Duration
	ChallengeAttempts int
	// GuessCooldown arms after GuessLimit wrong codes for one user across
	// all challenges.
	GuessLimit    int64
	GuessCooldown time.Duration
}

// PasswordConfig carries the Argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// RehashOnLogin upgrades stored hashes after a successful password
	// check when parameters have been strengthened.
	RehashOnLogin bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// Config aggregates all service settings. Start from DefaultConfig and
// override what the deployment needs.
type Config struct {
	Token     TokenConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	TwoFactor TwoFactorConfig
	Password  PasswordConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// DefaultConfig returns the preset the rest of the documentation assumes:
// 1h access tokens, 30d refresh tokens, 5 failures per 15m window with a
// 30m lockout, 6-digit 30s TOTP with one step of skew.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "hs256",
			AccessTTL:     time.Hour,
			RefreshTTL:    30 * 24 * time.Hour,
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			Lifetime: 30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Window:      15 * time.Minute,
			MaxAttempts: 5,
			Lockout:     30 * time.Minute,
		},
		TwoFactor: TwoFactorConfig{
			Digits:            6,
			Period:            30,
			Skew:              1,
			ChallengeTTL:      5 * time.Minute,
			ChallengeAttempts: 3,
			GuessLimit:        5,
			GuessCooldown:     time.Minute,
		},
		Password: PasswordConfig{
			Memory:        64 * 1024,
			Time:          3,
			Parallelism:   2,
			SaltLength:    16,
			KeyLength:     32,
			RehashOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations that would weaken the security posture
// or cannot work at all.
func (c Config) Validate() error {
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.Key) < 32 {
			return errors.New("config: hs256 key must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 || len(c.Token.PublicKey) == 0 {
			return errors.New("config: ed25519 requires both key halves")
		}
	default:
		return fmt.Errorf("config: unsupported signing method %q", c.Token.SigningMethod)
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("config: refresh TTL must exceed access TTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("config: token leeway must be within [0, 2m]")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("config: session lifetime must be positive")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.MaxAttempts <= 0 || c.RateLimit.Lockout <= 0 {
		return errors.New("config: rate limit window, attempts, and lockout must be positive")
	}
	if c.TwoFactor.Digits < 6 || c.TwoFactor.Digits > 8 {
		return errors.New("config: totp digits must be between 6 and 8")
	}
	if c.TwoFactor.Period <= 0 {
		return errors.New("config: totp period must be positive")
	}
	if c.TwoFactor.ChallengeTTL <= 0 || c.TwoFactor.ChallengeAttempts <= 0 {
		return errors.New("config: two-factor challenge TTL and attempts must be positive")
	}
	if c.TwoFactor.GuessLimit <= 0 || c.TwoFactor.GuessCooldown <= 0 {
		return errors.New("config: two-factor guess limit and cooldown must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("config: audit buffer size must be positive")
	}
	return nil
}
