package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// totpGuard is the per-user cooldown on wrong two-factor codes. It is
// independent of the per-challenge attempt budget and of the login rate
// limiter: codes can be guessed across many challenges, so the counter
// keys on the user, not the attempt.
type totpGuard struct {
	redis redis.UniversalClient
	limit int64
	ttl   time.Duration
	log   *slog.Logger
}

func newTOTPGuard(client redis.UniversalClient, limit int64, ttl time.Duration, log *slog.Logger) *totpGuard {
	if log == nil {
		log = slog.Default()
	}
	return &totpGuard{redis: client, limit: limit, ttl: ttl, log: log}
}

func (g *totpGuard) key(userID string) string {
	return "totp_guard:" + userID
}

// Check reports whether the user may attempt a code. Redis faults fail
// open: availability of login wins over counting.
func (g *totpGuard) Check(ctx context.Context, userID string) error {
	count, err := g.redis.Get(ctx, g.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		g.log.Warn("totp guard check failed, allowing", "error", err)
		return nil
	}
	if count >= g.limit {
		return ErrTwoFactorAttempts
	}
	return nil
}

// RecordFailure counts one wrong code. The cooldown window starts at the
// first failure.
func (g *totpGuard) RecordFailure(ctx context.Context, userID string) {
	count, err := g.redis.Incr(ctx, g.key(userID)).Result()
	if err != nil {
		g.log.Warn("totp guard record failed", "error", err)
		return
	}
	if count == 1 {
		if err := g.redis.Expire(ctx, g.key(userID), g.ttl).Err(); err != nil {
			g.log.Warn("totp guard expire failed", "error", err)
		}
	}
}

// Reset clears the counter after a correct code.
func (g *totpGuard) Reset(ctx context.Context, userID string) {
	if err := g.redis.Del(ctx, g.key(userID)).Err(); err != nil {
		g.log.Warn("totp guard reset failed", "error", err)
	}
}
