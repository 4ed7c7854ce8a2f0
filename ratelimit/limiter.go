package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	attemptsPrefix = "rate_limit:"
	lockoutPrefix  = "lockout:"

	defaultOpTimeout = 2 * time.Second
)

// Policy is one window/lockout budget. The limiter itself is policy-free so
// login and other flows can share one Limiter with different budgets.
type Policy struct {
	Window      time.Duration
	MaxAttempts int
	Lockout     time.Duration
}

// Decision is the outcome of a limit check or a recorded failure.
type Decision struct {
	Allowed     bool
	Attempts    int
	RetryAfter  time.Duration
	LockedUntil time.Time // zero unless a lockout is active
	// FailedOpen marks an allowance granted only because the backend was
	// unreachable, so callers can count degraded decisions.
	FailedOpen bool
}

// Limiter evaluates sliding-window budgets against Redis. ClientIDs are
// opaque; callers decide the keying scheme.
type Limiter struct {
	redis     redis.UniversalClient
	log       *slog.Logger
	now       func() time.Time
	opTimeout time.Duration
}

// Option configures a [Limiter].
type Option func(*Limiter)

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithOpTimeout bounds each Redis call when the caller's context has no
// deadline of its own.
func WithOpTimeout(d time.Duration) Option {
	return func(l *Limiter) { l.opTimeout = d }
}

// New returns a [Limiter] backed by the given Redis client.
func New(client redis.UniversalClient, opts ...Option) *Limiter {
	l := &Limiter{
		redis:     client,
		log:       slog.Default(),
		now:       time.Now,
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check evaluates the client against the policy without recording an
// attempt. Denial carries the attempt count and the remaining wait.
func (l *Limiter) Check(ctx context.Context, clientID string, p Policy) Decision {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	now := l.now()

	if d, blocked, err := l.checkLockout(ctx, clientID, now); err != nil {
		return l.failOpen("check", err)
	} else if blocked {
		return d
	}

	attempts, oldest, err := l.pruneAndCount(ctx, clientID, p, now, "")
	if err != nil {
		return l.failOpen("check", err)
	}
	if attempts >= p.MaxAttempts {
		return Decision{
			Attempts:   attempts,
			RetryAfter: retryFromOldest(oldest, p.Window, now),
		}
	}

	return Decision{Allowed: true, Attempts: attempts}
}

// RecordFailure appends an attempt timestamp, refreshes the window TTL, and
// arms the lockout key once the post-increment count reaches the budget.
// The returned Decision reflects the state after this failure.
func (l *Limiter) RecordFailure(ctx context.Context, clientID string, p Policy) Decision {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	now := l.now()

	// Unique members keep two same-millisecond failures as two entries.
	attempts, oldest, err := l.pruneAndCount(ctx, clientID, p, now, uuid.NewString())
	if err != nil {
		return l.failOpen("record", err)
	}

	if attempts >= p.MaxAttempts {
		until := now.Add(p.Lockout)
		if err := l.redis.Set(ctx, lockoutPrefix+clientID, until.UnixMilli(), p.Lockout).Err(); err != nil {
			return l.failOpen("record", err)
		}
		// The lockout supersedes the window. Dropping the window here means
		// the first check after the lockout expires starts from a clean
		// budget even when the window outlasts the lockout.
		if err := l.redis.Del(ctx, attemptsPrefix+clientID).Err(); err != nil {
			l.log.Warn("rate limiter window reset failed", "client", clientID, "error", err)
		}
		return Decision{
			Attempts:    attempts,
			RetryAfter:  p.Lockout,
			LockedUntil: until,
		}
	}

	return Decision{
		Allowed:    true,
		Attempts:   attempts,
		RetryAfter: retryFromOldest(oldest, p.Window, now),
	}
}

// Reset clears both the window and any lockout. Called after a successful
// authentication.
func (l *Limiter) Reset(ctx context.Context, clientID string) error {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	if err := l.redis.Del(ctx, attemptsPrefix+clientID, lockoutPrefix+clientID).Err(); err != nil {
		l.log.Warn("rate limiter reset failed", "error", err)
		return err
	}
	return nil
}

func (l *Limiter) checkLockout(ctx context.Context, clientID string, now time.Time) (Decision, bool, error) {
	deadlineMs, err := l.redis.Get(ctx, lockoutPrefix+clientID).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Decision{}, false, nil
		}
		return Decision{}, false, err
	}

	until := time.UnixMilli(deadlineMs)
	if now.Before(until) {
		return Decision{
			RetryAfter:  until.Sub(now),
			LockedUntil: until,
		}, true, nil
	}

	// Stale deadline that outlived its TTL (clock drift); clear it.
	if err := l.redis.Del(ctx, lockoutPrefix+clientID).Err(); err != nil {
		return Decision{}, false, err
	}
	return Decision{}, false, nil
}

// pruneAndCount runs prune (+optional append) + count as one MULTI/EXEC
// pipeline and returns the surviving attempt count with the oldest score.
func (l *Limiter) pruneAndCount(
	ctx context.Context,
	clientID string,
	p Policy,
	now time.Time,
	appendMember string,
) (int, time.Time, error) {
	key := attemptsPrefix + clientID
	cutoff := strconv.FormatInt(now.Add(-p.Window).UnixMilli(), 10)

	var count *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", cutoff)
		if appendMember != "" {
			pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: appendMember})
			pipe.Expire(ctx, key, p.Window)
		}
		count = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, err
	}

	var oldestAt time.Time
	if entries := oldest.Val(); len(entries) > 0 {
		oldestAt = time.UnixMilli(int64(entries[0].Score))
	}
	return int(count.Val()), oldestAt, nil
}

func (l *Limiter) failOpen(op string, err error) Decision {
	l.log.Warn("rate limiter backend unavailable, failing open", "op", op, "error", err)
	return Decision{Allowed: true, FailedOpen: true}
}

func (l *Limiter) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.opTimeout)
}

func retryFromOldest(oldest time.Time, window time.Duration, now time.Time) time.Duration {
	if oldest.IsZero() {
		return 0
	}
	if d := oldest.Add(window).Sub(now); d > 0 {
		return d
	}
	return 0
}
