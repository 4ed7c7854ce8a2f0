package authcore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/karsvik/authcore/audit"
	"github.com/karsvik/authcore/internal/challenge"
	"github.com/karsvik/authcore/metrics"
	"github.com/karsvik/authcore/otp"
	"github.com/karsvik/authcore/ratelimit"
	"github.com/karsvik/authcore/session"
	"github.com/karsvik/authcore/token"
)

// Service is the authentication orchestrator. Construct it through
// [Builder.Build]; a Service is immutable and safe for concurrent use.
type Service struct {
	config     Config
	users      UserStore
	passwords  PasswordHasher
	tokens     *token.Manager
	sessions   *session.Manager
	limiter    *ratelimit.Limiter
	totp       *otp.Engine
	challenges *challenge.Store
	guard      *totpGuard
	audit      *audit.Dispatcher
	metrics    *metrics.Set
	log        *slog.Logger
	now        func() time.Time
}

// Close drains the audit dispatcher. Call it during shutdown; in-flight
// authentication calls are unaffected.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// AuditDropped reports how many audit events were shed because the
// dispatcher buffer was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns current counter values. It satisfies
// otelx.Source.
func (s *Service) MetricsSnapshot() metrics.Snapshot {
	if s == nil {
		return metrics.Snapshot{}
	}
	return s.metrics.Snapshot()
}

func (s *Service) metricInc(id metrics.ID) {
	s.metrics.Inc(id)
}

// emit fills the transport fields from ctx and hands the event to the
// dispatcher. Cheap when audit is disabled.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.Timestamp = s.now()
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = userAgentFromContext(ctx)
	}
	s.audit.Emit(ctx, event)
}

// clientKey builds the rate-limit client identifier. IP plus lowercase
// email: the user-agent is attacker-controlled and is deliberately left
// out, and the email component keeps one target's lockout from covering
// everyone behind the same NAT.
func clientKey(ip, email string) string {
	return ip + "|" + strings.ToLower(email)
}

func (s *Service) loginPolicy() ratelimit.Policy {
	return ratelimit.Policy{
		Window:      s.config.RateLimit.Window,
		MaxAttempts: s.config.RateLimit.MaxAttempts,
		Lockout:     s.config.RateLimit.Lockout,
	}
}

func denied(d ratelimit.Decision) *RateLimitedError {
	return &RateLimitedError{
		RetryAfter:  d.RetryAfter,
		Attempts:    d.Attempts,
		LockedUntil: d.LockedUntil,
	}
}
