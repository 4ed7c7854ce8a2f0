package authcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/karsvik/authcore/audit"
	"github.com/karsvik/authcore/internal/challenge"
	"github.com/karsvik/authcore/metrics"
	"github.com/karsvik/authcore/otp"
	"github.com/karsvik/authcore/password"
	"github.com/karsvik/authcore/ratelimit"
	"github.com/karsvik/authcore/session"
	"github.com/karsvik/authcore/token"
)

// Builder assembles a [Service]. Configure it with the With* setters and
// call Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users        UserStore
	sessionStore session.Store
	hasher       PasswordHasher
	auditSink    audit.Sink
	logger       *slog.Logger
	clock        func() time.Time

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing rate limiting and pending two-factor
// challenges. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the account backend. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithSessionStore sets the session backend. Defaults to the in-memory
// store, which is only suitable for tests and single-process deployments.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessionStore = store
	return b
}

// WithPasswordHasher overrides the default Argon2id hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithAuditSink sets where dispatched audit events land. Without a sink,
// events are dropped.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.logger = log
	return b
}

// WithClock injects the time source, for deterministic tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	cfg := b.config
	log := b.logger
	if log == nil {
		log = slog.Default()
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}

	hasher := b.hasher
	if hasher == nil {
		var err error
		hasher, err = password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
	}

	tokens, err := token.NewManager(token.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		Key:           cfg.Token.Key,
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
		Clock:         now,
	})
	if err != nil {
		return nil, err
	}

	sessionStore := b.sessionStore
	if sessionStore == nil {
		sessionStore = session.NewMemoryStore()
	}

	var counters *metrics.Set
	if cfg.Metrics.Enabled {
		counters = metrics.NewSet()
	}

	svc := &Service{
		config:    cfg,
		users:     b.users,
		passwords: hasher,
		tokens:    tokens,
		sessions:  session.NewManager(sessionStore, cfg.Session.Lifetime, now),
		limiter: ratelimit.New(b.redis,
			ratelimit.WithLogger(log),
			ratelimit.WithClock(now),
		),
		totp: otp.NewEngine(otp.Config{
			Issuer: cfg.TwoFactor.Issuer,
			Digits: cfg.TwoFactor.Digits,
			Period: cfg.TwoFactor.Period,
			Skew:   cfg.TwoFactor.Skew,
		}),
		challenges: challenge.NewStore(b.redis, "login_attempt", now),
		guard:      newTOTPGuard(b.redis, cfg.TwoFactor.GuessLimit, cfg.TwoFactor.GuessCooldown, log),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: true,
		}, b.auditSink),
		metrics: counters,
		log:     log,
		now:     now,
	}

	b.built = true
	return svc, nil
}
