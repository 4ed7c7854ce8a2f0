package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// EventType names one kind of security event.
type EventType string

const (
	EventLoginSuccess      EventType = "LOGIN_SUCCESS"
	EventLoginFailed       EventType = "LOGIN_FAILED"
	EventLoginRateLimited  EventType = "LOGIN_RATE_LIMITED"
	EventLogout            EventType = "LOGOUT"
	EventLogoutAll         EventType = "LOGOUT_ALL"
	EventTokenRefreshed    EventType = "TOKEN_REFRESHED"
	EventRefreshRejected   EventType = "REFRESH_REJECTED"
	EventTwoFactorRequired EventType = "2FA_REQUIRED"
	EventTwoFactorSuccess  EventType = "2FA_SUCCESS"
	EventTwoFactorFailed   EventType = "2FA_FAILED"
	EventTwoFactorSetup    EventType = "2FA_SETUP_STARTED"
	EventTwoFactorEnabled  EventType = "2FA_ENABLED"
	EventTwoFactorDisabled EventType = "2FA_DISABLED"
)

// Metadata is the tagged union of per-event payloads. Concrete shapes stay
// typed through the core; they are serialized (to JSON) only at the storage
// boundary.
type Metadata interface {
	auditMetadata()
}

// LoginFailedMeta accompanies EventLoginFailed.
type LoginFailedMeta struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// RateLimitedMeta accompanies EventLoginRateLimited.
type RateLimitedMeta struct {
	Identifier        string `json:"identifier"`
	Attempts          int    `json:"attempts"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// RefreshMeta accompanies EventTokenRefreshed and EventRefreshRejected.
type RefreshMeta struct {
	Reason string `json:"reason,omitempty"`
}

// TwoFactorMeta accompanies the 2FA event kinds.
type TwoFactorMeta struct {
	AttemptID string `json:"attempt_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// SessionsMeta accompanies EventLogoutAll.
type SessionsMeta struct {
	Invalidated int `json:"invalidated"`
}

func (LoginFailedMeta) auditMetadata() {}
func (RateLimitedMeta) auditMetadata() {}
func (RefreshMeta) auditMetadata()     {}
func (TwoFactorMeta) auditMetadata()   {}
func (SessionsMeta) auditMetadata()    {}

// Event is one append-only security log entry. The core never mutates or
// deletes emitted events.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"event_type"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// Sink receives dispatched events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events into a buffered channel, for tests and custom
// pipelines.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line. Metadata is flattened to
// its concrete shape here, at the serialization boundary.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// EntryWriter persists events; implemented by the postgres security log.
type EntryWriter interface {
	AppendSecurityLog(ctx context.Context, event Event) error
}

// StoreSink appends events to an [EntryWriter]. Write failures are logged
// and swallowed so a log-store outage cannot block authentication.
type StoreSink struct {
	writer EntryWriter
	log    *slog.Logger
}

func NewStoreSink(writer EntryWriter, log *slog.Logger) *StoreSink {
	if log == nil {
		log = slog.Default()
	}
	return &StoreSink{writer: writer, log: log}
}

func (s *StoreSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	if err := s.writer.AppendSecurityLog(ctx, event); err != nil {
		s.log.Warn("audit append failed", "event_type", event.Type, "error", err)
	}
}
