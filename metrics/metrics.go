// Package metrics provides lock-free counters for authentication flow
// observability. Counters live in cache-line-padded slots and are
// incremented atomically; the write path never allocates. Export lives in
// metrics/otelx and metrics/promtext, both reading [Snapshot] values.
package metrics

import "sync/atomic"

// ID indexes one counter.
type ID int

const (
	LoginSuccess ID = iota
	LoginFailure
	LoginRateLimited
	TwoFactorRequired
	TwoFactorSuccess
	TwoFactorFailure
	TokenRefreshed
	RefreshRejected
	SessionCreated
	SessionInvalidated
	RateLimiterFailOpen

	idCount
)

var names = [idCount]string{
	LoginSuccess:        "authcore_login_success_total",
	LoginFailure:        "authcore_login_failure_total",
	LoginRateLimited:    "authcore_login_rate_limited_total",
	TwoFactorRequired:   "authcore_two_factor_required_total",
	TwoFactorSuccess:    "authcore_two_factor_success_total",
	TwoFactorFailure:    "authcore_two_factor_failure_total",
	TokenRefreshed:      "authcore_token_refreshed_total",
	RefreshRejected:     "authcore_refresh_rejected_total",
	SessionCreated:      "authcore_session_created_total",
	SessionInvalidated:  "authcore_session_invalidated_total",
	RateLimiterFailOpen: "authcore_rate_limiter_fail_open_total",
}

// Name returns the export name for an ID, or "" for an unknown ID.
func (id ID) Name() string {
	if id < 0 || id >= idCount {
		return ""
	}
	return names[id]
}

// IDs lists every counter ID, in export order.
func IDs() []ID {
	out := make([]ID, idCount)
	for i := range out {
		out[i] = ID(i)
	}
	return out
}

// paddedCounter keeps each slot on its own cache line to avoid false
// sharing between hot counters.
type paddedCounter struct {
	v atomic.Uint64
	_ [56]byte
}

// Set is a fixed collection of counters. The zero value is unusable; use
// [NewSet]. A nil *Set ignores increments, which is how disabled metrics
// are modeled.
type Set struct {
	slots [idCount]paddedCounter
}

// NewSet returns a zeroed counter set.
func NewSet() *Set {
	return &Set{}
}

// Inc adds one to the counter. Safe on a nil receiver.
func (s *Set) Inc(id ID) {
	if s == nil || id < 0 || id >= idCount {
		return
	}
	s.slots[id].v.Add(1)
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Counters [idCount]uint64
}

// Get returns one counter's value from the snapshot.
func (s Snapshot) Get(id ID) uint64 {
	if id < 0 || id >= idCount {
		return 0
	}
	return s.Counters[id]
}

// Snapshot copies the current counter values. Values are individually
// atomic; the snapshot as a whole is not a consistent cut, which is fine
// for monotonic counters.
func (s *Set) Snapshot() Snapshot {
	var out Snapshot
	if s == nil {
		return out
	}
	for i := range s.slots {
		out.Counters[i] = s.slots[i].v.Load()
	}
	return out
}
