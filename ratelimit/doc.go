// Package ratelimit implements a Redis-backed sliding-window attempt
// counter with an independent lockout key.
//
// # Key layout
//
//   - rate_limit:{clientID} — sorted set of attempt timestamps (ms scores,
//     unique members), pruned to the window on every touch
//   - lockout:{clientID}    — lockout deadline in unix ms, with its own TTL
//
// # Window semantics
//
// Prune+count and prune+append+count each run as one MULTI/EXEC pipeline, so
// two concurrent failed attempts from the same client can never collapse
// into one. At most one lockout exists per client: a stale deadline is
// cleared on the next check.
//
// # Failure policy
//
// Backend faults fail OPEN: the request is allowed and the fault is logged.
// A Redis outage must not lock every client out of login.
package ratelimit
