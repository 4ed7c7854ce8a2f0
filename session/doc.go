// Package session manages server-side session records: the sole source of
// truth for refresh-token validity. Sessions are soft-deleted on logout so
// the audit trail keeps the row.
//
// # Concurrency
//
// The Manager holds no cross-request state; all mutation goes through the
// backing [Store]. The lastAccessed touch on Validate is a deliberate
// last-writer-wins race.
package session
