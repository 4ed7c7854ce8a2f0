// Package audit defines the append-only security event log and the async
// dispatcher that fans events out to sinks. Audit writes are best-effort:
// they never block or fail an authentication flow, and events never carry
// secrets, passwords, or full token values.
package audit
