// Package authcore provides the security core of an authentication system:
// password login with sliding-window rate limiting and lockout, TOTP-based
// two-factor flows, signed access/refresh token issuance, and server-side
// session tracking with soft-delete invalidation.
//
// The package is a library, not a server. Callers bind it to their own
// transport; examples/httpwire shows a minimal net/http wiring. Service
// methods are safe for concurrent use after initialization through
// [Builder.Build].
package authcore
