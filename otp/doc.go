// Package otp implements time-based one-time passwords (RFC 6238) on top of
// the HOTP truncation scheme (RFC 4226), together with the RFC 4648 Base32
// codec used to exchange secrets with authenticator apps.
//
// # Verification semantics
//
// [Engine.VerifyCode] evaluates every counter offset in the configured skew
// window and folds the comparisons together with constant-time operations, so
// neither the digit comparison nor the matching offset is observable through
// timing.
//
// # What this package must NOT do
//
//   - Persist secrets or track replay state (callers own both).
//   - Import any other authcore package.
package otp
