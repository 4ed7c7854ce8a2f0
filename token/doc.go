// Package token issues and verifies the signed access and refresh tokens
// bound to server-side sessions. Tokens are never persisted; refresh
// revocation happens entirely through session invalidation in the caller.
package token
