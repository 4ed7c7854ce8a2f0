// Package password hashes credentials with Argon2id and verifies them in
// constant time. Hashes use the PHC string format, so parameters travel
// with each hash and NeedsRehash can detect stale ones after a policy
// change.
package password
