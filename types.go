package authcore

import (
	"context"
	"time"
)

// UserRecord is the account shape the service reads from a UserStore.
// PasswordHash is a PHC-encoded string; TwoFactorSecret is a Base32 TOTP
// secret, set while setup is pending or enabled and empty otherwise.
type UserRecord struct {
	ID               string
	Email            string
	PasswordHash     string
	Role             string
	TwoFactorEnabled bool
	TwoFactorSecret  string
	LastLogin        time.Time
}

// UserStore is the persistence surface the service requires for accounts.
// Implementations must return ErrUserNotFound (possibly wrapped) for
// missing records.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	GetUserByID(ctx context.Context, id string) (*UserRecord, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// SetTwoFactorSecret stores a pending secret and clears the enabled
	// flag; EnableTwoFactor flips the flag once the secret is confirmed;
	// DisableTwoFactor clears both.
	SetTwoFactorSecret(ctx context.Context, id, secret string) error
	EnableTwoFactor(ctx context.Context, id string) error
	DisableTwoFactor(ctx context.Context, id string) error
}

// PasswordHasher abstracts the credential hash so deployments can swap
// algorithms. NeedsRehash reports whether a stored hash was produced with
// weaker parameters than the hasher is configured for.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsRehash(encodedHash string) (bool, error)
}

// LoginResult is the outcome of Login. When RequiresTwoFactor is set, the
// token fields are empty and LoginAttemptID must be passed to
// VerifyTwoFactor together with a fresh code.
type LoginResult struct {
	AccessToken       string
	RefreshToken      string
	SessionID         string
	User              *UserRecord
	RequiresTwoFactor bool
	LoginAttemptID    string
}

// TOTPProvision is the outcome of SetupTOTP: the generated Base32 secret
// and the otpauth:// URI to render as a QR code. The secret stays pending
// until ConfirmTOTP sees a valid code.
type TOTPProvision struct {
	Secret string
	URI    string
}
