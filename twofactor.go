package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/karsvik/authcore/audit"
)

// SetupTOTP starts two-factor enrollment: it generates a fresh secret,
// stores it pending, and returns the provisioning URI to show as a QR
// code. Nothing is enforced until [Service.ConfirmTOTP] sees a valid code,
// so a user who never finishes scanning is not locked out. Calling it
// again replaces the pending secret.
func (s *Service) SetupTOTP(ctx context.Context, userID string) (*TOTPProvision, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	_, secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if err := s.users.SetTwoFactorSecret(ctx, user.ID, secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	s.emit(ctx, audit.Event{
		Type:    audit.EventTwoFactorSetup,
		UserID:  user.ID,
		Success: true,
	})

	return &TOTPProvision{
		Secret: secret,
		URI:    s.totp.ProvisioningURI(secret, user.Email),
	}, nil
}

// ConfirmTOTP proves the authenticator was provisioned by checking one code
// against the pending secret, then enables enforcement. Until this
// succeeds the account still logs in with password alone.
func (s *Service) ConfirmTOTP(ctx context.Context, userID, code string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if user.TwoFactorSecret == "" || user.TwoFactorEnabled {
		return ErrTwoFactorNotPending
	}

	if err := s.checkCode(ctx, user, code); err != nil {
		return err
	}

	if err := s.users.EnableTwoFactor(ctx, user.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	s.emit(ctx, audit.Event{
		Type:    audit.EventTwoFactorEnabled,
		UserID:  user.ID,
		Success: true,
	})
	return nil
}

// DisableTOTP turns enforcement off. It demands a valid current code, so a
// stolen session cannot quietly strip the second factor.
func (s *Service) DisableTOTP(ctx context.Context, userID, code string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	if err := s.checkCode(ctx, user, code); err != nil {
		return err
	}

	if err := s.users.DisableTwoFactor(ctx, user.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	s.emit(ctx, audit.Event{
		Type:    audit.EventTwoFactorDisabled,
		UserID:  user.ID,
		Success: true,
	})
	return nil
}

// VerifyTOTP checks a code for an already-enabled account outside the login
// flow, for step-up confirmation of sensitive actions.
func (s *Service) VerifyTOTP(ctx context.Context, userID, code string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}
	return s.checkCode(ctx, user, code)
}

// checkCode verifies one code against the user's stored secret under the
// per-user guess cooldown.
func (s *Service) checkCode(ctx context.Context, user *UserRecord, code string) error {
	if err := s.guard.Check(ctx, user.ID); err != nil {
		return err
	}

	ok, err := s.totp.VerifyCode(user.TwoFactorSecret, code, s.now())
	if err != nil || !ok {
		s.guard.RecordFailure(ctx, user.ID)
		s.emit(ctx, audit.Event{
			Type:     audit.EventTwoFactorFailed,
			UserID:   user.ID,
			Success:  false,
			Error:    ErrTwoFactorInvalid.Error(),
			Metadata: audit.TwoFactorMeta{Reason: "code_mismatch"},
		})
		return ErrTwoFactorInvalid
	}

	s.guard.Reset(ctx, user.ID)
	return nil
}
