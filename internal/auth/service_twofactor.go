package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TwoFactorSetup is the show-once response to a setup request. None of
// these fields are ever returned again or written to logs.
type TwoFactorSetup struct {
	Secret     string
	OTPAuthURL string
	QRCode     string
}

// TwoFactorStatus reports the lifecycle position of a user's TOTP
// configuration.
type TwoFactorStatus struct {
	State          TwoFactorState
	Enabled        bool
	ConfirmedAt    *time.Time
	LastVerifiedAt *time.Time
}

// TwoFactorVerification is the result of a successful code check.
type TwoFactorVerification struct {
	Verified   bool
	VerifiedAt time.Time
}

func statusFromRecord(rec *TwoFactorRecord) *TwoFactorStatus {
	st := &TwoFactorStatus{State: rec.State()}
	if rec != nil {
		st.Enabled = rec.Enabled
		st.ConfirmedAt = rec.ConfirmedAt
		st.LastVerifiedAt = rec.LastVerifiedAt
	}
	return st
}

// SetupTwoFactor generates a fresh secret and moves the user to the
// pending-verification state. Repeating setup while pending replaces the
// secret; setup on an enabled configuration is a conflict (it must be
// disabled first).
func (s *Service) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NotFound("User not found.")
	}

	rec, err := s.twoFactor.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.State() == TwoFactorEnabled {
		return nil, Conflict("Two-factor authentication is already enabled.")
	}

	secret, otpauthURL, qr, err := s.totp.Generate(user.Email)
	if err != nil {
		return nil, Internal(err)
	}

	sealed, err := s.cipher.Seal(secret)
	if err != nil {
		return nil, Internal(err)
	}

	now := s.now()
	pending := &TwoFactorRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Secret:    sealed,
		Enabled:   false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.twoFactor.SavePending(ctx, pending); err != nil {
		return nil, err
	}

	s.log.Info("two-factor setup started", "userId", userID)
	return &TwoFactorSetup{Secret: secret, OTPAuthURL: otpauthURL, QRCode: qr}, nil
}

// VerifyTwoFactor checks a submitted code against the stored secret. On a
// pending configuration a valid code confirms it and flips it to enabled;
// on an enabled one it is a standing verification that stamps
// lastVerifiedAt. An invalid code changes nothing.
func (s *Service) VerifyTwoFactor(ctx context.Context, userID, code string) (*TwoFactorStatus, error) {
	rec, err := s.twoFactor.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, NotFound("Two-factor authentication is not set up.")
	}

	secret, err := s.cipher.Open(rec.Secret)
	if err != nil {
		return nil, Internal(err)
	}
	if !s.totp.Verify(secret, code) {
		return nil, Unauthorized(msgInvalidCode)
	}

	now := s.now()
	if !rec.Enabled {
		enabled, err := s.twoFactor.Enable(ctx, userID, now)
		if err != nil {
			return nil, err
		}
		if enabled != nil {
			s.log.Info("two-factor enabled", "userId", userID)
			return statusFromRecord(enabled), nil
		}
		// The pending record was enabled (or removed) by a concurrent
		// request between the read and the conditional update; fall
		// through to the standing path against the current state.
		rec, err = s.twoFactor.FindByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, NotFound("Two-factor authentication is not set up.")
		}
	}

	if err := s.twoFactor.TouchVerified(ctx, userID, now); err != nil {
		return nil, err
	}
	st := statusFromRecord(rec)
	st.LastVerifiedAt = &now
	return st, nil
}

// GetTwoFactorStatus reports the authenticated user's 2FA state.
func (s *Service) GetTwoFactorStatus(ctx context.Context, userID string) (*TwoFactorStatus, error) {
	rec, err := s.twoFactor.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return statusFromRecord(rec), nil
}

// DisableTwoFactor removes the configuration entirely, returning the user
// to the unconfigured state. A new setup must start from scratch.
func (s *Service) DisableTwoFactor(ctx context.Context, userID string) error {
	deleted, err := s.twoFactor.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return NotFound("Two-factor authentication is not configured.")
	}
	s.log.Info("two-factor disabled", "userId", userID)
	return nil
}

// GetTwoFactorStatusByEmail is the public status probe. It exposes the
// enabled boolean and nothing else; unknown addresses get the generic
// not-found shape.
func (s *Service) GetTwoFactorStatusByEmail(ctx context.Context, email string) (*TwoFactorStatus, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, NotFound(msgNotFound)
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NotFound(msgNotFound)
	}

	rec, err := s.twoFactor.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &TwoFactorStatus{State: rec.State(), Enabled: rec.State() == TwoFactorEnabled}, nil
}

// VerifyTwoFactorByEmail is the public code check used as an independent
// verification step. Every failure (unknown email, 2FA not enabled, bad
// code) collapses to the same uniform error.
func (s *Service) VerifyTwoFactorByEmail(ctx context.Context, email, code string) (*TwoFactorVerification, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, Unauthorized(msgInvalidCode)
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, Unauthorized(msgInvalidCode)
	}

	rec, err := s.twoFactor.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if rec.State() != TwoFactorEnabled {
		return nil, Unauthorized(msgInvalidCode)
	}

	secret, err := s.cipher.Open(rec.Secret)
	if err != nil {
		return nil, Internal(err)
	}
	if !s.totp.Verify(secret, code) {
		return nil, Unauthorized(msgInvalidCode)
	}

	now := s.now()
	if err := s.twoFactor.TouchVerified(ctx, user.ID, now); err != nil {
		return nil, err
	}

	s.log.Info("two-factor verified", "userId", user.ID)
	return &TwoFactorVerification{Verified: true, VerifiedAt: now}, nil
}
