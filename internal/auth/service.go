package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// Client-safe messages. Credential, code, and recovery failures are
// deliberately uniform so responses never reveal whether an email exists
// or which part of a submission was wrong.
const (
	msgInvalidCredentials = "Invalid email or password."
	msgInvalidCode        = "Invalid or expired code."
	msgInvalidRecovery    = "Invalid recovery code."
	msgNotFound           = "Not found."
)

type UserStore interface {
	Create(ctx context.Context, email, name, passwordHash string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	UpdateName(ctx context.Context, id, name string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

type TwoFactorStore interface {
	FindByUserID(ctx context.Context, userID string) (*TwoFactorRecord, error)
	SavePending(ctx context.Context, rec *TwoFactorRecord) error
	Enable(ctx context.Context, userID string, at time.Time) (*TwoFactorRecord, error)
	TouchVerified(ctx context.Context, userID string, at time.Time) error
	Delete(ctx context.Context, userID string) (bool, error)
}

type RecoveryStore interface {
	Replace(ctx context.Context, set *RecoveryCodeSet) error
	FindByUserID(ctx context.Context, userID string) (*RecoveryCodeSet, error)
	Consume(ctx context.Context, userID, codeHash string, at time.Time) (bool, error)
	Delete(ctx context.Context, userID string) error
}

// Service is the single entry point for every authentication flow:
// registration, login, the 2FA lifecycle, recovery codes, and profile
// maintenance. Handlers hold no flow logic of their own.
type Service struct {
	users     UserStore
	twoFactor TwoFactorStore
	recovery  RecoveryStore
	hasher    PasswordHasher
	totp      TOTPVerifier
	tokens    *TokenService
	cipher    *SecretCipher
	log       *slog.Logger

	// dummyHash soaks up a password comparison when the account does not
	// exist, so lookup failures cost the same as mismatches.
	dummyHash string

	// Now is overridable for deterministic tests; nil means time.Now.
	Now func() time.Time
}

func NewService(
	users UserStore,
	twoFactor TwoFactorStore,
	recovery RecoveryStore,
	hasher PasswordHasher,
	totp TOTPVerifier,
	tokens *TokenService,
	cipher *SecretCipher,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	dummy, err := hasher.Hash("equalize-timing-for-unknown-accounts")
	if err != nil {
		dummy = ""
	}
	return &Service{
		users:     users,
		twoFactor: twoFactor,
		recovery:  recovery,
		hasher:    hasher,
		totp:      totp,
		tokens:    tokens,
		cipher:    cipher,
		log:       log,
		dummyHash: dummy,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

var errEmailInvalid = errors.New("email address is invalid")

// NormalizeEmail canonicalizes an address for storage and lookups:
// trimmed, lowercased, syntax-checked. Lookups and uniqueness are
// case-insensitive as a consequence.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > 254 {
		return "", errEmailInvalid
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errEmailInvalid
	}
	return email, nil
}

// Register validates the submission, hashes the password, and persists the
// account. The returned User carries no secret material; the password nor
// its hash ever leave this layer.
func (s *Service) Register(ctx context.Context, email, name, password string) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, Invalid("Invalid email format.").WithDetail("field", "email")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Invalid("Name is required.").WithDetail("field", "name")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, Invalid(capitalize(err.Error()) + ".").WithDetail("field", "password")
	}

	existing, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, Conflict("An account with this email already exists.")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, Internal(err)
	}

	// The unique email index still backs this up if two registrations race
	// past the lookup; Create surfaces that as the same conflict.
	user, err := s.users.Create(ctx, normalized, name, hash)
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", "userId", user.ID)
	return user, nil
}

// LoginResult is returned on a successful password login. TwoFactorEnabled
// lets clients decide whether to prompt for a step-up verification; the
// token itself is issued on the password match alone, with 2FA and
// recovery exposed as independent verification endpoints.
type LoginResult struct {
	User             *User
	Token            string
	ExpiresAt        time.Time
	TwoFactorEnabled bool
}

// Login verifies the password and issues a session token. Unknown email
// and wrong password produce the same error and take the same hashing
// work.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, Unauthorized(msgInvalidCredentials)
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.hasher.Compare(s.dummyHash, password)
		return nil, Unauthorized(msgInvalidCredentials)
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, Unauthorized(msgInvalidCredentials)
	}

	rec, err := s.twoFactor.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, Internal(err)
	}

	s.log.Info("user logged in", "userId", user.ID)
	return &LoginResult{
		User:             user,
		Token:            token,
		ExpiresAt:        expiresAt,
		TwoFactorEnabled: rec.State() == TwoFactorEnabled,
	}, nil
}

// CurrentUser loads the profile behind a validated session token.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NotFound("User not found.")
	}
	return user, nil
}

// UpdateProfile changes the display name.
func (s *Service) UpdateProfile(ctx context.Context, userID, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Invalid("Name cannot be empty.").WithDetail("field", "name")
	}
	return s.users.UpdateName(ctx, userID, name)
}

// ChangePassword rotates the password after re-verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return Invalid(capitalize(err.Error()) + ".").WithDetail("field", "newPassword")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return NotFound("User not found.")
	}
	if !s.hasher.Compare(user.PasswordHash, currentPassword) {
		return Unauthorized("Current password is incorrect.")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return Internal(err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.log.Info("password changed", "userId", userID)
	return nil
}

// DeleteAccount removes the user and everything the account owns. The 2FA
// record and recovery batch go first so no orphaned credential material
// survives the user document.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return NotFound("User not found.")
	}

	if err := s.recovery.Delete(ctx, userID); err != nil {
		return err
	}
	if _, err := s.twoFactor.Delete(ctx, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	s.log.Info("account deleted", "userId", userID)
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
