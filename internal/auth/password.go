package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the registration/change policy minimum.
	MinPasswordLength = 8
	// MaxPasswordLength matches bcrypt's input ceiling; longer passwords
	// would be rejected by the hash function anyway.
	MaxPasswordLength = 72
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

func (b *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (b *BcryptHasher) Compare(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var (
	errPasswordEmpty    = errors.New("password is required")
	errPasswordTooShort = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	errPasswordTooLong  = fmt.Errorf("password must be at most %d bytes long", MaxPasswordLength)
)

// ValidatePassword enforces the account password policy.
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return errPasswordEmpty
	case len(password) < MinPasswordLength:
		return errPasswordTooShort
	case len(password) > MaxPasswordLength:
		return errPasswordTooLong
	}
	return nil
}
