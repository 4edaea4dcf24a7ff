package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// minTokenSecretLength keeps HS256 keys at a sane strength.
const minTokenSecretLength = 32

// Distinct validation failures. All of them surface as the uniform 401 at
// the HTTP edge; in-process callers can tell them apart with errors.Is.
var (
	ErrTokenMalformed = errors.New("session token is malformed")
	ErrTokenSignature = errors.New("session token signature is invalid")
	ErrTokenExpired   = errors.New("session token is expired")
)

type TokenValidator interface {
	Validate(token string) (userID string, err error)
}

// SessionClaims is the signed claim set; the user identifier travels in the
// registered subject claim.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// TokenService mints and validates stateless HS256 session tokens. There
// is no server-side session state; expiry is the only lifecycle bound.
// Now is overridable for deterministic tests; nil means time.Now.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	Now    func() time.Time
}

func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < minTokenSecretLength {
		return nil, fmt.Errorf("session token secret must be at least %d bytes", minTokenSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("session token lifetime must be positive")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a fresh token for the user and returns it with its expiry.
func (s *TokenService) Issue(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies a token and returns the embedded user id.
// Failures map to the distinct sentinel errors above.
func (s *TokenService) Validate(raw string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", ErrTokenSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		default:
			return "", fmt.Errorf("parse session token: %w", err)
		}
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}
