package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// In-memory store fakes mirroring the repositories' conditional-update
// semantics, including the single-winner rule on recovery consumption.

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*User)}
}

func (s *memUserStore) Create(ctx context.Context, email, name, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return nil, Conflict("An account with this email already exists.")
		}
	}
	now := time.Now().UTC()
	u := &User{ID: uuid.NewString(), Email: email, Name: name, PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *memUserStore) UpdateName(ctx context.Context, id, name string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, NotFound("User not found.")
	}
	u.Name = name
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (s *memUserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return NotFound("User not found.")
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memUserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

type memTwoFactorStore struct {
	mu   sync.Mutex
	recs map[string]*TwoFactorRecord
}

func newMemTwoFactorStore() *memTwoFactorStore {
	return &memTwoFactorStore{recs: make(map[string]*TwoFactorRecord)}
}

func (s *memTwoFactorStore) FindByUserID(ctx context.Context, userID string) (*TwoFactorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[userID]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (s *memTwoFactorStore) SavePending(ctx context.Context, rec *TwoFactorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.recs[rec.UserID]; ok && existing.Enabled {
		return Conflict("Two-factor authentication is already enabled.")
	}
	cp := *rec
	s.recs[rec.UserID] = &cp
	return nil
}

func (s *memTwoFactorStore) Enable(ctx context.Context, userID string, at time.Time) (*TwoFactorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[userID]
	if !ok || rec.Enabled {
		return nil, nil
	}
	rec.Enabled = true
	rec.ConfirmedAt = &at
	rec.UpdatedAt = at
	cp := *rec
	return &cp, nil
}

func (s *memTwoFactorStore) TouchVerified(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[userID]; ok && rec.Enabled {
		rec.LastVerifiedAt = &at
		rec.UpdatedAt = at
	}
	return nil
}

func (s *memTwoFactorStore) Delete(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recs[userID]
	delete(s.recs, userID)
	return ok, nil
}

type memRecoveryStore struct {
	mu   sync.Mutex
	sets map[string]*RecoveryCodeSet
}

func newMemRecoveryStore() *memRecoveryStore {
	return &memRecoveryStore{sets: make(map[string]*RecoveryCodeSet)}
}

func (s *memRecoveryStore) copySet(set *RecoveryCodeSet) *RecoveryCodeSet {
	cp := *set
	cp.Codes = append([]RecoveryCode(nil), set.Codes...)
	return &cp
}

func (s *memRecoveryStore) Replace(ctx context.Context, set *RecoveryCodeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[set.UserID] = s.copySet(set)
	return nil
}

func (s *memRecoveryStore) FindByUserID(ctx context.Context, userID string) (*RecoveryCodeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[userID]
	if !ok {
		return nil, nil
	}
	return s.copySet(set), nil
}

func (s *memRecoveryStore) Consume(ctx context.Context, userID, codeHash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[userID]
	if !ok {
		return false, nil
	}
	for i := range set.Codes {
		c := &set.Codes[i]
		if c.Hash == codeHash && !c.Consumed {
			c.Consumed = true
			c.ConsumedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (s *memRecoveryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, userID)
	return nil
}

type testEnv struct {
	svc       *Service
	users     *memUserStore
	twoFactor *memTwoFactorStore
	recovery  *memRecoveryStore
	totp      *TOTPService
	tokens    *TokenService
}

func newTestEnv(t *testing.T, cipher *SecretCipher) *testEnv {
	t.Helper()

	users := newMemUserStore()
	twoFactor := newMemTwoFactorStore()
	recovery := newMemRecoveryStore()
	totp := NewTOTPService("AuthCore")
	tokens, err := NewTokenService(testTokenSecret, "authcore", time.Hour)
	require.NoError(t, err)

	hasher := &BcryptHasher{Cost: bcrypt.MinCost}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(users, twoFactor, recovery, hasher, totp, tokens, cipher, log)

	return &testEnv{
		svc:       svc,
		users:     users,
		twoFactor: twoFactor,
		recovery:  recovery,
		totp:      totp,
		tokens:    tokens,
	}
}

func (e *testEnv) register(t *testing.T, email, name, password string) *User {
	t.Helper()
	user, err := e.svc.Register(context.Background(), email, name, password)
	require.NoError(t, err)
	return user
}
