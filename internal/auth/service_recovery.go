package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecoveryBatch is the show-once response to batch generation. The
// plaintext codes exist only in this value; storage keeps digests.
type RecoveryBatch struct {
	Codes       []string
	GeneratedAt time.Time
}

// RecoveryCodeInfo is the client-visible metadata for one code of the
// active batch. Neither plaintext nor digest is exposed.
type RecoveryCodeInfo struct {
	Position   int
	Consumed   bool
	ConsumedAt *time.Time
}

// RecoveryBatchInfo describes the active batch without revealing any code
// material.
type RecoveryBatchInfo struct {
	GeneratedAt time.Time
	Total       int
	Remaining   int
	Codes       []RecoveryCodeInfo
}

// RecoveryRedemption is the result of consuming a recovery code.
type RecoveryRedemption struct {
	UserID     string
	ConsumedAt time.Time
	Remaining  int
}

// GenerateRecoveryCodes issues a fresh batch of sixteen single-use codes
// and atomically retires any previous batch. The plaintext is returned
// exactly once; only digests are stored.
func (s *Service) GenerateRecoveryCodes(ctx context.Context, userID string) (*RecoveryBatch, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NotFound("User not found.")
	}

	codes, err := GenerateRecoveryBatch()
	if err != nil {
		return nil, Internal(err)
	}

	now := s.now()
	set := NewRecoveryCodeSet(uuid.NewString(), userID, codes, now)
	if err := s.recovery.Replace(ctx, set); err != nil {
		return nil, err
	}

	s.log.Info("recovery codes generated", "userId", userID, "count", len(codes))
	return &RecoveryBatch{Codes: codes, GeneratedAt: now}, nil
}

// ListRecoveryCodes reports per-code consumption metadata for the active
// batch.
func (s *Service) ListRecoveryCodes(ctx context.Context, userID string) (*RecoveryBatchInfo, error) {
	set, err := s.recovery.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, NotFound("No recovery codes have been generated.")
	}

	info := &RecoveryBatchInfo{
		GeneratedAt: set.GeneratedAt,
		Total:       len(set.Codes),
		Remaining:   set.Remaining(),
		Codes:       make([]RecoveryCodeInfo, len(set.Codes)),
	}
	for i, c := range set.Codes {
		info.Codes[i] = RecoveryCodeInfo{Position: i + 1, Consumed: c.Consumed, ConsumedAt: c.ConsumedAt}
	}
	return info, nil
}

// RedeemRecoveryCode consumes a single-use code on the emergency-access
// path keyed only by email. All failures (unknown email, no batch,
// malformed or unknown code, already consumed, lost race) collapse to the
// same uniform error, and at most one of any concurrent submissions of the
// same code succeeds.
func (s *Service) RedeemRecoveryCode(ctx context.Context, email, code string) (*RecoveryRedemption, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, Unauthorized(msgInvalidRecovery)
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, Unauthorized(msgInvalidRecovery)
	}

	normCode, err := NormalizeRecoveryCode(code)
	if err != nil {
		return nil, Unauthorized(msgInvalidRecovery)
	}

	set, err := s.recovery.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, Unauthorized(msgInvalidRecovery)
	}

	codeHash := HashRecoveryCode(normCode)
	if matchRecoveryCode(set, codeHash) < 0 {
		return nil, Unauthorized(msgInvalidRecovery)
	}

	now := s.now()
	consumed, err := s.recovery.Consume(ctx, user.ID, codeHash, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// A concurrent submission of the same code won the conditional
		// update between our read and this write.
		return nil, Unauthorized(msgInvalidRecovery)
	}

	remaining := set.Remaining() - 1
	if fresh, err := s.recovery.FindByUserID(ctx, user.ID); err == nil && fresh != nil {
		remaining = fresh.Remaining()
	}

	s.log.Info("recovery code consumed", "userId", user.ID, "remaining", remaining)
	return &RecoveryRedemption{UserID: user.ID, ConsumedAt: now, Remaining: remaining}, nil
}
