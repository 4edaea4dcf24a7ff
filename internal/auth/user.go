package auth

import "time"

// User is the stored account record. Email is unique and persisted
// lowercase; Name is the canonical display-name field.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TwoFactorState describes where a user's TOTP configuration sits.
// Unconfigured means no record exists (a disabled record is deleted, so
// Disabled and Unconfigured coincide in storage).
type TwoFactorState string

const (
	TwoFactorUnconfigured TwoFactorState = "unconfigured"
	TwoFactorPending      TwoFactorState = "pending_verification"
	TwoFactorEnabled      TwoFactorState = "enabled"
)

// TwoFactorRecord holds a user's TOTP configuration, 1:1 by UserID.
// Secret is base32, stored encrypted when a secret cipher is configured,
// and never returned to clients after the initial setup response.
type TwoFactorRecord struct {
	ID             string     `bson:"_id"`
	UserID         string     `bson:"userId"`
	Secret         string     `bson:"secret"`
	Enabled        bool       `bson:"enabled"`
	ConfirmedAt    *time.Time `bson:"confirmedAt,omitempty"`
	LastVerifiedAt *time.Time `bson:"lastVerifiedAt,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt"`
}

// State derives the lifecycle position; a nil record is Unconfigured.
func (r *TwoFactorRecord) State() TwoFactorState {
	switch {
	case r == nil:
		return TwoFactorUnconfigured
	case r.Enabled:
		return TwoFactorEnabled
	default:
		return TwoFactorPending
	}
}

// RecoveryCode is one entry of a user's active batch. Only the SHA-256
// digest of the code is stored.
type RecoveryCode struct {
	Hash       string     `bson:"hash"`
	Consumed   bool       `bson:"consumed"`
	ConsumedAt *time.Time `bson:"consumedAt,omitempty"`
}

// RecoveryCodeSet is the single active batch for a user. The whole batch
// lives in one document so replacement and consumption stay atomic.
type RecoveryCodeSet struct {
	ID          string         `bson:"_id"`
	UserID      string         `bson:"userId"`
	Codes       []RecoveryCode `bson:"codes"`
	GeneratedAt time.Time      `bson:"generatedAt"`
}

// Remaining counts codes that have not been consumed yet.
func (s *RecoveryCodeSet) Remaining() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, c := range s.Codes {
		if !c.Consumed {
			n++
		}
	}
	return n
}
