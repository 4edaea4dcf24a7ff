package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// RecoveryBatchSize is the number of codes issued per batch.
	RecoveryBatchSize = 16
	// recoveryCodeLength is the rendered length: 8 random bytes as
	// uppercase hex, 64 bits of entropy per code.
	recoveryCodeLength = 16
)

var errRecoveryCodeMalformed = errors.New("recovery code is malformed")

// GenerateRecoveryBatch creates a full batch of single-use recovery codes.
// Codes are generated independently; a within-batch duplicate (vanishingly
// unlikely at 64 bits) is regenerated so every code in the batch is unique.
// Callers must treat the returned plaintext as show-once material.
func GenerateRecoveryBatch() ([]string, error) {
	codes := make([]string, 0, RecoveryBatchSize)
	seen := make(map[string]struct{}, RecoveryBatchSize)

	for len(codes) < RecoveryBatchSize {
		raw := make([]byte, recoveryCodeLength/2)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("generate recovery code: %w", err)
		}
		code := fmt.Sprintf("%X", raw)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// NewRecoveryCodeSet hashes a freshly generated batch into the stored form.
func NewRecoveryCodeSet(id, userID string, codes []string, now time.Time) *RecoveryCodeSet {
	hashed := make([]RecoveryCode, len(codes))
	for i, code := range codes {
		hashed[i] = RecoveryCode{Hash: HashRecoveryCode(code)}
	}
	return &RecoveryCodeSet{
		ID:          id,
		UserID:      userID,
		Codes:       hashed,
		GeneratedAt: now,
	}
}

// NormalizeRecoveryCode canonicalizes user input: surrounding space,
// grouping hyphens, and spaces are stripped and the result uppercased.
// Anything that is not then a 16-character hex string is rejected before
// hashing.
func NormalizeRecoveryCode(input string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(input))
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	if len(code) != recoveryCodeLength {
		return "", errRecoveryCodeMalformed
	}
	for _, r := range code {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return "", errRecoveryCodeMalformed
		}
	}
	return code, nil
}

// HashRecoveryCode returns the hex-encoded SHA-256 digest stored in place
// of the plaintext code.
func HashRecoveryCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// matchRecoveryCode scans every unconsumed code in the set with a
// constant-time digest comparison and reports the index of the match, or
// -1. The scan never exits early, so timing does not reveal which position
// (if any) matched.
func matchRecoveryCode(set *RecoveryCodeSet, codeHash string) int {
	matched := -1
	for i := range set.Codes {
		c := &set.Codes[i]
		eq := subtle.ConstantTimeCompare([]byte(c.Hash), []byte(codeHash)) == 1
		if eq && !c.Consumed && matched == -1 {
			matched = i
		}
	}
	return matched
}
