package auth

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30 * time.Second
	totpDigits = 6
)

type TOTPVerifier interface {
	Verify(secret, code string) bool
	Generate(account string) (secret string, otpauthURL string, qrDataURL string, err error)
}

// TOTPService implements TOTP generation and verification with a 30-second
// step and 6-digit codes. Now is overridable for deterministic tests; nil
// means time.Now.
type TOTPService struct {
	Issuer string
	Now    func() time.Time
}

func NewTOTPService(issuer string) *TOTPService {
	return &TOTPService{Issuer: issuer}
}

func (t *TOTPService) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Generate creates a fresh random secret for the account and returns it
// together with the otpauth:// provisioning URI and a QR code rendered as
// a PNG data URL. The secret is shown to the caller exactly once.
func (t *TOTPService) Generate(account string) (string, string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: account,
		Period:      uint(totpPeriod / time.Second),
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return "", "", "", err
	}

	secret := key.Secret()
	otpauth := key.URL()

	img, err := key.Image(200, 200)
	if err != nil {
		return secret, otpauth, "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return secret, otpauth, "", err
	}
	qr := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	return secret, otpauth, qr, nil
}

// CodeAt returns the code the secret produces for the step containing ts.
func (t *TOTPService) CodeAt(secret string, ts time.Time) (string, error) {
	return totp.GenerateCode(secret, ts)
}

// Verify accepts the code for the current step and, to absorb client clock
// drift, the immediately preceding step. Anything older (or from a future
// step) fails. Input that is not exactly six ASCII digits is rejected
// before any code derivation, and code comparison is constant-time without
// early exit between the two accepted steps.
func (t *TOTPService) Verify(secret, code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}

	now := t.now()
	match := 0
	for _, offset := range []time.Duration{0, -totpPeriod} {
		expected, err := totp.GenerateCode(secret, now.Add(offset))
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			match = 1
		}
	}
	return match == 1
}
