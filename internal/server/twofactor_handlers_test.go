package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) freshCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := ts.totp.CodeAt(secret, time.Now())
	require.NoError(t, err)
	return code
}

// mangleCode derives a well-formed code that matches neither the current
// nor the previous step for the secret.
func (ts *testServer) mangleCode(t *testing.T, secret string) string {
	t.Helper()
	bump := func(code string) string {
		d := code[len(code)-1]
		if d == '9' {
			d = '0'
		} else {
			d++
		}
		return code[:len(code)-1] + string(d)
	}
	now := time.Now()
	current, err := ts.totp.CodeAt(secret, now)
	require.NoError(t, err)
	previous, err := ts.totp.CodeAt(secret, now.Add(-30*time.Second))
	require.NoError(t, err)
	wrong := bump(current)
	if wrong == previous {
		wrong = bump(wrong)
	}
	return wrong
}

func TestTwoFactorLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@example.com", "Alice", "password-123")
	token, _ := ts.login(t, "alice@example.com", "password-123")

	rec := ts.do(t, http.MethodGet, "/api/two-factor/status", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unconfigured", decodeBody(t, rec)["state"])

	rec = ts.do(t, http.MethodPost, "/api/two-factor/setup", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	setup := decodeBody(t, rec)
	secret, _ := setup["secret"].(string)
	require.NotEmpty(t, secret)
	assert.Contains(t, setup["otpauthUrl"], "otpauth://totp/")
	assert.Contains(t, setup["qrCodeUrl"], "data:image/png;base64,")

	rec = ts.do(t, http.MethodGet, "/api/two-factor/status", nil, token)
	assert.Equal(t, "pending_verification", decodeBody(t, rec)["state"])

	rec = ts.do(t, http.MethodPost, "/api/two-factor/verify", map[string]string{"code": ts.freshCode(t, secret)}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	confirmed := decodeBody(t, rec)
	assert.Equal(t, "Two-factor authentication is now enabled.", confirmed["message"])
	assert.Equal(t, "enabled", confirmed["state"])
	assert.Equal(t, true, confirmed["enabled"])
	assert.NotEmpty(t, confirmed["confirmedAt"])

	// A later submission is a standing verification.
	rec = ts.do(t, http.MethodPost, "/api/two-factor/verify", map[string]string{"code": ts.freshCode(t, secret)}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	verified := decodeBody(t, rec)
	assert.Equal(t, "Code verified.", verified["message"])
	assert.NotEmpty(t, verified["lastVerifiedAt"])

	_, loginBody := ts.login(t, "alice@example.com", "password-123")
	assert.Equal(t, true, loginBody["twoFactorEnabled"])

	rec = ts.do(t, http.MethodPost, "/api/two-factor/disable", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Two-factor authentication disabled.", decodeBody(t, rec)["message"])

	rec = ts.do(t, http.MethodGet, "/api/two-factor/status", nil, token)
	assert.Equal(t, "unconfigured", decodeBody(t, rec)["state"])

	rec = ts.do(t, http.MethodPost, "/api/two-factor/disable", nil, token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTwoFactorVerifyRequestValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@example.com", "Alice", "password-123")
	token, _ := ts.login(t, "alice@example.com", "password-123")

	rec := ts.do(t, http.MethodPost, "/api/two-factor/verify", map[string]string{"code": "12345"}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request data", decodeBody(t, rec)["message"])

	// Without a configuration a well-formed code is a 404.
	rec = ts.do(t, http.MethodPost, "/api/two-factor/verify", map[string]string{"code": "123456"}, token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTwoFactorVerifyLockout(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@example.com", "Alice", "password-123")
	token, _ := ts.login(t, "alice@example.com", "password-123")

	rec := ts.do(t, http.MethodPost, "/api/two-factor/setup", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	secret := decodeBody(t, rec)["secret"].(string)

	for i := 0; i < 4; i++ {
		rec = ts.do(t, http.MethodPost, "/api/two-factor/verify", map[string]string{"code": ts.mangleCode(t, secret)}, token)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
		assert.Equal(t, "Invalid or expired code.", decodeBody(t, rec)["message"])
	}

	rec = ts.do(t, http.MethodPost, "/api/two-factor/verify", map[string]string{"code": ts.mangleCode(t, secret)}, token)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many attempts. Try again later.", decodeBody(t, rec)["message"])

	// The window passes and a correct code still enables.
	ts.mr.FastForward(10*time.Minute + time.Second)
	rec = ts.do(t, http.MethodPost, "/api/two-factor/verify", map[string]string{"code": ts.freshCode(t, secret)}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Two-factor authentication is now enabled.", decodeBody(t, rec)["message"])
}

func TestTwoFactorByEmailRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@example.com", "Alice", "password-123")
	token, _ := ts.login(t, "alice@example.com", "password-123")

	// Unknown addresses get the generic not-found shape.
	rec := ts.do(t, http.MethodPost, "/api/two-factor/status-by-email", map[string]string{"email": "nobody@example.com"}, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found.", decodeBody(t, rec)["message"])

	rec = ts.do(t, http.MethodPost, "/api/two-factor/status-by-email", map[string]string{"email": "alice@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody(t, rec)
	assert.Equal(t, "unconfigured", status["state"])
	assert.Equal(t, false, status["enabled"])

	rec = ts.do(t, http.MethodPost, "/api/two-factor/setup", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	secret := decodeBody(t, rec)["secret"].(string)
	rec = ts.do(t, http.MethodPost, "/api/two-factor/verify", map[string]string{"code": ts.freshCode(t, secret)}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/two-factor/status-by-email", map[string]string{"email": "Alice@Example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status = decodeBody(t, rec)
	assert.Equal(t, "enabled", status["state"])
	assert.Equal(t, true, status["enabled"])
	assert.NotContains(t, status, "confirmedAt", "the public probe exposes no timestamps")

	rec = ts.do(t, http.MethodPost, "/api/two-factor/verify-by-email", map[string]string{
		"email": "alice@example.com", "code": ts.freshCode(t, secret),
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["verified"])
	assert.NotEmpty(t, body["verifiedAt"])

	// Failures stay uniform across wrong codes and unknown addresses.
	wrong := ts.do(t, http.MethodPost, "/api/two-factor/verify-by-email", map[string]string{
		"email": "alice@example.com", "code": ts.mangleCode(t, secret),
	}, "")
	ghost := ts.do(t, http.MethodPost, "/api/two-factor/verify-by-email", map[string]string{
		"email": "nobody@example.com", "code": "123456",
	}, "")
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, ghost.Code)
	assert.Equal(t, wrong.Body.String(), ghost.Body.String())
}

func TestTwoFactorVerifyByEmailLockout(t *testing.T) {
	ts := newTestServer(t)

	// Even a nonexistent account locks out, so probing gives nothing away.
	for i := 0; i < 4; i++ {
		rec := ts.do(t, http.MethodPost, "/api/two-factor/verify-by-email", map[string]string{
			"email": "ghost@example.com", "code": "123456",
		}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := ts.do(t, http.MethodPost, "/api/two-factor/verify-by-email", map[string]string{
		"email": "Ghost@Example.com", "code": "123456",
	}, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many attempts. Try again later.", decodeBody(t, rec)["message"])
}
