package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &RateLimiter{Redis: client}, mr
}

func TestRateLimiterLoginBan(t *testing.T) {
	ctx := context.Background()
	rl, mr := newTestLimiter(t)

	assert.False(t, rl.IsIPBanned(ctx, "203.0.113.9"))

	for i := 0; i < 4; i++ {
		require.NoError(t, rl.RegisterLoginFailure(ctx, "203.0.113.9"))
		assert.False(t, rl.IsIPBanned(ctx, "203.0.113.9"), "attempt %d", i+1)
	}
	require.NoError(t, rl.RegisterLoginFailure(ctx, "203.0.113.9"))
	assert.True(t, rl.IsIPBanned(ctx, "203.0.113.9"))

	assert.False(t, rl.IsIPBanned(ctx, "198.51.100.1"), "other addresses are unaffected")

	// The ban key runs its course even after a counter reset.
	rl.ResetLogin(ctx, "203.0.113.9")
	assert.True(t, rl.IsIPBanned(ctx, "203.0.113.9"))

	mr.FastForward(time.Hour + time.Second)
	assert.False(t, rl.IsIPBanned(ctx, "203.0.113.9"))
}

func TestRateLimiterLoginReset(t *testing.T) {
	ctx := context.Background()
	rl, _ := newTestLimiter(t)

	for i := 0; i < 4; i++ {
		require.NoError(t, rl.RegisterLoginFailure(ctx, "203.0.113.9"))
	}
	rl.ResetLogin(ctx, "203.0.113.9")

	// The budget restarts from zero.
	for i := 0; i < 4; i++ {
		require.NoError(t, rl.RegisterLoginFailure(ctx, "203.0.113.9"))
	}
	assert.False(t, rl.IsIPBanned(ctx, "203.0.113.9"))
}

func TestRateLimiterTwoFactorBudget(t *testing.T) {
	ctx := context.Background()
	rl, _ := newTestLimiter(t)

	for i := 0; i < 4; i++ {
		locked, err := rl.Register2FAFailure(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, locked, "attempt %d", i+1)
	}
	locked, err := rl.Register2FAFailure(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = rl.Register2FAFailure(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, locked, "budgets are per principal")

	rl.Reset2FA(ctx, "user-1")
	locked, err = rl.Register2FAFailure(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestRateLimiterRecoveryBudgets(t *testing.T) {
	ctx := context.Background()
	rl, _ := newTestLimiter(t)

	for i := 0; i < 4; i++ {
		locked, wait, err := rl.RegisterRecoveryAttempt(ctx, "Alice@Example.com", "203.0.113.9")
		require.NoError(t, err)
		assert.False(t, locked, "attempt %d", i+1)
		assert.Greater(t, wait, time.Duration(0))
	}
	locked, wait, err := rl.RegisterRecoveryAttempt(ctx, "alice@example.com", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, locked, "the email budget is case-insensitive")
	assert.LessOrEqual(t, wait, 15*time.Minute)

	// The address counter kept pace with the email, so a fresh target
	// behind the same address stays locked.
	locked, _, err = rl.RegisterRecoveryAttempt(ctx, "bob@example.com", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, _, err = rl.RegisterRecoveryAttempt(ctx, "carol@example.com", "198.51.100.7")
	require.NoError(t, err)
	assert.False(t, locked, "a fresh pair starts clean windows")

	rl.ResetRecovery(ctx, "ALICE@example.com")
	locked, _, err = rl.RegisterRecoveryAttempt(ctx, "alice@example.com", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, locked, "the address counter is already past its budget")

	locked, _, err = rl.RegisterRecoveryAttempt(ctx, "alice@example.com", "198.51.100.8")
	require.NoError(t, err)
	assert.False(t, locked, "the email budget restarted after the reset")
}

func TestRateLimiterRegisterBudgets(t *testing.T) {
	ctx := context.Background()
	rl, _ := newTestLimiter(t)

	for i := 0; i < 2; i++ {
		locked, _, err := rl.RegisterRegisterAttempt(ctx, "dup@example.com", "203.0.113.9")
		require.NoError(t, err)
		assert.False(t, locked, "attempt %d", i+1)
	}
	locked, wait, err := rl.RegisterRegisterAttempt(ctx, "dup@example.com", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, locked, "the email budget trips at three")
	assert.Greater(t, wait, time.Duration(0))

	// Distinct emails ride on the looser address budget.
	for i := 4; i <= 9; i++ {
		locked, _, err := rl.RegisterRegisterAttempt(ctx, fmt.Sprintf("user%d@example.com", i), "203.0.113.9")
		require.NoError(t, err)
		assert.False(t, locked, "attempt %d", i)
	}
	locked, _, err = rl.RegisterRegisterAttempt(ctx, "last@example.com", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, locked, "the address budget trips at ten")
}

func TestRateLimiterCooldown(t *testing.T) {
	ctx := context.Background()
	rl, mr := newTestLimiter(t)
	key := "signin_alert_cooldown:alice@example.com"

	assert.Equal(t, time.Duration(0), rl.CooldownTTL(ctx, key))

	rl.SetCooldown(ctx, key, EmailCooldown)
	ttl := rl.CooldownTTL(ctx, key)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, EmailCooldown)

	mr.FastForward(EmailCooldown + time.Second)
	assert.Equal(t, time.Duration(0), rl.CooldownTTL(ctx, key))
}

func TestRateLimiterSurfacesRedisErrors(t *testing.T) {
	ctx := context.Background()
	rl, mr := newTestLimiter(t)
	mr.Close()

	require.Error(t, rl.RegisterLoginFailure(ctx, "203.0.113.9"))

	_, err := rl.Register2FAFailure(ctx, "user-1")
	require.Error(t, err)

	_, _, err = rl.RegisterRecoveryAttempt(ctx, "alice@example.com", "203.0.113.9")
	require.Error(t, err)

	_, _, err = rl.RegisterRegisterAttempt(ctx, "alice@example.com", "203.0.113.9")
	require.Error(t, err)

	// Presence probes swallow errors and report the permissive answer.
	assert.False(t, rl.IsIPBanned(ctx, "203.0.113.9"))
	assert.Equal(t, time.Duration(0), rl.CooldownTTL(ctx, "signin_alert_cooldown:x"))
}
