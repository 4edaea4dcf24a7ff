package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// EmailCooldown is the minimum gap between security emails to one address.
const EmailCooldown = 60 * time.Second

// loginBanTTL is how long an address stays banned after exhausting the
// login budget.
const loginBanTTL = 1 * time.Hour

// budget is one counting window: pushing a subject's counter to max
// within ttl locks it out until the window expires.
type budget struct {
	prefix string
	max    int64
	ttl    time.Duration
}

var (
	loginBudget         = budget{"login_attempts:", 5, 10 * time.Minute}
	twoFABudget         = budget{"2fa_attempts:", 5, 10 * time.Minute}
	recoveryEmailBudget = budget{"recovery_attempts:", 5, 15 * time.Minute}
	recoveryIPBudget    = budget{"recovery_attempts_ip:", 5, 15 * time.Minute}
	registerIPBudget    = budget{"register_attempts_ip:", 10, 30 * time.Minute}
	registerEmailBudget = budget{"register_attempts_email:", 3, 30 * time.Minute}
)

// charge pairs a budget with the subject it is charged against.
type charge struct {
	b       budget
	subject string
}

// RateLimiter tracks abuse counters in Redis. Counter increments surface
// their errors so guarded flows can refuse instead of failing open;
// expiry bookkeeping is fire-and-forget.
type RateLimiter struct {
	Redis *redis.Client
}

// hit bumps the subject's counter, arming the window on the first hit,
// and reports the running count with the window's remaining TTL.
func (r *RateLimiter) hit(ctx context.Context, b budget, subject string) (int64, time.Duration, error) {
	key := b.prefix + subject
	n, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if n == 1 {
		r.Redis.Expire(ctx, key, b.ttl)
	}
	ttl, _ := r.Redis.TTL(ctx, key).Result()
	return n, ttl, nil
}

func (r *RateLimiter) clear(ctx context.Context, b budget, subject string) {
	r.Redis.Del(ctx, b.prefix+subject)
}

// chargeAll charges every pair with a nonempty subject. Locked is true if
// any window is exhausted; wait is the longest remaining TTL among them.
func (r *RateLimiter) chargeAll(ctx context.Context, charges []charge) (locked bool, wait time.Duration, err error) {
	for _, c := range charges {
		if c.subject == "" {
			continue
		}
		n, ttl, err := r.hit(ctx, c.b, c.subject)
		if err != nil {
			return false, 0, err
		}
		if n >= c.b.max {
			locked = true
		}
		if ttl > wait {
			wait = ttl
		}
	}
	return locked, wait, nil
}

func loginBanKey(ip string) string { return "login_ban:" + ip }

// IsIPBanned reports whether the address is serving a login ban.
func (r *RateLimiter) IsIPBanned(ctx context.Context, ip string) bool {
	n, _ := r.Redis.Exists(ctx, loginBanKey(ip)).Result()
	return n == 1
}

// RegisterLoginFailure counts a failed password login for the address.
// Exhausting the budget sets the ban key and stretches the counter to the
// ban's lifetime.
func (r *RateLimiter) RegisterLoginFailure(ctx context.Context, ip string) error {
	n, _, err := r.hit(ctx, loginBudget, ip)
	if err != nil {
		return err
	}
	if n >= loginBudget.max {
		r.Redis.Set(ctx, loginBanKey(ip), "1", loginBanTTL)
		r.Redis.Expire(ctx, loginBudget.prefix+ip, loginBanTTL)
	}
	return nil
}

// ResetLogin clears the failure counter after a successful login. The ban
// key, once set, runs its course.
func (r *RateLimiter) ResetLogin(ctx context.Context, ip string) {
	r.clear(ctx, loginBudget, ip)
}

// Register2FAFailure counts a failed code submission for a principal: the
// user ID on session routes, the lowercased email on the email-addressed
// ones.
func (r *RateLimiter) Register2FAFailure(ctx context.Context, principal string) (bool, error) {
	n, _, err := r.hit(ctx, twoFABudget, principal)
	if err != nil {
		return false, err
	}
	return n >= twoFABudget.max, nil
}

func (r *RateLimiter) Reset2FA(ctx context.Context, principal string) {
	r.clear(ctx, twoFABudget, principal)
}

// RegisterRecoveryAttempt charges a recovery-code submission against both
// the target email and the source address before the code is checked.
func (r *RateLimiter) RegisterRecoveryAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	return r.chargeAll(ctx, []charge{
		{recoveryEmailBudget, strings.ToLower(email)},
		{recoveryIPBudget, ip},
	})
}

// ResetRecovery clears the email's recovery counter after a successful
// redemption. The per-address counter keeps running.
func (r *RateLimiter) ResetRecovery(ctx context.Context, email string) {
	if email == "" {
		return
	}
	r.clear(ctx, recoveryEmailBudget, strings.ToLower(email))
}

// RegisterRegisterAttempt charges a signup against the source address and,
// with a tighter budget, the submitted email.
func (r *RateLimiter) RegisterRegisterAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	return r.chargeAll(ctx, []charge{
		{registerIPBudget, ip},
		{registerEmailBudget, strings.ToLower(email)},
	})
}

// CooldownTTL reports the remaining time on a cooldown key, zero when none
// is running.
func (r *RateLimiter) CooldownTTL(ctx context.Context, key string) time.Duration {
	ttl, err := r.Redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

func (r *RateLimiter) SetCooldown(ctx context.Context, key string, ttl time.Duration) {
	r.Redis.Set(ctx, key, "1", ttl)
}
