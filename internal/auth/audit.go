package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Audit event types. Events carry identifiers and request metadata only,
// never credentials, codes, or hashes.
const (
	AuditUserRegistered    = "user.registered"
	AuditLoginSucceeded    = "login.succeeded"
	AuditLoginFailed       = "login.failed"
	AuditTwoFactorSetup    = "two_factor.setup"
	AuditTwoFactorEnabled  = "two_factor.enabled"
	AuditTwoFactorDisabled = "two_factor.disabled"
	AuditRecoveryGenerated = "recovery.generated"
	AuditRecoveryConsumed  = "recovery.consumed"
	AuditPasswordChanged   = "password.changed"
	AuditAccountDeleted    = "account.deleted"
)

type AuditEvent struct {
	EventType string                 `json:"eventType"`
	UserID    string                 `json:"userId,omitempty"`
	IP        string                 `json:"ip"`
	UserAgent string                 `json:"userAgent"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

type AuditLogger struct {
	Redis  *redis.Client
	MaxLen int64
}

func (a *AuditLogger) Log(ctx context.Context, e AuditEvent) error {
	e.Timestamp = time.Now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := "audit"
	if e.UserID != "" {
		key = "audit:" + e.UserID
	}

	pipe := a.Redis.Pipeline()
	pipe.RPush(ctx, key, data)
	if a.MaxLen > 0 {
		pipe.LTrim(ctx, key, -a.MaxLen, -1)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n of the newest events for a user, newest last.
func (a *AuditLogger) Recent(ctx context.Context, userID string, n int64) ([]AuditEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := a.Redis.LRange(ctx, "audit:"+userID, -n, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]AuditEvent, 0, len(raw))
	for _, item := range raw {
		var e AuditEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
