package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"authcore/internal/auth"
	"authcore/internal/i18n"
)

const noticeTimeout = 10 * time.Second

// sendSignInAlertAsync emails a localized sign-in notice without blocking
// the login response. A per-address cooldown keeps rapid repeat logins
// from flooding the inbox.
func (s *Server) sendSignInAlertAsync(user *auth.User, locale, ip, location, device string) {
	if s.Mailer == nil || !s.Mailer.Enabled() {
		return
	}
	when := time.Now().UTC().Format(time.RFC1123)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), noticeTimeout)
		defer cancel()

		cooldownKey := fmt.Sprintf("signin_alert_cooldown:%s", strings.ToLower(user.Email))
		if ttl := s.RateLimiter.CooldownTTL(ctx, cooldownKey); ttl > 0 {
			return
		}

		content := i18n.SignInAlertEmail(locale, user.Email, when, ip, location, device)
		if err := s.Mailer.Send(ctx, user.Email, content.Subject, content.Text, content.HTML); err != nil {
			s.Log.Warn("sign-in alert send failed", "userId", user.ID, "error", err)
			return
		}
		s.RateLimiter.SetCooldown(ctx, cooldownKey, auth.EmailCooldown)
	}()
}

// notifyAsync looks up the recipient and sends a security notice in the
// background. Notices are best-effort; a failure only logs.
func (s *Server) notifyAsync(userID, locale string, build func(locale, when string) i18n.EmailContent) {
	if s.Mailer == nil || !s.Mailer.Enabled() {
		return
	}
	when := time.Now().UTC().Format(time.RFC1123)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), noticeTimeout)
		defer cancel()

		user, err := s.Auth.CurrentUser(ctx, userID)
		if err != nil {
			s.Log.Warn("security notice skipped", "userId", userID, "error", err)
			return
		}

		content := build(locale, when)
		if err := s.Mailer.Send(ctx, user.Email, content.Subject, content.Text, content.HTML); err != nil {
			s.Log.Warn("security notice send failed", "userId", userID, "error", err)
		}
	}()
}

func (s *Server) notifyTwoFactorChangeAsync(userID, locale string, enabled bool) {
	s.notifyAsync(userID, locale, func(locale, when string) i18n.EmailContent {
		if enabled {
			return i18n.TwoFactorEnabledEmail(locale, when)
		}
		return i18n.TwoFactorDisabledEmail(locale, when)
	})
}

func (s *Server) notifyRecoveryGeneratedAsync(userID, locale string, count int) {
	s.notifyAsync(userID, locale, func(locale, when string) i18n.EmailContent {
		return i18n.RecoveryCodesGeneratedEmail(locale, when, count)
	})
}

func (s *Server) notifyRecoveryUsedAsync(userID, locale string, remaining int) {
	s.notifyAsync(userID, locale, func(locale, when string) i18n.EmailContent {
		return i18n.RecoveryCodeUsedEmail(locale, when, remaining)
	})
}
