package server

import (
	"net/http"
	"strings"

	"authcore/internal/auth"
	"authcore/internal/i18n"
)

func (s *Server) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	setup, err := s.Auth.SetupTwoFactor(ctx, userID)
	if err != nil {
		writeServiceError(w, s.Log, err)
		return
	}

	s.audit(ctx, auth.AuditEvent{
		EventType: auth.AuditTwoFactorSetup,
		UserID:    userID,
		IP:        clientIP(r, s.trustedProxies),
		UserAgent: r.UserAgent(),
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"secret":     setup.Secret,
		"otpauthUrl": setup.OTPAuthURL,
		"qrCodeUrl":  setup.QRCode,
		"message":    "Scan the QR code with your authenticator app, then verify a code to finish setup.",
	})
}

type twoFactorVerifyRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	var req twoFactorVerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Code) != 6 {
		writeError(w, http.StatusBadRequest, "Invalid request data")
		return
	}

	ctx := r.Context()
	userID := userIDFromContext(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	status, err := s.Auth.VerifyTwoFactor(ctx, userID, req.Code)
	if err != nil {
		if auth.IsKind(err, auth.KindAuth) {
			locked, _ := s.RateLimiter.Register2FAFailure(ctx, userID)
			if locked {
				writeError(w, http.StatusTooManyRequests, "Too many attempts. Try again later.")
				return
			}
		}
		writeServiceError(w, s.Log, err)
		return
	}
	s.RateLimiter.Reset2FA(ctx, userID)

	// A fresh enable has no standing verification stamp yet.
	enabledNow := status.State == auth.TwoFactorEnabled && status.LastVerifiedAt == nil

	message := "Code verified."
	if enabledNow {
		message = "Two-factor authentication is now enabled."
		s.audit(ctx, auth.AuditEvent{
			EventType: auth.AuditTwoFactorEnabled,
			UserID:    userID,
			IP:        clientIP(r, s.trustedProxies),
			UserAgent: r.UserAgent(),
		})
		s.notifyTwoFactorChangeAsync(userID, i18n.LocaleFromRequest(r), true)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":        message,
		"state":          status.State,
		"enabled":        status.Enabled || enabledNow,
		"confirmedAt":    status.ConfirmedAt,
		"lastVerifiedAt": status.LastVerifiedAt,
	})
}

func (s *Server) handleTwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	status, err := s.Auth.GetTwoFactorStatus(ctx, userID)
	if err != nil {
		writeServiceError(w, s.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":          status.State,
		"enabled":        status.Enabled,
		"confirmedAt":    status.ConfirmedAt,
		"lastVerifiedAt": status.LastVerifiedAt,
	})
}

func (s *Server) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := s.Auth.DisableTwoFactor(ctx, userID); err != nil {
		writeServiceError(w, s.Log, err)
		return
	}

	s.audit(ctx, auth.AuditEvent{
		EventType: auth.AuditTwoFactorDisabled,
		UserID:    userID,
		IP:        clientIP(r, s.trustedProxies),
		UserAgent: r.UserAgent(),
	})
	s.notifyTwoFactorChangeAsync(userID, i18n.LocaleFromRequest(r), false)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Two-factor authentication disabled.",
	})
}

type twoFactorStatusByEmailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleTwoFactorStatusByEmail(w http.ResponseWriter, r *http.Request) {
	var req twoFactorStatusByEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status, err := s.Auth.GetTwoFactorStatusByEmail(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, s.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":   status.State,
		"enabled": status.Enabled,
	})
}

type twoFactorVerifyByEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Server) handleTwoFactorVerifyByEmail(w http.ResponseWriter, r *http.Request) {
	var req twoFactorVerifyByEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Code) != 6 {
		writeError(w, http.StatusBadRequest, "Invalid request data")
		return
	}

	ctx := r.Context()
	principal := strings.ToLower(strings.TrimSpace(req.Email))

	verification, err := s.Auth.VerifyTwoFactorByEmail(ctx, req.Email, req.Code)
	if err != nil {
		if auth.IsKind(err, auth.KindAuth) {
			locked, _ := s.RateLimiter.Register2FAFailure(ctx, principal)
			if locked {
				writeError(w, http.StatusTooManyRequests, "Too many attempts. Try again later.")
				return
			}
		}
		writeServiceError(w, s.Log, err)
		return
	}
	s.RateLimiter.Reset2FA(ctx, principal)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verified":   verification.Verified,
		"verifiedAt": verification.VerifiedAt,
	})
}
