package server

import (
	"net/http"
	"time"

	"authcore/internal/auth"
	"authcore/internal/i18n"
)

func (s *Server) handleRecoveryGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	batch, err := s.Auth.GenerateRecoveryCodes(ctx, userID)
	if err != nil {
		writeServiceError(w, s.Log, err)
		return
	}

	s.audit(ctx, auth.AuditEvent{
		EventType: auth.AuditRecoveryGenerated,
		UserID:    userID,
		IP:        clientIP(r, s.trustedProxies),
		UserAgent: r.UserAgent(),
		Meta:      map[string]interface{}{"count": len(batch.Codes)},
	})
	s.notifyRecoveryGeneratedAsync(userID, i18n.LocaleFromRequest(r), len(batch.Codes))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"codes":       batch.Codes,
		"generatedAt": batch.GeneratedAt,
		"message":     "Store these codes somewhere safe. They will not be shown again.",
	})
}

type recoveryCodeView struct {
	Position   int        `json:"position"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumedAt,omitempty"`
}

func (s *Server) handleRecoveryList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	info, err := s.Auth.ListRecoveryCodes(ctx, userID)
	if err != nil {
		writeServiceError(w, s.Log, err)
		return
	}

	codes := make([]recoveryCodeView, len(info.Codes))
	for i, c := range info.Codes {
		codes[i] = recoveryCodeView{Position: c.Position, Consumed: c.Consumed, ConsumedAt: c.ConsumedAt}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generatedAt": info.GeneratedAt,
		"total":       info.Total,
		"remaining":   info.Remaining,
		"codes":       codes,
	})
}

type recoveryVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Server) handleRecoveryVerify(w http.ResponseWriter, r *http.Request) {
	var req recoveryVerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)

	if locked, ttl, err := s.RateLimiter.RegisterRecoveryAttempt(ctx, req.Email, ip); err != nil {
		writeServiceError(w, s.Log, auth.Unavailable(err))
		return
	} else if locked {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"status":   http.StatusTooManyRequests,
			"message":  "Too many attempts. Try again later.",
			"cooldown": int64(ttl.Seconds()),
		})
		return
	}

	redemption, err := s.Auth.RedeemRecoveryCode(ctx, req.Email, req.Code)
	if err != nil {
		writeServiceError(w, s.Log, err)
		return
	}

	s.RateLimiter.ResetRecovery(ctx, req.Email)
	s.audit(ctx, auth.AuditEvent{
		EventType: auth.AuditRecoveryConsumed,
		UserID:    redemption.UserID,
		IP:        ip,
		UserAgent: r.UserAgent(),
		Meta:      map[string]interface{}{"remaining": redemption.Remaining},
	})
	s.notifyRecoveryUsedAsync(redemption.UserID, i18n.LocaleFromRequest(r), redemption.Remaining)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verified":   true,
		"consumedAt": redemption.ConsumedAt,
		"remaining":  redemption.Remaining,
	})
}
