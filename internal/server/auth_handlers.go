package server

import (
	"net/http"

	"authcore/internal/auth"
	"authcore/internal/i18n"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)

	if locked, ttl, err := s.RateLimiter.RegisterRegisterAttempt(ctx, req.Email, ip); err != nil {
		writeServiceError(w, s.Log, auth.Unavailable(err))
		return
	} else if locked {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"status":   http.StatusTooManyRequests,
			"message":  "Too many signup attempts. Try again later.",
			"cooldown": int64(ttl.Seconds()),
		})
		return
	}

	user, err := s.Auth.Register(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		writeServiceError(w, s.Log, err)
		return
	}

	s.audit(ctx, auth.AuditEvent{
		EventType: auth.AuditUserRegistered,
		UserID:    user.ID,
		IP:        ip,
		UserAgent: r.UserAgent(),
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Registration successful! You can now sign in.",
		"user":    user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	locale := i18n.LocaleFromRequest(r)
	ip := clientIP(r, s.trustedProxies)
	ua := r.UserAgent()

	if s.RateLimiter.IsIPBanned(ctx, ip) {
		writeError(w, http.StatusTooManyRequests, "Too many failed attempts. Try again later.")
		return
	}

	result, err := s.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if auth.IsKind(err, auth.KindAuth) {
			_ = s.RateLimiter.RegisterLoginFailure(ctx, ip)
			s.audit(ctx, auth.AuditEvent{EventType: auth.AuditLoginFailed, IP: ip, UserAgent: ua})
		}
		writeServiceError(w, s.Log, err)
		return
	}

	s.RateLimiter.ResetLogin(ctx, ip)
	s.audit(ctx, auth.AuditEvent{
		EventType: auth.AuditLoginSucceeded,
		UserID:    result.User.ID,
		IP:        ip,
		UserAgent: ua,
	})
	s.sendSignInAlertAsync(result.User, locale, ip, deriveLocation(r), ua)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":             result.User,
		"token":            result.Token,
		"expiresAt":        result.ExpiresAt,
		"twoFactorEnabled": result.TwoFactorEnabled,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := s.Auth.CurrentUser(ctx, userID)
	if err != nil {
		writeServiceError(w, s.Log, err)
		return
	}
	status, err := s.Auth.GetTwoFactorStatus(ctx, userID)
	if err != nil {
		writeServiceError(w, s.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":               user.ID,
		"email":            user.Email,
		"name":             user.Name,
		"createdAt":        user.CreatedAt,
		"twoFactorEnabled": status.Enabled,
	})
}
