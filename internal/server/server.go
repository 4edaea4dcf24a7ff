package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"authcore/internal/auth"
	"authcore/internal/config"
	"authcore/internal/email"
)

type Server struct {
	Auth           *auth.Service
	Tokens         auth.TokenValidator
	RateLimiter    *auth.RateLimiter
	Audit          *auth.AuditLogger
	Mailer         *email.Sender
	DB             *mongo.Database
	Config         config.Config
	Log            *slog.Logger
	trustedProxies []net.IPNet
}

func NewServer(cfg config.Config, db *mongo.Database, svc *auth.Service, tokens auth.TokenValidator, rl *auth.RateLimiter, audit *auth.AuditLogger, mailer *email.Sender, log *slog.Logger) *Server {
	return &Server{
		Auth:           svc,
		Tokens:         tokens,
		RateLimiter:    rl,
		Audit:          audit,
		Mailer:         mailer,
		DB:             db,
		Config:         cfg,
		Log:            log,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.Config.RequestTimeout))
	r.Use(secureHeaders)
	if len(s.Config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Accept-Language"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.handleHealth)

	r.Post("/api/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)

	// Email-addressed two-factor and recovery routes serve clients that do
	// not hold a session token. Responses stay uniform to avoid account
	// enumeration.
	r.Post("/api/two-factor/status-by-email", s.handleTwoFactorStatusByEmail)
	r.Post("/api/two-factor/verify-by-email", s.handleTwoFactorVerifyByEmail)
	r.Post("/api/recovery-codes/verify", s.handleRecoveryVerify)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireAuth)

		pr.Get("/api/auth/me", s.handleMe)

		pr.Post("/api/two-factor/setup", s.handleTwoFactorSetup)
		pr.Post("/api/two-factor/verify", s.handleTwoFactorVerify)
		pr.Get("/api/two-factor/status", s.handleTwoFactorStatus)
		pr.Post("/api/two-factor/disable", s.handleTwoFactorDisable)

		pr.Post("/api/recovery-codes/generate", s.handleRecoveryGenerate)
		pr.Get("/api/recovery-codes", s.handleRecoveryList)

		pr.Post("/api/profile/update-profile", s.handleUpdateProfile)
		pr.Post("/api/profile/change-password", s.handleChangePassword)
		pr.Delete("/api/profile/delete-account", s.handleDeleteAccount)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.DB != nil {
		if err := s.DB.Client().Ping(ctx, nil); err != nil {
			s.Log.Warn("health check failed", "component", "mongo", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	if s.RateLimiter != nil && s.RateLimiter.Redis != nil {
		if err := s.RateLimiter.Redis.Ping(ctx).Err(); err != nil {
			s.Log.Warn("health check failed", "component", "redis", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// audit records a security event best-effort. A failed write never fails
// the request that produced it.
func (s *Server) audit(ctx context.Context, e auth.AuditEvent) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Log(ctx, e); err != nil {
		s.Log.Warn("audit write failed", "eventType", e.EventType, "error", err)
	}
}
