package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authcore/internal/auth"
	"authcore/internal/config"
	"authcore/internal/database"
	"authcore/internal/email"
	"authcore/internal/logging"
	"authcore/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	log, closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		slog.Error("log setup error", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	db, err := database.Connect(cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		log.Error("database error", "error", err)
		os.Exit(1)
	}
	defer func() { _ = database.Disconnect(db) }()

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.EnsureIndexes(indexCtx, db)
	cancelIndex()
	if err != nil {
		log.Error("index setup error", "error", err)
		os.Exit(1)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Error("redis error", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	mailer, err := email.NewSender(cfg.Email)
	if err != nil {
		log.Error("mailer error", "error", err)
		os.Exit(1)
	}
	if !mailer.Enabled() {
		log.Warn("email is not configured, security notices are disabled")
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL)
	if err != nil {
		log.Error("token service error", "error", err)
		os.Exit(1)
	}

	cipher, err := auth.NewSecretCipher(cfg.TwoFactorSecretKey)
	if err != nil {
		log.Error("secret cipher error", "error", err)
		os.Exit(1)
	}
	if cipher == nil {
		log.Warn("TWO_FACTOR_SECRET_KEY is not set, TOTP secrets are stored unencrypted")
	}

	svc := auth.NewService(
		auth.NewUserRepository(db),
		auth.NewTwoFactorRepository(db),
		auth.NewRecoveryCodeRepository(db),
		auth.NewBcryptHasher(),
		auth.NewTOTPService(cfg.TOTPIssuer),
		tokens,
		cipher,
		log,
	)

	rateLimiter := &auth.RateLimiter{Redis: redisClient}
	audit := &auth.AuditLogger{Redis: redisClient, MaxLen: 1000}

	api := server.NewServer(cfg, db, svc, tokens, rateLimiter, audit, mailer, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
