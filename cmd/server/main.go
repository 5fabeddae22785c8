package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"credbroker/internal/config"
	"credbroker/internal/database"
	"credbroker/internal/handler"
	"credbroker/internal/middleware"
	"credbroker/internal/provider"
	"credbroker/internal/queue"
	"credbroker/internal/repository"
	"credbroker/internal/router"
	"credbroker/internal/secret"
	"credbroker/internal/service"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	db, err := database.Open(database.Config{
		User:         cfg.DBUser,
		Pass:         cfg.DBPass,
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		Name:         cfg.DBName,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema migration failed: %v", err)
	}
	cancel()

	sealer, err := secret.NewSealer(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("invalid encryption key: %v", err)
	}

	// Repositories.
	userRepo := repository.NewUserRepo(db)
	allowedRepo := repository.NewAllowedUserRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	stateRepo := repository.NewStateRepo(db)
	codeRepo := repository.NewExchangeCodeRepo(db)
	auditRepo := repository.NewAuditRepo(db)
	statsRepo := repository.NewStatsRepo(db)

	// Audit events are written to the database and fanned out over RabbitMQ
	// for the archival consumer.
	publisher := queue.NewPublisher()
	auditSvc := service.NewAuditService(auditRepo, publisher, logger)
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			logger.Error("audit consumer stopped", "error", err)
		}
	}()

	prov := provider.NewClient(provider.Config{
		AuthorizeURL: cfg.ProviderAuthorizeURL,
		TokenURL:     cfg.ProviderTokenURL,
		ProfileURL:   cfg.ProviderProfileURL,
		ClientID:     cfg.ProviderClientID,
		ClientSecret: cfg.ProviderClientSecret,
		RedirectURI:  cfg.ProviderRedirectURI,
		UserAgent:    cfg.ProviderUserAgent,
	})

	sessionSvc := service.NewSessionService(sessionRepo, time.Duration(cfg.SessionTTLHours)*time.Hour)
	tokenSvc := service.NewTokenService(tokenRepo, prov, sealer, auditSvc, time.Duration(cfg.RefreshSkewSec)*time.Second)

	oauthSvc := service.NewOAuthService(service.OAuthServiceDeps{
		Users:       userRepo,
		Allowed:     allowedRepo,
		States:      stateRepo,
		Codes:       codeRepo,
		Sessions:    sessionSvc,
		Tokens:      tokenSvc,
		Provider:    prov,
		Audit:       auditSvc,
		Logger:      logger,
		StateTTL:    time.Duration(cfg.StateTTLMin) * time.Minute,
		ExchangeTTL: time.Duration(cfg.ExchangeTTLMin) * time.Minute,
	})

	adminSvc := service.NewAdminService(service.AdminServiceDeps{
		Allowed:      allowedRepo,
		Users:        userRepo,
		Sessions:     sessionRepo,
		Tokens:       tokenSvc,
		AuditLog:     auditRepo,
		Stats:        statsRepo,
		Audit:        auditSvc,
		Username:     cfg.AdminUsername,
		PasswordHash: cfg.AdminPasswordHash,
		JWTSecret:    cfg.AdminJWTSecret,
		TokenTTL:     time.Duration(cfg.AdminTokenTTLMin) * time.Minute,
	})

	// Redis backs rate limiting only; the limiter fails open without it.
	rdb := config.NewRedisClient()
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	e.HideBanner = true

	router.RegisterBase(e, logger, handler.NewHealthHandler(db))
	router.RegisterAuth(e, handler.NewOAuthHandler(oauthSvc, cfg.FrontendCallback), rateLimit)
	router.RegisterAdmin(e, handler.NewAdminHandler(adminSvc, oauthSvc), adminSvc)

	logger.Info("credential broker listening", "port", cfg.Port, "env", cfg.Env)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
