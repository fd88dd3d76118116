// Package main is the entry point for the Whispr web server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whisprlabs/whispr/internal/config"
	"github.com/whisprlabs/whispr/internal/database"
	"github.com/whisprlabs/whispr/internal/handler/web"
	"github.com/whisprlabs/whispr/internal/middleware"
	apierrors "github.com/whisprlabs/whispr/internal/pkg/errors"
	"github.com/whisprlabs/whispr/internal/pkg/response"
	"github.com/whisprlabs/whispr/internal/repository"
	"github.com/whisprlabs/whispr/internal/service"
)

func main() {
	// Setup structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting Whispr",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
	)

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	// Connect to Redis
	redis, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Wire repositories and services
	userRepo := repository.NewUserRepository(db.Pool())
	secretRepo := repository.NewSecretRepository(db.Pool())
	sessionRepo := repository.NewSessionRepository(redis)
	auditRepo := repository.NewAuditRepository(db.Pool())

	authService := service.NewAuthService(&cfg.Auth, userRepo, sessionRepo)
	oauthService := service.NewOAuthService(&cfg.Auth, userRepo, sessionRepo)
	secretService := service.NewSecretService(secretRepo)
	auditService := service.NewAuditService(auditRepo)

	// Prune audit entries past retention once a day.
	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	go auditRetentionLoop(pruneCtx, auditService, logger)

	sessionStore := sessions.NewCookieStore([]byte(cfg.Auth.SessionSecret))
	webHandler := web.NewWebHandler(authService, oauthService, secretService, auditService, sessionStore, redis, logger)

	// Setup router
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Health check endpoints (no auth required)
	r.Get("/health", healthHandler())
	r.Get("/ready", readyHandler(db, redis))
	r.Handle("/metrics", promhttp.Handler())

	// Web application routes
	r.Mount("/", webHandler.Routes())

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down server", slog.String("signal", sig.String()))

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	logger.Info("Server stopped gracefully")
}

const auditRetention = 90 * 24 * time.Hour

// auditRetentionLoop deletes audit entries older than the retention window,
// once at startup and then daily.
func auditRetentionLoop(ctx context.Context, audit service.AuditService, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		pruned, err := audit.Prune(ctx, auditRetention)
		if err != nil {
			logger.Warn("audit prune failed", slog.String("error", err.Error()))
		} else if pruned > 0 {
			logger.Info("pruned audit entries", slog.Int64("count", pruned))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// healthHandler returns a simple health check that always succeeds if the server is running.
func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	}
}

// readyHandler returns a readiness check that verifies database and Redis connections.
func readyHandler(db *database.Postgres, redis *database.Redis) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			response.Error(w, apierrors.ErrServiceUnavailable.WithMessage("database unavailable"))
			return
		}

		if err := redis.Ping(ctx); err != nil {
			response.Error(w, apierrors.ErrServiceUnavailable.WithMessage("redis unavailable"))
			return
		}

		response.OK(w, map[string]string{
			"status":   "ok",
			"database": "connected",
			"redis":    "connected",
		})
	}
}
