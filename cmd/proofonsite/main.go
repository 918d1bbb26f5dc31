package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mlaflamme/proofonsite/internal/blob"
	"github.com/mlaflamme/proofonsite/internal/database"
	"github.com/mlaflamme/proofonsite/internal/logging"
	"github.com/mlaflamme/proofonsite/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("POS_LOG_LEVEL"), os.Getenv("POS_LOG_FORMAT"))

	port := envOr("POS_PORT", "8080")
	dbPath := envOr("POS_DB_PATH", "proofonsite.db")

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		BaseURL:       envOr("POS_BASE_URL", "http://localhost:"+port),
		SessionMaxAge: envDuration("POS_SESSION_MAX_AGE", 0),
		CookieName:    os.Getenv("POS_COOKIE_NAME"),
		CookieDomain:  os.Getenv("POS_COOKIE_DOMAIN"),
		CookieSecure:  os.Getenv("POS_COOKIE_SECURE") == "true",
		Blob: blob.Config{
			Endpoint:      os.Getenv("POS_S3_ENDPOINT"),
			Bucket:        os.Getenv("POS_S3_BUCKET"),
			Region:        envOr("POS_S3_REGION", "auto"),
			AccessKey:     os.Getenv("POS_S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("POS_S3_SECRET_KEY"),
			PublicBaseURL: os.Getenv("POS_S3_PUBLIC_URL"),
		},
		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    envOr("POS_EMAIL_FROM", "ProofOnSite <notifications@proofonsite.app>"),
	}

	srv := server.New(db, cfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopCleanup := startCleanup(srv, logger)
	defer stopCleanup()

	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// startCleanup sweeps expired sessions and stale rate-limit windows on an
// hourly tick. Expired sessions are also deleted on detection during
// validation; the sweep catches the ones nobody presents again.
func startCleanup(srv *server.Server, logger *slog.Logger) func() {
	ticker := time.NewTicker(time.Hour)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if count, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if count > 0 {
					logger.Info("session cleanup", "deleted", count)
				}
				srv.RateLimiter().Cleanup()
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
