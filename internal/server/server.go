// Package server wires stores, services, and handlers into the HTTP
// application.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mlaflamme/proofonsite/internal/auth"
	"github.com/mlaflamme/proofonsite/internal/blob"
	"github.com/mlaflamme/proofonsite/internal/email"
	"github.com/mlaflamme/proofonsite/internal/handler"
	"github.com/mlaflamme/proofonsite/internal/middleware"
	"github.com/mlaflamme/proofonsite/internal/sitecode"
	"github.com/mlaflamme/proofonsite/internal/store"
	ws "github.com/mlaflamme/proofonsite/internal/websocket"
)

// Config carries everything main resolves from the environment.
type Config struct {
	BaseURL       string
	SessionMaxAge time.Duration
	CookieName    string
	CookieDomain  string
	CookieSecure  bool
	Blob          blob.Config
	ResendAPIKey  string
	EmailFrom     string
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	siteH        *handler.SiteHandler
	deliveryH    *handler.DeliveryHandler
	captureH     *handler.CaptureHandler
	sessionSvc   *auth.Service
	sessionStore *store.SessionStore
	cookies      auth.CookieConfig
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	siteStore := store.NewSiteStore(db)
	deliveryStore := store.NewDeliveryStore(db)

	sessionSvc := auth.NewService(sessionStore, userStore, cfg.SessionMaxAge, logger.With("component", "session"))
	cookies := auth.CookieConfig{
		Name:   cfg.CookieName,
		Domain: cfg.CookieDomain,
		MaxAge: sessionSvc.MaxAge(),
		Secure: cfg.CookieSecure,
	}

	blobs := blob.New(cfg.Blob)
	notifier := email.NewNotifier(cfg.ResendAPIKey, cfg.EmailFrom, cfg.BaseURL)
	codes := sitecode.NewDefault(siteStore.ReferenceCodeExists)

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionSvc, cookies, logger.With("component", "auth_handler")),
		siteH:        handler.NewSiteHandler(siteStore, deliveryStore, blobs, codes, hub, logger.With("component", "site")),
		deliveryH:    handler.NewDeliveryHandler(siteStore, deliveryStore, blobs, hub, logger.With("component", "delivery")),
		captureH:     handler.NewCaptureHandler(siteStore, deliveryStore, userStore, blobs, notifier, hub, logger.With("component", "capture")),
		sessionSvc:   sessionSvc,
		sessionStore: sessionStore,
		cookies:      cookies,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	mux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Sites (handlers gate with RequireUser)
	mux.HandleFunc("POST /api/sites", s.siteH.Create)
	mux.HandleFunc("GET /api/sites", s.siteH.List)
	mux.HandleFunc("GET /api/sites/{id}", s.siteH.Get)
	mux.HandleFunc("PUT /api/sites/{id}", s.siteH.Update)
	mux.HandleFunc("DELETE /api/sites/{id}", s.siteH.Delete)

	// Deliveries
	mux.HandleFunc("GET /api/sites/{id}/deliveries", s.deliveryH.List)
	mux.HandleFunc("DELETE /api/sites/{id}/deliveries/{deliveryID}", s.deliveryH.Delete)

	// Capture: the unauthenticated surface behind the QR code
	mux.HandleFunc("POST /api/capture/{captureToken}", s.rateLimitedHandler(s.captureH.Upload))
	mux.HandleFunc("GET /api/capture/{captureToken}/info", s.captureH.Info)

	// Live feed
	mux.HandleFunc("GET /api/ws", ws.Handle(s.hub, s.logger.With("component", "websocket")))

	mux.HandleFunc("GET /health", s.healthHandler)

	sessionContext := middleware.SessionContext(s.sessionSvc, s.cookies, s.logger.With("component", "session_middleware"))
	requestLogger := middleware.RequestLogger(s.logger.With("component", "http"))
	return requestLogger(sessionContext(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
