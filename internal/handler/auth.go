package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mlaflamme/proofonsite/internal/auth"
	"github.com/mlaflamme/proofonsite/internal/store"
)

type AuthHandler struct {
	users    *store.UserStore
	sessions *auth.Service
	cookies  auth.CookieConfig
	logger   *slog.Logger
}

func NewAuthHandler(users *store.UserStore, sessions *auth.Service, cookies auth.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, cookies: cookies, logger: logger}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// normalizeEmail lowercases and trims; addresses are stored and compared
// case-insensitively.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && len(email) <= 254
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.DisplayName)

	if !validEmail(email) {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	// bcrypt truncates past 72 bytes, so longer passwords are rejected
	// rather than silently clipped.
	if len(req.Password) < 8 || len(req.Password) > 72 {
		writeError(w, http.StatusBadRequest, "password must be between 8 and 72 characters")
		return
	}
	if len(name) < 2 || len(name) > 120 {
		writeError(w, http.StatusBadRequest, "display name must be between 2 and 120 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.users.Create(uuid.NewString(), email, hash, name)
	if err != nil {
		if store.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	token, sess, err := h.sessions.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	auth.SetSessionCookie(w, h.cookies, token, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login. Unknown email and wrong password
// produce the same response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := h.users.GetByEmail(normalizeEmail(req.Email))
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, sess, err := h.sessions.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	auth.SetSessionCookie(w, h.cookies, token, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// Logout handles POST /api/auth/logout. Works for any caller; an invalid
// or missing cookie still clears and reports success.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.ReadSessionCookie(r, h.cookies); token != "" {
		if sessionID, _, ok := auth.ParseToken(token); ok {
			if err := h.sessions.Invalidate(sessionID); err != nil {
				h.logger.Error("invalidate session", "session_id", sessionID, "error", err)
			}
		}
	}

	auth.ClearSessionCookie(w, h.cookies)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/auth/me. Returns nulls for anonymous callers rather
// than an error, so the frontend can probe login state cheaply.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    ac.User,
		"session": ac.Session,
	})
}
