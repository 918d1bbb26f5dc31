package auth

import (
	"net/http"
	"time"
)

// CookieConfig describes the session cookie. Secure should be set in
// production deployments behind TLS.
type CookieConfig struct {
	Name   string
	Domain string
	MaxAge time.Duration
	Secure bool
}

const defaultCookieName = "pos_session"

func (c CookieConfig) name() string {
	if c.Name == "" {
		return defaultCookieName
	}
	return c.Name
}

// ReadSessionCookie returns the raw token from the request cookie, or ""
// when absent.
func ReadSessionCookie(r *http.Request, cfg CookieConfig) string {
	cookie, err := r.Cookie(cfg.name())
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie writes the session token cookie with the given expiry.
func SetSessionCookie(w http.ResponseWriter, cfg CookieConfig, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    token,
		Path:     "/",
		Domain:   cfg.Domain,
		Expires:  expiresAt,
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   cfg.Secure,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   cfg.Secure,
	})
}
