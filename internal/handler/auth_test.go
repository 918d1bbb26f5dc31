package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mlaflamme/proofonsite/internal/auth"
	"github.com/mlaflamme/proofonsite/internal/database"
	"github.com/mlaflamme/proofonsite/internal/store"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *http.ServeMux) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)
	svc := auth.NewService(sessions, users, time.Hour, logger)
	cookies := auth.CookieConfig{Name: "pos_session", MaxAge: time.Hour}

	h := NewAuthHandler(users, svc, cookies, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	return h, mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestRegisterSuccess(t *testing.T) {
	_, mux := setupAuthHandler(t)

	rec := postJSON(t, mux, "/api/auth/register",
		`{"email":"Manager@Example.COM","password":"hunter2hunter2","display_name":"Manager"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		User struct {
			Email        string `json:"email"`
			PasswordHash string `json:"password_hash"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.User.Email != "manager@example.com" {
		t.Errorf("email = %q, want lowercased", resp.User.Email)
	}
	if resp.User.PasswordHash != "" {
		t.Error("password hash leaked in response")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "pos_session" || cookies[0].Value == "" {
		t.Fatalf("expected a session cookie, got %v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
}

func TestRegisterValidation(t *testing.T) {
	_, mux := setupAuthHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad email", `{"email":"not-an-email","password":"hunter2hunter2","display_name":"Manager"}`},
		{"short password", `{"email":"a@b.com","password":"short","display_name":"Manager"}`},
		{"short name", `{"email":"a@b.com","password":"hunter2hunter2","display_name":"M"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, mux, "/api/auth/register", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	_, mux := setupAuthHandler(t)

	body := `{"email":"dup@example.com","password":"hunter2hunter2","display_name":"Manager"}`
	if rec := postJSON(t, mux, "/api/auth/register", body); rec.Code != http.StatusOK {
		t.Fatalf("first register: status = %d", rec.Code)
	}
	rec := postJSON(t, mux, "/api/auth/register", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestLoginWrongCredentials(t *testing.T) {
	_, mux := setupAuthHandler(t)

	if rec := postJSON(t, mux, "/api/auth/register",
		`{"email":"a@b.com","password":"hunter2hunter2","display_name":"Manager"}`); rec.Code != http.StatusOK {
		t.Fatalf("register: status = %d", rec.Code)
	}

	// Unknown email and wrong password are indistinguishable.
	for _, body := range []string{
		`{"email":"a@b.com","password":"wrong-password"}`,
		`{"email":"nobody@b.com","password":"hunter2hunter2"}`,
	} {
		rec := postJSON(t, mux, "/api/auth/login", body)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if got := errorField(t, rec); got != "invalid email or password" {
			t.Errorf("error = %q", got)
		}
	}
}

func TestLogout(t *testing.T) {
	_, mux := setupAuthHandler(t)

	reg := postJSON(t, mux, "/api/auth/register",
		`{"email":"a@b.com","password":"hunter2hunter2","display_name":"Manager"}`)
	if reg.Code != http.StatusOK {
		t.Fatalf("register: status = %d", reg.Code)
	}
	sessionCookie := reg.Result().Cookies()[0]

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.AddCookie(sessionCookie)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp["success"] {
		t.Error("expected success true")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Error("logout must clear the session cookie")
	}
}

func TestLogoutWithoutCookie(t *testing.T) {
	_, mux := setupAuthHandler(t)

	rec := postJSON(t, mux, "/api/auth/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp["success"] {
		t.Error("expected success true")
	}
}
