package auth

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/mlaflamme/proofonsite/internal/model"
	"github.com/mlaflamme/proofonsite/internal/store"
)

// DefaultMaxAge is the session lifetime when none is configured.
const DefaultMaxAge = 30 * 24 * time.Hour

// Service validates and manages sessions. Validation is a pure function of
// the stored session/user rows, the presented secret, and the clock; its
// only side effects are deleting dead rows and extending expiry on a
// sliding refresh.
type Service struct {
	sessions *store.SessionStore
	users    *store.UserStore
	maxAge   time.Duration
	logger   *slog.Logger
}

func NewService(sessions *store.SessionStore, users *store.UserStore, maxAge time.Duration, logger *slog.Logger) *Service {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Service{sessions: sessions, users: users, maxAge: maxAge, logger: logger}
}

// MaxAge returns the configured session lifetime.
func (s *Service) MaxAge() time.Duration {
	return s.maxAge
}

// Validation is the outcome of a successful token validation. Refreshed is
// set when the session's expiry was extended and the cookie should be
// reissued with the new expiry.
type Validation struct {
	User      *model.User
	Session   *model.Session
	Refreshed bool
}

// Create opens a new session for userID and returns the cookie token.
func (s *Service) Create(userID string) (string, *model.Session, error) {
	parts, err := IssueToken()
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	sess, err := s.sessions.Create(parts.SessionID, userID, HashSecret(parts.Secret), now, now.Add(s.maxAge))
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	return parts.Token, sess, nil
}

// Validate resolves a presented token to its user and session. It returns
// (nil, nil) for every rejection: malformed token, unknown session,
// expired session (deleted on detection), secret mismatch, or an orphaned
// session whose user is gone (also deleted). On acceptance with remaining
// TTL at or below half the max age, the expiry is extended to now+maxAge.
func (s *Service) Validate(token string) (*Validation, error) {
	sessionID, secret, ok := ParseToken(token)
	if !ok {
		return nil, nil
	}

	sess, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	now := time.Now().UTC()
	if !sess.ExpiresAt.After(now) {
		if err := s.sessions.Delete(sess.ID); err != nil {
			s.logger.Error("delete expired session", "session_id", sess.ID, "error", err)
		}
		return nil, nil
	}

	if !secretMatches(secret, sess.SecretHash) {
		return nil, nil
	}

	user, err := s.users.GetByID(sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Orphaned session: cascade delete should make this impossible,
		// but a stale row must not validate.
		if err := s.sessions.Delete(sess.ID); err != nil {
			s.logger.Error("delete orphaned session", "session_id", sess.ID, "error", err)
		}
		return nil, nil
	}

	refreshed := false
	if sess.ExpiresAt.Sub(now) <= s.maxAge/2 {
		newExpiry := now.Add(s.maxAge)
		if err := s.sessions.UpdateExpiry(sess.ID, newExpiry); err != nil {
			return nil, fmt.Errorf("refresh session expiry: %w", err)
		}
		sess.ExpiresAt = newExpiry
		refreshed = true
	}

	return &Validation{User: user, Session: sess, Refreshed: refreshed}, nil
}

// Invalidate deletes a single session (logout).
func (s *Service) Invalidate(sessionID string) error {
	return s.sessions.Delete(sessionID)
}

// InvalidateAll deletes every session owned by userID.
func (s *Service) InvalidateAll(userID string) error {
	return s.sessions.DeleteByUserID(userID)
}

// secretMatches compares the presented secret's digest against the stored
// one in constant time. Lengths are checked first without revealing which
// byte differed.
func secretMatches(secret, storedHash string) bool {
	stored, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}
	presented, err := hex.DecodeString(HashSecret(secret))
	if err != nil {
		return false
	}
	if len(stored) != len(presented) {
		return false
	}
	return subtle.ConstantTimeCompare(stored, presented) == 1
}
