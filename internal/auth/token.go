package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// tokenSeparator joins the session id and secret. UUIDs and URL-safe
// base64 never contain a dot, so the first dot is unambiguous.
const tokenSeparator = "."

// TokenParts is a freshly issued session token split into its components.
type TokenParts struct {
	SessionID string
	Secret    string
	Token     string
}

// IssueToken generates a new session id (random UUID) and a 256-bit
// client-held secret, URL-safe encoded. The combined token is what goes
// into the cookie; only the secret's hash is ever persisted.
func IssueToken() (TokenParts, error) {
	sessionID := uuid.NewString()

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return TokenParts{}, fmt.Errorf("generate session secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	return TokenParts{
		SessionID: sessionID,
		Secret:    secret,
		Token:     sessionID + tokenSeparator + secret,
	}, nil
}

// ParseToken splits a presented token into session id and secret. Tokens
// without a separator or with an empty component are rejected.
func ParseToken(token string) (sessionID, secret string, ok bool) {
	sessionID, secret, found := strings.Cut(token, tokenSeparator)
	if !found || sessionID == "" || secret == "" {
		return "", "", false
	}
	return sessionID, secret, true
}

// HashSecret returns the hex-encoded SHA-256 digest of the secret. The
// secret already carries 256 bits of entropy, so a fast digest is enough;
// hashing here only keeps the raw bearer secret out of storage.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
