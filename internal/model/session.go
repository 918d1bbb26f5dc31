package model

import "time"

// Session holds the server side of a browser session. Only the SHA-256
// digest of the client-held secret is stored, never the secret itself.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	SecretHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
