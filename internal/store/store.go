package store

import "strings"

// IsUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. The unique indexes on users.email, sites.reference_code,
// sites.capture_token, and (owner_id, name) are the final authority on
// uniqueness; callers treat violations as conflicts or retryable
// collisions rather than generic failures.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
