// Package sitecode allocates short human-readable site reference codes,
// distinct from the machine-oriented capture token. Codes are read over the
// phone and written on signage, so the alphabet omits 0, 1, I, and O.
package sitecode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// Alphabet excludes visually ambiguous characters.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	// Length 6 over a 32-character alphabet gives ~1 billion codes;
	// collisions stay negligible at any realistic site count.
	Length = 6

	maxAttempts = 10
)

// ErrExhausted means the allocator could not find a free code within the
// retry bound. With the production alphabet this indicates something is
// badly wrong (or the table is impossibly full) and should page someone.
var ErrExhausted = errors.New("sitecode: allocation attempts exhausted")

var errTaken = errors.New("sitecode: code taken")

// ExistsFunc reports whether a candidate code is already in use.
type ExistsFunc func(code string) (bool, error)

// Generator produces candidate codes. The zero value is not usable;
// call New.
type Generator struct {
	alphabet string
	length   int
	exists   ExistsFunc
}

// New returns a Generator backed by the given existence check. Alphabet
// and length are parameters so tests can force exhaustion with a tiny
// code space.
func New(alphabet string, length int, exists ExistsFunc) *Generator {
	return &Generator{alphabet: alphabet, length: length, exists: exists}
}

// NewDefault returns a Generator with the production alphabet and length.
func NewDefault(exists ExistsFunc) *Generator {
	return New(Alphabet, Length, exists)
}

// Generate returns one random candidate code, one cryptographically random
// alphabet pick per character.
func (g *Generator) Generate() (string, error) {
	bytes := make([]byte, g.length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	code := make([]byte, g.length)
	for i, b := range bytes {
		code[i] = g.alphabet[int(b)%len(g.alphabet)]
	}
	return string(code), nil
}

// Allocate returns a code not currently in use, retrying up to the attempt
// bound. The pre-check only trims collision retries; the storage layer's
// unique index on reference_code remains the final authority, and callers
// must treat a unique violation on insert as a retryable collision.
func (g *Generator) Allocate(ctx context.Context) (string, error) {
	var code string

	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := g.Generate()
		if err != nil {
			return err
		}
		taken, err := g.exists(candidate)
		if err != nil {
			return err
		}
		if taken {
			return retry.RetryableError(errTaken)
		}
		code = candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, errTaken) {
			return "", ErrExhausted
		}
		return "", err
	}
	return code, nil
}
