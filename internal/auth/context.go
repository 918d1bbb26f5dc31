package auth

import (
	"context"
	"errors"

	"github.com/mlaflamme/proofonsite/internal/model"
)

// ErrUnauthorized is returned by RequireUser for anonymous contexts.
var ErrUnauthorized = errors.New("unauthorized")

type contextKey struct{}

// Context carries the resolved authentication state for one request.
// Both fields are nil for anonymous requests.
type Context struct {
	User    *model.User
	Session *model.Session
}

func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the auth context, defaulting to anonymous when the
// resolver middleware did not run.
func FromContext(ctx context.Context) Context {
	ac, ok := ctx.Value(contextKey{}).(Context)
	if !ok {
		return Context{}
	}
	return ac
}

// RequireUser returns the authenticated user or ErrUnauthorized. Every
// owner-scoped handler goes through this guard.
func RequireUser(ctx context.Context) (*model.User, error) {
	ac := FromContext(ctx)
	if ac.User == nil {
		return nil, ErrUnauthorized
	}
	return ac.User, nil
}
