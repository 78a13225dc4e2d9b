// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// CallerContext identifies the authenticated caller forwarded by the
// request layer. User and role administration live outside this service;
// only the token subject and claims relevant for audit are carried.
type CallerContext struct {
	Subject string
	Name    string
	Roles   []string
}

type callerContextKey struct{}

// WithCaller adds CallerContext to context.
func WithCaller(ctx context.Context, caller *CallerContext) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// GetCaller returns CallerContext from context.
func GetCaller(ctx context.Context) *CallerContext {
	if v, ok := ctx.Value(callerContextKey{}).(*CallerContext); ok {
		return v
	}
	return nil
}

// GetCallerSubject returns the caller subject from context or empty string.
func GetCallerSubject(ctx context.Context) string {
	if c := GetCaller(ctx); c != nil {
		return c.Subject
	}
	return ""
}

// HasRole checks if the caller carries a specific role claim.
func HasRole(ctx context.Context, role string) bool {
	c := GetCaller(ctx)
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
