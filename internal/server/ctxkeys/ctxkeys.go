// Package ctxkeys holds typed context keys shared by the HTTP middleware
// and whatever reads request identity downstream.
package ctxkeys

import "context"

// Key is the named type for all server context keys. context.Value compares
// both type and value, so these never collide with plain string keys.
type Key string

// Subject is the authenticated caller taken from the bearer token.
const Subject Key = "subject"

// WithValue adds a string value under key.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// Value returns the string stored under key, or "" when absent.
func Value(ctx context.Context, key Key) string {
	v, _ := ctx.Value(key).(string)
	return v
}
