package session

import "context"

type contextKey struct{}

// NewContext stores the session state in ctx.
func NewContext(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, contextKey{}, st)
}

// FromContext extracts the session state from ctx.
func FromContext(ctx context.Context) *State {
	st, _ := ctx.Value(contextKey{}).(*State)
	return st
}
