package adapter

import "context"

// TokenSource yields the caller's current bearer token. It is consulted at
// call time for every remote operation; an empty token means "not signed in".
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }
