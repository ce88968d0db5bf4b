package core

import "context"

type contextKey string

const ctxKeyClient contextKey = "client"

// Client identifies who triggered an operation, for logs.
type Client struct {
	IP        string
	UserAgent string
}

// ContextWithClient attaches the calling client to ctx.
func ContextWithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, ctxKeyClient, c)
}

// ClientFromContext returns the client stored by ContextWithClient.
func ClientFromContext(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(ctxKeyClient).(Client)
	return c, ok
}
