package driveauth

import "context"

type contextKey int

const (
	ctxKeyClientIP contextKey = iota
	ctxKeyUserAgent
)

// WithClientIP attaches the caller's IP to the context. The engine
// records it on the session row and in audit events; it never affects
// authorization.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// WithUserAgent attaches the caller's user agent to the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

func clientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyClientIP).(string)
	return v
}

func userAgentFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent).(string)
	return v
}
