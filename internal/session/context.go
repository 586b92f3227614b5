package session

import "context"

type ctxKey struct{}

// ToContext attaches a session to the request context.
func ToContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached by the session middleware, or nil.
func FromContext(ctx context.Context) *Session {
	if v := ctx.Value(ctxKey{}); v != nil {
		if s, ok := v.(*Session); ok {
			return s
		}
	}
	return nil
}
