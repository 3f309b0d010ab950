package middleware

import (
	"context"

	"github.com/alo17/ilan-backend/pkg/auth"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the caller resolved by Authenticate, or the anonymous
// actor when none was attached.
func ActorFromContext(ctx context.Context) auth.Actor {
	if ctx == nil {
		return auth.Anonymous()
	}
	if actor, ok := ctx.Value(ctxActor).(auth.Actor); ok {
		return actor
	}
	return auth.Anonymous()
}

// WithActor injects the caller into the context.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
