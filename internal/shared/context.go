package shared

import (
	"context"

	"github.com/google/uuid"
)

// Actor identifies the tenant and user a request acts for. Authentication happens upstream.
type Actor struct {
	TenantID uuid.UUID
	UserID   string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok && actor.TenantID != uuid.Nil
}
