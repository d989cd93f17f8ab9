package services

import (
	"context"

	"medwaste-backend/internal/models"
)

type actorContextKey struct{}

// ContextWithActor attaches the authenticated user to ctx. Activity log
// entries written on behalf of ctx are attributed to this actor.
func ContextWithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the attached actor, or the zero Actor which is
// logged as "System".
func ActorFromContext(ctx context.Context) models.Actor {
	actor, _ := ctx.Value(actorContextKey{}).(models.Actor)
	return actor
}

func actorOr(ctx context.Context, fallback models.Actor) models.Actor {
	if actor := ActorFromContext(ctx); actor != (models.Actor{}) {
		return actor
	}
	return fallback
}
