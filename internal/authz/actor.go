package authz

import "context"

// Actor is the authenticated identity on whose behalf a request runs. It is
// resolved once per request from the platform's credential store and carried
// through the call chain by value.
type Actor struct {
	UserID   string
	Role     Role
	TenantID int64
}

type actorContextKey struct{}

// WithActor returns a context carrying the actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
