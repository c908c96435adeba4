package core

import "context"

type contextKey string

const ctxKeyActor contextKey = "actor"

// Actor is the authenticated identity on whose behalf an import runs.
// ScopeDepts lists the departments whose rows the actor may list; empty
// means only the actor's own department.
type Actor struct {
	UserID     int64
	DeptID     int64
	ScopeDepts []int64
}

// ContextWithActor stores the actor supplied by the identity collaborator.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorFromContext returns the actor stored in ctx, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor).(Actor)
	return a, ok
}
