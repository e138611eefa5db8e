package shared

import "context"

type sessionContextKey struct{}

type actorContextKey struct{}

// Actor identifies the authenticated principal acting on a request, resolved
// once per request from the session.
type Actor struct {
	ID          int64
	Role        string
	CompanyID   int64
	GlobalOrder *int
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithActor stores the resolved actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the resolved actor from context. The second
// return is false when no authorization middleware ran for the request.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(*Actor)
	if !ok || actor == nil {
		return Actor{}, false
	}
	return *actor, true
}
