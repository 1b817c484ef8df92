package auth

import "context"

// Roles carried in bearer tokens.
const (
	RoleUser     = "user"
	RoleGatherer = "gatherer"
	RoleAdmin    = "admin"
)

type contextKey struct{}

// Identity is the authenticated caller of a request.
type Identity struct {
	User string
	Role string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// User returns the authenticated user, or "" for an anonymous request.
func User(ctx context.Context) string {
	id, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return id.User
}

func IsAdmin(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return id.Role == RoleAdmin
}

// CanIngest reports whether the caller may push notifications into user's
// inbox: gatherers and admins for anyone, users only for themselves.
func CanIngest(ctx context.Context, user string) bool {
	id, ok := FromContext(ctx)
	if !ok {
		return false
	}
	switch id.Role {
	case RoleAdmin, RoleGatherer:
		return true
	default:
		return id.User != "" && id.User == user
	}
}
