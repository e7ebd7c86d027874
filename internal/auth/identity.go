package auth

import "context"

// Identity is the authenticated caller
type Identity struct {
	// OwnerID is the owner namespace of the caller, taken from the sub claim
	OwnerID string
	// Email is used in commit signatures, taken from the email claim
	Email string
}

type identityKey struct{}

// WithIdentity returns a context carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller identity stored by the middleware
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
