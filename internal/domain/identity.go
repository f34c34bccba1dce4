package domain

import "context"

type identityKey struct{}

// Identity is the authenticated caller resolved by the transport layer.
// In header mode only UID is populated.
type Identity struct {
	UID     string
	Email   string
	Name    string
	Picture string
}

// ContextWithIdentity returns a context carrying id.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext extracts the caller identity. ok is false when none was attached
// or the attached identity has no UID.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UID == "" {
		return Identity{}, false
	}
	return id, true
}
