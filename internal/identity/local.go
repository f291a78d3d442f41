package identity

import "context"

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, user UserRef) (int64, error)

func (f ResolverFunc) GlobalID(ctx context.Context, user UserRef) (int64, error) {
	return f(ctx, user)
}

// LocalIDResolver treats local user ids as already global. Suitable for
// deployments with a single shared identity store; hosts with a separate
// central identity service plug in their own Resolver instead.
type LocalIDResolver struct{}

func NewLocalIDResolver() LocalIDResolver {
	return LocalIDResolver{}
}

func (LocalIDResolver) GlobalID(_ context.Context, user UserRef) (int64, error) {
	if user.LocalID <= 0 {
		return 0, ErrNoGlobalID
	}
	return user.LocalID, nil
}
