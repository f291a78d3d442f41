// Package identity defines the boundary to the host's user-identity
// subsystem. The index never stores local performer references; everything is
// keyed by the durable cross-site id the resolver hands back.
package identity

import (
	"context"
	"errors"
	"slices"
)

// ErrNoGlobalID is returned when a performer cannot be attached to a durable
// cross-site identifier.
var ErrNoGlobalID = errors.New("no global identifier for performer")

// UserRef is a local reference to an acting user as seen by one site.
type UserRef struct {
	Name    string
	LocalID int64

	// IsTemp marks temporary accounts, which are additionally tracked by IP.
	IsTemp bool

	// Groups are the performer's local group memberships, used for
	// exclusion checks.
	Groups []string
}

// InGroup reports whether the performer belongs to the named group.
func (u UserRef) InGroup(group string) bool {
	return slices.Contains(u.Groups, group)
}

// Resolver translates a local performer reference into the durable global id
// used as the activity index key.
type Resolver interface {
	// GlobalID returns the cross-site identifier for the performer, or
	// ErrNoGlobalID when the account cannot be centrally identified.
	GlobalID(ctx context.Context, user UserRef) (int64, error)
}
