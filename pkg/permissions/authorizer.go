package permissions

import (
	"context"

	"github.com/pdnsadmin/zoneauth/pkg/auth"
)

// Authorizer is the call-site wrapper controllers use. It applies the
// super-admin bypass before the resolver runs, keeping the resolver's
// precondition (admins already excluded) in one place.
type Authorizer struct {
	resolver *Resolver
}

// NewAuthorizer wraps a resolver.
func NewAuthorizer(resolver *Resolver) *Authorizer {
	return &Authorizer{resolver: resolver}
}

// Can reports whether the caller may perform the action on the zone. Admins
// are always allowed without touching the store.
func (a *Authorizer) Can(ctx context.Context, caller auth.AuthContext, domainID int64, permission string) (bool, error) {
	if caller.IsAdmin {
		return true, nil
	}
	return a.resolver.CanUserPerformAction(ctx, caller.UserID, domainID, permission)
}

// IsZoneOwner reports whether the caller holds any grant on the zone. Admins
// count as owners of every zone.
func (a *Authorizer) IsZoneOwner(ctx context.Context, caller auth.AuthContext, domainID int64) (bool, error) {
	if caller.IsAdmin {
		return true, nil
	}
	return a.resolver.IsUserZoneOwner(ctx, caller.UserID, domainID)
}
