// Package auth defines the caller identity passed into the permission engine
// and the permission name vocabulary shared with the PowerDNS admin schema.
//
// The engine never reads ambient session state. Controllers resolve the
// session into an AuthContext once and pass it (or its ids) explicitly:
//
//	authCtx := auth.AuthContext{UserID: session.UserID, IsAdmin: session.IsAdmin}
//	if authCtx.IsAdmin {
//		// super-admins bypass the resolver entirely
//	}
//
// Admin bypass happens at the call site. The resolver's documented
// precondition is that super-admins have already been excluded.
package auth
