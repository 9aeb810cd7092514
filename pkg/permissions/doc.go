// Package permissions computes effective zone permissions for a user by
// merging two grant paths:
//
//   - direct ownership: the zone's owner column equals the user id, granting
//     the owner's permission template
//   - group ownership: the user belongs to a group linked to the zone,
//     granting the group's permission template
//
// The effective set is always the union of every applicable source. Removing
// one source can only shrink the set, and every resolution re-reads current
// store state: there is no cache, so revocation takes effect on the next call.
//
// The Resolver is split from the Store on purpose: the store returns raw rows
// (template ids, group grants) and the resolver performs the pure union and
// provenance computation, so resolution logic is testable with a fake store.
//
// Callers must exclude super-admins before invoking the resolver; the admin
// bypass ("all permissions") is a call-site decision, not resolver logic.
//
// Permission checks fail closed: any store error propagates to the caller and
// is never collapsed into an empty-but-successful result.
package permissions
