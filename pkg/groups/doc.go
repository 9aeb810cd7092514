// Package groups manages user groups, group membership, and zone-group
// ownership for the permission engine.
//
// # Overview
//
// Three edge sets hang off a group:
//
//   - user_group_members: which users belong to the group
//   - zones_groups: which zones the group owns
//   - perm_templ: the permission template the group confers on its members
//
// Deleting a group cascades to both edge sets at the store level; the service
// never deletes edges itself on group deletion.
//
// # Bulk semantics
//
// Bulk operations process each id independently and are deliberately not
// wrapped in a transaction. A bulk call can leave some edges added and others
// failed; per-item failures are collected into BulkResult.Failed with a
// human-readable reason instead of aborting the call. Only a missing group
// aborts the whole bulk call, since it is a precondition.
//
// # Error taxonomy
//
// Single-item operations return typed errors: NotFoundError for an absent
// group, AlreadyExistsError for a duplicate edge, ConflictError for a
// duplicate group name, ValidationError for invalid input, ForbiddenError for
// visibility failures. Underlying store failures are wrapped and propagated,
// never swallowed.
//
// # Delete asymmetry
//
// Adding a duplicate edge is an error; removing a missing edge is not (the
// remove methods report whether a row was deleted). This idempotent-delete
// policy is intentional and relied upon by callers.
package groups
