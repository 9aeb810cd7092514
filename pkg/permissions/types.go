package permissions

import "context"

// SourceType identifies which grant path contributed permissions.
type SourceType string

const (
	SourceUser  SourceType = "user"
	SourceGroup SourceType = "group"
)

// PermissionSource records the provenance of part of an effective permission
// set: which entity contributed exactly which permissions.
type PermissionSource struct {
	Type SourceType `json:"type"`
	ID   int64      `json:"id"`
	// Name is set for group sources; direct user grants carry no name.
	Name        string   `json:"name,omitempty"`
	Permissions []string `json:"permissions"`
}

// EffectivePermissionResult is the computed permission set for a (user, zone)
// pair. Never persisted; recomputed on every query.
type EffectivePermissionResult struct {
	// Permissions is the sorted, deduplicated union across all sources.
	Permissions []string `json:"permissions"`
	// Sources enumerates provenance; entities that contributed nothing are
	// omitted.
	Sources []PermissionSource `json:"sources"`
}

// Has reports whether the named permission is in the effective set.
func (r *EffectivePermissionResult) Has(permission string) bool {
	for _, p := range r.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// AccessibleZones lists the zones a user can reach through each path. The two
// lists are independent and not deduplicated against each other; a zone
// reachable both ways appears in both.
type AccessibleZones struct {
	UserZones  []int64 `json:"user_zones"`
	GroupZones []int64 `json:"group_zones"`
}

// GroupGrant is a raw row: a group the user belongs to that owns the zone,
// with the permission template it confers.
type GroupGrant struct {
	GroupID    int64
	Name       string
	TemplateID int64
}

// Store supplies the raw rows the resolver unions. Implementations must
// surface every data-access failure as an error; a failed read must never
// look like "no permissions".
type Store interface {
	// DirectTemplate returns the permission template granted by direct
	// ownership of the zone, or ok=false when the user does not own it.
	DirectTemplate(ctx context.Context, userID, domainID int64) (templateID int64, ok bool, err error)

	// GroupGrants returns every group the user belongs to that owns the zone.
	GroupGrants(ctx context.Context, userID, domainID int64) ([]GroupGrant, error)

	// TemplatePermissions expands a permission template to its permission
	// names.
	TemplatePermissions(ctx context.Context, templateID int64) ([]string, error)

	// UserOwnedZones lists zones the user owns directly.
	UserOwnedZones(ctx context.Context, userID int64) ([]int64, error)

	// GroupOwnedZones lists zones owned by any group the user belongs to.
	GroupOwnedZones(ctx context.Context, userID int64) ([]int64, error)
}
