package groups

import (
	"errors"
	"fmt"
	"time"
)

// Group is a named collection of users sharing a permission template.
type Group struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	PermissionTemplateID int64     `json:"permission_template_id"`
	CreatedBy            *int64    `json:"created_by,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// GroupMember is a user's membership in a group. At most one row exists per
// (group, user) pair.
type GroupMember struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ZoneGroup links a group to a zone it owns, optionally tagged with a zone
// template. At most one row exists per (domain, group) pair.
type ZoneGroup struct {
	ID             int64     `json:"id"`
	DomainID       int64     `json:"domain_id"`
	GroupID        int64     `json:"group_id"`
	ZoneTemplateID *int64    `json:"zone_template_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// GroupDetails bundles a group with its edge counts for admin display.
type GroupDetails struct {
	Group       *Group `json:"group"`
	MemberCount int    `json:"member_count"`
	ZoneCount   int    `json:"zone_count"`
}

// DeletionImpact summarizes how many zone links a group deletion would
// cascade-delete. Zones holds at most the requested limit of domain ids.
type DeletionImpact struct {
	ZoneCount int     `json:"zone_count"`
	Zones     []int64 `json:"zones"`
}

// BulkResult reports the outcome of a bulk add/remove. Failed maps each
// failing id to a human-readable reason.
type BulkResult struct {
	Succeeded []int64          `json:"succeeded"`
	Failed    map[int64]string `json:"failed"`
}

// CreateGroupRequest carries the fields for creating a group.
type CreateGroupRequest struct {
	Name                 string `json:"name"`
	PermissionTemplateID int64  `json:"permission_template_id"`
	Description          string `json:"description,omitempty"`
	CreatedBy            *int64 `json:"created_by,omitempty"`
}

// UpdateGroupRequest carries a partial update; nil fields are left unchanged.
type UpdateGroupRequest struct {
	Name                 *string `json:"name,omitempty"`
	Description          *string `json:"description,omitempty"`
	PermissionTemplateID *int64  `json:"permission_template_id,omitempty"`
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// AlreadyExistsError indicates an attempted duplicate edge.
type AlreadyExistsError struct {
	Detail string
}

func (e *AlreadyExistsError) Error() string {
	return e.Detail
}

// IsAlreadyExists checks if an error is a duplicate-edge error.
func IsAlreadyExists(err error) bool {
	var e *AlreadyExistsError
	return errors.As(err, &e)
}

// ConflictError indicates a duplicate group name.
type ConflictError struct {
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("group name %q is already in use", e.Name)
}

// IsConflict checks if an error is a name-conflict error.
func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// ForbiddenError indicates the caller may not view an entity that exists.
// Distinct from NotFoundError so callers can tell the channels apart.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// IsForbidden checks if an error is an authorization failure.
func IsForbidden(err error) bool {
	var e *ForbiddenError
	return errors.As(err, &e)
}
