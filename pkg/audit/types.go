package audit

import "time"

// EventType categorizes an audit event.
type EventType string

const (
	EventGroupCreate  EventType = "group.create"
	EventGroupUpdate  EventType = "group.update"
	EventGroupDelete  EventType = "group.delete"
	EventMemberAdd    EventType = "group.member_add"
	EventMemberRemove EventType = "group.member_remove"
	EventZoneLink     EventType = "zone.link"
	EventZoneUnlink   EventType = "zone.unlink"
	EventAuthzDenied  EventType = "authz.denied"
)

// EventStatus is the outcome of the audited operation.
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailure EventStatus = "failure"
	StatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry for a permission-affecting operation.
type Event struct {
	ID            int64       `json:"id"`
	CorrelationID string      `json:"correlation_id"`
	Timestamp     time.Time   `json:"timestamp"`
	EventType     EventType   `json:"event_type"`
	Status        EventStatus `json:"status"`

	// ActorID is the user who performed the operation, when known.
	ActorID *int64 `json:"actor_id,omitempty"`

	// Affected entities. Only the ids relevant to the event are set.
	GroupID      *int64 `json:"group_id,omitempty"`
	TargetUserID *int64 `json:"target_user_id,omitempty"`
	DomainID     *int64 `json:"domain_id,omitempty"`

	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Filter narrows a Query call. Zero values mean "no constraint".
type Filter struct {
	EventType EventType
	GroupID   int64
	ActorID   int64
	Since     time.Time
	Limit     int
}
