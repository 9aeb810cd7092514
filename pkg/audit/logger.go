package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger is the interface audit sinks implement. Implementations must be safe
// for concurrent use; the services call Log from every mutating operation.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the sink.
	Close() error
}

// NewEvent builds an event with timestamp and correlation id filled in.
func NewEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		CorrelationID: uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		EventType:     eventType,
		Status:        status,
	}
}

// NopLogger discards all events. Used when auditing is disabled.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NopLogger) Close() error                                { return nil }

// LogrusLogger writes audit events as structured log lines. Suitable for
// setups that ship logs to an external aggregator instead of the database.
type LogrusLogger struct {
	log *logrus.Logger
}

// NewLogrusLogger creates a log-line audit sink.
func NewLogrusLogger(log *logrus.Logger) *LogrusLogger {
	if log == nil {
		log = logrus.New()
	}
	return &LogrusLogger{log: log}
}

func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	fields := logrus.Fields{
		"audit":          true,
		"correlation_id": event.CorrelationID,
		"event_type":     event.EventType,
		"status":         event.Status,
	}
	if event.ActorID != nil {
		fields["actor_id"] = *event.ActorID
	}
	if event.GroupID != nil {
		fields["group_id"] = *event.GroupID
	}
	if event.TargetUserID != nil {
		fields["target_user_id"] = *event.TargetUserID
	}
	if event.DomainID != nil {
		fields["domain_id"] = *event.DomainID
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}
	l.log.WithFields(fields).Info(event.Message)
	return nil
}

func (l *LogrusLogger) Close() error { return nil }
