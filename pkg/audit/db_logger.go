package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBLogger persists audit events to the audit_log table.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database audit sink and ensures the table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	l := &DBLogger{db: db}
	if err := l.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_log table: %w", err)
	}
	return l, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		correlation_id VARCHAR(36) NOT NULL,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		status VARCHAR(20) NOT NULL,
		actor_id BIGINT,
		group_id BIGINT,
		target_user_id BIGINT,
		domain_id BIGINT,
		message TEXT,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_log_event_type ON audit_log(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_log_group_id ON audit_log(group_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_actor_id ON audit_log(actor_id);
	`
	_, err := l.db.Exec(query)
	return err
}

// Log inserts the event and fills in its assigned id.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	var err error
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_log (correlation_id, timestamp, event_type, status, actor_id, group_id, target_user_id, domain_id, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err = l.db.QueryRowContext(ctx, query,
		event.CorrelationID, event.Timestamp, event.EventType, event.Status,
		event.ActorID, event.GroupID, event.TargetUserID, event.DomainID,
		event.Message, metadataJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Query returns events matching the filter, newest first.
func (l *DBLogger) Query(ctx context.Context, filter Filter) ([]*Event, error) {
	query := `
		SELECT id, correlation_id, timestamp, event_type, status, actor_id, group_id, target_user_id, domain_id, message, metadata
		FROM audit_log
		WHERE 1=1
	`
	args := []interface{}{}
	argPos := 1

	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argPos)
		args = append(args, filter.EventType)
		argPos++
	}
	if filter.GroupID != 0 {
		query += fmt.Sprintf(" AND group_id = $%d", argPos)
		args = append(args, filter.GroupID)
		argPos++
	}
	if filter.ActorID != 0 {
		query += fmt.Sprintf(" AND actor_id = $%d", argPos)
		args = append(args, filter.ActorID)
		argPos++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND timestamp >= $%d", argPos)
		args = append(args, filter.Since)
		argPos++
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var actorID, groupID, targetUserID, domainID sql.NullInt64
		var message sql.NullString
		var metadataJSON []byte
		if err := rows.Scan(
			&event.ID, &event.CorrelationID, &event.Timestamp, &event.EventType, &event.Status,
			&actorID, &groupID, &targetUserID, &domainID, &message, &metadataJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if actorID.Valid {
			v := actorID.Int64
			event.ActorID = &v
		}
		if groupID.Valid {
			v := groupID.Int64
			event.GroupID = &v
		}
		if targetUserID.Valid {
			v := targetUserID.Int64
			event.TargetUserID = &v
		}
		if domainID.Valid {
			v := domainID.Int64
			event.DomainID = &v
		}
		if message.Valid {
			event.Message = message.String
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// DeleteOlderThan removes events past the retention window and returns the
// number of rows deleted.
func (l *DBLogger) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result, err := l.db.ExecContext(ctx, `DELETE FROM audit_log WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// Close is a no-op; the caller owns the db handle.
func (l *DBLogger) Close() error { return nil }
