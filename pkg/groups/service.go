package groups

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/pdnsadmin/zoneauth/pkg/audit"
	"github.com/pdnsadmin/zoneauth/pkg/observability"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
// Concurrent adds race to it; the loser surfaces as AlreadyExists/Conflict.
const uniqueViolation = pq.ErrorCode("23505")

// PostgresService implements group, membership, and zone-link management
// against a relational store.
type PostgresService struct {
	db      *sql.DB
	log     *logrus.Logger
	audit   audit.Logger
	metrics *observability.Metrics
}

// NewPostgresService creates a service. Auditing defaults to a no-op sink.
func NewPostgresService(db *sql.DB, log *logrus.Logger) *PostgresService {
	if log == nil {
		log = logrus.New()
	}
	return &PostgresService{
		db:    db,
		log:   log,
		audit: audit.NopLogger{},
	}
}

// SetAuditLogger installs an audit sink for mutation events.
func (s *PostgresService) SetAuditLogger(l audit.Logger) {
	if l == nil {
		l = audit.NopLogger{}
	}
	s.audit = l
}

// SetMetrics installs the metrics collectors.
func (s *PostgresService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

const groupColumns = "id, name, description, perm_templ, created_by, created_at, updated_at"

// ListGroups returns all groups for admins, or only the caller's groups for
// everyone else.
func (s *PostgresService) ListGroups(ctx context.Context, userID int64, isAdmin bool) ([]*Group, error) {
	var rows *sql.Rows
	var err error
	if isAdmin {
		query := `SELECT ` + groupColumns + ` FROM user_groups ORDER BY name ASC`
		rows, err = s.db.QueryContext(ctx, query)
	} else {
		query := `
			SELECT g.id, g.name, g.description, g.perm_templ, g.created_by, g.created_at, g.updated_at
			FROM user_groups g
			JOIN user_group_members m ON m.group_id = g.id
			WHERE m.user_id = $1
			ORDER BY g.name ASC
		`
		rows, err = s.db.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var result []*Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		result = append(result, group)
	}

	return result, rows.Err()
}

// GetGroupByID returns a group by id. Existence and authorization are
// distinct channels: an absent group yields (nil, nil); a present group the
// caller may not see yields ForbiddenError.
func (s *PostgresService) GetGroupByID(ctx context.Context, groupID, userID int64, isAdmin bool) (*Group, error) {
	group, err := s.findByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, nil
	}

	if !isAdmin {
		member, err := s.IsUserMember(ctx, groupID, userID)
		if err != nil {
			return nil, err
		}
		if !member {
			ev := audit.NewEvent(audit.EventAuthzDenied, audit.StatusDenied)
			ev.ActorID = &userID
			ev.GroupID = &groupID
			ev.Message = "group view denied"
			s.emit(ctx, ev)
			return nil, &ForbiddenError{Reason: "You do not have permission to view this group"}
		}
	}

	return group, nil
}

// CreateGroup creates a group after validating and trimming the name. Name
// uniqueness is a case-sensitive exact match.
func (s *PostgresService) CreateGroup(ctx context.Context, req CreateGroupRequest) (*Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	available, err := s.IsGroupNameAvailable(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, &ConflictError{Name: name}
	}

	group := &Group{
		Name:                 name,
		Description:          req.Description,
		PermissionTemplateID: req.PermissionTemplateID,
		CreatedBy:            req.CreatedBy,
	}

	query := `
		INSERT INTO user_groups (name, description, perm_templ, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query, group.Name, group.Description, group.PermissionTemplateID, group.CreatedBy).
		Scan(&group.ID, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Name: name}
		}
		s.recordMutation("create_group", err)
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	s.recordMutation("create_group", nil)
	ev := audit.NewEvent(audit.EventGroupCreate, audit.StatusSuccess)
	ev.ActorID = req.CreatedBy
	ev.GroupID = &group.ID
	ev.Message = "group created"
	ev.Metadata = map[string]any{"name": group.Name}
	s.emit(ctx, ev)

	return group, nil
}

// UpdateGroup applies a partial update. A provided name is trimmed,
// re-validated, and checked for uniqueness excluding the group's own row.
func (s *PostgresService) UpdateGroup(ctx context.Context, groupID int64, req UpdateGroupRequest) (*Group, error) {
	existing, err := s.findByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
		}
		available, err := s.IsGroupNameAvailable(ctx, name, &groupID)
		if err != nil {
			return nil, err
		}
		if !available {
			return nil, &ConflictError{Name: name}
		}
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, name)
		argPos++
	}
	if req.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *req.Description)
		argPos++
	}
	if req.PermissionTemplateID != nil {
		setClauses = append(setClauses, fmt.Sprintf("perm_templ = $%d", argPos))
		args = append(args, *req.PermissionTemplateID)
		argPos++
	}

	if len(setClauses) == 0 {
		return existing, nil
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, groupID)
	query := fmt.Sprintf("UPDATE user_groups SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Name: strings.TrimSpace(*req.Name)}
		}
		s.recordMutation("update_group", err)
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	s.recordMutation("update_group", nil)
	ev := audit.NewEvent(audit.EventGroupUpdate, audit.StatusSuccess)
	ev.GroupID = &groupID
	ev.Message = "group updated"
	s.emit(ctx, ev)

	return s.findByID(ctx, groupID)
}

// DeleteGroup deletes a group. The store's cascade removes membership and
// zone-link edges; no application-level cleanup runs here.
func (s *PostgresService) DeleteGroup(ctx context.Context, groupID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM user_groups WHERE id = $1`, groupID)
	if err != nil {
		s.recordMutation("delete_group", err)
		return fmt.Errorf("failed to delete group: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &NotFoundError{Resource: "group", ID: groupID}
	}

	s.recordMutation("delete_group", nil)
	ev := audit.NewEvent(audit.EventGroupDelete, audit.StatusSuccess)
	ev.GroupID = &groupID
	ev.Message = "group deleted"
	s.emit(ctx, ev)

	return nil
}

// GetGroupDetails returns a group with its member and zone counts.
func (s *PostgresService) GetGroupDetails(ctx context.Context, groupID int64) (*GroupDetails, error) {
	group, err := s.findByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	details := &GroupDetails{Group: group}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_group_members WHERE group_id = $1`, groupID,
	).Scan(&details.MemberCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM zones_groups WHERE group_id = $1`, groupID,
	).Scan(&details.ZoneCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count zones: %w", err)
	}

	return details, nil
}

// IsGroupNameAvailable reports whether no other group uses the name. Pass the
// group's own id in excludeGroupID during renames so the current row does not
// count against itself.
func (s *PostgresService) IsGroupNameAvailable(ctx context.Context, name string, excludeGroupID *int64) (bool, error) {
	var exists bool
	var err error
	if excludeGroupID != nil {
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM user_groups WHERE name = $1 AND id <> $2)`,
			name, *excludeGroupID,
		).Scan(&exists)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM user_groups WHERE name = $1)`,
			name,
		).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check group name: %w", err)
	}
	return !exists, nil
}

// findByID fetches a group or nil when absent. Store errors propagate.
func (s *PostgresService) findByID(ctx context.Context, groupID int64) (*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM user_groups WHERE id = $1`
	group, err := scanGroup(s.db.QueryRowContext(ctx, query, groupID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// groupExists reports whether the group row is present.
func (s *PostgresService) groupExists(ctx context.Context, groupID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_groups WHERE id = $1)`, groupID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check group existence: %w", err)
	}
	return exists, nil
}

// emit sends an audit event; sink failures are logged, never returned.
func (s *PostgresService) emit(ctx context.Context, ev *audit.Event) {
	if err := s.audit.Log(ctx, ev); err != nil {
		s.log.WithError(err).Warn("failed to write audit event")
	}
}

func (s *PostgresService) recordMutation(operation string, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.GroupMutationsTotal.WithLabelValues(operation, status).Inc()
}

func (s *PostgresService) recordBulkItem(operation string, failed bool) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if failed {
		result = "failed"
	}
	s.metrics.BulkItemsTotal.WithLabelValues(operation, result).Inc()
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}

func scanGroup(scanner interface {
	Scan(dest ...interface{}) error
}) (*Group, error) {
	var group Group
	var createdBy sql.NullInt64
	err := scanner.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.PermissionTemplateID,
		&createdBy,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		id := createdBy.Int64
		group.CreatedBy = &id
	}
	return &group, nil
}
