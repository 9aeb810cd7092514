package groups

import (
	"context"
	"fmt"

	"github.com/pdnsadmin/zoneauth/pkg/audit"
)

// Bulk failure reasons surfaced to admin UIs; keep wording stable.
const (
	reasonAlreadyMember = "Already a member"
	reasonNotMember     = "Not a member"
)

// AddUserToGroup adds a user to a group. Duplicate memberships are an error,
// not a silent no-op: at most one row exists per (group, user) pair.
func (s *PostgresService) AddUserToGroup(ctx context.Context, groupID, userID int64) (*GroupMember, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	member, ok, err := s.insertMember(ctx, groupID, userID)
	if err != nil {
		s.recordMutation("add_member", err)
		return nil, err
	}
	if !ok {
		return nil, &AlreadyExistsError{Detail: fmt.Sprintf("user %d is already a member of group %d", userID, groupID)}
	}

	s.recordMutation("add_member", nil)
	ev := audit.NewEvent(audit.EventMemberAdd, audit.StatusSuccess)
	ev.GroupID = &groupID
	ev.TargetUserID = &userID
	ev.Message = "user added to group"
	s.emit(ctx, ev)

	return member, nil
}

// insertMember performs the exists-check-then-insert. The second return value
// is false when the membership already existed, including when a concurrent
// add won the race to the unique constraint.
func (s *PostgresService) insertMember(ctx context.Context, groupID, userID int64) (*GroupMember, bool, error) {
	isMember, err := s.IsUserMember(ctx, groupID, userID)
	if err != nil {
		return nil, false, err
	}
	if isMember {
		return nil, false, nil
	}

	member := &GroupMember{GroupID: groupID, UserID: userID}
	query := `
		INSERT INTO user_group_members (group_id, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	err = s.db.QueryRowContext(ctx, query, groupID, userID).Scan(&member.ID, &member.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to add member: %w", err)
	}
	return member, true, nil
}

// RemoveUserFromGroup removes a user from a group. The bool reports whether a
// row was actually deleted; removing a non-member is not an error.
func (s *PostgresService) RemoveUserFromGroup(ctx context.Context, groupID, userID int64) (bool, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, &NotFoundError{Resource: "group", ID: groupID}
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	)
	if err != nil {
		s.recordMutation("remove_member", err)
		return false, fmt.Errorf("failed to remove member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	removed := rowsAffected > 0
	if removed {
		s.recordMutation("remove_member", nil)
		ev := audit.NewEvent(audit.EventMemberRemove, audit.StatusSuccess)
		ev.GroupID = &groupID
		ev.TargetUserID = &userID
		ev.Message = "user removed from group"
		s.emit(ctx, ev)
	}

	return removed, nil
}

// ListGroupMembers returns the group's membership rows in join order.
func (s *PostgresService) ListGroupMembers(ctx context.Context, groupID int64) ([]*GroupMember, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	query := `
		SELECT id, group_id, user_id, created_at
		FROM user_group_members
		WHERE group_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*GroupMember
	for rows.Next() {
		member := &GroupMember{}
		if err := rows.Scan(&member.ID, &member.GroupID, &member.UserID, &member.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// ListUserGroups returns the groups the user belongs to. A user in no groups
// gets an empty list, never an error.
func (s *PostgresService) ListUserGroups(ctx context.Context, userID int64) ([]*Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.perm_templ, g.created_by, g.created_at, g.updated_at
		FROM user_groups g
		JOIN user_group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
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

// IsUserMember reports membership. An absent group yields false, not an error.
func (s *PostgresService) IsUserMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// BulkAddUsers adds each user independently. Per-item failures go into the
// result; they never abort the loop or roll back siblings. Only an absent
// group fails the whole call.
func (s *PostgresService) BulkAddUsers(ctx context.Context, groupID int64, userIDs []int64) (*BulkResult, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	result := &BulkResult{Failed: make(map[int64]string)}
	for _, userID := range userIDs {
		_, ok, err := s.insertMember(ctx, groupID, userID)
		switch {
		case err != nil:
			result.Failed[userID] = err.Error()
			s.recordBulkItem("add_users", true)
		case !ok:
			result.Failed[userID] = reasonAlreadyMember
			s.recordBulkItem("add_users", true)
		default:
			result.Succeeded = append(result.Succeeded, userID)
			s.recordBulkItem("add_users", false)
			ev := audit.NewEvent(audit.EventMemberAdd, audit.StatusSuccess)
			ev.GroupID = &groupID
			uid := userID
			ev.TargetUserID = &uid
			ev.Message = "user added to group (bulk)"
			s.emit(ctx, ev)
		}
	}

	return result, nil
}

// BulkRemoveUsers removes each user independently with the same partial
// success contract as BulkAddUsers.
func (s *PostgresService) BulkRemoveUsers(ctx context.Context, groupID int64, userIDs []int64) (*BulkResult, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	result := &BulkResult{Failed: make(map[int64]string)}
	for _, userID := range userIDs {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM user_group_members WHERE group_id = $1 AND user_id = $2`,
			groupID, userID,
		)
		if err != nil {
			result.Failed[userID] = fmt.Sprintf("failed to remove member: %v", err)
			s.recordBulkItem("remove_users", true)
			continue
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			result.Failed[userID] = fmt.Sprintf("failed to get rows affected: %v", err)
			s.recordBulkItem("remove_users", true)
			continue
		}
		if rowsAffected == 0 {
			result.Failed[userID] = reasonNotMember
			s.recordBulkItem("remove_users", true)
			continue
		}
		result.Succeeded = append(result.Succeeded, userID)
		s.recordBulkItem("remove_users", false)
		ev := audit.NewEvent(audit.EventMemberRemove, audit.StatusSuccess)
		ev.GroupID = &groupID
		uid := userID
		ev.TargetUserID = &uid
		ev.Message = "user removed from group (bulk)"
		s.emit(ctx, ev)
	}

	return result, nil
}
