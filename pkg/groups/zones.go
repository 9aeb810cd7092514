package groups

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pdnsadmin/zoneauth/pkg/audit"
)

const (
	reasonAlreadyLinked = "Zone already linked to group"
	reasonNotLinked     = "Zone not linked to group"
)

// AddZoneToGroup links a zone to a group, optionally tagging a zone template.
// Duplicate links are an error; at most one row exists per (domain, group).
func (s *PostgresService) AddZoneToGroup(ctx context.Context, groupID, domainID int64, zoneTemplateID *int64) (*ZoneGroup, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	link, ok, err := s.insertZoneLink(ctx, groupID, domainID, zoneTemplateID)
	if err != nil {
		s.recordMutation("link_zone", err)
		return nil, err
	}
	if !ok {
		return nil, &AlreadyExistsError{Detail: fmt.Sprintf("zone %d is already linked to group %d", domainID, groupID)}
	}

	s.recordMutation("link_zone", nil)
	ev := audit.NewEvent(audit.EventZoneLink, audit.StatusSuccess)
	ev.GroupID = &groupID
	ev.DomainID = &domainID
	ev.Message = "zone linked to group"
	s.emit(ctx, ev)

	return link, nil
}

// AddGroupToZone is the zone-perspective view of AddZoneToGroup.
func (s *PostgresService) AddGroupToZone(ctx context.Context, domainID, groupID int64, zoneTemplateID *int64) (*ZoneGroup, error) {
	return s.AddZoneToGroup(ctx, groupID, domainID, zoneTemplateID)
}

func (s *PostgresService) insertZoneLink(ctx context.Context, groupID, domainID int64, zoneTemplateID *int64) (*ZoneGroup, bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM zones_groups WHERE domain_id = $1 AND group_id = $2)`,
		domainID, groupID,
	).Scan(&exists)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check zone link: %w", err)
	}
	if exists {
		return nil, false, nil
	}

	link := &ZoneGroup{DomainID: domainID, GroupID: groupID, ZoneTemplateID: zoneTemplateID}
	query := `
		INSERT INTO zones_groups (domain_id, group_id, zone_templ_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err = s.db.QueryRowContext(ctx, query, domainID, groupID, zoneTemplateID).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to link zone: %w", err)
	}
	return link, true, nil
}

// RemoveZoneFromGroup unlinks a zone from a group. Removal is tolerant: a
// missing edge returns false rather than erroring. This is intentionally
// asymmetric with add, which does error on duplicates.
func (s *PostgresService) RemoveZoneFromGroup(ctx context.Context, groupID, domainID int64) (bool, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, &NotFoundError{Resource: "group", ID: groupID}
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM zones_groups WHERE domain_id = $1 AND group_id = $2`,
		domainID, groupID,
	)
	if err != nil {
		s.recordMutation("unlink_zone", err)
		return false, fmt.Errorf("failed to unlink zone: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	removed := rowsAffected > 0
	if removed {
		s.recordMutation("unlink_zone", nil)
		ev := audit.NewEvent(audit.EventZoneUnlink, audit.StatusSuccess)
		ev.GroupID = &groupID
		ev.DomainID = &domainID
		ev.Message = "zone unlinked from group"
		s.emit(ctx, ev)
	}

	return removed, nil
}

// RemoveGroupFromZone is the zone-perspective view of RemoveZoneFromGroup.
func (s *PostgresService) RemoveGroupFromZone(ctx context.Context, domainID, groupID int64) (bool, error) {
	return s.RemoveZoneFromGroup(ctx, groupID, domainID)
}

// ListGroupZones returns the zone links owned by a group.
func (s *PostgresService) ListGroupZones(ctx context.Context, groupID int64) ([]*ZoneGroup, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	query := `
		SELECT id, domain_id, group_id, zone_templ_id, created_at
		FROM zones_groups
		WHERE group_id = $1
		ORDER BY domain_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group zones: %w", err)
	}
	defer rows.Close()

	return scanZoneLinks(rows)
}

// ListZoneGroups returns the groups owning a zone.
func (s *PostgresService) ListZoneGroups(ctx context.Context, domainID int64) ([]*Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.perm_templ, g.created_by, g.created_at, g.updated_at
		FROM user_groups g
		JOIN zones_groups zg ON zg.group_id = g.id
		WHERE zg.domain_id = $1
		ORDER BY g.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, domainID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zone groups: %w", err)
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

// BulkAddZones links each zone independently; same partial-success contract
// as the membership bulk operations.
func (s *PostgresService) BulkAddZones(ctx context.Context, groupID int64, domainIDs []int64, zoneTemplateID *int64) (*BulkResult, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	result := &BulkResult{Failed: make(map[int64]string)}
	for _, domainID := range domainIDs {
		_, ok, err := s.insertZoneLink(ctx, groupID, domainID, zoneTemplateID)
		switch {
		case err != nil:
			result.Failed[domainID] = err.Error()
			s.recordBulkItem("add_zones", true)
		case !ok:
			result.Failed[domainID] = reasonAlreadyLinked
			s.recordBulkItem("add_zones", true)
		default:
			result.Succeeded = append(result.Succeeded, domainID)
			s.recordBulkItem("add_zones", false)
		}
	}

	return result, nil
}

// BulkRemoveZones unlinks each zone independently.
func (s *PostgresService) BulkRemoveZones(ctx context.Context, groupID int64, domainIDs []int64) (*BulkResult, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	result := &BulkResult{Failed: make(map[int64]string)}
	for _, domainID := range domainIDs {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM zones_groups WHERE domain_id = $1 AND group_id = $2`,
			domainID, groupID,
		)
		if err != nil {
			result.Failed[domainID] = fmt.Sprintf("failed to unlink zone: %v", err)
			s.recordBulkItem("remove_zones", true)
			continue
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			result.Failed[domainID] = fmt.Sprintf("failed to get rows affected: %v", err)
			s.recordBulkItem("remove_zones", true)
			continue
		}
		if rowsAffected == 0 {
			result.Failed[domainID] = reasonNotLinked
			s.recordBulkItem("remove_zones", true)
			continue
		}
		result.Succeeded = append(result.Succeeded, domainID)
		s.recordBulkItem("remove_zones", false)
	}

	return result, nil
}

// GetGroupDeletionImpact reports how many zone links deleting the group would
// cascade-delete, with at most limit domain ids for display.
func (s *PostgresService) GetGroupDeletionImpact(ctx context.Context, groupID int64, limit int) (*DeletionImpact, error) {
	exists, err := s.groupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Resource: "group", ID: groupID}
	}

	impact := &DeletionImpact{}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM zones_groups WHERE group_id = $1`, groupID,
	).Scan(&impact.ZoneCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count zone links: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT domain_id FROM zones_groups WHERE group_id = $1 ORDER BY domain_id ASC LIMIT $2`,
		groupID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list zone links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var domainID int64
		if err := rows.Scan(&domainID); err != nil {
			return nil, fmt.Errorf("failed to scan zone link: %w", err)
		}
		impact.Zones = append(impact.Zones, domainID)
	}

	return impact, rows.Err()
}

func scanZoneLinks(rows *sql.Rows) ([]*ZoneGroup, error) {
	var links []*ZoneGroup
	for rows.Next() {
		link := &ZoneGroup{}
		var zoneTemplateID sql.NullInt64
		if err := rows.Scan(&link.ID, &link.DomainID, &link.GroupID, &zoneTemplateID, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan zone link: %w", err)
		}
		if zoneTemplateID.Valid {
			id := zoneTemplateID.Int64
			link.ZoneTemplateID = &id
		}
		links = append(links, link)
	}
	return links, rows.Err()
}
