package permissions

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store against the admin schema.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store on an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// DirectTemplate resolves the owner's permission template for a zone the
// user owns directly.
func (s *PostgresStore) DirectTemplate(ctx context.Context, userID, domainID int64) (int64, bool, error) {
	query := `
		SELECT u.perm_templ
		FROM zones z
		JOIN users u ON u.id = z.owner
		WHERE z.domain_id = $1 AND z.owner = $2
		LIMIT 1
	`
	var templateID int64
	err := s.db.QueryRowContext(ctx, query, domainID, userID).Scan(&templateID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get direct template: %w", err)
	}
	return templateID, true, nil
}

// GroupGrants returns the groups that both contain the user and own the zone.
func (s *PostgresStore) GroupGrants(ctx context.Context, userID, domainID int64) ([]GroupGrant, error) {
	query := `
		SELECT g.id, g.name, g.perm_templ
		FROM user_group_members m
		JOIN user_groups g ON g.id = m.group_id
		JOIN zones_groups zg ON zg.group_id = g.id
		WHERE m.user_id = $1 AND zg.domain_id = $2
		ORDER BY g.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, domainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group grants: %w", err)
	}
	defer rows.Close()

	var grants []GroupGrant
	for rows.Next() {
		var grant GroupGrant
		if err := rows.Scan(&grant.GroupID, &grant.Name, &grant.TemplateID); err != nil {
			return nil, fmt.Errorf("failed to scan group grant: %w", err)
		}
		grants = append(grants, grant)
	}

	return grants, rows.Err()
}

// TemplatePermissions expands a template to its permission names.
func (s *PostgresStore) TemplatePermissions(ctx context.Context, templateID int64) ([]string, error) {
	query := `
		SELECT p.name
		FROM perm_templ_items ti
		JOIN perm_items p ON p.id = ti.perm_id
		WHERE ti.templ_id = $1
		ORDER BY p.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to expand template: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// UserOwnedZones lists zones the user owns directly.
func (s *PostgresStore) UserOwnedZones(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT domain_id FROM zones WHERE owner = $1 ORDER BY domain_id ASC`
	return s.scanDomainIDs(ctx, query, userID, "failed to list owned zones")
}

// GroupOwnedZones lists zones owned by any group the user belongs to.
func (s *PostgresStore) GroupOwnedZones(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT zg.domain_id
		FROM user_group_members m
		JOIN zones_groups zg ON zg.group_id = m.group_id
		WHERE m.user_id = $1
		ORDER BY zg.domain_id ASC
	`
	return s.scanDomainIDs(ctx, query, userID, "failed to list group zones")
}

func (s *PostgresStore) scanDomainIDs(ctx context.Context, query string, userID int64, errMsg string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan domain id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
