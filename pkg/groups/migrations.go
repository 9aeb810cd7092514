package groups

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema for the permission engine. Version 1
// creates the reference tables the resolver joins against (normally owned by
// the wider application schema, created here IF NOT EXISTS so the engine can
// run standalone); versions 2-4 create the tables this package owns.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create reference tables (users, zones, permission templates)",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(64) NOT NULL UNIQUE,
					perm_templ BIGINT NOT NULL DEFAULT 0,
					active BOOLEAN NOT NULL DEFAULT TRUE
				);

				CREATE TABLE IF NOT EXISTS perm_items (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(64) NOT NULL UNIQUE,
					descr TEXT NOT NULL DEFAULT ''
				);

				CREATE TABLE IF NOT EXISTS perm_templ (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(128) NOT NULL,
					descr TEXT NOT NULL DEFAULT ''
				);

				CREATE TABLE IF NOT EXISTS perm_templ_items (
					id BIGSERIAL PRIMARY KEY,
					templ_id BIGINT NOT NULL REFERENCES perm_templ(id) ON DELETE CASCADE,
					perm_id BIGINT NOT NULL REFERENCES perm_items(id) ON DELETE CASCADE
				);

				CREATE TABLE IF NOT EXISTS zones (
					id BIGSERIAL PRIMARY KEY,
					domain_id BIGINT NOT NULL,
					owner BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					comment TEXT NOT NULL DEFAULT '',
					zone_templ_id BIGINT
				);

				CREATE INDEX IF NOT EXISTS idx_perm_templ_items_templ_id ON perm_templ_items(templ_id);
				CREATE INDEX IF NOT EXISTS idx_zones_domain_id ON zones(domain_id);
				CREATE INDEX IF NOT EXISTS idx_zones_owner ON zones(owner);
			`,
		},
		{
			Version:     2,
			Description: "Create user_groups table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_groups (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL UNIQUE,
					description VARCHAR(255) NOT NULL DEFAULT '',
					perm_templ BIGINT NOT NULL REFERENCES perm_templ(id),
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_user_groups_name ON user_groups(name);
			`,
		},
		{
			Version:     3,
			Description: "Create user_group_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_group_members (
					id BIGSERIAL PRIMARY KEY,
					group_id BIGINT NOT NULL REFERENCES user_groups(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(group_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_group_members_group_id ON user_group_members(group_id);
				CREATE INDEX IF NOT EXISTS idx_user_group_members_user_id ON user_group_members(user_id);
			`,
		},
		{
			Version:     4,
			Description: "Create zones_groups table",
			SQL: `
				CREATE TABLE IF NOT EXISTS zones_groups (
					id BIGSERIAL PRIMARY KEY,
					domain_id BIGINT NOT NULL,
					group_id BIGINT NOT NULL REFERENCES user_groups(id) ON DELETE CASCADE,
					zone_templ_id BIGINT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(domain_id, group_id)
				);

				CREATE INDEX IF NOT EXISTS idx_zones_groups_domain_id ON zones_groups(domain_id);
				CREATE INDEX IF NOT EXISTS idx_zones_groups_group_id ON zones_groups(group_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, one transaction each.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS zoneauth_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM zoneauth_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO zoneauth_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
