//go:build integration

package permissions

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pdnsadmin/zoneauth/pkg/groups"
)

// setupPostgresTestDB creates a PostgreSQL test container with the full schema.
func setupPostgresTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("zoneauth_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)

	err = db.Ping()
	require.NoError(t, err)

	err = groups.RunMigrations(ctx, db)
	require.NoError(t, err, "Failed to run migrations")

	cleanup := func() {
		db.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := postgresContainer.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

// seedFixture builds the scenario used across the integration tests:
//
//	templates: 2 = view only, 3 = view+edit
//	user 5 owns zone 10 directly on template 2
//	group 7 ("editors", template 3) contains user 5 and owns zone 10
//	zone 12 is owned only by group 7
func seedFixture(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		`INSERT INTO perm_items (id, name, descr) VALUES
			(1, 'zone_content_view_own', 'View own zones'),
			(2, 'zone_content_edit_own', 'Edit own zones')`,
		`INSERT INTO perm_templ (id, name, descr) VALUES
			(2, 'viewer', 'View only'),
			(3, 'editor', 'View and edit')`,
		`INSERT INTO perm_templ_items (templ_id, perm_id) VALUES
			(2, 1), (3, 1), (3, 2)`,
		`INSERT INTO users (id, username, perm_templ) VALUES
			(5, 'alice', 2),
			(6, 'bob', 2)`,
		`INSERT INTO zones (domain_id, owner, zone_templ_id) VALUES
			(10, 5, NULL),
			(12, 6, NULL)`,
		`INSERT INTO user_groups (id, name, description, perm_templ) VALUES
			(7, 'editors', 'Zone editors', 3)`,
		`INSERT INTO user_group_members (group_id, user_id) VALUES (7, 5)`,
		`INSERT INTO zones_groups (domain_id, group_id) VALUES (10, 7), (12, 7)`,
	}
	for _, stmt := range stmts {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
}

func TestResolverIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupPostgresTestDB(t)
	defer cleanup()
	seedFixture(t, db)

	ctx := context.Background()
	resolver := NewResolver(NewPostgresStore(db), nil)

	t.Run("union of direct and group grants", func(t *testing.T) {
		result, err := resolver.GetUserPermissionsForZone(ctx, 5, 10)
		require.NoError(t, err)

		assert.Equal(t, []string{"zone_content_edit_own", "zone_content_view_own"}, result.Permissions)
		require.Len(t, result.Sources, 2)
		assert.Equal(t, SourceUser, result.Sources[0].Type)
		assert.Equal(t, []string{"zone_content_view_own"}, result.Sources[0].Permissions)
		assert.Equal(t, SourceGroup, result.Sources[1].Type)
		assert.Equal(t, "editors", result.Sources[1].Name)
	})

	t.Run("group-only zone", func(t *testing.T) {
		result, err := resolver.GetUserPermissionsForZone(ctx, 5, 12)
		require.NoError(t, err)

		assert.Equal(t, []string{"zone_content_edit_own", "zone_content_view_own"}, result.Permissions)
		require.Len(t, result.Sources, 1)
		assert.Equal(t, SourceGroup, result.Sources[0].Type)
	})

	t.Run("non-member has no group path", func(t *testing.T) {
		result, err := resolver.GetUserPermissionsForZone(ctx, 6, 10)
		require.NoError(t, err)
		assert.Empty(t, result.Permissions)
	})

	t.Run("accessible zones list both paths", func(t *testing.T) {
		zones, err := resolver.GetUserAccessibleZones(ctx, 5)
		require.NoError(t, err)

		assert.Equal(t, []int64{10}, zones.UserZones)
		assert.Equal(t, []int64{10, 12}, zones.GroupZones)
	})

	t.Run("removing member revokes group grants", func(t *testing.T) {
		svc := groups.NewPostgresService(db, nil)

		removed, err := svc.RemoveUserFromGroup(ctx, 7, 5)
		require.NoError(t, err)
		assert.True(t, removed)

		result, err := resolver.GetUserPermissionsForZone(ctx, 5, 12)
		require.NoError(t, err)
		assert.Empty(t, result.Permissions)

		// Re-add for the remaining subtests.
		_, err = svc.AddUserToGroup(ctx, 7, 5)
		require.NoError(t, err)
	})

	t.Run("deleting group cascades links and revokes grants", func(t *testing.T) {
		svc := groups.NewPostgresService(db, nil)

		err := svc.DeleteGroup(ctx, 7)
		require.NoError(t, err)

		result, err := resolver.GetUserPermissionsForZone(ctx, 5, 12)
		require.NoError(t, err)
		assert.Empty(t, result.Permissions)

		// Direct ownership of zone 10 survives.
		result, err = resolver.GetUserPermissionsForZone(ctx, 5, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"zone_content_view_own"}, result.Permissions)
	})
}
