package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/pdnsadmin/zoneauth/pkg/audit"
	"github.com/pdnsadmin/zoneauth/pkg/config"
	"github.com/pdnsadmin/zoneauth/pkg/groups"
	"github.com/pdnsadmin/zoneauth/pkg/observability"
	"github.com/pdnsadmin/zoneauth/pkg/permissions"
)

const usage = `Usage: zoneauth <command> [flags]

Commands:
  migrate       Apply schema migrations
  check         Check a permission for a user on a zone (exit 2 when denied)
  sources       Show permission provenance for a user on a zone
  zones         List zones accessible to a user
  impact        Show the zone links deleting a group would remove
  audit-prune   Delete audit events older than the retention window

Configuration comes from ZONEAUTH_* environment variables; see the README.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Log.Level, observability.LogFormat(cfg.Log.Format), os.Stderr)

	db, err := openDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Insecure:    cfg.Tracing.Insecure,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdownTracer(ctx)

	var cmdErr error
	switch os.Args[1] {
	case "migrate":
		cmdErr = runMigrate(ctx, db, log, cfg.Audit.Enabled)
	case "check":
		cmdErr = runCheck(ctx, db, os.Args[2:])
	case "sources":
		cmdErr = runSources(ctx, db, os.Args[2:])
	case "zones":
		cmdErr = runZones(ctx, db, os.Args[2:])
	case "impact":
		cmdErr = runImpact(ctx, db, log, os.Args[2:])
	case "audit-prune":
		cmdErr = runAuditPrune(ctx, db, log, cfg.Audit.Retention)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		os.Exit(1)
	}
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func runMigrate(ctx context.Context, db *sql.DB, log *logrus.Logger, auditEnabled bool) error {
	if err := groups.RunMigrations(ctx, db); err != nil {
		return err
	}
	if auditEnabled {
		if _, err := audit.NewDBLogger(db); err != nil {
			return err
		}
	}
	log.Info("migrations applied")
	return nil
}

func runCheck(ctx context.Context, db *sql.DB, args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	userID := fs.Int64("user", 0, "User ID")
	domainID := fs.Int64("zone", 0, "Zone domain ID")
	perm := fs.String("perm", "", "Permission name, e.g. zone_content_edit_own")
	fs.Parse(args)

	if *userID == 0 || *domainID == 0 || *perm == "" {
		return fmt.Errorf("check requires -user, -zone, and -perm")
	}

	resolver := permissions.NewResolver(permissions.NewPostgresStore(db), nil)
	allowed, err := resolver.CanUserPerformAction(ctx, *userID, *domainID, *perm)
	if err != nil {
		return err
	}
	if !allowed {
		fmt.Printf("denied: user %d lacks %s on zone %d\n", *userID, *perm, *domainID)
		os.Exit(2)
	}
	fmt.Printf("allowed: user %d has %s on zone %d\n", *userID, *perm, *domainID)
	return nil
}

func runSources(ctx context.Context, db *sql.DB, args []string) error {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	userID := fs.Int64("user", 0, "User ID")
	domainID := fs.Int64("zone", 0, "Zone domain ID")
	fs.Parse(args)

	if *userID == 0 || *domainID == 0 {
		return fmt.Errorf("sources requires -user and -zone")
	}

	resolver := permissions.NewResolver(permissions.NewPostgresStore(db), nil)
	result, err := resolver.GetPermissionSources(ctx, *userID, *domainID)
	if err != nil {
		return err
	}

	return printJSON(result)
}

func runZones(ctx context.Context, db *sql.DB, args []string) error {
	fs := flag.NewFlagSet("zones", flag.ExitOnError)
	userID := fs.Int64("user", 0, "User ID")
	fs.Parse(args)

	if *userID == 0 {
		return fmt.Errorf("zones requires -user")
	}

	resolver := permissions.NewResolver(permissions.NewPostgresStore(db), nil)
	zones, err := resolver.GetUserAccessibleZones(ctx, *userID)
	if err != nil {
		return err
	}

	return printJSON(zones)
}

func runImpact(ctx context.Context, db *sql.DB, log *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("impact", flag.ExitOnError)
	groupID := fs.Int64("group", 0, "Group ID")
	limit := fs.Int("limit", 20, "Maximum zone IDs to list")
	fs.Parse(args)

	if *groupID == 0 {
		return fmt.Errorf("impact requires -group")
	}

	svc := groups.NewPostgresService(db, log)
	impact, err := svc.GetGroupDeletionImpact(ctx, *groupID, *limit)
	if err != nil {
		return err
	}

	return printJSON(impact)
}

func runAuditPrune(ctx context.Context, db *sql.DB, log *logrus.Logger, retention time.Duration) error {
	sink, err := audit.NewDBLogger(db)
	if err != nil {
		return err
	}
	deleted, err := sink.DeleteOlderThan(ctx, retention)
	if err != nil {
		return err
	}
	log.WithField("deleted", deleted).Info("audit log pruned")
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
