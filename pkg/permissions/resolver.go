package permissions

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pdnsadmin/zoneauth/pkg/observability"
)

const tracerName = "github.com/pdnsadmin/zoneauth/pkg/permissions"

// Resolver computes effective permissions by merging direct and group grant
// paths. Precondition: the caller has already excluded super-admins.
type Resolver struct {
	store   Store
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewResolver creates a resolver on a store.
func NewResolver(store Store, log *logrus.Logger) *Resolver {
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{store: store, log: log}
}

// SetMetrics installs the metrics collectors.
func (r *Resolver) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// GetUserPermissionsForZone computes the effective permission set for a
// (user, zone) pair. Absent users or zones yield an empty result, not an
// error; store failures propagate so a failed read is never mistaken for
// "no permissions".
func (r *Resolver) GetUserPermissionsForZone(ctx context.Context, userID, domainID int64) (*EffectivePermissionResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "permissions.resolve")
	span.SetAttributes(
		attribute.Int64("zoneauth.user_id", userID),
		attribute.Int64("zoneauth.domain_id", domainID),
	)
	defer span.End()

	start := time.Now()
	result, err := r.resolve(ctx, userID, domainID)
	r.recordResolution(start, result, err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"domain_id":   domainID,
		"permissions": len(result.Permissions),
		"sources":     len(result.Sources),
	}).Debug("resolved zone permissions")

	return result, nil
}

func (r *Resolver) resolve(ctx context.Context, userID, domainID int64) (*EffectivePermissionResult, error) {
	result := &EffectivePermissionResult{}
	union := make(map[string]struct{})

	templateID, owned, err := r.store.DirectTemplate(ctx, userID, domainID)
	if err != nil {
		return nil, err
	}
	if owned {
		perms, err := r.store.TemplatePermissions(ctx, templateID)
		if err != nil {
			return nil, err
		}
		if len(perms) > 0 {
			result.Sources = append(result.Sources, PermissionSource{
				Type:        SourceUser,
				ID:          userID,
				Permissions: perms,
			})
			for _, p := range perms {
				union[p] = struct{}{}
			}
		}
	}

	grants, err := r.store.GroupGrants(ctx, userID, domainID)
	if err != nil {
		return nil, err
	}
	for _, grant := range grants {
		perms, err := r.store.TemplatePermissions(ctx, grant.TemplateID)
		if err != nil {
			return nil, err
		}
		if len(perms) == 0 {
			continue
		}
		result.Sources = append(result.Sources, PermissionSource{
			Type:        SourceGroup,
			ID:          grant.GroupID,
			Name:        grant.Name,
			Permissions: perms,
		})
		for _, p := range perms {
			union[p] = struct{}{}
		}
	}

	result.Permissions = make([]string, 0, len(union))
	for p := range union {
		result.Permissions = append(result.Permissions, p)
	}
	sort.Strings(result.Permissions)

	return result, nil
}

// CanUserPerformAction reports whether the effective set contains the named
// permission. No special cases: an absent permission is simply false.
func (r *Resolver) CanUserPerformAction(ctx context.Context, userID, domainID int64, permission string) (bool, error) {
	result, err := r.GetUserPermissionsForZone(ctx, userID, domainID)
	if err != nil {
		return false, err
	}
	return result.Has(permission), nil
}

// IsUserZoneOwner reports whether the user holds any grant on the zone via
// either path. This deliberately treats "has any permission" as ownership:
// a read-only viewer counts. Loose, but matches the admin UI's notion of
// "your zones".
func (r *Resolver) IsUserZoneOwner(ctx context.Context, userID, domainID int64) (bool, error) {
	result, err := r.GetUserPermissionsForZone(ctx, userID, domainID)
	if err != nil {
		return false, err
	}
	return len(result.Permissions) > 0, nil
}

// GetUserAccessibleZones lists zones reachable through each path as two
// independent lists; a zone reachable both ways appears in both.
func (r *Resolver) GetUserAccessibleZones(ctx context.Context, userID int64) (*AccessibleZones, error) {
	userZones, err := r.store.UserOwnedZones(ctx, userID)
	if err != nil {
		return nil, err
	}
	groupZones, err := r.store.GroupOwnedZones(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &AccessibleZones{UserZones: userZones, GroupZones: groupZones}, nil
}

// GetPermissionSources is an alias for GetUserPermissionsForZone, named for
// the admin debugging UI that displays grant provenance.
func (r *Resolver) GetPermissionSources(ctx context.Context, userID, domainID int64) (*EffectivePermissionResult, error) {
	return r.GetUserPermissionsForZone(ctx, userID, domainID)
}

func (r *Resolver) recordResolution(start time.Time, result *EffectivePermissionResult, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case len(result.Permissions) == 0:
		outcome = "empty"
	}
	r.metrics.ResolutionsTotal.WithLabelValues(outcome).Inc()
	r.metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
}
