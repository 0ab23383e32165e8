package authz

import (
	"context"

	"github.com/google/uuid"
)

// Directory supplies the materialized resource and team data the engine
// resolves against. Implementations can be in-memory snapshots or backed
// by a database; the engine only ever reads.
type Directory interface {
	// ResourceOf returns the resource view for the given reference.
	// An unknown reference is a configuration error, not a nil result.
	ResourceOf(ctx context.Context, ref ResourceRef) (*Resource, error)

	// RolesOf returns all roles belonging to the given team.
	RolesOf(ctx context.Context, teamID uuid.UUID) ([]Role, error)
}

// Catalog enumerates the permission codes that exist for a resource type.
// It is consulted for the superuser short-circuit and to exclude grants of
// unregistered codes.
type Catalog interface {
	// AllPermissions returns every valid code for the resource type.
	AllPermissions(ctx context.Context, resourceType string) ([]Code, error)
}
