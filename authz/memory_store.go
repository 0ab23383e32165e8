package authz

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory provides an in-memory implementation of Directory.
// This is useful for testing, development, and simple single-instance
// deployments. For shared deployments, use a persistent directory.
type MemoryDirectory struct {
	mu        sync.RWMutex
	resources map[ResourceRef]*Resource
	teams     map[uuid.UUID]*Team
	roles     map[uuid.UUID][]Role
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		resources: make(map[ResourceRef]*Resource),
		teams:     make(map[uuid.UUID]*Team),
		roles:     make(map[uuid.UUID][]Role),
	}
}

// AddResource registers a resource view. Re-adding a reference replaces the
// previous view.
func (d *MemoryDirectory) AddResource(res Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resources[res.Ref] = &res
}

// AttachPolicy appends a policy to an already-registered resource.
func (d *MemoryDirectory) AttachPolicy(ref ResourceRef, p Policy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, ok := d.resources[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrResourceNotFound, ref)
	}
	res.Policies = append(res.Policies, p)
	return nil
}

// AddTeam registers a team.
func (d *MemoryDirectory) AddTeam(t Team) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teams[t.ID] = &t
}

// AddRole appends a role to a team.
func (d *MemoryDirectory) AddRole(teamID uuid.UUID, r Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[teamID] = append(d.roles[teamID], r)
}

// ResourceOf implements Directory.
func (d *MemoryDirectory) ResourceOf(ctx context.Context, ref ResourceRef) (*Resource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	res, ok := d.resources[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, ref)
	}
	// Shallow copy so callers cannot mutate the stored view.
	out := *res
	return &out, nil
}

// RolesOf implements Directory.
func (d *MemoryDirectory) RolesOf(ctx context.Context, teamID uuid.UUID) ([]Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roles[teamID], nil
}

// TeamOf implements TeamLookup.
func (d *MemoryDirectory) TeamOf(ctx context.Context, teamID uuid.UUID) (*Team, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	out := *t
	return &out, nil
}

// MemoryCatalog is an in-memory permission catalog, registered once at
// process start and passed into the engine.
type MemoryCatalog struct {
	mu    sync.RWMutex
	types map[string][]Code
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{types: make(map[string][]Code)}
}

// Register adds codes to the set valid for a resource type.
func (c *MemoryCatalog) Register(resourceType string, codes ...Code) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[resourceType] = append(c.types[resourceType], codes...)
}

// AllPermissions implements Catalog.
func (c *MemoryCatalog) AllPermissions(ctx context.Context, resourceType string) ([]Code, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := c.types[resourceType]
	out := make([]Code, len(codes))
	copy(out, codes)
	return out, nil
}

// Compile-time interface checks
var (
	_ Directory  = (*MemoryDirectory)(nil)
	_ TeamLookup = (*MemoryDirectory)(nil)
	_ Catalog    = (*MemoryCatalog)(nil)
)
