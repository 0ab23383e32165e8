// Package teamwork wires the object-level permission resolution engine to
// its default collaborators. Most applications only need the helpers here;
// the underlying packages stay available for custom wiring.
package teamwork

import (
	"github.com/getkayan/teamwork/authz"
	"github.com/getkayan/teamwork/persistence"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Default types for convenience
type ID = uuid.UUID
type Code = authz.Code
type Subject = authz.Subject
type ResourceRef = authz.ResourceRef

// TeamResourceType is the resource type under which teams themselves are
// protected. The founder of a team holds its management permissions
// through the built-in custom grant hook.
const TeamResourceType = "teamwork.team"

// TeamPermissions are the codes grantable on a team.
var TeamPermissions = []authz.Code{
	"teamwork.view_team",
	"teamwork.view_role",
	"teamwork.manage_role_permissions",
	"teamwork.manage_role_users",
}

// NewDefaultEngine creates a resolution engine over the GORM-backed
// directory, with the team management catalog and founder grants
// pre-registered.
func NewDefaultEngine(db *gorm.DB, catalog *authz.MemoryCatalog, opts ...authz.Option) *authz.Engine {
	repo := persistence.NewRepository(db)
	catalog.Register(TeamResourceType, TeamPermissions...)
	opts = append(opts,
		authz.WithGranter(TeamResourceType, authz.FounderGranter(repo, TeamPermissions...)))
	return authz.NewEngine(repo, catalog, opts...)
}

// NewMemoryEngine creates a resolution engine over in-memory stores, for
// tests and embedded single-process use.
func NewMemoryEngine(dir *authz.MemoryDirectory, catalog *authz.MemoryCatalog, opts ...authz.Option) *authz.Engine {
	catalog.Register(TeamResourceType, TeamPermissions...)
	opts = append(opts,
		authz.WithGranter(TeamResourceType, authz.FounderGranter(dir, TeamPermissions...)))
	return authz.NewEngine(dir, catalog, opts...)
}
