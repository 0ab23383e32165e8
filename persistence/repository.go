// Package persistence provides the GORM-backed directory for the
// resolution engine. It owns resources, policies, teams and roles; the
// engine only ever reads the materialized views it produces.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getkayan/teamwork/authz"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

// DB exposes the underlying gorm handle for embedding applications.
func (r *Repository) DB() *gorm.DB { return r.db }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&Resource{},
		&Policy{},
		&Team{},
		&Role{},
	)
}

func (r *Repository) CreateResource(res *Resource) error {
	return r.db.Create(res).Error
}

func (r *Repository) CreateTeam(t *Team) error {
	return r.db.Create(t).Error
}

func (r *Repository) CreateRole(role *Role) error {
	return r.db.Create(role).Error
}

// AttachPolicy stores a policy against a resource. Attachment order is
// preserved by the policy's autoincrement ID.
func (r *Repository) AttachPolicy(resourceID uuid.UUID, p authz.Policy) error {
	model, err := policyToModel(resourceID, p)
	if err != nil {
		return err
	}
	return r.db.Create(model).Error
}

// ResourceOf implements authz.Directory.
func (r *Repository) ResourceOf(ctx context.Context, ref authz.ResourceRef) (*authz.Resource, error) {
	var res Resource
	err := r.db.WithContext(ctx).
		Preload("Policies", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ? AND type = ?", ref.ID, ref.Type).
		First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", authz.ErrResourceNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: load resource %s: %w", ref, err)
	}

	out := &authz.Resource{
		Ref:   authz.NewResourceRef(res.Type, res.ID),
		Owner: res.OwnerID,
		Team:  res.TeamID,
	}
	if res.ParentID != nil {
		// Parents may be of a different resource type; look the type up.
		var parentRow Resource
		err := r.db.WithContext(ctx).Select("type").
			First(&parentRow, "id = ?", res.ParentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: dangling parent %s of %s",
				authz.ErrResourceNotFound, res.ParentID, ref)
		}
		if err != nil {
			return nil, fmt.Errorf("persistence: load parent of %s: %w", ref, err)
		}
		parent := authz.NewResourceRef(parentRow.Type, *res.ParentID)
		out.Parent = &parent
	}

	out.Policies = make([]authz.Policy, 0, len(res.Policies))
	for _, p := range res.Policies {
		decoded, err := policyFromModel(p)
		if err != nil {
			return nil, err
		}
		out.Policies = append(out.Policies, decoded)
	}
	return out, nil
}

// RolesOf implements authz.Directory.
func (r *Repository) RolesOf(ctx context.Context, teamID uuid.UUID) ([]authz.Role, error) {
	var models []Role
	if err := r.db.WithContext(ctx).Where("team_id = ?", teamID).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("persistence: load roles of team %s: %w", teamID, err)
	}

	roles := make([]authz.Role, 0, len(models))
	for _, m := range models {
		var members []uuid.UUID
		if err := decodeJSON(m.Members, &members); err != nil {
			return nil, fmt.Errorf("persistence: role %q members: %w", m.Name, err)
		}
		var granted []authz.Code
		if err := decodeJSON(m.Granted, &granted); err != nil {
			return nil, fmt.Errorf("persistence: role %q grants: %w", m.Name, err)
		}
		roles = append(roles, authz.Role{Name: m.Name, Members: members, Granted: granted})
	}
	return roles, nil
}

// TeamOf implements authz.TeamLookup.
func (r *Repository) TeamOf(ctx context.Context, teamID uuid.UUID) (*authz.Team, error) {
	var t Team
	err := r.db.WithContext(ctx).First(&t, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", authz.ErrTeamNotFound, teamID)
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: load team %s: %w", teamID, err)
	}
	return &authz.Team{ID: t.ID, Name: t.Name, Founder: t.Founder}, nil
}

func policyToModel(resourceID uuid.UUID, p authz.Policy) (*Policy, error) {
	users, err := encodeJSON(p.Audience.Users)
	if err != nil {
		return nil, err
	}
	groups, err := encodeJSON(p.Audience.Groups)
	if err != nil {
		return nil, err
	}
	granted, err := encodeJSON(p.Granted)
	if err != nil {
		return nil, err
	}
	return &Policy{
		ResourceID:    resourceID,
		Description:   p.Description,
		Anonymous:     p.Audience.Anonymous,
		Authenticated: p.Audience.Authenticated,
		Owners:        p.Audience.Owners,
		Users:         users,
		Groups:        groups,
		Granted:       granted,
	}, nil
}

func policyFromModel(m Policy) (authz.Policy, error) {
	var users, groups []uuid.UUID
	if err := decodeJSON(m.Users, &users); err != nil {
		return authz.Policy{}, fmt.Errorf("persistence: policy %d users: %w", m.ID, err)
	}
	if err := decodeJSON(m.Groups, &groups); err != nil {
		return authz.Policy{}, fmt.Errorf("persistence: policy %d groups: %w", m.ID, err)
	}
	var granted []authz.Code
	if err := decodeJSON(m.Granted, &granted); err != nil {
		return authz.Policy{}, fmt.Errorf("persistence: policy %d grants: %w", m.ID, err)
	}
	return authz.Policy{
		Description: m.Description,
		Audience: authz.Audience{
			Anonymous:     m.Anonymous,
			Authenticated: m.Authenticated,
			Owners:        m.Owners,
			Users:         users,
			Groups:        groups,
		},
		Granted: granted,
	}, nil
}

func encodeJSON(v any) (JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSON(b), nil
}

func decodeJSON(j JSON, out any) error {
	if len(j) == 0 {
		return nil
	}
	return json.Unmarshal(j, out)
}

// Compile-time interface checks
var (
	_ authz.Directory  = (*Repository)(nil)
	_ authz.TeamLookup = (*Repository)(nil)
)
