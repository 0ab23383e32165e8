package persistence

import (
	"database/sql/driver"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JSON is a custom type for handling JSON data in GORM.
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("invalid type for JSON")
	}
	return nil
}

// Resource is a protected object: it may have an owner, a parent forming a
// forest, a team, and attached policies.
type Resource struct {
	ID        uuid.UUID  `gorm:"primaryKey;type:uuid" json:"id"`
	Type      string     `gorm:"index;not null" json:"type"`
	OwnerID   *uuid.UUID `gorm:"type:uuid" json:"owner_id"`
	ParentID  *uuid.UUID `gorm:"index;type:uuid" json:"parent_id"`
	TeamID    *uuid.UUID `gorm:"index;type:uuid" json:"team_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Policies []Policy `gorm:"foreignKey:ResourceID" json:"-"`
}

func (Resource) TableName() string { return "resources" }

// Policy grants permissions to subjects matching its audience predicates.
// The autoincrement ID preserves attachment order so resolution output is
// reproducible.
type Policy struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ResourceID  uuid.UUID `gorm:"index;type:uuid;not null" json:"resource_id"`
	Description string    `json:"description"`

	Anonymous     bool `json:"anonymous"`
	Authenticated bool `json:"authenticated"`
	Owners        bool `json:"owners"`
	Users         JSON `gorm:"type:json" json:"users"`  // []uuid.UUID
	Groups        JSON `gorm:"type:json" json:"groups"` // []uuid.UUID

	Granted JSON `gorm:"type:json" json:"granted"` // []string permission codes

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Policy) TableName() string { return "policies" }

// Team is an organizational unit for a set of subjects with assigned roles.
type Team struct {
	ID        uuid.UUID `gorm:"primaryKey;type:uuid" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Founder   uuid.UUID `gorm:"type:uuid" json:"founder"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Roles []Role `gorm:"foreignKey:TeamID" json:"-"`
}

func (Team) TableName() string { return "teams" }

// Role grants permissions to its members on resources associated with the
// role's team.
type Role struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uuid.UUID `gorm:"index;type:uuid;not null" json:"team_id"`
	Name      string    `json:"name"`
	Members   JSON      `gorm:"type:json" json:"members"` // []uuid.UUID
	Granted   JSON      `gorm:"type:json" json:"granted"` // []string permission codes
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Role) TableName() string { return "roles" }
