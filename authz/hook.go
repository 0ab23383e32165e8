package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Granter is the optional custom-authorization capability a resource type
// may provide. It is invoked with the subject and the original resource and
// returns additional ad-hoc codes not expressible through policies or
// roles, e.g. grants derived from the resource's own state.
//
// Implementations must be side-effect-free and must not call back into the
// engine.
type Granter interface {
	CustomPermissions(ctx context.Context, sub Subject, res *Resource) ([]Code, error)
}

// GranterFunc adapts a plain function to the Granter interface.
type GranterFunc func(ctx context.Context, sub Subject, res *Resource) ([]Code, error)

func (f GranterFunc) CustomPermissions(ctx context.Context, sub Subject, res *Resource) ([]Code, error) {
	return f(ctx, sub, res)
}

// TeamLookup resolves a team by ID. Directories that manage teams
// implement it; FounderGranter needs it to find the founder.
type TeamLookup interface {
	TeamOf(ctx context.Context, teamID uuid.UUID) (*Team, error)
}

// FounderGranter returns a Granter for team-typed resources that grants
// the listed codes to the team's founder. The founder is otherwise not a
// member without an associated role, so this is the canonical use of the
// custom-authorization hook.
func FounderGranter(teams TeamLookup, codes ...Code) Granter {
	return GranterFunc(func(ctx context.Context, sub Subject, res *Resource) ([]Code, error) {
		if sub.Anonymous {
			return nil, nil
		}
		team, err := teams.TeamOf(ctx, res.Ref.ID)
		if errors.Is(err, ErrTeamNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if team.Founder != sub.ID {
			return nil, nil
		}
		return codes, nil
	})
}
