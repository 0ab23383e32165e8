package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver is the interface exposed to embedding systems. Engine implements
// it directly; decorators (e.g. a caller-side cache) wrap it.
type Resolver interface {
	// Resolve computes the exact set of permission codes the subject may
	// exercise on the referenced resource. A nil reference resolves to the
	// empty set: no permission is ever computed without a concrete resource.
	Resolve(ctx context.Context, sub Subject, ref *ResourceRef) (CodeSet, error)

	// Authorized reports whether the permission is in the resolved set.
	Authorized(ctx context.Context, sub Subject, ref *ResourceRef, perm Code) (bool, error)
}

// Engine resolves permissions with a deterministic precedence:
//
//  1. A superuser gets the full catalog set for the resource type.
//  2. A registered Granter for the resource type always contributes,
//     regardless of which branch below is taken.
//  3. If the resource, or its nearest ancestor with a team, has a team in
//     which the subject holds at least one role, the role grants are the
//     result and policy evaluation is skipped entirely.
//  4. Otherwise the policies attached to the nearest policy-bearing
//     ancestor (the resource itself included) are matched and unioned.
//  5. Otherwise the configured base resource and base policies are
//     consulted as a site-wide fallback.
//
// The engine holds no mutable state; a single instance is safe for
// concurrent use.
type Engine struct {
	dir          Directory
	catalog      Catalog
	granters     map[string]Granter
	baseRef      *ResourceRef
	basePolicies []Policy
	maxDepth     int
	log          *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth caps the ancestry chain length.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithLogger sets the logger used for warn-level signals (policies with no
// audience, grants of unregistered codes).
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithGranter registers a custom-authorization hook for a resource type.
func WithGranter(resourceType string, g Granter) Option {
	return func(e *Engine) {
		e.granters[resourceType] = g
	}
}

// WithBaseResource sets a resource whose policies act as a site-wide
// fallback when neither a team-with-role nor a policy-bearing ancestor
// yields a result.
func WithBaseResource(ref ResourceRef) Option {
	return func(e *Engine) {
		r := ref
		e.baseRef = &r
	}
}

// WithBasePolicies sets a static baseline policy list, consulted after the
// base resource.
func WithBasePolicies(policies ...Policy) Option {
	return func(e *Engine) {
		e.basePolicies = policies
	}
}

// NewEngine creates a resolution engine over the given directory and
// catalog.
func NewEngine(dir Directory, catalog Catalog, opts ...Option) *Engine {
	e := &Engine{
		dir:      dir,
		catalog:  catalog,
		granters: make(map[string]Granter),
		maxDepth: DefaultMaxDepth,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve implements Resolver.
func (e *Engine) Resolve(ctx context.Context, sub Subject, ref *ResourceRef) (CodeSet, error) {
	if ref == nil {
		return make(CodeSet), nil
	}

	res, err := e.dir.ResourceOf(ctx, *ref)
	if err != nil {
		return nil, fmt.Errorf("authz: load resource %s: %w", ref, err)
	}

	// Superuser is super: the full registered set, nothing else consulted.
	if sub.Superuser {
		all, err := e.catalog.AllPermissions(ctx, ref.Type)
		if err != nil {
			return nil, fmt.Errorf("authz: catalog lookup for %q: %w", ref.Type, err)
		}
		return NewCodeSet(all...), nil
	}

	custom, err := e.customPermissions(ctx, sub, res)
	if err != nil {
		return nil, err
	}

	known, err := e.knownCodes(ctx, ref.Type)
	if err != nil {
		return nil, err
	}

	w := walker{dir: e.dir, maxDepth: e.maxDepth}

	// Team-role membership takes precedence over audience policies at any
	// level: if the subject holds a role, policies are not evaluated.
	teamLevel, err := w.nearest(ctx, res, (*Resource).HasTeam)
	if err != nil {
		return nil, err
	}
	if teamLevel != nil && !sub.Anonymous {
		roles, err := e.dir.RolesOf(ctx, *teamLevel.Team)
		if err != nil {
			return nil, fmt.Errorf("authz: load roles of team %s: %w", teamLevel.Team, err)
		}
		if rolePerms := permissionsFromRoles(roles, sub); len(rolePerms) > 0 {
			return custom.Union(e.filterKnown(rolePerms, known, ref.Type)), nil
		}
	}

	policyLevel, err := w.nearest(ctx, res, (*Resource).HasPolicies)
	if err != nil {
		return nil, err
	}
	if policyLevel != nil {
		perms := e.policyPermissions(sub, policyLevel.Policies, policyLevel.Owner)
		return custom.Union(e.filterKnown(perms, known, ref.Type)), nil
	}

	// Site-wide fallbacks. Owner predicates in the static baseline apply
	// to the owner of the resource being resolved.
	if e.baseRef != nil {
		base, err := e.dir.ResourceOf(ctx, *e.baseRef)
		if err != nil {
			return nil, fmt.Errorf("authz: load base resource %s: %w", e.baseRef, err)
		}
		if base.HasPolicies() {
			perms := e.policyPermissions(sub, base.Policies, base.Owner)
			return custom.Union(e.filterKnown(perms, known, ref.Type)), nil
		}
	}
	if len(e.basePolicies) > 0 {
		perms := e.policyPermissions(sub, e.basePolicies, res.Owner)
		return custom.Union(e.filterKnown(perms, known, ref.Type)), nil
	}

	return custom, nil
}

// Authorized implements Resolver.
func (e *Engine) Authorized(ctx context.Context, sub Subject, ref *ResourceRef, perm Code) (bool, error) {
	perms, err := e.Resolve(ctx, sub, ref)
	if err != nil {
		return false, err
	}
	return perms.Has(perm), nil
}

// customPermissions invokes the Granter registered for the resource type,
// if any. Hook grants bypass catalog filtering: they are the resource
// type's own logic, not catalog-registered data.
func (e *Engine) customPermissions(ctx context.Context, sub Subject, res *Resource) (CodeSet, error) {
	g, ok := e.granters[res.Ref.Type]
	if !ok {
		return make(CodeSet), nil
	}
	codes, err := g.CustomPermissions(ctx, sub, res)
	if err != nil {
		return nil, fmt.Errorf("authz: custom grants for %s: %w", res.Ref, err)
	}
	return NewCodeSet(codes...), nil
}

// policyPermissions evaluates every policy independently against the
// subject and unions the granted sets of those that match.
func (e *Engine) policyPermissions(sub Subject, policies []Policy, owner *uuid.UUID) CodeSet {
	perms := make(CodeSet)
	for _, p := range policies {
		if p.Audience.IsZero() {
			e.log.Warn("policy has no audience predicates and can never match",
				zap.String("policy", p.Description))
			continue
		}
		if !p.Audience.Matches(sub, owner) {
			continue
		}
		for _, c := range p.Granted {
			perms.Add(c)
		}
	}
	return perms
}

// knownCodes returns the catalog set for the resource type.
func (e *Engine) knownCodes(ctx context.Context, resourceType string) (CodeSet, error) {
	all, err := e.catalog.AllPermissions(ctx, resourceType)
	if err != nil {
		return nil, fmt.Errorf("authz: catalog lookup for %q: %w", resourceType, err)
	}
	return NewCodeSet(all...), nil
}

// filterKnown drops codes absent from the catalog for the resource type.
// An unregistered code is excluded and reported, never fatal.
func (e *Engine) filterKnown(perms, known CodeSet, resourceType string) CodeSet {
	out := make(CodeSet, len(perms))
	for c := range perms {
		if !known.Has(c) {
			e.log.Warn("granted permission code is not registered for resource type",
				zap.String("code", string(c)),
				zap.String("resource_type", resourceType))
			continue
		}
		out[c] = struct{}{}
	}
	return out
}
