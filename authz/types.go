// Package authz implements object-level permission resolution.
//
// Permissions on a resource can be granted through several independent
// mechanisms: audience-scoped policies attached to the resource (or the
// nearest ancestor that has any), roles within the team the resource (or
// the nearest ancestor) belongs to, and per-resource-type custom grant
// logic. This package provides:
//   - Core types for subjects, resources, policies, teams and roles
//   - Directory and Catalog interfaces for supplying resolution data
//   - A memory-backed directory for tests and single-instance use
//   - The resolution engine with a deterministic precedence order
//
// The engine is a pure function over the supplied data: it performs no
// mutation and no caching, so Resolve calls are safe to run concurrently
// over the same snapshot.
package authz

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Code is a namespaced permission identifier, e.g. "wiki.frob".
// Equality is exact string equality; there are no wildcard semantics.
type Code string

// Namespace returns the part before the first dot, or "" if the code
// carries no namespace.
func (c Code) Namespace() string {
	if i := strings.IndexByte(string(c), '.'); i >= 0 {
		return string(c)[:i]
	}
	return ""
}

// Action returns the part after the first dot.
func (c Code) Action() string {
	if i := strings.IndexByte(string(c), '.'); i >= 0 {
		return string(c)[i+1:]
	}
	return string(c)
}

// CodeSet is a set of permission codes.
type CodeSet map[Code]struct{}

// NewCodeSet builds a set from the given codes.
func NewCodeSet(codes ...Code) CodeSet {
	s := make(CodeSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts a code into the set.
func (s CodeSet) Add(c Code) { s[c] = struct{}{} }

// Has reports whether the code is in the set.
func (s CodeSet) Has(c Code) bool {
	_, ok := s[c]
	return ok
}

// Union returns a new set containing all codes from both sets.
func (s CodeSet) Union(other CodeSet) CodeSet {
	out := make(CodeSet, len(s)+len(other))
	for c := range s {
		out[c] = struct{}{}
	}
	for c := range other {
		out[c] = struct{}{}
	}
	return out
}

// Equal reports whether both sets contain exactly the same codes.
func (s CodeSet) Equal(other CodeSet) bool {
	if len(s) != len(other) {
		return false
	}
	for c := range s {
		if !other.Has(c) {
			return false
		}
	}
	return true
}

// Slice returns the codes in sorted order for reproducible output.
func (s CodeSet) Slice() []Code {
	out := make([]Code, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Subject identifies the actor requesting access. Subjects are supplied
// by the caller per request; the engine never mutates them.
type Subject struct {
	ID        uuid.UUID
	Anonymous bool
	Superuser bool
	Groups    []uuid.UUID
}

// AnonymousSubject returns the subject representing an unauthenticated actor.
func AnonymousSubject() Subject {
	return Subject{Anonymous: true}
}

// InGroup reports whether the subject belongs to the given group.
func (s Subject) InGroup(id uuid.UUID) bool {
	for _, g := range s.Groups {
		if g == id {
			return true
		}
	}
	return false
}

// ResourceRef is a typed reference to a protected resource.
type ResourceRef struct {
	Type string
	ID   uuid.UUID
}

// NewResourceRef creates a new ResourceRef.
func NewResourceRef(resourceType string, id uuid.UUID) ResourceRef {
	return ResourceRef{Type: resourceType, ID: id}
}

// String returns the canonical string representation: "type:id"
func (r ResourceRef) String() string {
	return r.Type + ":" + r.ID.String()
}

// Resource is the materialized view of a protected object that the engine
// consumes: its owner, its optional parent and team, and the policies
// attached to it. The parent relation forms a forest; cycles are a
// configuration error detected during the ancestry walk.
type Resource struct {
	Ref      ResourceRef
	Owner    *uuid.UUID
	Parent   *ResourceRef
	Team     *uuid.UUID
	Policies []Policy
}

// HasTeam reports whether the resource has a team assigned.
func (r *Resource) HasTeam() bool { return r.Team != nil }

// HasPolicies reports whether the resource has at least one attached policy.
func (r *Resource) HasPolicies() bool { return len(r.Policies) > 0 }

// Audience determines which subjects a policy applies to. A policy may
// carry any combination of predicates; the policy matches if ANY of them
// matches (logical OR).
type Audience struct {
	// Anonymous applies the policy to unauthenticated subjects.
	Anonymous bool
	// Authenticated applies the policy to any authenticated subject.
	Authenticated bool
	// Owners applies the policy to the owner of the resource.
	Owners bool
	// Users applies the policy to these specific subjects.
	Users []uuid.UUID
	// Groups applies the policy to members of these groups.
	Groups []uuid.UUID
}

// IsZero reports whether the audience carries no predicates at all.
// Such a policy never matches anyone and is almost certainly a caller bug.
func (a Audience) IsZero() bool {
	return !a.Anonymous && !a.Authenticated && !a.Owners &&
		len(a.Users) == 0 && len(a.Groups) == 0
}

// Policy is an audience-scoped permission grant attached to one resource.
// Policies are immutable for the duration of a resolution.
type Policy struct {
	Description string
	Audience    Audience
	Granted     []Code
}

// Team is an organizational unit for a set of subjects with assigned roles.
type Team struct {
	ID   uuid.UUID
	Name string
	// Founder is informational; it is not an authorization source by
	// itself, but the built-in FounderGranter can turn it into one.
	Founder uuid.UUID
}

// Role grants permissions to its members on resources associated with the
// role's team. A subject may hold several roles within a team; its
// team-scoped grant is the union over all of them.
type Role struct {
	Name    string
	Members []uuid.UUID
	Granted []Code
}

// IsGrantedTo reports whether this role is granted to the given subject.
func (r Role) IsGrantedTo(id uuid.UUID) bool {
	for _, m := range r.Members {
		if m == id {
			return true
		}
	}
	return false
}
