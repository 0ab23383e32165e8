package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

const docType = "document"

var docCodes = []Code{
	"wiki.frob", "wiki.xyzzy", "wiki.hello", "wiki.quux",
	"wiki.add_document_child",
}

func newDocCatalog() *MemoryCatalog {
	cat := NewMemoryCatalog()
	cat.Register(docType, docCodes...)
	return cat
}

func assertPerms(t *testing.T, e *Engine, sub Subject, ref ResourceRef, want ...Code) {
	t.Helper()
	got, err := e.Resolve(context.Background(), sub, &ref)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", ref, err)
	}
	if !got.Equal(NewCodeSet(want...)) {
		t.Errorf("Resolve(%s) = %v, want %v", ref, got.Slice(), NewCodeSet(want...).Slice())
	}
}

func TestResolveNilResource(t *testing.T) {
	// No permission is ever computed without a concrete resource.
	e := NewEngine(NewMemoryDirectory(), newDocCatalog())

	for _, sub := range []Subject{
		AnonymousSubject(),
		{ID: uuid.New()},
		{ID: uuid.New(), Superuser: true},
	} {
		got, err := e.Resolve(context.Background(), sub, nil)
		if err != nil {
			t.Fatalf("Resolve(nil): %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Resolve(nil) = %v, want empty set", got.Slice())
		}
	}
}

func TestSuperuserIsSuper(t *testing.T) {
	// A superuser is granted every code registered for the resource type,
	// short-circuiting policies, roles and hooks.
	dir := NewMemoryDirectory()
	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref})

	e := NewEngine(dir, newDocCatalog())
	assertPerms(t, e, Subject{ID: uuid.New(), Superuser: true}, ref, docCodes...)
}

func TestMixedPermissions(t *testing.T) {
	// Policies and teams grant permissions by object to users and groups.
	dir := NewMemoryDirectory()

	ownerID := uuid.New()
	roleUser := Subject{ID: uuid.New()}
	usersUser := Subject{ID: uuid.New()}
	groupID := uuid.New()
	groupUser := Subject{ID: uuid.New(), Groups: []uuid.UUID{groupID}}
	authUser := Subject{ID: uuid.New()}
	ownerUser := Subject{ID: ownerID}

	team := Team{ID: uuid.New(), Name: "general_permissive_team", Founder: uuid.New()}
	dir.AddTeam(team)
	dir.AddRole(team.ID, Role{
		Name:    "role1",
		Members: []uuid.UUID{roleUser.ID},
		Granted: []Code{"wiki.frob", "wiki.hello"},
	})

	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref, Owner: &ownerID, Team: &team.ID})

	policies := []Policy{
		{Audience: Audience{Anonymous: true}, Granted: []Code{"wiki.frob", "wiki.xyzzy"}},
		{Audience: Audience{Authenticated: true}, Granted: []Code{"wiki.xyzzy", "wiki.hello"}},
		{Audience: Audience{Users: []uuid.UUID{usersUser.ID}}, Granted: []Code{"wiki.frob"}},
		{Audience: Audience{Groups: []uuid.UUID{groupID}}, Granted: []Code{"wiki.hello"}},
		{Audience: Audience{Owners: true}, Granted: []Code{"wiki.add_document_child"}},
	}
	for _, p := range policies {
		if err := dir.AttachPolicy(ref, p); err != nil {
			t.Fatalf("AttachPolicy: %v", err)
		}
	}

	e := NewEngine(dir, newDocCatalog())

	assertPerms(t, e, AnonymousSubject(), ref, "wiki.frob", "wiki.xyzzy")
	assertPerms(t, e, authUser, ref, "wiki.xyzzy", "wiki.hello")
	assertPerms(t, e, ownerUser, ref, "wiki.xyzzy", "wiki.hello", "wiki.add_document_child")
	assertPerms(t, e, usersUser, ref, "wiki.frob", "wiki.xyzzy", "wiki.hello")
	assertPerms(t, e, groupUser, ref, "wiki.hello", "wiki.xyzzy")

	// Team-role membership suppresses every matching policy, including the
	// Authenticated one the subject would otherwise satisfy.
	assertPerms(t, e, roleUser, ref, "wiki.frob", "wiki.hello")
}

func TestParentInheritance(t *testing.T) {
	// Document tree:
	//  /- 1 - 4
	// 0 - 2 - 5
	//  \- 3 - 6
	//  \- 7 - 8
	dir := NewMemoryDirectory()

	refs := make([]ResourceRef, 9)
	for i := range refs {
		refs[i] = NewResourceRef(docType, uuid.New())
	}
	links := map[int]int{1: 0, 4: 1, 2: 0, 5: 2, 3: 0, 6: 3, 7: 0, 8: 7}
	for i := range refs {
		res := Resource{Ref: refs[i]}
		if parent, ok := links[i]; ok {
			res.Parent = &refs[parent]
		}
		dir.AddResource(res)
	}

	grant := func(idx int, code Code) {
		p := Policy{Audience: Audience{Authenticated: true}, Granted: []Code{code}}
		if err := dir.AttachPolicy(refs[idx], p); err != nil {
			t.Fatalf("AttachPolicy: %v", err)
		}
	}
	grant(0, "wiki.frob")
	grant(1, "wiki.xyzzy")
	grant(2, "wiki.hello")
	grant(5, "wiki.quux")

	// Team on 7 to exercise team inheritance at 8.
	sub := Subject{ID: uuid.New()}
	team := Team{ID: uuid.New(), Name: "team_for_7"}
	dir.AddTeam(team)
	dir.AddRole(team.ID, Role{
		Name:    "role1_for_7",
		Members: []uuid.UUID{sub.ID},
		Granted: []Code{"wiki.add_document_child"},
	})
	res7, _ := dir.ResourceOf(context.Background(), refs[7])
	res7.Team = &team.ID
	dir.AddResource(*res7)

	e := NewEngine(dir, newDocCatalog())

	// The team is inherited from 7, and role membership wins outright.
	assertPerms(t, e, sub, refs[8], "wiki.add_document_child")

	cases := []Code{
		"wiki.frob",  // 0 has own policy
		"wiki.xyzzy", // 1 has own policy
		"wiki.hello", // 2 has own policy
		"wiki.frob",  // 3 inherits from 0
		"wiki.xyzzy", // 4 inherits from 1
		"wiki.quux",  // 5 has own policy
		"wiki.frob",  // 6 inherits from 0
	}
	for idx, want := range cases {
		assertPerms(t, e, sub, refs[idx], want)
	}
}

func TestNearestPolicyLevelOnly(t *testing.T) {
	// Policies beyond the nearest policy-bearing ancestor must not leak in,
	// even when the nearest level grants the subject nothing.
	dir := NewMemoryDirectory()

	rootRef := NewResourceRef(docType, uuid.New())
	midRef := NewResourceRef(docType, uuid.New())
	leafRef := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: rootRef})
	dir.AddResource(Resource{Ref: midRef, Parent: &rootRef})
	dir.AddResource(Resource{Ref: leafRef, Parent: &midRef})

	dir.AttachPolicy(rootRef, Policy{Audience: Audience{Authenticated: true}, Granted: []Code{"wiki.frob"}})
	dir.AttachPolicy(midRef, Policy{Audience: Audience{Anonymous: true}, Granted: []Code{"wiki.hello"}})

	e := NewEngine(dir, newDocCatalog())

	// mid has policies, so the walk stops there; the Anonymous policy does
	// not match an authenticated subject and the result is empty.
	assertPerms(t, e, Subject{ID: uuid.New()}, leafRef)
	assertPerms(t, e, AnonymousSubject(), leafRef, "wiki.hello")
}

func TestCustomHook(t *testing.T) {
	// A resource type can inject bespoke grants derived from its own state.
	dir := NewMemoryDirectory()
	quuxSub := Subject{ID: uuid.New()}
	otherSub := Subject{ID: uuid.New()}

	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref})

	granter := GranterFunc(func(ctx context.Context, sub Subject, res *Resource) ([]Code, error) {
		if sub.ID == quuxSub.ID {
			return []Code{"wiki.quux"}, nil
		}
		return nil, nil
	})

	e := NewEngine(dir, newDocCatalog(), WithGranter(docType, granter))

	assertPerms(t, e, quuxSub, ref, "wiki.quux")
	assertPerms(t, e, otherSub, ref)
}

func TestCustomHookUnionsWithEveryBranch(t *testing.T) {
	// Hook grants are unioned in regardless of whether the role branch or
	// the policy branch produced the rest of the result.
	dir := NewMemoryDirectory()
	roleSub := Subject{ID: uuid.New()}
	policySub := Subject{ID: uuid.New()}

	team := Team{ID: uuid.New(), Name: "hook_team"}
	dir.AddTeam(team)
	dir.AddRole(team.ID, Role{Members: []uuid.UUID{roleSub.ID}, Granted: []Code{"wiki.frob"}})

	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref, Team: &team.ID})
	dir.AttachPolicy(ref, Policy{Audience: Audience{Authenticated: true}, Granted: []Code{"wiki.hello"}})

	granter := GranterFunc(func(ctx context.Context, sub Subject, res *Resource) ([]Code, error) {
		return []Code{"wiki.quux"}, nil
	})
	e := NewEngine(dir, newDocCatalog(), WithGranter(docType, granter))

	assertPerms(t, e, roleSub, ref, "wiki.frob", "wiki.quux")
	assertPerms(t, e, policySub, ref, "wiki.hello", "wiki.quux")
}

func TestUnknownCodeExcluded(t *testing.T) {
	// A grant of a code missing from the catalog is excluded, not fatal.
	dir := NewMemoryDirectory()
	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref})
	dir.AttachPolicy(ref, Policy{
		Audience: Audience{Authenticated: true},
		Granted:  []Code{"wiki.frob", "wiki.not_registered"},
	})

	e := NewEngine(dir, newDocCatalog())
	assertPerms(t, e, Subject{ID: uuid.New()}, ref, "wiki.frob")
}

func TestUnknownRoleCodeExcluded(t *testing.T) {
	// Catalog filtering applies to role grants too, and the role branch
	// still suppresses policies even when some of its grants are dropped.
	dir := NewMemoryDirectory()
	member := Subject{ID: uuid.New()}

	team := Team{ID: uuid.New(), Name: "typo_team"}
	dir.AddTeam(team)
	dir.AddRole(team.ID, Role{
		Members: []uuid.UUID{member.ID},
		Granted: []Code{"wiki.frob", "wiki.not_registered"},
	})

	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref, Team: &team.ID})
	dir.AttachPolicy(ref, Policy{Audience: Audience{Authenticated: true}, Granted: []Code{"wiki.hello"}})

	e := NewEngine(dir, newDocCatalog())
	assertPerms(t, e, member, ref, "wiki.frob")
}

func TestZeroAudiencePolicyNeverMatches(t *testing.T) {
	dir := NewMemoryDirectory()
	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref})
	dir.AttachPolicy(ref, Policy{Granted: []Code{"wiki.frob"}})

	e := NewEngine(dir, newDocCatalog())
	assertPerms(t, e, Subject{ID: uuid.New()}, ref)
	assertPerms(t, e, AnonymousSubject(), ref)
}

func TestResolveIdempotent(t *testing.T) {
	dir := NewMemoryDirectory()
	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref})
	dir.AttachPolicy(ref, Policy{Audience: Audience{Authenticated: true}, Granted: []Code{"wiki.frob"}})

	e := NewEngine(dir, newDocCatalog())
	sub := Subject{ID: uuid.New()}

	first, err := e.Resolve(context.Background(), sub, &ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := e.Resolve(context.Background(), sub, &ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !first.Equal(second) {
		t.Errorf("resolution is not idempotent: %v then %v", first.Slice(), second.Slice())
	}
}

func TestAuthorized(t *testing.T) {
	dir := NewMemoryDirectory()
	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref})
	dir.AttachPolicy(ref, Policy{Audience: Audience{Authenticated: true}, Granted: []Code{"wiki.frob"}})

	e := NewEngine(dir, newDocCatalog())
	sub := Subject{ID: uuid.New()}

	ok, err := e.Authorized(context.Background(), sub, &ref, "wiki.frob")
	if err != nil || !ok {
		t.Errorf("Authorized(wiki.frob) = %v, %v, want true", ok, err)
	}
	ok, err = e.Authorized(context.Background(), sub, &ref, "wiki.xyzzy")
	if err != nil || ok {
		t.Errorf("Authorized(wiki.xyzzy) = %v, %v, want false", ok, err)
	}
}

func TestCyclicAncestryFailsResolution(t *testing.T) {
	dir := NewMemoryDirectory()
	refA := NewResourceRef(docType, uuid.New())
	refB := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: refA, Parent: &refB})
	dir.AddResource(Resource{Ref: refB, Parent: &refA})

	e := NewEngine(dir, newDocCatalog())
	_, err := e.Resolve(context.Background(), Subject{ID: uuid.New()}, &refA)
	if !errors.Is(err, ErrCyclicAncestry) {
		t.Errorf("expected ErrCyclicAncestry, got %v", err)
	}
}

func TestBaseResourceFallback(t *testing.T) {
	// Policies on the configured base resource apply when the resolved
	// resource has no policy-bearing ancestor and no team role.
	dir := NewMemoryDirectory()

	baseRef := NewResourceRef("site", uuid.New())
	dir.AddResource(Resource{Ref: baseRef})
	dir.AttachPolicy(baseRef, Policy{Audience: Audience{Authenticated: true}, Granted: []Code{"wiki.hello"}})

	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref})

	e := NewEngine(dir, newDocCatalog(), WithBaseResource(baseRef))
	assertPerms(t, e, Subject{ID: uuid.New()}, ref, "wiki.hello")
	assertPerms(t, e, AnonymousSubject(), ref)

	// A policy on the resource itself still wins over the base resource.
	dir.AttachPolicy(ref, Policy{Audience: Audience{Authenticated: true}, Granted: []Code{"wiki.frob"}})
	assertPerms(t, e, Subject{ID: uuid.New()}, ref, "wiki.frob")
}

func TestBasePoliciesFallback(t *testing.T) {
	dir := NewMemoryDirectory()
	ownerID := uuid.New()
	ref := NewResourceRef(docType, uuid.New())
	dir.AddResource(Resource{Ref: ref, Owner: &ownerID})

	e := NewEngine(dir, newDocCatalog(), WithBasePolicies(
		Policy{Audience: Audience{Anonymous: true}, Granted: []Code{"wiki.frob"}},
		Policy{Audience: Audience{Owners: true}, Granted: []Code{"wiki.add_document_child"}},
	))

	assertPerms(t, e, AnonymousSubject(), ref, "wiki.frob")
	// The Owners predicate in a baseline policy applies to the owner of the
	// resource being resolved.
	assertPerms(t, e, Subject{ID: ownerID}, ref, "wiki.add_document_child")
	assertPerms(t, e, Subject{ID: uuid.New()}, ref)
}

func TestFounderGranter(t *testing.T) {
	dir := NewMemoryDirectory()
	founder := Subject{ID: uuid.New()}

	team := Team{ID: uuid.New(), Name: "founders_team", Founder: founder.ID}
	dir.AddTeam(team)

	cat := NewMemoryCatalog()
	cat.Register("team", "teamwork.view_team", "teamwork.manage_role_users")

	// The team itself is a protected resource.
	teamRef := NewResourceRef("team", team.ID)
	dir.AddResource(Resource{Ref: teamRef})

	e := NewEngine(dir, cat, WithGranter("team",
		FounderGranter(dir, "teamwork.view_team", "teamwork.manage_role_users")))

	assertPerms(t, e, founder, teamRef, "teamwork.view_team", "teamwork.manage_role_users")
	assertPerms(t, e, Subject{ID: uuid.New()}, teamRef)
	assertPerms(t, e, AnonymousSubject(), teamRef)
}
