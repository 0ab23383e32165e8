package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestWalkerNearest(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()

	// root <- mid <- leaf; only root has policies
	root := Resource{Ref: NewResourceRef("document", uuid.New())}
	root.Policies = []Policy{{Audience: Audience{Authenticated: true}}}
	mid := Resource{Ref: NewResourceRef("document", uuid.New()), Parent: &root.Ref}
	leaf := Resource{Ref: NewResourceRef("document", uuid.New()), Parent: &mid.Ref}
	dir.AddResource(root)
	dir.AddResource(mid)
	dir.AddResource(leaf)

	w := walker{dir: dir, maxDepth: DefaultMaxDepth}

	start, err := dir.ResourceOf(ctx, leaf.Ref)
	if err != nil {
		t.Fatalf("ResourceOf: %v", err)
	}

	found, err := w.nearest(ctx, start, (*Resource).HasPolicies)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if found == nil || found.Ref != root.Ref {
		t.Errorf("expected root to be the nearest policy-bearing ancestor, got %v", found)
	}

	// Self matches before any ancestor.
	rootView, _ := dir.ResourceOf(ctx, root.Ref)
	found, err = w.nearest(ctx, rootView, (*Resource).HasPolicies)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if found == nil || found.Ref != root.Ref {
		t.Error("nearest should return the starting resource when it matches")
	}

	// No match anywhere.
	found, err = w.nearest(ctx, start, (*Resource).HasTeam)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if found != nil {
		t.Errorf("expected no team-bearing ancestor, got %v", found.Ref)
	}
}

func TestWalkerCycleDetection(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()

	refA := NewResourceRef("document", uuid.New())
	refB := NewResourceRef("document", uuid.New())
	dir.AddResource(Resource{Ref: refA, Parent: &refB})
	dir.AddResource(Resource{Ref: refB, Parent: &refA})

	w := walker{dir: dir, maxDepth: DefaultMaxDepth}
	start, _ := dir.ResourceOf(ctx, refA)

	_, err := w.nearest(ctx, start, (*Resource).HasPolicies)
	if !errors.Is(err, ErrCyclicAncestry) {
		t.Errorf("expected ErrCyclicAncestry, got %v", err)
	}
}

func TestWalkerDepthLimit(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()

	// Chain of 6 resources with a depth cap of 3.
	refs := make([]ResourceRef, 6)
	for i := range refs {
		refs[i] = NewResourceRef("document", uuid.New())
	}
	for i := range refs {
		res := Resource{Ref: refs[i]}
		if i+1 < len(refs) {
			res.Parent = &refs[i+1]
		}
		dir.AddResource(res)
	}

	w := walker{dir: dir, maxDepth: 3}
	start, _ := dir.ResourceOf(ctx, refs[0])

	_, err := w.nearest(ctx, start, (*Resource).HasPolicies)
	if !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("expected ErrDepthExceeded, got %v", err)
	}
}
