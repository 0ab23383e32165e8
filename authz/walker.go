package authz

import (
	"context"
	"fmt"
)

// DefaultMaxDepth is the default maximum ancestry chain length.
const DefaultMaxDepth = 25

// walker traverses a resource's parent chain through the directory.
type walker struct {
	dir      Directory
	maxDepth int
}

// nearest walks the resource, then its parent, then its parent's parent,
// returning the first node for which pred holds, or nil if no ancestor
// (the resource itself included) satisfies it. A revisited reference or a
// chain longer than maxDepth fails the walk.
func (w walker) nearest(ctx context.Context, res *Resource, pred func(*Resource) bool) (*Resource, error) {
	visited := make(map[ResourceRef]bool)
	cur := res
	for depth := 0; ; depth++ {
		if visited[cur.Ref] {
			return nil, fmt.Errorf("%w at %s", ErrCyclicAncestry, cur.Ref)
		}
		visited[cur.Ref] = true

		if depth > w.maxDepth {
			return nil, fmt.Errorf("%w (max %d)", ErrDepthExceeded, w.maxDepth)
		}

		if pred(cur) {
			return cur, nil
		}

		if cur.Parent == nil {
			return nil, nil
		}

		next, err := w.dir.ResourceOf(ctx, *cur.Parent)
		if err != nil {
			return nil, fmt.Errorf("authz: load ancestor %s: %w", cur.Parent, err)
		}
		cur = next
	}
}
