// Package cache provides an optional caller-side cache for resolved
// permission sets. The engine itself never caches; this decorator keys on
// (subject identity, resource identity) as the engine's contract requires,
// and invalidation is the embedding application's responsibility.
package cache

import (
	"context"
	"time"

	"github.com/getkayan/teamwork/authz"
)

// Store persists resolved permission sets under string keys.
type Store interface {
	// Get returns the cached codes for the key, and whether a cached
	// entry existed.
	Get(ctx context.Context, key string) ([]authz.Code, bool, error)

	// Set stores the codes under the key for the given TTL.
	Set(ctx context.Context, key string, codes []authz.Code, ttl time.Duration) error

	// Delete removes the key.
	Delete(ctx context.Context, key string) error
}

// Cache wraps a Resolver with a read-through cache.
type Cache struct {
	next  authz.Resolver
	store Store
	ttl   time.Duration
}

// New creates a caching decorator around the given resolver.
func New(next authz.Resolver, store Store, ttl time.Duration) *Cache {
	return &Cache{next: next, store: store, ttl: ttl}
}

// Key returns the cache key for a subject/resource pair. Anonymous
// subjects share one identity; superusers are keyed separately because
// their result does not depend on policies or roles.
func Key(sub authz.Subject, ref authz.ResourceRef) string {
	who := sub.ID.String()
	if sub.Anonymous {
		who = "anon"
	} else if sub.Superuser {
		who = "super:" + who
	}
	return "teamwork:perms:" + who + ":" + ref.String()
}

// Resolve implements authz.Resolver.
func (c *Cache) Resolve(ctx context.Context, sub authz.Subject, ref *authz.ResourceRef) (authz.CodeSet, error) {
	if ref == nil {
		return c.next.Resolve(ctx, sub, ref)
	}

	key := Key(sub, *ref)
	if codes, ok, err := c.store.Get(ctx, key); err == nil && ok {
		return authz.NewCodeSet(codes...), nil
	}
	// A store error degrades to a plain resolution, never to a denial.

	perms, err := c.next.Resolve(ctx, sub, ref)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, perms.Slice(), c.ttl); err != nil {
		return perms, nil
	}
	return perms, nil
}

// Authorized implements authz.Resolver.
func (c *Cache) Authorized(ctx context.Context, sub authz.Subject, ref *authz.ResourceRef, perm authz.Code) (bool, error) {
	perms, err := c.Resolve(ctx, sub, ref)
	if err != nil {
		return false, err
	}
	return perms.Has(perm), nil
}

// Invalidate drops the cached entry for a subject/resource pair.
func (c *Cache) Invalidate(ctx context.Context, sub authz.Subject, ref authz.ResourceRef) error {
	return c.store.Delete(ctx, Key(sub, ref))
}

var _ authz.Resolver = (*Cache)(nil)
