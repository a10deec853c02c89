// Package authztest provides an in-memory authz.Checker with the same
// wildcard semantics as the SQL resolver.
package authztest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/noodle-soup/noodle/internal/authz"
)

type instanceKey struct {
	rt     authz.ResourceType
	id     any
	userID int64
}

// Checker grants operations per user, type-wide or per instance.
type Checker struct {
	mu        sync.Mutex
	typeWide  map[authz.ResourceType]map[int64]authz.Operations
	instances map[instanceKey]authz.Operations
	// Err, when set, fails every check.
	Err error
}

// New returns a Checker that denies everything.
func New() *Checker {
	return &Checker{
		typeWide:  map[authz.ResourceType]map[int64]authz.Operations{},
		instances: map[instanceKey]authz.Operations{},
	}
}

// Allow grants ops on every instance of rt to userID.
func (c *Checker) Allow(userID int64, rt authz.ResourceType, ops authz.Operations) *Checker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.typeWide[rt] == nil {
		c.typeWide[rt] = map[int64]authz.Operations{}
	}
	c.typeWide[rt][userID] |= ops
	return c
}

// AllowID grants ops on one instance of rt to userID.
func (c *Checker) AllowID(userID int64, rt authz.ResourceType, id any, ops authz.Operations) *Checker {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[instanceKey{rt: rt, id: id, userID: userID}] |= ops
	return c
}

func (c *Checker) HasAll(_ context.Context, rt authz.ResourceType, ops authz.Operations, userID int64) (bool, error) {
	if c.Err != nil {
		return false, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typeWide[rt][userID].Intersects(ops), nil
}

func (c *Checker) HasID(ctx context.Context, rt authz.ResourceType, id any, ops authz.Operations, userID int64) (bool, error) {
	if ok, err := c.HasAll(ctx, rt, ops, userID); ok || err != nil {
		return ok, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instances[instanceKey{rt: rt, id: id, userID: userID}].Intersects(ops), nil
}

func (c *Checker) CanCreate(ctx context.Context, rt authz.ResourceType, userID int64) (bool, error) {
	return c.HasAll(ctx, rt, authz.Create, userID)
}

func (c *Checker) CanUpdate(ctx context.Context, rt authz.ResourceType, userID int64) (bool, error) {
	return c.HasAll(ctx, rt, authz.Update, userID)
}

func (c *Checker) CanDelete(ctx context.Context, rt authz.ResourceType, userID int64) (bool, error) {
	return c.HasAll(ctx, rt, authz.Delete, userID)
}

// Permitted returns the instance ids of rt granted to userID with ops.
func (c *Checker) Permitted(rt authz.ResourceType, ops authz.Operations, userID int64) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []any
	for k, granted := range c.instances {
		if k.rt == rt && k.userID == userID && granted.Intersects(ops) {
			ids = append(ids, k.id)
		}
	}
	return ids
}

var _ authz.Checker = (*Checker)(nil)

func (c *Checker) PermittedInt64s(_ context.Context, rt authz.ResourceType, ops authz.Operations, userID int64) ([]int64, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	ids := []int64{}
	for _, id := range c.Permitted(rt, ops, userID) {
		if v, ok := id.(int64); ok {
			ids = append(ids, v)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (c *Checker) PermittedUUIDs(_ context.Context, rt authz.ResourceType, ops authz.Operations, userID int64) ([]uuid.UUID, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	ids := []uuid.UUID{}
	for _, id := range c.Permitted(rt, ops, userID) {
		if v, ok := id.(uuid.UUID); ok {
			ids = append(ids, v)
		}
	}
	return ids, nil
}

var _ authz.IDLister = (*Checker)(nil)
