package authz

import (
	"context"

	"github.com/google/uuid"
)

// Checker is the resolver surface consumed by domain services.
type Checker interface {
	HasAll(ctx context.Context, rt ResourceType, ops Operations, userID int64) (bool, error)
	HasID(ctx context.Context, rt ResourceType, id any, ops Operations, userID int64) (bool, error)
	CanCreate(ctx context.Context, rt ResourceType, userID int64) (bool, error)
	CanUpdate(ctx context.Context, rt ResourceType, userID int64) (bool, error)
	CanDelete(ctx context.Context, rt ResourceType, userID int64) (bool, error)
}

var _ Checker = (*Resolver)(nil)

// IDLister lists instance ids a user may act on. Combine with HasAll: a
// type-wide grant is not reflected in the returned ids.
type IDLister interface {
	PermittedInt64s(ctx context.Context, rt ResourceType, ops Operations, userID int64) ([]int64, error)
	PermittedUUIDs(ctx context.Context, rt ResourceType, ops Operations, userID int64) ([]uuid.UUID, error)
}

// PermittedInt64s is PermittedIDs for integer keyed types.
func (r *Resolver) PermittedInt64s(ctx context.Context, rt ResourceType, ops Operations, userID int64) ([]int64, error) {
	return PermittedIDs[int64](ctx, r, rt, ops, userID)
}

// PermittedUUIDs is PermittedIDs for uuid keyed types.
func (r *Resolver) PermittedUUIDs(ctx context.Context, rt ResourceType, ops Operations, userID int64) ([]uuid.UUID, error) {
	return PermittedIDs[uuid.UUID](ctx, r, rt, ops, userID)
}

var _ IDLister = (*Resolver)(nil)

// RequireAll returns nil when userID holds ops type-wide on rt,
// shared.ErrAccessDenied when it does not, and the store error otherwise.
func RequireAll(ctx context.Context, c Checker, rt ResourceType, ops Operations, userID int64) error {
	return Check(c.HasAll(ctx, rt, ops, userID))
}

// RequireID is RequireAll for a single instance.
func RequireID(ctx context.Context, c Checker, rt ResourceType, id any, ops Operations, userID int64) error {
	return Check(c.HasID(ctx, rt, id, ops, userID))
}

// RequireCreate is RequireAll with Create.
func RequireCreate(ctx context.Context, c Checker, rt ResourceType, userID int64) error {
	return Check(c.CanCreate(ctx, rt, userID))
}

// RequireDelete is RequireAll with Delete.
func RequireDelete(ctx context.Context, c Checker, rt ResourceType, userID int64) error {
	return Check(c.CanDelete(ctx, rt, userID))
}
