package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Outcome classifies a resolved permission check.
type Outcome string

const (
	Allowed Outcome = "allowed"
	Denied  Outcome = "denied"
	Failed  Outcome = "error"
)

// Observer receives every decision, e.g. to feed metrics.
type Observer interface {
	ObserveDecision(rt ResourceType, outcome Outcome)
}

// Resolver answers permission questions against the grant tables.
type Resolver struct {
	db       db.DBTX
	logger   *slog.Logger
	observer Observer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithObserver attaches a decision observer.
func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) { r.observer = o }
}

// WithLogger attaches a logger for failed checks.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver constructs a Resolver querying conn.
func NewResolver(conn db.DBTX, opts ...ResolverOption) *Resolver {
	r := &Resolver{db: conn}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// HasAll reports whether userID holds any of ops on every instance of rt,
// through a type-wide grant held directly or via a role.
func (r *Resolver) HasAll(ctx context.Context, rt ResourceType, ops Operations, userID int64) (bool, error) {
	if !rt.Valid() {
		return false, fmt.Errorf("authz: unknown resource type %d", int(rt))
	}
	var ok bool
	err := r.db.QueryRow(ctx, queries[rt].hasAll, userID, ops.param()).Scan(&ok)
	return r.decide(rt, userID, ok, err)
}

// HasID reports whether userID holds any of ops on the instance id of rt.
// Type-wide grants satisfy instance checks. id must be int64, or uuid.UUID
// for File.
func (r *Resolver) HasID(ctx context.Context, rt ResourceType, id any, ops Operations, userID int64) (bool, error) {
	if !rt.Valid() {
		return false, fmt.Errorf("authz: unknown resource type %d", int(rt))
	}
	if err := rt.checkID(id); err != nil {
		return false, err
	}
	var ok bool
	err := r.db.QueryRow(ctx, queries[rt].hasID, userID, ops.param(), id).Scan(&ok)
	return r.decide(rt, userID, ok, err)
}

// CanCreate is HasAll with Create. Creation has no instance to scope to.
func (r *Resolver) CanCreate(ctx context.Context, rt ResourceType, userID int64) (bool, error) {
	return r.HasAll(ctx, rt, Create, userID)
}

// CanUpdate is HasAll with Update.
func (r *Resolver) CanUpdate(ctx context.Context, rt ResourceType, userID int64) (bool, error) {
	return r.HasAll(ctx, rt, Update, userID)
}

// CanDelete is HasAll with Delete.
func (r *Resolver) CanDelete(ctx context.Context, rt ResourceType, userID int64) (bool, error) {
	return r.HasAll(ctx, rt, Delete, userID)
}

func (r *Resolver) decide(rt ResourceType, userID int64, ok bool, err error) (bool, error) {
	if err != nil {
		r.observe(rt, Failed)
		r.logger.Error("authz check failed",
			slog.String("resource", rt.String()),
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return false, shared.NewStoreError("authz "+rt.String(), err)
	}
	if ok {
		r.observe(rt, Allowed)
	} else {
		r.observe(rt, Denied)
		r.logger.Debug("authz denied", slog.String("resource", rt.String()), slog.Int64("user_id", userID))
	}
	return ok, nil
}

func (r *Resolver) observe(rt ResourceType, outcome Outcome) {
	if r.observer != nil {
		r.observer.ObserveDecision(rt, outcome)
	}
}

// PermittedIDs returns the distinct ids of rt on which userID holds an
// instance grant intersecting ops. Type-wide grants contribute no ids; check
// HasAll first to decide whether filtering is needed at all.
func PermittedIDs[T any](ctx context.Context, r *Resolver, rt ResourceType, ops Operations, userID int64) ([]T, error) {
	if !rt.Valid() {
		return nil, fmt.Errorf("authz: unknown resource type %d", int(rt))
	}
	rows, err := r.db.Query(ctx, queries[rt].permittedIDs, userID, ops.param())
	if err != nil {
		r.observe(rt, Failed)
		return nil, shared.NewStoreError("authz permitted "+rt.String(), err)
	}
	defer rows.Close()

	ids := []T{}
	for rows.Next() {
		var id T
		if err := rows.Scan(&id); err != nil {
			r.observe(rt, Failed)
			return nil, shared.NewStoreError("authz permitted "+rt.String(), err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		r.observe(rt, Failed)
		return nil, shared.NewStoreError("authz permitted "+rt.String(), err)
	}
	return ids, nil
}

// Check folds a resolver result into a single error: nil when allowed,
// shared.ErrAccessDenied when denied, and the store error otherwise.
func Check(allowed bool, err error) error {
	if err != nil {
		return err
	}
	if !allowed {
		return shared.ErrAccessDenied
	}
	return nil
}

// IsDenied reports whether err is a completed check that refused access.
func IsDenied(err error) bool {
	return errors.Is(err, shared.ErrAccessDenied)
}
