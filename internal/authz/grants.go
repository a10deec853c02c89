package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Subject is the holder of a grant: exactly one of RoleID and UserID is set.
type Subject struct {
	RoleID *int64 `json:"roleId,omitempty"`
	UserID *int64 `json:"userId,omitempty"`
}

// RoleSubject returns a role-scoped subject.
func RoleSubject(id int64) Subject { return Subject{RoleID: &id} }

// UserSubject returns a user-scoped subject.
func UserSubject(id int64) Subject { return Subject{UserID: &id} }

// Validate enforces the user XOR role rule.
func (s Subject) Validate() error {
	if (s.RoleID == nil) == (s.UserID == nil) {
		return shared.NewValidationError("subject", "exactlyOneOfRoleOrUser")
	}
	return nil
}

// Grant is one row of a <type>_permissions table.
type Grant struct {
	Subject
	// ResourceID is nil for a type-wide grant, int64 or uuid.UUID otherwise.
	ResourceID any        `json:"resourceId"`
	Ops        Operations `json:"ops"`
}

// Validate checks the subject, operations and id type against rt.
func (g Grant) Validate(rt ResourceType) error {
	if err := g.Subject.Validate(); err != nil {
		return err
	}
	if !g.Ops.Valid() {
		return shared.NewValidationError("ops", "invalid")
	}
	if g.ResourceID != nil {
		if err := rt.checkID(g.ResourceID); err != nil {
			return shared.NewValidationError("resourceId", "invalid")
		}
	}
	return nil
}

// GrantStore writes and reads grant rows. Construct it over a pgx.Tx to make
// grant changes part of a larger transaction.
type GrantStore struct {
	db db.DBTX
}

// NewGrantStore constructs a GrantStore over conn.
func NewGrantStore(conn db.DBTX) *GrantStore {
	return &GrantStore{db: conn}
}

// Grant inserts g into the grant table of rt.
func (s *GrantStore) Grant(ctx context.Context, rt ResourceType, g Grant) error {
	if !rt.Valid() {
		return fmt.Errorf("authz: unknown resource type %d", int(rt))
	}
	if err := g.Validate(rt); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, queries[rt].insertGrant, g.RoleID, g.UserID, g.ResourceID, g.Ops.param()); err != nil {
		if db.IsForeignKeyViolation(err) {
			return shared.ErrNotFound
		}
		return shared.NewStoreError("grant "+rt.String(), err)
	}
	return nil
}

// Revoke deletes every grant of rt matching the subject and resource of g.
// It returns shared.ErrNotFound when nothing matched.
func (s *GrantStore) Revoke(ctx context.Context, rt ResourceType, g Grant) error {
	if !rt.Valid() {
		return fmt.Errorf("authz: unknown resource type %d", int(rt))
	}
	if err := g.Subject.Validate(); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, queries[rt].deleteGrant, g.RoleID, g.UserID, g.ResourceID)
	if err != nil {
		return shared.NewStoreError("revoke "+rt.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListForResource returns the grants of rt on resourceID; nil lists the
// type-wide grants.
func (s *GrantStore) ListForResource(ctx context.Context, rt ResourceType, resourceID any) ([]Grant, error) {
	if !rt.Valid() {
		return nil, fmt.Errorf("authz: unknown resource type %d", int(rt))
	}
	if resourceID != nil {
		if err := rt.checkID(resourceID); err != nil {
			return nil, err
		}
	}
	return s.list(ctx, rt, queries[rt].listGrants, resourceID)
}

// SubjectGrants groups the grants of one subject by resource type.
type SubjectGrants map[ResourceType][]Grant

// ListForSubject returns every grant held directly by subject.
func (s *GrantStore) ListForSubject(ctx context.Context, subject Subject) (SubjectGrants, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	out := SubjectGrants{}
	for _, rt := range ResourceTypes() {
		grants, err := s.list(ctx, rt, queries[rt].listBySubj, subject.RoleID, subject.UserID)
		if err != nil {
			return nil, err
		}
		if len(grants) > 0 {
			out[rt] = grants
		}
	}
	return out, nil
}

func (s *GrantStore) list(ctx context.Context, rt ResourceType, query string, args ...any) ([]Grant, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.NewStoreError("list grants "+rt.String(), err)
	}
	defer rows.Close()

	grants := []Grant{}
	for rows.Next() {
		var (
			g   Grant
			ops int32
		)
		if rt.IDKind() == UUIDID {
			var id *uuid.UUID
			if err := rows.Scan(&g.RoleID, &g.UserID, &id, &ops); err != nil {
				return nil, shared.NewStoreError("scan grant "+rt.String(), err)
			}
			if id != nil {
				g.ResourceID = *id
			}
		} else {
			var id *int64
			if err := rows.Scan(&g.RoleID, &g.UserID, &id, &ops); err != nil {
				return nil, shared.NewStoreError("scan grant "+rt.String(), err)
			}
			if id != nil {
				g.ResourceID = *id
			}
		}
		g.Ops = Operations(ops)
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStoreError("list grants "+rt.String(), err)
	}
	return grants, nil
}
