package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db db.TxBeginner
}

// NewRepository constructs a repository.
func NewRepository(conn db.TxBeginner) *Repository {
	return &Repository{db: conn}
}

const selectRole = `SELECT id, name, "group", permissions FROM role`

func scanRole(row pgx.Row) (Role, error) {
	var (
		role Role
		raw  []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &role.GroupID, &raw); err != nil {
		return Role{}, err
	}
	role.Permissions = []Permission{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &role.Permissions); err != nil {
			return Role{}, fmt.Errorf("roles: decode permissions of %d: %w", role.ID, err)
		}
	}
	return role, nil
}

// List returns up to MaxList roles ordered by id.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, selectRole+` ORDER BY id LIMIT $1`, MaxList)
	if err != nil {
		return nil, shared.NewStoreError("list roles", err)
	}
	defer rows.Close()

	out := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, shared.NewStoreError("list roles", err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStoreError("list roles", err)
	}
	return out, nil
}

// ListForUser returns the roles held by userID.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT role.id, role.name, role."group", role.permissions
FROM role JOIN user_has_role ur ON ur.role_id = role.id
WHERE ur.user_id = $1 ORDER BY role.id`, userID)
	if err != nil {
		return nil, shared.NewStoreError("list user roles", err)
	}
	defer rows.Close()

	out := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, shared.NewStoreError("list user roles", err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStoreError("list user roles", err)
	}
	return out, nil
}

// Get loads one role.
func (r *Repository) Get(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, selectRole+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrNotFound
	}
	if err != nil {
		return Role{}, shared.NewStoreError("get role", err)
	}
	return role, nil
}

// Create inserts the role, its backing group and its grants in one
// transaction. A taken name yields shared.ErrConflict and leaves nothing
// behind.
func (r *Repository) Create(ctx context.Context, in Input) (Role, error) {
	perms, err := encodePermissions(in.Permissions)
	if err != nil {
		return Role{}, err
	}
	role := Role{Name: in.Name, Permissions: in.Permissions}
	err = db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO "group" (name, kind) VALUES ($1, 'role') RETURNING id`,
			in.Name).Scan(&role.GroupID); err != nil {
			return conflictOr("create role group", err)
		}
		if err := tx.QueryRow(ctx, `INSERT INTO role (name, permissions, "group") VALUES ($1, $2, $3) RETURNING id`,
			in.Name, perms, role.GroupID).Scan(&role.ID); err != nil {
			return conflictOr("create role", err)
		}
		return materialize(ctx, tx, role.ID, in.Permissions)
	})
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// Update renames the role and its group and replaces its grants.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (Role, error) {
	perms, err := encodePermissions(in.Permissions)
	if err != nil {
		return Role{}, err
	}
	role := Role{ID: id, Name: in.Name, Permissions: in.Permissions}
	err = db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `UPDATE role SET name = $2, permissions = $3 WHERE id = $1 RETURNING "group"`,
			id, in.Name, perms).Scan(&role.GroupID)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return conflictOr("update role", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE "group" SET name = $2 WHERE id = $1`, role.GroupID, in.Name); err != nil {
			return conflictOr("rename role group", err)
		}
		if err := clearGrants(ctx, tx, id); err != nil {
			return err
		}
		return materialize(ctx, tx, id, in.Permissions)
	})
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// Delete removes the role, its grants and its group.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var groupID int64
		err := tx.QueryRow(ctx, `DELETE FROM role WHERE id = $1 RETURNING "group"`, id).Scan(&groupID)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return shared.NewStoreError("delete role", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM "group" WHERE id = $1`, groupID); err != nil {
			return shared.NewStoreError("delete role group", err)
		}
		return nil
	})
}

// Members lists the users holding the role.
func (r *Repository) Members(ctx context.Context, id int64) ([]Member, error) {
	rows, err := r.db.Query(ctx, `SELECT u.id, u.firstname, u.lastname, u.email
FROM "user" u JOIN user_has_role ur ON ur.user_id = u.id
WHERE ur.role_id = $1 ORDER BY u.id`, id)
	if err != nil {
		return nil, shared.NewStoreError("list role members", err)
	}
	defer rows.Close()

	out := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Firstname, &m.Lastname, &m.Email); err != nil {
			return nil, shared.NewStoreError("list role members", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStoreError("list role members", err)
	}
	return out, nil
}

// WithMembership runs fn with a Membership bound to a fresh transaction.
func (r *Repository) WithMembership(ctx context.Context, fn func(*Membership) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(NewMembership(tx))
	})
}

func materialize(ctx context.Context, tx pgx.Tx, roleID int64, perms []Permission) error {
	store := authz.NewGrantStore(tx)
	for _, p := range perms {
		grants, err := p.grants(roleID)
		if err != nil {
			return shared.NewValidationError("permissions", "invalidId")
		}
		for _, g := range grants {
			if err := store.Grant(ctx, p.Subject, g); err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.NewValidationError("permissions", "unknownId")
				}
				return err
			}
		}
	}
	return nil
}

func clearGrants(ctx context.Context, tx pgx.Tx, roleID int64) error {
	for _, rt := range authz.ResourceTypes() {
		if _, err := tx.Exec(ctx, `DELETE FROM `+rt.PermissionTable()+` WHERE role_id = $1`, roleID); err != nil {
			return shared.NewStoreError("clear role grants", err)
		}
	}
	return nil
}

func encodePermissions(perms []Permission) ([]byte, error) {
	if perms == nil {
		perms = []Permission{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("roles: encode permissions: %w", err)
	}
	return raw, nil
}

func conflictOr(op string, err error) error {
	if db.IsUniqueViolation(err) {
		return shared.ErrConflict
	}
	return shared.NewStoreError(op, err)
}
