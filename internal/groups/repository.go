package groups

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

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

const selectGroup = `SELECT id, name, shortname, kind::text, parent FROM "group"`

func scanGroup(row pgx.Row) (Group, error) {
	var (
		g    Group
		kind string
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Shortname, &kind, &g.Parent); err != nil {
		return Group{}, err
	}
	g.Kind = Kind(kind)
	return g, nil
}

func collect(rows pgx.Rows, op string) ([]Group, error) {
	defer rows.Close()
	out := []Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, shared.NewStoreError(op, err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStoreError(op, err)
	}
	return out, nil
}

// List returns up to MaxList groups ordered by id.
func (r *Repository) List(ctx context.Context) ([]Group, error) {
	rows, err := r.db.Query(ctx, selectGroup+` ORDER BY id LIMIT $1`, MaxList)
	if err != nil {
		return nil, shared.NewStoreError("list groups", err)
	}
	return collect(rows, "list groups")
}

// ListByIDs returns the groups among ids.
func (r *Repository) ListByIDs(ctx context.Context, ids []int64) ([]Group, error) {
	rows, err := r.db.Query(ctx, selectGroup+` WHERE id = ANY($1) ORDER BY id LIMIT $2`, ids, MaxList)
	if err != nil {
		return nil, shared.NewStoreError("list groups", err)
	}
	return collect(rows, "list groups")
}

// ListForUser returns the groups userID belongs to.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]Group, error) {
	rows, err := r.db.Query(ctx, `SELECT g.id, g.name, g.shortname, g.kind::text, g.parent
FROM "group" g JOIN user_in_group ug ON ug.group_id = g.id
WHERE ug.user_id = $1 ORDER BY g.id`, userID)
	if err != nil {
		return nil, shared.NewStoreError("list user groups", err)
	}
	return collect(rows, "list user groups")
}

// Get loads one group.
func (r *Repository) Get(ctx context.Context, id int64) (Group, error) {
	g, err := scanGroup(r.db.QueryRow(ctx, selectGroup+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, shared.ErrNotFound
	}
	if err != nil {
		return Group{}, shared.NewStoreError("get group", err)
	}
	return g, nil
}

// Create inserts a group. A missing parent yields a validation error, a
// taken name shared.ErrConflict.
func (r *Repository) Create(ctx context.Context, in Input) (Group, error) {
	g := Group{Name: in.Name, Shortname: in.Shortname, Kind: in.Kind, Parent: in.Parent}
	err := r.db.QueryRow(ctx, `INSERT INTO "group" (name, shortname, kind, parent)
VALUES ($1, $2, $3::group_kind, $4) RETURNING id`,
		in.Name, in.Shortname, string(in.Kind), in.Parent).Scan(&g.ID)
	if err != nil {
		return Group{}, parentError("create group", err)
	}
	return g, nil
}

// Update replaces the fields of a non-role group. Re-parenting that would close a
// cycle is rejected inside the same transaction as the write. Re-parenting
// updates hold reparentLock, and the transaction runs at read committed so
// the ancestor walk after the lock sees every earlier committed re-parent.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (Group, error) {
	g := Group{ID: id, Name: in.Name, Shortname: in.Shortname, Kind: in.Kind, Parent: in.Parent}
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead}
	if in.Parent != nil {
		opts.IsoLevel = pgx.ReadCommitted
	}
	err := db.WithTxOptions(ctx, r.db, opts, func(tx pgx.Tx) error {
		if in.Parent != nil {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, reparentLock); err != nil {
				return shared.NewStoreError("lock group parents", err)
			}
			var cycle bool
			if err := tx.QueryRow(ctx, ancestorsContain, *in.Parent, id).Scan(&cycle); err != nil {
				return shared.NewStoreError("check group parent", err)
			}
			if cycle {
				return shared.NewValidationError("parent", "cycle")
			}
		}
		tag, err := tx.Exec(ctx, `UPDATE "group" SET name = $2, shortname = $3, parent = $4, kind = $5::group_kind
WHERE id = $1 AND kind <> 'role'`, id, in.Name, in.Shortname, in.Parent, string(in.Kind))
		if err != nil {
			return parentError("update group", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

// reparentLock is the advisory lock key serialising group re-parenting.
const reparentLock int64 = 0x6e6f6f646c65

// ancestorsContain reports whether $2 is $1 or one of its ancestors.
const ancestorsContain = `WITH RECURSIVE chain(id, parent) AS (
  SELECT id, parent FROM "group" WHERE id = $1
  UNION
  SELECT g.id, g.parent FROM "group" g JOIN chain c ON g.id = c.parent
)
SELECT EXISTS (SELECT 1 FROM chain WHERE id = $2)`

// Delete removes a group that does not back a role.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM "group" WHERE id = $1 AND kind <> 'role'`, id)
	if err != nil {
		return shared.NewStoreError("delete group", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Members lists the users of a group.
func (r *Repository) Members(ctx context.Context, id int64) ([]Member, error) {
	rows, err := r.db.Query(ctx, `SELECT u.id, u.firstname, u.lastname, u.email
FROM "user" u JOIN user_in_group ug ON ug.user_id = u.id
WHERE ug.group_id = $1 ORDER BY u.id`, id)
	if err != nil {
		return nil, shared.NewStoreError("list group members", err)
	}
	defer rows.Close()

	out := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Firstname, &m.Lastname, &m.Email); err != nil {
			return nil, shared.NewStoreError("list group members", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStoreError("list group members", err)
	}
	return out, nil
}

// AddUsers bulk inserts memberships; existing ones are kept.
func (r *Repository) AddUsers(ctx context.Context, id int64, userIDs []int64) error {
	return r.insertUsers(ctx, r.db, id, userIDs)
}

// ReplaceUsers makes userIDs the exact member set of the group.
func (r *Repository) ReplaceUsers(ctx context.Context, id int64, userIDs []int64) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_in_group WHERE group_id = $1`, id); err != nil {
			return shared.NewStoreError("clear group members", err)
		}
		return r.insertUsers(ctx, tx, id, userIDs)
	})
}

// RemoveUsers drops the given memberships.
func (r *Repository) RemoveUsers(ctx context.Context, id int64, userIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_in_group WHERE group_id = $1 AND user_id = ANY($2)`, id, userIDs); err != nil {
		return shared.NewStoreError("remove group members", err)
	}
	return nil
}

// AddGroupsToUser joins userID to every listed group.
func (r *Repository) AddGroupsToUser(ctx context.Context, userID int64, groupIDs []int64) error {
	return addGroups(ctx, r.db, userID, groupIDs)
}

// ReplaceGroupsOfUser makes groupIDs the exact non-role group set of userID.
// Role groups follow role assignments and are left untouched.
func (r *Repository) ReplaceGroupsOfUser(ctx context.Context, userID int64, groupIDs []int64) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_in_group
WHERE user_id = $1 AND group_id IN (SELECT id FROM "group" WHERE kind <> 'role')`, userID); err != nil {
			return shared.NewStoreError("clear user groups", err)
		}
		return addGroups(ctx, tx, userID, groupIDs)
	})
}

// RemoveGroupsFromUser drops userID from the listed non-role groups.
func (r *Repository) RemoveGroupsFromUser(ctx context.Context, userID int64, groupIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_in_group
WHERE user_id = $1 AND group_id = ANY($2)
  AND group_id IN (SELECT id FROM "group" WHERE kind <> 'role')`, userID, groupIDs); err != nil {
		return shared.NewStoreError("remove user groups", err)
	}
	return nil
}

func (r *Repository) insertUsers(ctx context.Context, conn db.DBTX, id int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	if _, err := conn.Exec(ctx, `INSERT INTO user_in_group (user_id, group_id)
SELECT u, $2 FROM unnest($1::bigint[]) AS u
ON CONFLICT DO NOTHING`, userIDs, id); err != nil {
		return writeError("add group members", err)
	}
	return nil
}

// Role groups are skipped; joining one requires a role assignment.
func addGroups(ctx context.Context, conn db.DBTX, userID int64, groupIDs []int64) error {
	if len(groupIDs) == 0 {
		return nil
	}
	if _, err := conn.Exec(ctx, `INSERT INTO user_in_group (user_id, group_id)
SELECT $1, g.id FROM "group" g WHERE g.id = ANY($2) AND g.kind <> 'role'
ON CONFLICT DO NOTHING`, userID, groupIDs); err != nil {
		return writeError("add user groups", err)
	}
	return nil
}

func writeError(op string, err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return shared.ErrConflict
	case db.IsForeignKeyViolation(err):
		return shared.ErrNotFound
	}
	return shared.NewStoreError(op, err)
}

// The only foreign key of a group row is its parent.
func parentError(op string, err error) error {
	if db.IsForeignKeyViolation(err) {
		return shared.NewValidationError("parent", "notFound")
	}
	return writeError(op, err)
}
