package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Repository stores entries of one resource type.
type Repository struct {
	db db.TxBeginner
	rt authz.ResourceType

	selectAll string
	selectIDs string
	selectOne string
	insert    string
	update    string
	remove    string
}

// NewRepository returns a repository for rt, which must be authz.Course or
// authz.Template.
func NewRepository(conn db.TxBeginner, rt authz.ResourceType) *Repository {
	if rt != authz.Course && rt != authz.Template {
		panic(fmt.Sprintf("catalog: unsupported resource type %s", rt))
	}
	table := rt.QuotedTable()
	return &Repository{
		db:        conn,
		rt:        rt,
		selectAll: `SELECT id, name FROM ` + table + ` ORDER BY id LIMIT $1`,
		selectIDs: `SELECT id, name FROM ` + table + ` WHERE id = ANY($1) ORDER BY id LIMIT $2`,
		selectOne: `SELECT id, name FROM ` + table + ` WHERE id = $1`,
		insert:    `INSERT INTO ` + table + ` (name) VALUES ($1) RETURNING id`,
		update:    `UPDATE ` + table + ` SET name = $2 WHERE id = $1`,
		remove:    `DELETE FROM ` + table + ` WHERE id = $1`,
	}
}

// Type returns the resource type served by the repository.
func (r *Repository) Type() authz.ResourceType { return r.rt }

// List returns up to MaxList entries.
func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.Query(ctx, r.selectAll, MaxList)
	if err != nil {
		return nil, shared.NewStoreError("list "+r.rt.String(), err)
	}
	return r.collect(rows)
}

// ListByIDs returns the entries among ids.
func (r *Repository) ListByIDs(ctx context.Context, ids []int64) ([]Entry, error) {
	rows, err := r.db.Query(ctx, r.selectIDs, ids, MaxList)
	if err != nil {
		return nil, shared.NewStoreError("list "+r.rt.String(), err)
	}
	return r.collect(rows)
}

func (r *Repository) collect(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, shared.NewStoreError("list "+r.rt.String(), err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStoreError("list "+r.rt.String(), err)
	}
	return out, nil
}

// Get loads one entry.
func (r *Repository) Get(ctx context.Context, id int64) (Entry, error) {
	var e Entry
	err := r.db.QueryRow(ctx, r.selectOne, id).Scan(&e.ID, &e.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, shared.ErrNotFound
	}
	if err != nil {
		return Entry{}, shared.NewStoreError("get "+r.rt.String(), err)
	}
	return e, nil
}

// Create inserts an entry and grants its creator read and update on it in
// the same transaction.
func (r *Repository) Create(ctx context.Context, creator int64, name string) (Entry, error) {
	e := Entry{Name: name}
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, r.insert, name).Scan(&e.ID); err != nil {
			if db.IsUniqueViolation(err) {
				return shared.ErrConflict
			}
			return shared.NewStoreError("create "+r.rt.String(), err)
		}
		return authz.NewGrantStore(tx).Grant(ctx, r.rt, authz.Grant{
			Subject:    authz.UserSubject(creator),
			ResourceID: e.ID,
			Ops:        authz.Owner,
		})
	})
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Update renames an entry.
func (r *Repository) Update(ctx context.Context, id int64, name string) (Entry, error) {
	tag, err := r.db.Exec(ctx, r.update, id, name)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Entry{}, shared.ErrConflict
		}
		return Entry{}, shared.NewStoreError("update "+r.rt.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return Entry{}, shared.ErrNotFound
	}
	return Entry{ID: id, Name: name}, nil
}

// Delete removes an entry; its sections and grants cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, r.remove, id)
	if err != nil {
		return shared.NewStoreError("delete "+r.rt.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
