package files

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/internal/shared"
)

const selectFile = `SELECT uid, filename, mime_type, location, size, created_at FROM file`

// Repository stores file metadata.
type Repository struct {
	db db.TxBeginner
}

// NewRepository constructs repository.
func NewRepository(conn db.TxBeginner) *Repository {
	return &Repository{db: conn}
}

// List returns up to MaxList files, newest first.
func (r *Repository) List(ctx context.Context) ([]File, error) {
	return r.query(ctx, selectFile+` ORDER BY created_at DESC, uid LIMIT $1`, MaxList)
}

// ListByUIDs returns the files among uids.
func (r *Repository) ListByUIDs(ctx context.Context, uids []uuid.UUID) ([]File, error) {
	return r.query(ctx, selectFile+` WHERE uid = ANY($1) ORDER BY created_at DESC, uid LIMIT $2`, uids, MaxList)
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]File, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.NewStoreError("list files", err)
	}
	defer rows.Close()
	out := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.UID, &f.Filename, &f.MimeType, &f.Location, &f.Size, &f.CreatedAt); err != nil {
			return nil, shared.NewStoreError("list files", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStoreError("list files", err)
	}
	return out, nil
}

// Get loads one file.
func (r *Repository) Get(ctx context.Context, uid uuid.UUID) (File, error) {
	var f File
	err := r.db.QueryRow(ctx, selectFile+` WHERE uid = $1`, uid).
		Scan(&f.UID, &f.Filename, &f.MimeType, &f.Location, &f.Size, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return File{}, shared.ErrNotFound
	}
	if err != nil {
		return File{}, shared.NewStoreError("get file", err)
	}
	return f, nil
}

// Create records f and grants its uploader read and update in one transaction.
func (r *Repository) Create(ctx context.Context, creator int64, f File) (File, error) {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO file (uid, filename, mime_type, location, size)
VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
			f.UID, f.Filename, f.MimeType, f.Location, f.Size).Scan(&f.CreatedAt)
		if err != nil {
			return shared.NewStoreError("create file", err)
		}
		return authz.NewGrantStore(tx).Grant(ctx, authz.File, authz.Grant{
			Subject:    authz.UserSubject(creator),
			ResourceID: f.UID,
			Ops:        authz.Owner,
		})
	})
	if err != nil {
		return File{}, err
	}
	return f, nil
}

// Replace updates the metadata after new content was written.
func (r *Repository) Replace(ctx context.Context, f File) error {
	tag, err := r.db.Exec(ctx, `UPDATE file SET filename = $2, mime_type = $3, size = $4 WHERE uid = $1`,
		f.UID, f.Filename, f.MimeType, f.Size)
	if err != nil {
		return shared.NewStoreError("update file", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the metadata row and returns the location it pointed to.
func (r *Repository) Delete(ctx context.Context, uid uuid.UUID) (string, error) {
	var location string
	err := r.db.QueryRow(ctx, `DELETE FROM file WHERE uid = $1 RETURNING location`, uid).Scan(&location)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", shared.NewStoreError("delete file", err)
	}
	return location, nil
}
