package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

// Create inserts a user with an already hashed password. A taken email
// yields shared.ErrConflict.
func (r *Repository) Create(ctx context.Context, reg Registration, hash string) (User, error) {
	u := User{Firstname: reg.Firstname, Lastname: reg.Lastname, Title: reg.Title, Email: reg.Email}
	err := r.db.QueryRow(ctx, `INSERT INTO "user" (firstname, lastname, title, email, password)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		reg.Firstname, reg.Lastname, reg.Title, reg.Email, hash).Scan(&u.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, shared.ErrConflict
		}
		return User{}, shared.NewStoreError("create user", err)
	}
	return u, nil
}

// Get loads one user.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.QueryRow(ctx, `SELECT id, firstname, lastname, title, email FROM "user" WHERE id = $1`, id).
		Scan(&u.ID, &u.Firstname, &u.Lastname, &u.Title, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	if err != nil {
		return User{}, shared.NewStoreError("get user", err)
	}
	return u, nil
}

// UpdateProfile replaces the profile fields. An email held by another user
// yields shared.ErrConflict.
func (r *Repository) UpdateProfile(ctx context.Context, id int64, p Profile) (User, error) {
	tag, err := r.db.Exec(ctx, `UPDATE "user" SET firstname = $2, lastname = $3, title = $4, email = $5 WHERE id = $1`,
		id, p.Firstname, p.Lastname, p.Title, p.Email)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, shared.ErrConflict
		}
		return User{}, shared.NewStoreError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return User{}, shared.ErrNotFound
	}
	return User{ID: id, Firstname: p.Firstname, Lastname: p.Lastname, Title: p.Title, Email: p.Email}, nil
}

// Delete removes a user; memberships, sessions and direct grants cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM "user" WHERE id = $1`, id)
	if err != nil {
		return shared.NewStoreError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
