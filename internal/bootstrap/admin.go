// Package bootstrap seeds the administrator account on startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/internal/roles"
	"github.com/noodle-soup/noodle/internal/shared"
	"github.com/noodle-soup/noodle/internal/users"
)

// AdminRole is the name of the seeded role holding every type-wide grant.
const AdminRole = "admin"

// Admin describes the account to seed.
type Admin struct {
	Email     string
	Password  string
	Firstname string
	Lastname  string
}

// Seeder makes sure the administrator exists and holds the admin role.
type Seeder struct {
	db     db.TxBeginner
	hasher users.Hasher
	logger *slog.Logger
}

// NewSeeder builds a Seeder.
func NewSeeder(conn db.TxBeginner, hasher users.Hasher, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{db: conn, hasher: hasher, logger: logger}
}

// AdminPermissions grants full CRUD on every resource type.
func AdminPermissions() []roles.Permission {
	perms := make([]roles.Permission, 0, len(authz.ResourceTypes()))
	for _, rt := range authz.ResourceTypes() {
		perms = append(perms, roles.Permission{Subject: rt, Ops: authz.All})
	}
	return perms
}

// EnsureAdmin creates the admin user and role when missing and assigns the
// role. Existing users are never modified; running it again is a no-op.
func (s *Seeder) EnsureAdmin(ctx context.Context, admin Admin) error {
	if admin.Email == "" {
		s.logger.Info("admin seeding skipped: no email configured")
		return nil
	}
	userID, err := s.ensureUser(ctx, admin)
	if err != nil {
		return err
	}
	roleID, err := s.ensureRole(ctx)
	if err != nil {
		return err
	}
	repo := roles.NewRepository(s.db)
	if err := repo.WithMembership(ctx, func(m *roles.Membership) error {
		return m.AssignRoles(ctx, userID, []int64{roleID})
	}); err != nil {
		return fmt.Errorf("assign admin role: %w", err)
	}
	s.logger.Info("admin ready", slog.Int64("user_id", userID), slog.Int64("role_id", roleID))
	return nil
}

func (s *Seeder) ensureUser(ctx context.Context, admin Admin) (int64, error) {
	email := shared.NormalizeEmail(admin.Email)
	if id, err := s.lookup(ctx, `SELECT id FROM "user" WHERE email = $1`, email); err == nil {
		return id, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return 0, err
	}

	verr := &shared.ValidationError{}
	if flags := users.CheckEmail(email); flags.Any() {
		verr.Add("email", flags)
	}
	if flags := users.CheckPassword(admin.Password); flags.Any() {
		verr.Add("password", flags)
	}
	if err := verr.OrNil(); err != nil {
		return 0, fmt.Errorf("admin credentials: %w", err)
	}
	hash, err := s.hasher.Hash(ctx, admin.Password)
	if err != nil {
		return 0, err
	}
	reg := users.Registration{
		Firstname: defaultString(shared.NormalizeName(admin.Firstname), "Admin"),
		Lastname:  defaultString(shared.NormalizeName(admin.Lastname), "Admin"),
		Email:     email,
	}
	u, err := users.NewRepository(s.db).Create(ctx, reg, hash)
	if errors.Is(err, shared.ErrConflict) {
		return s.lookup(ctx, `SELECT id FROM "user" WHERE email = $1`, email)
	}
	if err != nil {
		return 0, err
	}
	s.logger.Info("admin user created", slog.String("email", email))
	return u.ID, nil
}

func (s *Seeder) ensureRole(ctx context.Context) (int64, error) {
	if id, err := s.lookup(ctx, `SELECT id FROM role WHERE name = $1`, AdminRole); err == nil {
		return id, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return 0, err
	}
	role, err := roles.NewRepository(s.db).Create(ctx, roles.Input{Name: AdminRole, Permissions: AdminPermissions()})
	if errors.Is(err, shared.ErrConflict) {
		return s.lookup(ctx, `SELECT id FROM role WHERE name = $1`, AdminRole)
	}
	if err != nil {
		return 0, err
	}
	s.logger.Info("admin role created", slog.Int64("role_id", role.ID))
	return role.ID, nil
}

func (s *Seeder) lookup(ctx context.Context, query string, arg any) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, query, arg).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	if err != nil {
		return 0, shared.NewStoreError("bootstrap lookup", err)
	}
	return id, nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
