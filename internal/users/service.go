package users

import (
	"context"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Create(ctx context.Context, reg Registration, hash string) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	UpdateProfile(ctx context.Context, id int64, p Profile) (User, error)
	Delete(ctx context.Context, id int64) error
}

// Hasher turns a plaintext password into a storable hash.
type Hasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

// Service handles user business logic. A user may always read, edit and
// delete itself; acting on others needs grants on the User type.
type Service struct {
	repo   RepositoryPort
	authz  authz.Checker
	hasher Hasher
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, checker authz.Checker, hasher Hasher) *Service {
	return &Service{repo: repo, authz: checker, hasher: hasher}
}

// Register validates and creates a user account.
func (s *Service) Register(ctx context.Context, actor int64, reg Registration) (User, error) {
	if err := authz.RequireCreate(ctx, s.authz, authz.User, actor); err != nil {
		return User{}, err
	}
	reg.Firstname = shared.NormalizeName(reg.Firstname)
	reg.Lastname = shared.NormalizeName(reg.Lastname)
	reg.Title = shared.NormalizeName(reg.Title)
	reg.Email = shared.NormalizeEmail(reg.Email)

	verr := &shared.ValidationError{}
	if e := CheckEmail(reg.Email); e.Any() {
		verr.Add("email", e)
	}
	if p := CheckPassword(reg.Password); p.Any() {
		verr.Add("password", p)
	}
	if err := verr.OrNil(); err != nil {
		return User{}, err
	}

	hash, err := s.hasher.Hash(ctx, reg.Password)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, reg, hash)
}

// Get returns a user profile.
func (s *Service) Get(ctx context.Context, actor, id int64) (User, error) {
	if err := s.require(ctx, actor, id, authz.Read); err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// UpdateProfile validates and stores profile changes.
func (s *Service) UpdateProfile(ctx context.Context, actor, id int64, p Profile) (User, error) {
	if err := s.require(ctx, actor, id, authz.Update); err != nil {
		return User{}, err
	}
	p.Firstname = shared.NormalizeName(p.Firstname)
	p.Lastname = shared.NormalizeName(p.Lastname)
	p.Title = shared.NormalizeName(p.Title)
	p.Email = shared.NormalizeEmail(p.Email)
	if e := CheckEmail(p.Email); e.Any() {
		return User{}, shared.NewValidationError("email", e)
	}
	return s.repo.UpdateProfile(ctx, id, p)
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, actor, id int64) error {
	if actor != id {
		if err := authz.RequireDelete(ctx, s.authz, authz.User, actor); err != nil {
			return err
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) require(ctx context.Context, actor, id int64, ops authz.Operations) error {
	if actor == id {
		return nil
	}
	return authz.RequireID(ctx, s.authz, authz.User, id, ops, actor)
}
