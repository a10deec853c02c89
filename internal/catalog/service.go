package catalog

import (
	"context"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/shared"
)

// RepositoryPort defines data access methods for entries.
type RepositoryPort interface {
	Type() authz.ResourceType
	List(ctx context.Context) ([]Entry, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Entry, error)
	Get(ctx context.Context, id int64) (Entry, error)
	Create(ctx context.Context, creator int64, name string) (Entry, error)
	Update(ctx context.Context, id int64, name string) (Entry, error)
	Delete(ctx context.Context, id int64) error
}

// Authorizer is the resolver surface the catalog needs.
type Authorizer interface {
	authz.Checker
	authz.IDLister
}

// Service applies permission checks to one resource type.
type Service struct {
	repo  RepositoryPort
	authz Authorizer
	rt    authz.ResourceType
}

// NewService builds a Service for the type of repo.
func NewService(repo RepositoryPort, authorizer Authorizer) *Service {
	return &Service{repo: repo, authz: authorizer, rt: repo.Type()}
}

// List returns every entry when the actor may read the whole type and
// otherwise only those it holds an instance grant on.
func (s *Service) List(ctx context.Context, actor int64) ([]Entry, error) {
	all, err := s.authz.HasAll(ctx, s.rt, authz.Read, actor)
	if err != nil {
		return nil, err
	}
	if all {
		return s.repo.List(ctx)
	}
	ids, err := s.authz.PermittedInt64s(ctx, s.rt, authz.Read, actor)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Entry{}, nil
	}
	return s.repo.ListByIDs(ctx, ids)
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, actor, id int64) (Entry, error) {
	if err := authz.RequireID(ctx, s.authz, s.rt, id, authz.Read, actor); err != nil {
		return Entry{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create stores a new entry owned by actor.
func (s *Service) Create(ctx context.Context, actor int64, in Input) (Entry, error) {
	if err := authz.RequireCreate(ctx, s.authz, s.rt, actor); err != nil {
		return Entry{}, err
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return Entry{}, err
	}
	return s.repo.Create(ctx, actor, name)
}

// Update renames an entry.
func (s *Service) Update(ctx context.Context, actor, id int64, in Input) (Entry, error) {
	if err := authz.RequireID(ctx, s.authz, s.rt, id, authz.Update, actor); err != nil {
		return Entry{}, err
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return Entry{}, err
	}
	return s.repo.Update(ctx, id, name)
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, actor, id int64) error {
	if err := authz.RequireDelete(ctx, s.authz, s.rt, actor); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func normalizeName(name string) (string, error) {
	name = shared.NormalizeName(name)
	if name == "" {
		return "", shared.NewValidationError("name", "required")
	}
	return name, nil
}
