package roles

import (
	"context"
	"strconv"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context) ([]Role, error)
	ListForUser(ctx context.Context, userID int64) ([]Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	Create(ctx context.Context, in Input) (Role, error)
	Update(ctx context.Context, id int64, in Input) (Role, error)
	Delete(ctx context.Context, id int64) error
	Members(ctx context.Context, id int64) ([]Member, error)
	WithMembership(ctx context.Context, fn func(*Membership) error) error
}

// Service handles role business logic. Every method checks the acting
// user's permissions on the Role type before touching storage.
type Service struct {
	repo  RepositoryPort
	authz authz.Checker
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, checker authz.Checker) *Service {
	return &Service{repo: repo, authz: checker}
}

// List returns all roles.
func (s *Service) List(ctx context.Context, actor int64) ([]Role, error) {
	if err := authz.RequireAll(ctx, s.authz, authz.Role, authz.Read, actor); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Get returns one role.
func (s *Service) Get(ctx context.Context, actor, id int64) (Role, error) {
	if err := authz.RequireID(ctx, s.authz, authz.Role, id, authz.Read, actor); err != nil {
		return Role{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create validates and stores a new role.
func (s *Service) Create(ctx context.Context, actor int64, in Input) (Role, error) {
	if err := authz.RequireCreate(ctx, s.authz, authz.Role, actor); err != nil {
		return Role{}, err
	}
	in, err := normalize(in)
	if err != nil {
		return Role{}, err
	}
	return s.repo.Create(ctx, in)
}

// Update replaces the name and permissions of a role.
func (s *Service) Update(ctx context.Context, actor, id int64, in Input) (Role, error) {
	if err := authz.RequireID(ctx, s.authz, authz.Role, id, authz.Update, actor); err != nil {
		return Role{}, err
	}
	in, err := normalize(in)
	if err != nil {
		return Role{}, err
	}
	return s.repo.Update(ctx, id, in)
}

// Delete removes a role.
func (s *Service) Delete(ctx context.Context, actor, id int64) error {
	if err := authz.RequireDelete(ctx, s.authz, authz.Role, actor); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Members lists the users of a role.
func (s *Service) Members(ctx context.Context, actor, id int64) ([]Member, error) {
	if err := authz.RequireID(ctx, s.authz, authz.Role, id, authz.Read, actor); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Members(ctx, id)
}

// AddUsers assigns the role to userIDs.
func (s *Service) AddUsers(ctx context.Context, actor, id int64, userIDs []int64) error {
	return s.changeMembers(ctx, actor, id, func(m *Membership) error {
		return m.AddUsers(ctx, id, userIDs)
	})
}

// ReplaceUsers makes userIDs the exact member set of the role.
func (s *Service) ReplaceUsers(ctx context.Context, actor, id int64, userIDs []int64) error {
	return s.changeMembers(ctx, actor, id, func(m *Membership) error {
		return m.ReplaceUsers(ctx, id, userIDs)
	})
}

// RemoveUsers unassigns the role from userIDs.
func (s *Service) RemoveUsers(ctx context.Context, actor, id int64, userIDs []int64) error {
	return s.changeMembers(ctx, actor, id, func(m *Membership) error {
		return m.RemoveUsers(ctx, id, userIDs)
	})
}

func (s *Service) changeMembers(ctx context.Context, actor, id int64, fn func(*Membership) error) error {
	if err := authz.RequireID(ctx, s.authz, authz.Role, id, authz.Update, actor); err != nil {
		return err
	}
	return s.repo.WithMembership(ctx, fn)
}

// RolesOf lists the roles of userID. Reading needs Read on that user.
func (s *Service) RolesOf(ctx context.Context, actor, userID int64) ([]Role, error) {
	if actor != userID {
		if err := authz.RequireID(ctx, s.authz, authz.User, userID, authz.Read, actor); err != nil {
			return nil, err
		}
	}
	return s.repo.ListForUser(ctx, userID)
}

// AssignRoles gives userID the listed roles.
func (s *Service) AssignRoles(ctx context.Context, actor, userID int64, roleIDs []int64) error {
	return s.changeRoles(ctx, actor, userID, func(m *Membership) error {
		return m.AssignRoles(ctx, userID, roleIDs)
	})
}

// ReplaceRoles makes roleIDs the exact role set of userID.
func (s *Service) ReplaceRoles(ctx context.Context, actor, userID int64, roleIDs []int64) error {
	return s.changeRoles(ctx, actor, userID, func(m *Membership) error {
		return m.ReplaceRoles(ctx, userID, roleIDs)
	})
}

// UnassignRoles removes the listed roles from userID.
func (s *Service) UnassignRoles(ctx context.Context, actor, userID int64, roleIDs []int64) error {
	return s.changeRoles(ctx, actor, userID, func(m *Membership) error {
		return m.UnassignRoles(ctx, userID, roleIDs)
	})
}

// Changing a user's roles needs Update on the Role type as a whole since
// the listed roles may be arbitrary.
func (s *Service) changeRoles(ctx context.Context, actor, userID int64, fn func(*Membership) error) error {
	if err := authz.RequireAll(ctx, s.authz, authz.Role, authz.Update, actor); err != nil {
		return err
	}
	return s.repo.WithMembership(ctx, fn)
}

func normalize(in Input) (Input, error) {
	in.Name = shared.NormalizeName(in.Name)
	verr := &shared.ValidationError{}
	if in.Name == "" {
		verr.Add("name", "required")
	}
	for i, p := range in.Permissions {
		field := "permissions." + strconv.Itoa(i)
		switch {
		case !p.Subject.Valid():
			verr.Add(field, "unknownSubject")
		case !p.Ops.Valid():
			verr.Add(field, "invalidOps")
		default:
			for _, raw := range p.IDs {
				if _, err := p.Subject.ParseID(raw); err != nil {
					verr.Add(field, "invalidId")
					break
				}
			}
		}
	}
	return in, verr.OrNil()
}
