package groups

import (
	"context"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/shared"
)

// RepositoryPort defines data access methods for groups.
type RepositoryPort interface {
	List(ctx context.Context) ([]Group, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Group, error)
	ListForUser(ctx context.Context, userID int64) ([]Group, error)
	Get(ctx context.Context, id int64) (Group, error)
	Create(ctx context.Context, in Input) (Group, error)
	Update(ctx context.Context, id int64, in Input) (Group, error)
	Delete(ctx context.Context, id int64) error
	Members(ctx context.Context, id int64) ([]Member, error)
	AddUsers(ctx context.Context, id int64, userIDs []int64) error
	ReplaceUsers(ctx context.Context, id int64, userIDs []int64) error
	RemoveUsers(ctx context.Context, id int64, userIDs []int64) error
	AddGroupsToUser(ctx context.Context, userID int64, groupIDs []int64) error
	ReplaceGroupsOfUser(ctx context.Context, userID int64, groupIDs []int64) error
	RemoveGroupsFromUser(ctx context.Context, userID int64, groupIDs []int64) error
}

// Authorizer is the resolver surface groups need.
type Authorizer interface {
	authz.Checker
	authz.IDLister
}

// Service handles group business logic.
type Service struct {
	repo  RepositoryPort
	authz Authorizer
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, authorizer Authorizer) *Service {
	return &Service{repo: repo, authz: authorizer}
}

// List returns every group when the actor may read the type, otherwise
// only the groups it holds a read grant on.
func (s *Service) List(ctx context.Context, actor int64) ([]Group, error) {
	all, err := s.authz.HasAll(ctx, authz.Group, authz.Read, actor)
	if err != nil {
		return nil, err
	}
	if all {
		return s.repo.List(ctx)
	}
	ids, err := s.authz.PermittedInt64s(ctx, authz.Group, authz.Read, actor)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Group{}, nil
	}
	return s.repo.ListByIDs(ctx, ids)
}

// Get returns one group.
func (s *Service) Get(ctx context.Context, actor, id int64) (Group, error) {
	if err := authz.RequireID(ctx, s.authz, authz.Group, id, authz.Read, actor); err != nil {
		return Group{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create stores a new group. Role groups cannot be created here.
func (s *Service) Create(ctx context.Context, actor int64, in Input) (Group, error) {
	if err := authz.RequireCreate(ctx, s.authz, authz.Group, actor); err != nil {
		return Group{}, err
	}
	in, err := normalize(in)
	if err != nil {
		return Group{}, err
	}
	return s.repo.Create(ctx, in)
}

// Update replaces a group's fields.
func (s *Service) Update(ctx context.Context, actor, id int64, in Input) (Group, error) {
	if err := authz.RequireID(ctx, s.authz, authz.Group, id, authz.Update, actor); err != nil {
		return Group{}, err
	}
	in, err := normalize(in)
	if err != nil {
		return Group{}, err
	}
	if in.Parent != nil && *in.Parent == id {
		return Group{}, shared.NewValidationError("parent", "cycle")
	}
	if err := s.rejectRoleGroup(ctx, id); err != nil {
		return Group{}, err
	}
	return s.repo.Update(ctx, id, in)
}

// Delete removes a group.
func (s *Service) Delete(ctx context.Context, actor, id int64) error {
	if err := authz.RequireDelete(ctx, s.authz, authz.Group, actor); err != nil {
		return err
	}
	if err := s.rejectRoleGroup(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Members lists a group's users.
func (s *Service) Members(ctx context.Context, actor, id int64) ([]Member, error) {
	if err := authz.RequireID(ctx, s.authz, authz.Group, id, authz.Read, actor); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Members(ctx, id)
}

// AddUsers adds users to a group.
func (s *Service) AddUsers(ctx context.Context, actor, id int64, userIDs []int64) error {
	if err := s.prepareMembers(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.AddUsers(ctx, id, userIDs)
}

// ReplaceUsers makes userIDs the exact member set of the group.
func (s *Service) ReplaceUsers(ctx context.Context, actor, id int64, userIDs []int64) error {
	if err := s.prepareMembers(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.ReplaceUsers(ctx, id, userIDs)
}

// RemoveUsers removes users from a group.
func (s *Service) RemoveUsers(ctx context.Context, actor, id int64, userIDs []int64) error {
	if err := s.prepareMembers(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.RemoveUsers(ctx, id, userIDs)
}

// GroupsOf lists the groups of userID.
func (s *Service) GroupsOf(ctx context.Context, actor, userID int64) ([]Group, error) {
	if actor != userID {
		if err := authz.RequireID(ctx, s.authz, authz.User, userID, authz.Read, actor); err != nil {
			return nil, err
		}
	}
	return s.repo.ListForUser(ctx, userID)
}

// JoinGroups adds userID to groupIDs.
func (s *Service) JoinGroups(ctx context.Context, actor, userID int64, groupIDs []int64) error {
	if err := s.requireUserUpdate(ctx, actor, userID); err != nil {
		return err
	}
	return s.repo.AddGroupsToUser(ctx, userID, groupIDs)
}

// ReplaceGroups makes groupIDs the exact non-role group set of userID.
func (s *Service) ReplaceGroups(ctx context.Context, actor, userID int64, groupIDs []int64) error {
	if err := s.requireUserUpdate(ctx, actor, userID); err != nil {
		return err
	}
	return s.repo.ReplaceGroupsOfUser(ctx, userID, groupIDs)
}

// LeaveGroups removes userID from groupIDs.
func (s *Service) LeaveGroups(ctx context.Context, actor, userID int64, groupIDs []int64) error {
	if err := s.requireUserUpdate(ctx, actor, userID); err != nil {
		return err
	}
	return s.repo.RemoveGroupsFromUser(ctx, userID, groupIDs)
}

// Editing a user's groups needs Update on that user and on the Group type.
func (s *Service) requireUserUpdate(ctx context.Context, actor, userID int64) error {
	if err := authz.RequireID(ctx, s.authz, authz.User, userID, authz.Update, actor); err != nil {
		return err
	}
	return authz.RequireAll(ctx, s.authz, authz.Group, authz.Update, actor)
}

func (s *Service) prepareMembers(ctx context.Context, actor, id int64) error {
	if err := authz.RequireID(ctx, s.authz, authz.Group, id, authz.Update, actor); err != nil {
		return err
	}
	return s.rejectRoleGroup(ctx, id)
}

func (s *Service) rejectRoleGroup(ctx context.Context, id int64) error {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if g.Kind == KindRole {
		return shared.NewValidationError("kind", "managedByRole")
	}
	return nil
}

func normalize(in Input) (Input, error) {
	in.Name = shared.NormalizeName(in.Name)
	in.Shortname = shared.NormalizeName(in.Shortname)
	verr := &shared.ValidationError{}
	if in.Name == "" {
		verr.Add("name", "required")
	}
	switch {
	case in.Kind == KindRole:
		verr.Add("kind", "managedByRole")
	case !in.Kind.Valid():
		verr.Add("kind", "invalid")
	}
	return in, verr.OrNil()
}
