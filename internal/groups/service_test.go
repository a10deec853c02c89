package groups

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/authz/authztest"
	"github.com/noodle-soup/noodle/internal/shared"
)

type mockRepository struct {
	groups  map[int64]Group
	members map[int64][]int64
	listed  []int64
}

func newMockRepository(groups ...Group) *mockRepository {
	m := &mockRepository{groups: map[int64]Group{}, members: map[int64][]int64{}}
	for _, g := range groups {
		m.groups[g.ID] = g
	}
	return m
}

func (m *mockRepository) List(context.Context) ([]Group, error) {
	out := []Group{}
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out, nil
}

func (m *mockRepository) ListByIDs(_ context.Context, ids []int64) ([]Group, error) {
	m.listed = ids
	out := []Group{}
	for _, id := range ids {
		if g, ok := m.groups[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockRepository) ListForUser(context.Context, int64) ([]Group, error) { return []Group{}, nil }

func (m *mockRepository) Get(_ context.Context, id int64) (Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return Group{}, shared.ErrNotFound
	}
	return g, nil
}

func (m *mockRepository) Create(_ context.Context, in Input) (Group, error) {
	g := Group{ID: int64(len(m.groups) + 1), Name: in.Name, Kind: in.Kind, Parent: in.Parent}
	m.groups[g.ID] = g
	return g, nil
}

func (m *mockRepository) Update(_ context.Context, id int64, in Input) (Group, error) {
	g := Group{ID: id, Name: in.Name, Kind: in.Kind, Parent: in.Parent}
	m.groups[id] = g
	return g, nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	delete(m.groups, id)
	return nil
}

func (m *mockRepository) Members(context.Context, int64) ([]Member, error) { return []Member{}, nil }

func (m *mockRepository) AddUsers(_ context.Context, id int64, userIDs []int64) error {
	m.members[id] = append(m.members[id], userIDs...)
	return nil
}

func (m *mockRepository) ReplaceUsers(_ context.Context, id int64, userIDs []int64) error {
	m.members[id] = append([]int64(nil), userIDs...)
	return nil
}

func (m *mockRepository) RemoveUsers(context.Context, int64, []int64) error { return nil }

func (m *mockRepository) AddGroupsToUser(context.Context, int64, []int64) error { return nil }

func (m *mockRepository) ReplaceGroupsOfUser(context.Context, int64, []int64) error { return nil }

func (m *mockRepository) RemoveGroupsFromUser(context.Context, int64, []int64) error { return nil }

func TestListFiltersByPermittedIDs(t *testing.T) {
	repo := newMockRepository(
		Group{ID: 1, Name: "A", Kind: KindLearning},
		Group{ID: 2, Name: "B", Kind: KindLearning},
	)
	svc := NewService(repo, authztest.New().AllowID(5, authz.Group, int64(2), authz.Read))

	groups, err := svc.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "B", groups[0].Name)
	assert.Equal(t, []int64{2}, repo.listed)
}

func TestListWithoutGrantsIsEmpty(t *testing.T) {
	repo := newMockRepository(Group{ID: 1, Name: "A", Kind: KindLearning})
	svc := NewService(repo, authztest.New())

	groups, err := svc.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.Nil(t, repo.listed)
}

func TestListTypeWideReturnsAll(t *testing.T) {
	repo := newMockRepository(Group{ID: 1, Kind: KindLearning}, Group{ID: 2, Kind: KindContact})
	svc := NewService(repo, authztest.New().Allow(5, authz.Group, authz.Read))

	groups, err := svc.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestCreateRejectsRoleKind(t *testing.T) {
	svc := NewService(newMockRepository(), authztest.New().Allow(1, authz.Group, authz.Create))

	_, err := svc.Create(context.Background(), 1, Input{Name: "Admins", Kind: KindRole})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "managedByRole", ve.Fields["kind"])
}

func TestRoleGroupMembershipIsManagedByRoles(t *testing.T) {
	repo := newMockRepository(Group{ID: 3, Name: "admin", Kind: KindRole})
	svc := NewService(repo, authztest.New().Allow(1, authz.Group, authz.All))

	var ve *shared.ValidationError
	require.ErrorAs(t, svc.AddUsers(context.Background(), 1, 3, []int64{9}), &ve)
	require.ErrorAs(t, svc.Delete(context.Background(), 1, 3), &ve)
	assert.Empty(t, repo.members[3])
	assert.Contains(t, repo.groups, int64(3))
}

func TestUpdateRejectsSelfParent(t *testing.T) {
	repo := newMockRepository(Group{ID: 3, Name: "A", Kind: KindLearning})
	svc := NewService(repo, authztest.New().Allow(1, authz.Group, authz.Update))

	_, err := svc.Update(context.Background(), 1, 3, Input{Name: "A", Kind: KindLearning, Parent: ptr(3)})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "cycle", ve.Fields["parent"])
}

func TestReplaceUsersNeedsUpdate(t *testing.T) {
	repo := newMockRepository(Group{ID: 3, Name: "A", Kind: KindLearning})
	checker := authztest.New().AllowID(1, authz.Group, int64(3), authz.Read)
	svc := NewService(repo, checker)

	require.ErrorIs(t, svc.ReplaceUsers(context.Background(), 1, 3, []int64{7}), shared.ErrAccessDenied)

	checker.AllowID(1, authz.Group, int64(3), authz.Update)
	require.NoError(t, svc.ReplaceUsers(context.Background(), 1, 3, []int64{7, 8}))
	assert.Equal(t, []int64{7, 8}, repo.members[3])
}
