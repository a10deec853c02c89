package users

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
	users  map[int64]User
	hashes map[int64]string
}

func newMockRepository(users ...User) *mockRepository {
	m := &mockRepository{users: map[int64]User{}, hashes: map[int64]string{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockRepository) Create(_ context.Context, reg Registration, hash string) (User, error) {
	for _, u := range m.users {
		if u.Email == reg.Email {
			return User{}, shared.ErrConflict
		}
	}
	u := User{ID: int64(len(m.users) + 1), Firstname: reg.Firstname, Lastname: reg.Lastname, Email: reg.Email}
	m.users[u.ID] = u
	m.hashes[u.ID] = hash
	return u, nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *mockRepository) UpdateProfile(_ context.Context, id int64, p Profile) (User, error) {
	for _, u := range m.users {
		if u.Email == p.Email && u.ID != id {
			return User{}, shared.ErrConflict
		}
	}
	u := User{ID: id, Firstname: p.Firstname, Lastname: p.Lastname, Email: p.Email}
	m.users[id] = u
	return u, nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type fakeHasher struct {
	calls int
	err   error
}

func (f *fakeHasher) Hash(_ context.Context, password string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "hashed:" + password, nil
}

func TestRegisterValidatesBeforeHashing(t *testing.T) {
	hasher := &fakeHasher{}
	svc := NewService(newMockRepository(), authztest.New().Allow(1, authz.User, authz.Create), hasher)

	_, err := svc.Register(context.Background(), 1, Registration{Firstname: "Ada", Lastname: "L", Email: "ada", Password: "short"})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, EmailErrors{InvalidFormat: true}, ve.Fields["email"])
	assert.IsType(t, PasswordErrors{}, ve.Fields["password"])
	assert.Zero(t, hasher.calls)
}

func TestRegisterStoresHash(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, authztest.New().Allow(1, authz.User, authz.Create), &fakeHasher{})

	u, err := svc.Register(context.Background(), 1, Registration{Firstname: "Ada", Lastname: "L", Email: " Ada@Example.org ", Password: "Tr0ub4dor&3"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", u.Email)
	assert.Equal(t, "hashed:Tr0ub4dor&3", repo.hashes[u.ID])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockRepository(User{ID: 1, Email: "ada@example.org"})
	svc := NewService(repo, authztest.New().Allow(1, authz.User, authz.Create), &fakeHasher{})

	_, err := svc.Register(context.Background(), 1, Registration{Firstname: "Ada", Lastname: "L", Email: "ada@example.org", Password: "Tr0ub4dor&3"})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestRegisterHashDispatchFailure(t *testing.T) {
	hasher := &fakeHasher{err: &shared.TaskDispatchError{Err: context.Canceled}}
	svc := NewService(newMockRepository(), authztest.New().Allow(1, authz.User, authz.Create), hasher)

	_, err := svc.Register(context.Background(), 1, Registration{Firstname: "Ada", Lastname: "L", Email: "ada@example.org", Password: "Tr0ub4dor&3"})
	var de *shared.TaskDispatchError
	require.ErrorAs(t, err, &de)
}

func TestSelfAccessNeedsNoGrant(t *testing.T) {
	repo := newMockRepository(User{ID: 4, Email: "ada@example.org"}, User{ID: 5, Email: "bob@example.org"})
	svc := NewService(repo, authztest.New(), &fakeHasher{})

	_, err := svc.Get(context.Background(), 4, 4)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 4, 5)
	require.ErrorIs(t, err, shared.ErrAccessDenied)
}

func TestUpdateProfileConflict(t *testing.T) {
	repo := newMockRepository(User{ID: 4, Email: "ada@example.org"}, User{ID: 5, Email: "bob@example.org"})
	svc := NewService(repo, authztest.New(), &fakeHasher{})

	_, err := svc.UpdateProfile(context.Background(), 4, 4, Profile{Firstname: "Ada", Lastname: "L", Email: "BOB@example.org"})
	require.ErrorIs(t, err, shared.ErrConflict)

	u, err := svc.UpdateProfile(context.Background(), 4, 4, Profile{Firstname: "Ada", Lastname: "L", Email: "ada@example.org"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Firstname)
}
