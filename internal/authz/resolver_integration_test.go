//go:build integration

package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/roles"
	"github.com/noodle-soup/noodle/testing/pgtest"
)

func TestResolverAgainstPostgres(t *testing.T) {
	pool := pgtest.New(t)
	ctx := context.Background()
	resolver := authz.NewResolver(pool)
	grants := authz.NewGrantStore(pool)
	roleRepo := roles.NewRepository(pool)

	admin := pgtest.User(t, pool, "admin@example.org")
	viewer := pgtest.User(t, pool, "viewer@example.org")
	nobody := pgtest.User(t, pool, "nobody@example.org")

	var course42 int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO course (name) VALUES ('Biology') RETURNING id`).Scan(&course42))

	role, err := roleRepo.Create(ctx, roles.Input{
		Name:        "admin",
		Permissions: []roles.Permission{{Subject: authz.Course, Ops: authz.All}},
	})
	require.NoError(t, err)
	require.NoError(t, roleRepo.WithMembership(ctx, func(m *roles.Membership) error {
		return m.AssignRoles(ctx, admin, []int64{role.ID})
	}))
	require.NoError(t, grants.Grant(ctx, authz.Course, authz.Grant{
		Subject:    authz.UserSubject(viewer),
		ResourceID: course42,
		Ops:        authz.Read,
	}))

	t.Run("role wide grant covers every instance", func(t *testing.T) {
		ok, err := resolver.CanCreate(ctx, authz.Course, admin)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = resolver.HasID(ctx, authz.Course, int64(999), authz.Read, admin)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = resolver.HasAll(ctx, authz.Course, authz.Delete, admin)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("instance grant stays scoped", func(t *testing.T) {
		ok, err := resolver.HasID(ctx, authz.Course, course42, authz.Read, viewer)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = resolver.HasID(ctx, authz.Course, course42+1, authz.Read, viewer)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = resolver.HasID(ctx, authz.Course, course42, authz.Update, viewer)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = resolver.CanCreate(ctx, authz.Course, viewer)
		require.NoError(t, err)
		assert.False(t, ok)

		ids, err := authz.PermittedIDs[int64](ctx, resolver, authz.Course, authz.Read, viewer)
		require.NoError(t, err)
		assert.Equal(t, []int64{course42}, ids)
	})

	t.Run("no grants fails closed", func(t *testing.T) {
		for _, rt := range authz.ResourceTypes() {
			ok, err := resolver.HasAll(ctx, rt, authz.All, nobody)
			require.NoError(t, err)
			assert.False(t, ok, rt.String())
		}
		ok, err := resolver.HasID(ctx, authz.Course, course42, authz.All, nobody)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRoleMembershipAgainstPostgres(t *testing.T) {
	pool := pgtest.New(t)
	ctx := context.Background()
	roleRepo := roles.NewRepository(pool)
	user := pgtest.User(t, pool, "member@example.org")

	role, err := roleRepo.Create(ctx, roles.Input{Name: "tutor"})
	require.NoError(t, err)

	count := func(query string) int {
		var n int
		require.NoError(t, pool.QueryRow(ctx, query, user).Scan(&n))
		return n
	}
	groupRows := `SELECT count(*) FROM user_in_group WHERE user_id = $1`
	roleRows := `SELECT count(*) FROM user_has_role WHERE user_id = $1`

	assign := func(m *roles.Membership) error { return m.AssignRoles(ctx, user, []int64{role.ID}) }
	require.NoError(t, roleRepo.WithMembership(ctx, assign))
	require.NoError(t, roleRepo.WithMembership(ctx, assign))
	assert.Equal(t, 1, count(groupRows))
	assert.Equal(t, 1, count(roleRows))

	aborted := assert.AnError
	err = roleRepo.WithMembership(ctx, func(m *roles.Membership) error {
		if err := m.UnassignRoles(ctx, user, []int64{role.ID}); err != nil {
			return err
		}
		return aborted
	})
	require.ErrorIs(t, err, aborted)
	assert.Equal(t, 1, count(groupRows))
	assert.Equal(t, 1, count(roleRows))

	require.NoError(t, roleRepo.WithMembership(ctx, func(m *roles.Membership) error {
		return m.UnassignRoles(ctx, user, []int64{role.ID})
	}))
	assert.Zero(t, count(groupRows))
	assert.Zero(t, count(roleRows))
}
