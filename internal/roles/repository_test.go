package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/db/dbtest"
	"github.com/noodle-soup/noodle/internal/shared"
)

func ptr(v int64) *int64 { return &v }

func TestCreateMaterialisesGrants(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery(`INSERT INTO "group"`).WithArgs("Tutors").WillReturnRows(dbtest.Row(int64(11)))
	fake.ExpectQuery("INSERT INTO role").WithArgs("Tutors", dbtest.AnyArg{}, int64(11)).WillReturnRows(dbtest.Row(int64(3)))
	fake.ExpectExec("INSERT INTO course_permissions").
		WithArgs(ptr(3), (*int64)(nil), nil, int32(authz.All)).
		WillReturnResult("INSERT 0 1")
	fake.ExpectExec("INSERT INTO template_permissions").
		WithArgs(ptr(3), (*int64)(nil), int64(5), int32(authz.Read)).
		WillReturnResult("INSERT 0 1")
	fake.ExpectExec("INSERT INTO template_permissions").
		WithArgs(ptr(3), (*int64)(nil), int64(6), int32(authz.Read)).
		WillReturnResult("INSERT 0 1")
	fake.ExpectCommit()

	repo := NewRepository(fake)
	role, err := repo.Create(context.Background(), Input{
		Name: "Tutors",
		Permissions: []Permission{
			{Subject: authz.Course, Ops: authz.All},
			{Subject: authz.Template, Ops: authz.Read, IDs: IDList{"5", "6"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), role.ID)
	assert.Equal(t, int64(11), role.GroupID)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestCreateWithUnknownInstanceIsValidationError(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery(`INSERT INTO "group"`).WillReturnRows(dbtest.Row(int64(11)))
	fake.ExpectQuery("INSERT INTO role").WillReturnRows(dbtest.Row(int64(3)))
	fake.ExpectExec("INSERT INTO course_permissions").
		WithArgs(ptr(3), (*int64)(nil), int64(404), int32(authz.Read)).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	fake.ExpectRollback()

	_, err := NewRepository(fake).Create(context.Background(), Input{
		Name:        "Tutors",
		Permissions: []Permission{{Subject: authz.Course, Ops: authz.Read, IDs: IDList{"404"}}},
	})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "unknownId", ve.Fields["permissions"])
	assert.NotErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestCreateConflictRollsBackGroup(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery(`INSERT INTO "group"`).WillReturnRows(dbtest.Row(int64(11)))
	fake.ExpectQuery("INSERT INTO role").WillReturnError(&pgconn.PgError{Code: "23505"})
	fake.ExpectRollback()

	repo := NewRepository(fake)
	_, err := repo.Create(context.Background(), Input{Name: "Tutors"})
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestCreateStoreFailureIsNotConflict(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery(`INSERT INTO "group"`).WillReturnError(errors.New("connection reset"))
	fake.ExpectRollback()

	_, err := NewRepository(fake).Create(context.Background(), Input{Name: "Tutors"})
	var se *shared.StoreError
	require.ErrorAs(t, err, &se)
	assert.NotErrorIs(t, err, shared.ErrConflict)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestUpdateReplacesGrants(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery("UPDATE role SET").WithArgs(int64(3), "Mentors", dbtest.AnyArg{}).WillReturnRows(dbtest.Row(int64(11)))
	fake.ExpectExec(`UPDATE "group" SET name`).WithArgs(int64(11), "Mentors").WillReturnResult("UPDATE 1")
	for _, rt := range authz.ResourceTypes() {
		fake.ExpectExec("DELETE FROM " + rt.PermissionTable()).WithArgs(int64(3)).WillReturnResult("DELETE 0")
	}
	fake.ExpectExec("INSERT INTO group_permissions").
		WithArgs(ptr(3), (*int64)(nil), nil, int32(authz.Read)).
		WillReturnResult("INSERT 0 1")
	fake.ExpectCommit()

	role, err := NewRepository(fake).Update(context.Background(), 3, Input{
		Name:        "Mentors",
		Permissions: []Permission{{Subject: authz.Group, Ops: authz.Read}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), role.GroupID)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestUpdateMissingRole(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery("UPDATE role SET").WillReturnRows()
	fake.ExpectRollback()

	_, err := NewRepository(fake).Update(context.Background(), 3, Input{Name: "x"})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestDeleteRemovesGroup(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery("DELETE FROM role").WithArgs(int64(3)).WillReturnRows(dbtest.Row(int64(11)))
	fake.ExpectExec(`DELETE FROM "group"`).WithArgs(int64(11)).WillReturnResult("DELETE 1")
	fake.ExpectCommit()

	require.NoError(t, NewRepository(fake).Delete(context.Background(), 3))
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestGetDecodesPermissions(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectQuery("FROM role WHERE id").WithArgs(int64(3)).
		WillReturnRows(dbtest.Row(int64(3), "Tutors", int64(11), []byte(`[{"subject":"course","ops":2,"ids":["42"]}]`)))

	role, err := NewRepository(fake).Get(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, role.Permissions, 1)
	assert.Equal(t, authz.Course, role.Permissions[0].Subject)
	assert.Equal(t, authz.Read, role.Permissions[0].Ops)
	assert.Equal(t, IDList{"42"}, role.Permissions[0].IDs)
}

func TestGetMissing(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectQuery("FROM role WHERE id").WillReturnRows()

	_, err := NewRepository(fake).Get(context.Background(), 3)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignRolesWritesBothRelations(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectExec("INSERT INTO user_has_role").WithArgs(int64(7), []int64{1, 2}).WillReturnResult("INSERT 0 2")
	fake.ExpectExec("INSERT INTO user_in_group").WithArgs(int64(7), []int64{1, 2}).WillReturnResult("INSERT 0 2")
	fake.ExpectCommit()

	err := NewRepository(fake).WithMembership(context.Background(), func(m *Membership) error {
		return m.AssignRoles(context.Background(), 7, []int64{1, 2})
	})
	require.NoError(t, err)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestAssignRolesIsIdempotent(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectExec("ON CONFLICT DO NOTHING").WillReturnResult("INSERT 0 0")
	fake.ExpectExec("ON CONFLICT DO NOTHING").WillReturnResult("INSERT 0 0")
	fake.ExpectCommit()

	err := NewRepository(fake).WithMembership(context.Background(), func(m *Membership) error {
		return m.AssignRoles(context.Background(), 7, []int64{1})
	})
	require.NoError(t, err)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestUnassignRolesRollsBackWhenGroupDeleteFails(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectExec("DELETE FROM user_has_role").WithArgs(int64(7), []int64{1}).WillReturnResult("DELETE 1")
	fake.ExpectExec("DELETE FROM user_in_group").WillReturnError(errors.New("disk full"))
	fake.ExpectRollback()

	err := NewRepository(fake).WithMembership(context.Background(), func(m *Membership) error {
		return m.UnassignRoles(context.Background(), 7, []int64{1})
	})
	var se *shared.StoreError
	require.ErrorAs(t, err, &se)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestReplaceRolesLeavesOldGroupsFirst(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectExec("DELETE FROM user_in_group").WithArgs(int64(7)).WillReturnResult("DELETE 2")
	fake.ExpectExec("DELETE FROM user_has_role WHERE user_id = $1").WithArgs(int64(7)).WillReturnResult("DELETE 2")
	fake.ExpectExec("INSERT INTO user_has_role").WithArgs(int64(7), []int64{4}).WillReturnResult("INSERT 0 1")
	fake.ExpectExec("INSERT INTO user_in_group").WithArgs(int64(7), []int64{4}).WillReturnResult("INSERT 0 1")
	fake.ExpectCommit()

	err := NewRepository(fake).WithMembership(context.Background(), func(m *Membership) error {
		return m.ReplaceRoles(context.Background(), 7, []int64{4})
	})
	require.NoError(t, err)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestAddUsersUnknownRole(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery(`SELECT "group" FROM role`).WithArgs(int64(3)).WillReturnRows()
	fake.ExpectRollback()

	err := NewRepository(fake).WithMembership(context.Background(), func(m *Membership) error {
		return m.AddUsers(context.Background(), 3, []int64{7})
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestAddUsersUnknownUser(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery(`SELECT "group" FROM role`).WillReturnRows(dbtest.Row(int64(11)))
	fake.ExpectExec("INSERT INTO user_has_role").WithArgs([]int64{7, 8}, int64(3)).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	fake.ExpectRollback()

	err := NewRepository(fake).WithMembership(context.Background(), func(m *Membership) error {
		return m.AddUsers(context.Background(), 3, []int64{7, 8})
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestReplaceUsersClearsByRoleAndGroup(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery(`SELECT "group" FROM role`).WillReturnRows(dbtest.Row(int64(11)))
	fake.ExpectExec("DELETE FROM user_has_role WHERE role_id").WithArgs(int64(3)).WillReturnResult("DELETE 1")
	fake.ExpectExec("DELETE FROM user_in_group WHERE group_id").WithArgs(int64(11)).WillReturnResult("DELETE 1")
	fake.ExpectExec("INSERT INTO user_has_role").WithArgs([]int64{9}, int64(3)).WillReturnResult("INSERT 0 1")
	fake.ExpectExec("INSERT INTO user_in_group").WithArgs([]int64{9}, int64(11)).WillReturnResult("INSERT 0 1")
	fake.ExpectCommit()

	err := NewRepository(fake).WithMembership(context.Background(), func(m *Membership) error {
		return m.ReplaceUsers(context.Background(), 3, []int64{9})
	})
	require.NoError(t, err)
	assert.NoError(t, fake.ExpectationsWereMet())
}
