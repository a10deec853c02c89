package authz_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/db/dbtest"
	"github.com/noodle-soup/noodle/internal/shared"
)

func ptr(v int64) *int64 { return &v }

func TestGrantRejectsAmbiguousSubject(t *testing.T) {
	store := authz.NewGrantStore(dbtest.New())
	ctx := context.Background()

	both := authz.Grant{Subject: authz.Subject{RoleID: ptr(1), UserID: ptr(2)}, Ops: authz.Read}
	var ve *shared.ValidationError
	require.ErrorAs(t, store.Grant(ctx, authz.Course, both), &ve)
	assert.Contains(t, ve.Fields, "subject")

	neither := authz.Grant{Ops: authz.Read}
	require.ErrorAs(t, store.Grant(ctx, authz.Course, neither), &ve)
}

func TestGrantRejectsEmptyOps(t *testing.T) {
	store := authz.NewGrantStore(dbtest.New())
	g := authz.Grant{Subject: authz.UserSubject(1)}

	var ve *shared.ValidationError
	require.ErrorAs(t, store.Grant(context.Background(), authz.Course, g), &ve)
	assert.Contains(t, ve.Fields, "ops")
}

func TestGrantRejectsMismatchedResourceID(t *testing.T) {
	store := authz.NewGrantStore(dbtest.New())
	g := authz.Grant{Subject: authz.UserSubject(1), ResourceID: int64(3), Ops: authz.Read}

	var ve *shared.ValidationError
	require.ErrorAs(t, store.Grant(context.Background(), authz.File, g), &ve)
}

func TestGrantInsertsTypeWideRow(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectExec("INSERT INTO course_permissions").
		WithArgs((*int64)(nil), ptr(9), nil, int32(authz.All)).
		WillReturnResult("INSERT 0 1")

	store := authz.NewGrantStore(fake)
	err := store.Grant(context.Background(), authz.Course, authz.Grant{Subject: authz.UserSubject(9), Ops: authz.All})
	require.NoError(t, err)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestRevokeNothingMatched(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectExec("DELETE FROM template_permissions").WillReturnResult("DELETE 0")

	store := authz.NewGrantStore(fake)
	err := store.Revoke(context.Background(), authz.Template, authz.Grant{Subject: authz.RoleSubject(2), ResourceID: int64(5)})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListForResourceScansNullableColumns(t *testing.T) {
	uid := uuid.New()
	fake := dbtest.New()
	fake.ExpectQuery("FROM file_permissions").
		WithArgs(uid).
		WillReturnRows(
			dbtest.Row(int64(4), nil, uid, int32(2)),
			dbtest.Row(nil, int64(8), uid, int32(15)),
		)

	store := authz.NewGrantStore(fake)
	grants, err := store.ListForResource(context.Background(), authz.File, uid)
	require.NoError(t, err)
	require.Len(t, grants, 2)

	assert.Equal(t, int64(4), *grants[0].RoleID)
	assert.Nil(t, grants[0].UserID)
	assert.Equal(t, uid, grants[0].ResourceID)
	assert.Equal(t, authz.Read, grants[0].Ops)
	assert.Equal(t, int64(8), *grants[1].UserID)
	assert.Equal(t, authz.All, grants[1].Ops)
}

func TestListForSubjectGroupsByType(t *testing.T) {
	fake := dbtest.New()
	for _, rt := range authz.ResourceTypes() {
		e := fake.ExpectQuery("FROM " + rt.PermissionTable())
		if rt == authz.Course {
			e.WillReturnRows(dbtest.Row(int64(1), nil, nil, int32(15)))
		}
	}

	store := authz.NewGrantStore(fake)
	byType, err := store.ListForSubject(context.Background(), authz.RoleSubject(1))
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Nil(t, byType[authz.Course][0].ResourceID)
	assert.NoError(t, fake.ExpectationsWereMet())
}
