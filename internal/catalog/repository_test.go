package catalog

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/db/dbtest"
	"github.com/noodle-soup/noodle/internal/shared"
)

func ptr(v int64) *int64 { return &v }

func TestCreateGrantsCreator(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery("INSERT INTO \"course\"").WithArgs("Biology").WillReturnRows(dbtest.Row(int64(9)))
	fake.ExpectExec("INSERT INTO course_permissions").
		WithArgs((*int64)(nil), ptr(4), int64(9), int32(authz.Owner)).
		WillReturnResult("INSERT 0 1")
	fake.ExpectCommit()

	e, err := NewRepository(fake, authz.Course).Create(context.Background(), 4, "Biology")
	require.NoError(t, err)
	assert.Equal(t, Entry{ID: 9, Name: "Biology"}, e)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestCreateDuplicateNameIsConflict(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectBegin()
	fake.ExpectQuery("INSERT INTO \"template\"").WillReturnError(&pgconn.PgError{Code: "23505"})
	fake.ExpectRollback()

	_, err := NewRepository(fake, authz.Template).Create(context.Background(), 4, "Blank")
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectExec("UPDATE \"course\" SET name").WithArgs(int64(9), "Physics").WillReturnResult("UPDATE 0")

	_, err := NewRepository(fake, authz.Course).Update(context.Background(), 9, "Physics")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListByIDs(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectQuery("WHERE id = ANY($1)").
		WithArgs([]int64{2, 5}, MaxList).
		WillReturnRows(dbtest.Row(int64(2), "Algebra"), dbtest.Row(int64(5), "Geometry"))

	entries, err := NewRepository(fake, authz.Course).ListByIDs(context.Background(), []int64{2, 5})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{ID: 2, Name: "Algebra"}, {ID: 5, Name: "Geometry"}}, entries)
}

func TestNewRepositoryRejectsOtherTypes(t *testing.T) {
	assert.Panics(t, func() { NewRepository(dbtest.New(), authz.Role) })
}
