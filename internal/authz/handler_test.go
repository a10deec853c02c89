package authz_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/db/dbtest"
	"github.com/noodle-soup/noodle/internal/shared"
)

func newPermissionsRouter(fake *dbtest.DB) http.Handler {
	logger := slog.New(slog.DiscardHandler)
	h := authz.NewHandler(logger, authz.NewResolver(fake), authz.NewGrantStore(fake))
	r := chi.NewRouter()
	r.Route("/permissions", h.MountRoutes)
	return r
}

func asUser(req *http.Request, id int64) *http.Request {
	return req.WithContext(shared.ContextWithUserID(req.Context(), id))
}

func TestGrantEndpointRequiresIdentity(t *testing.T) {
	fake := dbtest.New()
	req := httptest.NewRequest(http.MethodPost, "/permissions/course", strings.NewReader(`{"userId":9,"ops":2}`))
	rr := httptest.NewRecorder()
	newPermissionsRouter(fake).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestGrantEndpointDenied(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectQuery("FROM role_permissions p").
		WithArgs(int64(1), int32(authz.Update)).
		WillReturnRows(dbtest.Row(false))

	req := asUser(httptest.NewRequest(http.MethodPost, "/permissions/course", strings.NewReader(`{"userId":9,"ops":2}`)), 1)
	rr := httptest.NewRecorder()
	newPermissionsRouter(fake).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestGrantEndpointCheckFailureIs500(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectQuery("FROM role_permissions p").WillReturnError(errors.New("conn reset"))

	req := asUser(httptest.NewRequest(http.MethodPost, "/permissions/course", strings.NewReader(`{"userId":9,"ops":2}`)), 1)
	rr := httptest.NewRecorder()
	newPermissionsRouter(fake).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGrantEndpointCreatesInstanceGrant(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectQuery("FROM role_permissions p").WillReturnRows(dbtest.Row(true))
	userID := int64(9)
	fake.ExpectExec("INSERT INTO course_permissions").
		WithArgs((*int64)(nil), &userID, int64(42), int32(authz.Read)).
		WillReturnResult("INSERT 0 1")

	body := `{"userId":9,"resourceId":42,"ops":2}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/permissions/course", strings.NewReader(body)), 1)
	rr := httptest.NewRecorder()
	newPermissionsRouter(fake).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"userId":9,"resourceId":42,"ops":2}`, rr.Body.String())
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestGrantEndpointValidatesSubject(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectQuery("FROM role_permissions p").WillReturnRows(dbtest.Row(true))

	body := `{"userId":9,"roleId":3,"ops":2}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/permissions/course", strings.NewReader(body)), 1)
	rr := httptest.NewRecorder()
	newPermissionsRouter(fake).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "exactlyOneOfRoleOrUser")
	assert.NoError(t, fake.ExpectationsWereMet())
}

func TestGrantEndpointUnknownType(t *testing.T) {
	fake := dbtest.New()
	req := asUser(httptest.NewRequest(http.MethodGet, "/permissions/payroll", nil), 1)
	rr := httptest.NewRecorder()
	newPermissionsRouter(fake).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRevokeEndpoint(t *testing.T) {
	fake := dbtest.New()
	fake.ExpectQuery("FROM role_permissions p").WillReturnRows(dbtest.Row(true))
	fake.ExpectExec("DELETE FROM template_permissions").WillReturnResult("DELETE 1")

	req := asUser(httptest.NewRequest(http.MethodDelete, "/permissions/template", strings.NewReader(`{"roleId":3}`)), 1)
	rr := httptest.NewRecorder()
	newPermissionsRouter(fake).ServeHTTP(rr, req.WithContext(shared.ContextWithUserID(context.Background(), 1)))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.NoError(t, fake.ExpectationsWereMet())
}
