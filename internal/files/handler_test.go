package files

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/authz/authztest"
	"github.com/noodle-soup/noodle/internal/shared"
)

func newFilesRouter(t *testing.T, repo *mockRepository, checker *authztest.Checker, maxUpload int64) http.Handler {
	svc, _ := newTestService(t, repo, checker)
	h := NewHandler(slog.New(slog.DiscardHandler), svc, maxUpload)
	r := chi.NewRouter()
	r.Route("/files", h.MountCollection)
	r.Route("/file/{uid}", h.MountItem)
	return r
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(formField, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func asUser(req *http.Request, id int64) *http.Request {
	return req.WithContext(shared.ContextWithUserID(req.Context(), id))
}

func TestUploadThenDownload(t *testing.T) {
	repo := newMockRepository()
	router := newFilesRouter(t, repo, authztest.New().Allow(7, authz.File, authz.Create|authz.Read), 0)

	body, ct := multipartBody(t, "hello.txt", "hello world")
	req := asUser(httptest.NewRequest(http.MethodPost, "/files", body), 7)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created File
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "hello.txt", created.Filename)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodGet, "/file/"+created.UID.String(), nil), 7))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
	assert.Equal(t, "hello world", rr.Body.String())
}

func TestUploadTooLarge(t *testing.T) {
	router := newFilesRouter(t, newMockRepository(), authztest.New().Allow(7, authz.File, authz.Create), 64)

	body, ct := multipartBody(t, "big.txt", string(bytes.Repeat([]byte("x"), 4096)))
	req := asUser(httptest.NewRequest(http.MethodPost, "/files", body), 7)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDownloadInvalidUID(t *testing.T) {
	router := newFilesRouter(t, newMockRepository(), authztest.New(), 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodGet, "/file/not-a-uuid", nil), 7))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
