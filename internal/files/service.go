package files

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/storage"
	"github.com/noodle-soup/noodle/internal/shared"
)

// RepositoryPort defines data access methods for file metadata.
type RepositoryPort interface {
	List(ctx context.Context) ([]File, error)
	ListByUIDs(ctx context.Context, uids []uuid.UUID) ([]File, error)
	Get(ctx context.Context, uid uuid.UUID) (File, error)
	Create(ctx context.Context, creator int64, f File) (File, error)
	Replace(ctx context.Context, f File) error
	Delete(ctx context.Context, uid uuid.UUID) (string, error)
}

// Authorizer is the resolver surface the file service needs.
type Authorizer interface {
	authz.Checker
	authz.IDLister
}

// Service coordinates metadata, content and permissions of files.
type Service struct {
	repo   RepositoryPort
	store  storage.Store
	authz  Authorizer
	logger *slog.Logger
}

// NewService builds a Service.
func NewService(repo RepositoryPort, store storage.Store, authorizer Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, store: store, authz: authorizer, logger: logger}
}

// List returns the files the actor may read.
func (s *Service) List(ctx context.Context, actor int64) ([]File, error) {
	all, err := s.authz.HasAll(ctx, authz.File, authz.Read, actor)
	if err != nil {
		return nil, err
	}
	if all {
		return s.repo.List(ctx)
	}
	uids, err := s.authz.PermittedUUIDs(ctx, authz.File, authz.Read, actor)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return []File{}, nil
	}
	return s.repo.ListByUIDs(ctx, uids)
}

// Open returns the metadata and content of a file. The caller closes the
// reader.
func (s *Service) Open(ctx context.Context, actor int64, uid uuid.UUID) (File, io.ReadCloser, error) {
	if err := authz.RequireID(ctx, s.authz, authz.File, uid, authz.Read, actor); err != nil {
		return File{}, nil, err
	}
	f, err := s.repo.Get(ctx, uid)
	if err != nil {
		return File{}, nil, err
	}
	rc, err := s.store.Open(ctx, uid.String())
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("file content missing", slog.String("uid", uid.String()))
		return File{}, nil, shared.ErrNotFound
	}
	if err != nil {
		return File{}, nil, shared.NewStoreError("open file", err)
	}
	return f, rc, nil
}

// Upload stores new content and records it as a file owned by actor.
func (s *Service) Upload(ctx context.Context, actor int64, up Upload, content io.Reader) (File, error) {
	if err := authz.RequireCreate(ctx, s.authz, authz.File, actor); err != nil {
		return File{}, err
	}
	f, err := describe(up)
	if err != nil {
		return File{}, err
	}
	f.UID = uuid.New()
	key := f.UID.String()
	f.Location = storage.Location(key)
	if f.Size, err = s.store.Put(ctx, key, content, f.MimeType); err != nil {
		return File{}, shared.NewStoreError("store file", err)
	}
	created, err := s.repo.Create(ctx, actor, f)
	if err != nil {
		s.discard(ctx, key)
		return File{}, err
	}
	return created, nil
}

// Replace overwrites the content of an existing file.
func (s *Service) Replace(ctx context.Context, actor int64, uid uuid.UUID, up Upload, content io.Reader) (File, error) {
	if err := authz.RequireID(ctx, s.authz, authz.File, uid, authz.Update, actor); err != nil {
		return File{}, err
	}
	current, err := s.repo.Get(ctx, uid)
	if err != nil {
		return File{}, err
	}
	next, err := describe(up)
	if err != nil {
		return File{}, err
	}
	current.Filename, current.MimeType = next.Filename, next.MimeType
	if current.Size, err = s.store.Put(ctx, uid.String(), content, current.MimeType); err != nil {
		return File{}, shared.NewStoreError("store file", err)
	}
	if err := s.repo.Replace(ctx, current); err != nil {
		return File{}, err
	}
	return current, nil
}

// Delete removes a file. Content that cannot be removed is only logged; the
// metadata row is authoritative.
func (s *Service) Delete(ctx context.Context, actor int64, uid uuid.UUID) error {
	if err := authz.RequireDelete(ctx, s.authz, authz.File, actor); err != nil {
		return err
	}
	if _, err := s.repo.Delete(ctx, uid); err != nil {
		return err
	}
	s.discard(ctx, uid.String())
	return nil
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("discard file content", slog.String("key", key), slog.Any("error", err))
	}
}

func describe(up Upload) (File, error) {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(up.Filename, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		return File{}, shared.NewValidationError("filename", "required")
	}
	mime := DetectMime(name, up.ContentType)
	if mime == "" {
		return File{}, shared.NewValidationError("file", "unsupportedType")
	}
	return File{Filename: name, MimeType: mime}, nil
}
