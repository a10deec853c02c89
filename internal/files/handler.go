package files

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noodle-soup/noodle/internal/platform/httpx"
	"github.com/noodle-soup/noodle/internal/shared"
)

// DefaultMaxUpload caps upload bodies when no limit is configured.
const DefaultMaxUpload = 32 << 20

const formField = "file"

// Handler exposes files and the site design over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	maxUpload int64
}

// NewHandler builds Handler instance. maxUpload <= 0 selects DefaultMaxUpload.
func NewHandler(logger *slog.Logger, service *Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Handler{logger: logger, service: service, maxUpload: maxUpload}
}

// MountCollection registers /files.
func (h *Handler) MountCollection(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.upload)
}

// MountItem registers /file/{uid}.
func (h *Handler) MountItem(r chi.Router) {
	r.Get("/", h.download)
	r.Put("/", h.replace)
	r.Delete("/", h.delete)
}

// MountDesign registers /design.
func (h *Handler) MountDesign(r chi.Router) {
	r.Get("/", h.branding)
	r.Post("/", h.setBranding)
	r.Put("/", h.setBranding)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	files, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, files)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	up, content, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer content.Close()
	f, err := h.service.Upload(r.Context(), actor, up, content)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, f)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	actor, uid, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	f, content, err := h.service.Open(r.Context(), actor, uid)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer content.Close()
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": f.Filename}))
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		h.logger.Warn("stream file", slog.String("uid", uid.String()), slog.Any("error", err))
	}
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request) {
	actor, uid, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	up, content, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer content.Close()
	f, err := h.service.Replace(r.Context(), actor, uid, up, content)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, uid, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, uid); err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) branding(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Branding(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) setBranding(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	var b Branding
	if err := httpx.Bind(w, r, nil, &b); err != nil {
		h.fail(w, err)
		return
	}
	saved, err := h.service.SetBranding(r.Context(), actor, b)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, saved)
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (Upload, io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Upload{}, nil, shared.NewValidationError(formField, "tooLarge")
		}
		return Upload{}, nil, shared.NewValidationError(formField, "required")
	}
	return Upload{Filename: header.Filename, ContentType: header.Header.Get("Content-Type")}, file, nil
}

func (h *Handler) target(r *http.Request) (int64, uuid.UUID, error) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		return 0, uuid.Nil, err
	}
	uid, err := uuid.Parse(chi.URLParam(r, "uid"))
	if err != nil {
		return 0, uuid.Nil, shared.NewValidationError("uid", "invalid")
	}
	return actor, uid, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("file request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
