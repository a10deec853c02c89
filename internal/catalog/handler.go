package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noodle-soup/noodle/internal/platform/httpx"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Handler exposes one resource type over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountCollection registers the collection routes, e.g. under /courses.
func (h *Handler) MountCollection(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

// MountItem registers the item routes, e.g. under /course/{id}.
func (h *Handler) MountItem(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.update)
	r.Delete("/", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	entries, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	var in Input
	if err := httpx.Bind(w, r, h.validator, &in); err != nil {
		h.fail(w, err)
		return
	}
	e, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	e, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var in Input
	if err := httpx.Bind(w, r, h.validator, &in); err != nil {
		h.fail(w, err)
		return
	}
	e, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) target(r *http.Request) (actor, id int64, err error) {
	if actor, err = shared.RequireUserID(r.Context()); err != nil {
		return 0, 0, err
	}
	if id, err = httpx.URLInt64(r, "id"); err != nil {
		return 0, 0, err
	}
	return actor, id, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("catalog request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
