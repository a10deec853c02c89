package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noodle-soup/noodle/internal/platform/httpx"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Handler manages user endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountSelfRoutes registers /user: the caller's own profile and sign-up.
func (h *Handler) MountSelfRoutes(r chi.Router) {
	r.Get("/", h.self)
	r.Post("/", h.register)
}

// MountRoutes registers routes for one user. The router must carry a
// {userID} parameter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.update)
	r.Patch("/", h.update)
	r.Delete("/", h.delete)
}

func (h *Handler) self(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	u, err := h.service.Get(r.Context(), actor, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	var reg Registration
	if err := httpx.Bind(w, r, h.validator, &reg); err != nil {
		h.fail(w, err)
		return
	}
	u, err := h.service.Register(r.Context(), actor, reg)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	u, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var p Profile
	if err := httpx.Bind(w, r, h.validator, &p); err != nil {
		h.fail(w, err)
		return
	}
	u, err := h.service.UpdateProfile(r.Context(), actor, id, p)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
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
	if id, err = httpx.URLInt64(r, "userID"); err != nil {
		return 0, 0, err
	}
	return actor, id, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("users request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
