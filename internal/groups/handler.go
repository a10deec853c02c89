package groups

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noodle-soup/noodle/internal/platform/httpx"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Handler manages group endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Get("/users", h.members)
		r.Post("/users", h.bulk("id", h.service.AddUsers))
		r.Put("/users", h.bulk("id", h.service.ReplaceUsers))
		r.Delete("/users", h.bulk("id", h.service.RemoveUsers))
	})
}

// MountUserRoutes registers the group membership routes of one user. The
// router must carry a {userID} parameter.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/", h.groupsOf)
	r.Post("/", h.bulk("userID", h.service.JoinGroups))
	r.Put("/", h.bulk("userID", h.service.ReplaceGroups))
	r.Delete("/", h.bulk("userID", h.service.LeaveGroups))
}

// SelfGroups lists the groups of the authenticated user.
func (h *Handler) SelfGroups(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	groups, err := h.service.GroupsOf(r.Context(), actor, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	groups, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	g, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
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
	g, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, g)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var in Input
	if err := httpx.Bind(w, r, h.validator, &in); err != nil {
		h.fail(w, err)
		return
	}
	g, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r, "id")
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

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	members, err := h.service.Members(r.Context(), actor, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, members)
}

func (h *Handler) groupsOf(w http.ResponseWriter, r *http.Request) {
	actor, userID, err := h.target(r, "userID")
	if err != nil {
		h.fail(w, err)
		return
	}
	groups, err := h.service.GroupsOf(r.Context(), actor, userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) bulk(param string, apply func(ctx context.Context, actor, id int64, ids []int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, err := h.target(r, param)
		if err != nil {
			h.fail(w, err)
			return
		}
		ids, err := httpx.BindIDs(w, r)
		if err != nil {
			h.fail(w, err)
			return
		}
		if err := apply(r.Context(), actor, id, ids); err != nil {
			h.fail(w, err)
			return
		}
		httpx.NoContent(w)
	}
}

func (h *Handler) target(r *http.Request, param string) (actor, id int64, err error) {
	if actor, err = shared.RequireUserID(r.Context()); err != nil {
		return 0, 0, err
	}
	if id, err = httpx.URLInt64(r, param); err != nil {
		return 0, 0, err
	}
	return actor, id, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("groups request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
