package roles

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noodle-soup/noodle/internal/platform/httpx"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Handler manages role endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Get("/users", h.members)
		r.Post("/users", h.addUsers)
		r.Put("/users", h.replaceUsers)
		r.Delete("/users", h.removeUsers)
	})
}

// MountUserRoutes registers the role membership routes of one user. The
// router must carry a {userID} parameter.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/", h.rolesOf)
	r.Post("/", h.assignRoles)
	r.Put("/", h.replaceRoles)
	r.Delete("/", h.unassignRoles)
}

// SelfRoles lists the roles of the authenticated user.
func (h *Handler) SelfRoles(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	roles, err := h.service.RolesOf(r.Context(), actor, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireUserID(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	roles, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	role, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
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
	role, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
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
	role, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
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

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.target(r)
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

func (h *Handler) addUsers(w http.ResponseWriter, r *http.Request) {
	h.changeUsers(w, r, h.service.AddUsers)
}

func (h *Handler) replaceUsers(w http.ResponseWriter, r *http.Request) {
	h.changeUsers(w, r, h.service.ReplaceUsers)
}

func (h *Handler) removeUsers(w http.ResponseWriter, r *http.Request) {
	h.changeUsers(w, r, h.service.RemoveUsers)
}

type membershipFunc func(ctx context.Context, actor, id int64, ids []int64) error

func (h *Handler) changeUsers(w http.ResponseWriter, r *http.Request, apply membershipFunc) {
	actor, id, err := h.target(r)
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

func (h *Handler) rolesOf(w http.ResponseWriter, r *http.Request) {
	actor, userID, err := h.userTarget(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	roles, err := h.service.RolesOf(r.Context(), actor, userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	h.changeRoles(w, r, h.service.AssignRoles)
}

func (h *Handler) replaceRoles(w http.ResponseWriter, r *http.Request) {
	h.changeRoles(w, r, h.service.ReplaceRoles)
}

func (h *Handler) unassignRoles(w http.ResponseWriter, r *http.Request) {
	h.changeRoles(w, r, h.service.UnassignRoles)
}

func (h *Handler) changeRoles(w http.ResponseWriter, r *http.Request, apply membershipFunc) {
	actor, userID, err := h.userTarget(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	ids, err := httpx.BindIDs(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := apply(r.Context(), actor, userID, ids); err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) userTarget(r *http.Request) (actor, userID int64, err error) {
	if actor, err = shared.RequireUserID(r.Context()); err != nil {
		return 0, 0, err
	}
	if userID, err = httpx.URLInt64(r, "userID"); err != nil {
		return 0, 0, err
	}
	return actor, userID, nil
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
		h.logger.Error("roles request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
