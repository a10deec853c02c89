package content

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noodle-soup/noodle/internal/platform/httpx"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Handler exposes the content of one parent type. It expects to be mounted
// below a router carrying the parent id as {id}.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers section and element routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sections", h.listSections)
	r.Post("/sections", h.createSection)
	r.Route("/section/{sectionID}", func(r chi.Router) {
		r.Get("/", h.getSection)
		r.Put("/", h.updateSection)
		r.Patch("/", h.updateSection)
		r.Delete("/", h.deleteSection)
		r.Get("/content", h.listElements)
		r.Post("/content", h.createElement)
		r.Put("/content", h.updateElement)
		r.Delete("/content", h.clearElements)
		r.Route("/content/{elementID}", func(r chi.Router) {
			r.Get("/", h.getElement)
			r.Put("/", h.updateElement)
			r.Patch("/", h.updateElement)
			r.Delete("/", h.deleteElement)
		})
	})
}

type target struct {
	actor, parent, section, element int64
}

func (h *Handler) target(r *http.Request, params ...string) (target, error) {
	var t target
	var err error
	if t.actor, err = shared.RequireUserID(r.Context()); err != nil {
		return t, err
	}
	if t.parent, err = httpx.URLInt64(r, "id"); err != nil {
		return t, err
	}
	for _, p := range params {
		v, err := httpx.URLInt64(r, p)
		if err != nil {
			return t, err
		}
		switch p {
		case "sectionID":
			t.section = v
		case "elementID":
			t.element = v
		}
	}
	return t, nil
}

func (h *Handler) listSections(w http.ResponseWriter, r *http.Request) {
	t, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	sections, err := h.service.Sections(r.Context(), t.actor, t.parent)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sections)
}

func (h *Handler) createSection(w http.ResponseWriter, r *http.Request) {
	t, err := h.target(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var in SectionInput
	if err := httpx.Bind(w, r, h.validator, &in); err != nil {
		h.fail(w, err)
		return
	}
	s, err := h.service.CreateSection(r.Context(), t.actor, t.parent, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *Handler) getSection(w http.ResponseWriter, r *http.Request) {
	t, err := h.target(r, "sectionID")
	if err != nil {
		h.fail(w, err)
		return
	}
	s, err := h.service.Section(r.Context(), t.actor, t.parent, t.section)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) updateSection(w http.ResponseWriter, r *http.Request) {
	t, err := h.target(r, "sectionID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var in SectionInput
	if err := httpx.Bind(w, r, h.validator, &in); err != nil {
		h.fail(w, err)
		return
	}
	s, err := h.service.UpdateSection(r.Context(), t.actor, t.parent, t.section, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) deleteSection(w http.ResponseWriter, r *http.Request) {
	t, err := h.target(r, "sectionID")
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.service.DeleteSection(r.Context(), t.actor, t.parent, t.section); err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listElements(w http.ResponseWriter, r *http.Request) {
	t, err := h.target(r, "sectionID")
	if err != nil {
		h.fail(w, err)
		return
	}
	elements, err := h.service.Elements(r.Context(), t.actor, t.parent, t.section)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, elements)
}

func (h *Handler) getElement(w http.ResponseWriter, r *http.Request) {
	t, err := h.target(r, "sectionID", "elementID")
	if err != nil {
		h.fail(w, err)
		return
	}
	e, err := h.service.Element(r.Context(), t.actor, t.parent, t.section, t.element)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) createElement(w http.ResponseWriter, r *http.Request) {
	t, err := h.target(r, "sectionID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var in ElementInput
	if err := httpx.Bind(w, r, h.validator, &in); err != nil {
		h.fail(w, err)
		return
	}
	e, err := h.service.CreateElement(r.Context(), t.actor, t.parent, t.section, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

// updateElement serves both /content with the id in the body and
// /content/{elementID}; the path wins when both are present.
func (h *Handler) updateElement(w http.ResponseWriter, r *http.Request) {
	params := []string{"sectionID"}
	if chi.URLParam(r, "elementID") != "" {
		params = append(params, "elementID")
	}
	t, err := h.target(r, params...)
	if err != nil {
		h.fail(w, err)
		return
	}
	var in ElementInput
	if err := httpx.Bind(w, r, h.validator, &in); err != nil {
		h.fail(w, err)
		return
	}
	if t.element == 0 {
		t.element = in.ID
	}
	e, err := h.service.UpdateElement(r.Context(), t.actor, t.parent, t.section, t.element, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) deleteElement(w http.ResponseWriter, r *http.Request) {
	t, err := h.target(r, "sectionID", "elementID")
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.service.DeleteElement(r.Context(), t.actor, t.parent, t.section, t.element); err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) clearElements(w http.ResponseWriter, r *http.Request) {
	t, err := h.target(r, "sectionID")
	if err != nil {
		h.fail(w, err)
		return
	}
	if _, err := h.service.ClearElements(r.Context(), t.actor, t.parent, t.section); err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("content request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
