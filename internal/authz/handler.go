package authz

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noodle-soup/noodle/internal/platform/httpx"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Handler exposes grant management. Reading grants needs Read on the Role
// type, changing them needs Update on the Role type.
type Handler struct {
	logger    *slog.Logger
	resolver  *Resolver
	grants    *GrantStore
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, resolver *Resolver, grants *GrantStore) *Handler {
	return &Handler{
		logger:    logger,
		resolver:  resolver,
		grants:    grants,
		validator: httpx.NewValidator(),
	}
}

// MountRoutes registers grant routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listForSubject)
	r.Get("/{type}", h.listForResource)
	r.Post("/{type}", h.grant)
	r.Delete("/{type}", h.revoke)
}

type grantRequest struct {
	RoleID     *int64          `json:"roleId" validate:"omitempty,gt=0"`
	UserID     *int64          `json:"userId" validate:"omitempty,gt=0"`
	ResourceID json.RawMessage `json:"resourceId"`
	Ops        Operations      `json:"ops"`
}

func (req grantRequest) toGrant(rt ResourceType) (Grant, error) {
	g := Grant{Subject: Subject{RoleID: req.RoleID, UserID: req.UserID}, Ops: req.Ops}
	id, err := decodeResourceID(rt, req.ResourceID)
	if err != nil {
		return Grant{}, err
	}
	g.ResourceID = id
	return g, nil
}

func decodeResourceID(rt ResourceType, raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	id, err := rt.ParseID(text)
	if err != nil {
		return nil, shared.NewValidationError("resourceId", "invalid")
	}
	return id, nil
}

func (h *Handler) authorize(r *http.Request, ops Operations) error {
	userID, err := shared.RequireUserID(r.Context())
	if err != nil {
		return err
	}
	return Check(h.resolver.HasAll(r.Context(), Role, ops, userID))
}

func resourceTypeParam(r *http.Request) (ResourceType, error) {
	rt, err := ParseResourceType(chi.URLParam(r, "type"))
	if err != nil {
		return 0, shared.ErrNotFound
	}
	return rt, nil
}

func (h *Handler) listForSubject(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, Read); err != nil {
		h.fail(w, err)
		return
	}
	var subject Subject
	for key, dst := range map[string]**int64{"roleId": &subject.RoleID, "userId": &subject.UserID} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.fail(w, shared.NewValidationError(key, "invalid"))
			return
		}
		*dst = &id
	}
	grants, err := h.grants.ListForSubject(r.Context(), subject)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grants)
}

func (h *Handler) listForResource(w http.ResponseWriter, r *http.Request) {
	rt, err := resourceTypeParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.authorize(r, Read); err != nil {
		h.fail(w, err)
		return
	}
	var resourceID any
	if raw := r.URL.Query().Get("resourceId"); raw != "" {
		if resourceID, err = rt.ParseID(raw); err != nil {
			h.fail(w, shared.NewValidationError("resourceId", "invalid"))
			return
		}
	}
	grants, err := h.grants.ListForResource(r.Context(), rt, resourceID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grants)
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, func(rt ResourceType, g Grant) error {
		return h.grants.Grant(r.Context(), rt, g)
	}, http.StatusCreated)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, func(rt ResourceType, g Grant) error {
		return h.grants.Revoke(r.Context(), rt, g)
	}, http.StatusNoContent)
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request, apply func(ResourceType, Grant) error, status int) {
	rt, err := resourceTypeParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.authorize(r, Update); err != nil {
		h.fail(w, err)
		return
	}
	var req grantRequest
	if err := httpx.Bind(w, r, h.validator, &req); err != nil {
		h.fail(w, err)
		return
	}
	g, err := req.toGrant(rt)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := apply(rt, g); err != nil {
		h.fail(w, err)
		return
	}
	if status == http.StatusNoContent {
		httpx.NoContent(w)
		return
	}
	httpx.JSON(w, status, g)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("permissions request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
