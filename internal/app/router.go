package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/noodle-soup/noodle/internal/auth"
	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/catalog"
	"github.com/noodle-soup/noodle/internal/content"
	"github.com/noodle-soup/noodle/internal/files"
	"github.com/noodle-soup/noodle/internal/groups"
	"github.com/noodle-soup/noodle/internal/observability"
	"github.com/noodle-soup/noodle/internal/roles"
	"github.com/noodle-soup/noodle/internal/shared"
	"github.com/noodle-soup/noodle/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	RolesHandler    *roles.Handler
	GroupsHandler   *groups.Handler
	CoursesHandler  *catalog.Handler
	CourseContent   *content.Handler
	TemplateHandler *catalog.Handler
	TemplateContent *content.Handler
	FilesHandler    *files.Handler
	GrantsHandler   *authz.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router. Only /login, /logout, /csrf and the
// probes are reachable without a session user.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	loginLimit := 10
	if params.Config != nil && params.Config.LoginRateLimit > 0 {
		loginLimit = params.Config.LoginRateLimit
	}
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(loginLimit, time.Minute))
		params.AuthHandler.MountRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)

		r.Route("/user", func(r chi.Router) {
			params.UsersHandler.MountSelfRoutes(r)
			r.Get("/groups", params.GroupsHandler.SelfGroups)
			r.Get("/roles", params.RolesHandler.SelfRoles)
		})
		r.Route("/users/{userID}", func(r chi.Router) {
			params.UsersHandler.MountRoutes(r)
			r.Route("/groups", params.GroupsHandler.MountUserRoutes)
			r.Route("/roles", params.RolesHandler.MountUserRoutes)
		})
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/groups", params.GroupsHandler.MountRoutes)

		r.Route("/courses", params.CoursesHandler.MountCollection)
		r.Route("/course/{id}", func(r chi.Router) {
			params.CoursesHandler.MountItem(r)
			params.CourseContent.MountRoutes(r)
		})
		r.Route("/templates", params.TemplateHandler.MountCollection)
		r.Route("/template/{id}", func(r chi.Router) {
			params.TemplateHandler.MountItem(r)
			params.TemplateContent.MountRoutes(r)
		})

		r.Route("/files", params.FilesHandler.MountCollection)
		r.Route("/file/{uid}", params.FilesHandler.MountItem)
		r.Route("/design", params.FilesHandler.MountDesign)

		if params.GrantsHandler != nil {
			r.Route("/permissions", params.GrantsHandler.MountRoutes)
		}
	})

	return r
}
