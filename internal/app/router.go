package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinica-central/helpdesk/internal/auth"
	"github.com/clinica-central/helpdesk/internal/catalog"
	"github.com/clinica-central/helpdesk/internal/observability"
	"github.com/clinica-central/helpdesk/internal/pictures"
	"github.com/clinica-central/helpdesk/internal/platform/httpx"
	"github.com/clinica-central/helpdesk/internal/requests"
	"github.com/clinica-central/helpdesk/internal/roles"
	"github.com/clinica-central/helpdesk/internal/session"
	"github.com/clinica-central/helpdesk/internal/shared"
	"github.com/clinica-central/helpdesk/internal/users"
	"github.com/clinica-central/helpdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Sessions        *session.Resolver
	AuthHandler     *auth.Handler
	RequestsHandler *requests.Handler
	PicturesHandler *pictures.Handler
	CatalogHandler  *catalog.Handler
	UsersHandler    *users.Handler
	RolesHandler    *roles.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with helpdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, shared.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusMethodNotAllowed, httpx.ErrorBody{Error: "Method not allowed"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
		r.Route("/requests", func(r chi.Router) {
			if params.RequestsHandler != nil {
				params.RequestsHandler.MountRoutes(r)
			}
			if params.PicturesHandler != nil {
				params.PicturesHandler.MountRoutes(r)
			}
		})
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(r)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return otelhttp.NewHandler(r, "helpdesk-api")
}
