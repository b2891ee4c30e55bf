package roles

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/platform/httpx"
)

// Lister reads the role catalog.
type Lister interface {
	ListRoles(ctx context.Context) ([]Role, error)
}

// Handler manages role endpoints.
type Handler struct {
	logger *slog.Logger
	roles  Lister
	guard  authz.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, roles Lister, guard authz.Guard) *Handler {
	return &Handler{logger: logger, roles: roles, guard: guard}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireSystemAdmin)
		r.Get("/", h.listRoles)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}
