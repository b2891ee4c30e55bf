package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/platform/httpx"
	"github.com/clinica-central/helpdesk/internal/session"
	"github.com/clinica-central/helpdesk/internal/shared"
	"github.com/clinica-central/helpdesk/internal/users"
)

// LoginRateLimit caps login attempts per client IP per minute.
const LoginRateLimit = 10

// ProfileLoader returns the profile behind GET /me.
type ProfileLoader interface {
	Get(ctx context.Context, id int64) (users.User, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *session.Resolver
	profiles ProfileLoader
	guard    authz.Guard
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *session.Resolver, profiles ProfileLoader, guard authz.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, sessions: sessions, profiles: profiles, guard: guard}
}

// MountRoutes registers /auth and /me on the API router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.With(httprate.LimitByIP(LoginRateLimit, time.Minute)).Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
	})
	r.With(h.guard.RequireAuthenticated).Get("/me", h.handleMe)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		httpx.RespondError(w, shared.NewValidationError("Email y contraseña son requeridos", nil))
		return
	}

	user, err := h.service.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		h.logger.InfoContext(r.Context(), "login rejected", slog.String("email", in.Email))
		httpx.Fail(h.logger, w, r, err)
		return
	}
	principal := shared.Principal{UserID: user.ID, Email: user.Email, Role: shared.ParseRole(user.Role)}
	if err := h.sessions.SetCookie(w, principal); err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{User: Profile{
		ID: user.ID, Email: user.Email, Name: user.Name, LastName: user.LastName, Role: user.Role,
	}})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	httpx.Success(w)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.guard.Authenticated(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.profiles.Get(r.Context(), p.UserID)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
