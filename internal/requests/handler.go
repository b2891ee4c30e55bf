package requests

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/platform/httpx"
	"github.com/clinica-central/helpdesk/internal/shared"
)

// Handler exposes the request endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	guard       authz.Guard
	idempotency *shared.IdempotencyStore
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Guard, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, idempotency: idempotency}
}

// MountRoutes registers request routes. Every route requires a session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAuthenticated)
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.transition)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := h.guard.Actor(r)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	q := r.URL.Query()
	filter := ListFilter{
		Status:  strings.TrimSpace(q.Get("status")),
		Company: strings.TrimSpace(q.Get("company")),
		UserID:  shared.ParseInt64(q.Get("userId")),
	}
	rows, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}

	format := q.Get("export")
	if format == "" {
		httpx.JSON(w, http.StatusOK, rows)
		return
	}
	exp, ok := exporters[format]
	if !ok {
		httpx.RespondError(w, shared.NewValidationError("Formato de exportación no soportado", map[string]string{"export": format}))
		return
	}
	respondExport(h.logger, w, r, format, exp, rows)
}

// respondExport encodes the whole file before the status line is written.
func respondExport(logger *slog.Logger, w http.ResponseWriter, r *http.Request, format string, exp exporter, rows []Summary) {
	buf, err := exp.encode(rows)
	if err != nil {
		httpx.Fail(logger, w, r, fmt.Errorf("%s export: %w", format, err))
		return
	}
	w.Header().Set("Content-Type", exp.contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename(format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.DebugContext(r.Context(), "write export", slog.String("format", format), slog.Any("error", err))
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := h.guard.Actor(r)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(shared.IdempotencyHeader))
	scope := "requests:create:" + shared.FormatID(actor.UserID)
	if key != "" {
		if err := h.idempotency.Claim(r.Context(), key, scope); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.RespondError(w, shared.NewError(shared.ErrConflict, "Solicitud duplicada"))
				return
			}
			httpx.Fail(h.logger, w, r, err)
			return
		}
	}

	detail, err := h.service.Create(r.Context(), input, actor)
	if err != nil {
		if key != "" {
			if relErr := h.idempotency.Release(r.Context(), key, scope); relErr != nil {
				h.logger.WarnContext(r.Context(), "release idempotency key", slog.Any("error", relErr))
			}
		}
		httpx.Fail(h.logger, w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, err := h.guard.Actor(r)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	actor, err := h.guard.Actor(r)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input TransitionInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Transition(r.Context(), id, input, actor)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}
