package pictures

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/platform/httpx"
	"github.com/clinica-central/helpdesk/internal/shared"
)

// Handler exposes the picture endpoints below /api/requests.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   authz.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers picture routes on the requests router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAuthenticated)
		r.Get("/{id}/pictures", h.list)
		r.Get("/{id}/pictures/{file}", h.serve)
		r.Post("/{id}/pictures", h.upload)
		r.Delete("/{id}/pictures/{file}", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
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
	pics, err := h.service.List(r.Context(), id, actor)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pics)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
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

	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxBytes()+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, shared.NewValidationError("La imagen excede el tamaño máximo permitido", map[string]string{"file": "max"}))
			return
		}
		httpx.RespondError(w, shared.NewValidationError("No se recibió ningún archivo", map[string]string{"file": "required"}))
		return
	}
	defer file.Close()

	pic, err := h.service.Attach(r.Context(), id, Upload{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, actor)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pic)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.Remove(r.Context(), id, chi.URLParam(r, "file"), actor); err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
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
	rc, contentType, err := h.service.Open(r.Context(), id, chi.URLParam(r, "file"), actor)
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.DebugContext(r.Context(), "serve picture", slog.Any("error", err))
	}
}
