package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/platform/httpx"
)

// Handler exposes catalog administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   authz.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers catalog routes under the API router. Lists that
// request forms need are open to any session; the rest is system admin only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAuthenticated)
		r.Get("/request-types", h.listRequestTypes)
		r.Get("/request-statuses", h.listStatuses)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireSystemAdmin)

		r.Route("/processes", func(r chi.Router) {
			r.Get("/", h.listProcesses)
			r.Post("/", h.createProcess)
			r.Put("/{id}", h.updateProcess)
			r.Delete("/{id}", h.deleteProcess)
		})
		r.Route("/priorities", func(r chi.Router) {
			r.Get("/", h.listPriorities)
			r.Post("/", h.createPriority)
			r.Put("/{id}", h.updatePriority)
			r.Delete("/{id}", h.deletePriority)
		})
		r.Post("/request-types", h.createRequestType)
		r.Put("/request-types/{id}", h.updateRequestType)
		r.Delete("/request-types/{id}", h.deleteRequestType)

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", h.listCompanies)
			r.Post("/", h.createCompany)
			r.Get("/{id}", h.getCompany)
			r.Put("/{id}", h.updateCompany)
			r.Delete("/{id}", h.deleteCompany)

			r.Get("/{id}/processes", h.companyProcesses)
			r.Post("/{id}/processes", h.linkProcess)
			r.Patch("/{id}/processes/{processId}", h.toggleProcess)
			r.Delete("/{id}/processes/{processId}", h.unlinkProcess)
		})
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	if err != nil {
		httpx.Fail(h.logger, w, r, err)
		return
	}
	if data == nil {
		httpx.Success(w)
		return
	}
	httpx.JSON(w, status, data)
}

// decodeWithID parses the {id} parameter and the JSON body.
func decodeWithID(r *http.Request, target any) (int64, error) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		return 0, err
	}
	return id, httpx.DecodeJSON(r, target)
}

func (h *Handler) listProcesses(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListProcesses(r.Context())
	h.respond(w, r, http.StatusOK, rows, err)
}

func (h *Handler) createProcess(w http.ResponseWriter, r *http.Request) {
	var in ProcessInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreateProcess(r.Context(), in)
	h.respond(w, r, http.StatusCreated, p, err)
}

func (h *Handler) updateProcess(w http.ResponseWriter, r *http.Request) {
	var in ProcessInput
	id, err := decodeWithID(r, &in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdateProcess(r.Context(), id, in)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) deleteProcess(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, nil, h.service.DeleteProcess(r.Context(), id))
}

func (h *Handler) listPriorities(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListPriorities(r.Context())
	h.respond(w, r, http.StatusOK, rows, err)
}

func (h *Handler) createPriority(w http.ResponseWriter, r *http.Request) {
	var in PriorityInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreatePriority(r.Context(), in)
	h.respond(w, r, http.StatusCreated, p, err)
}

func (h *Handler) updatePriority(w http.ResponseWriter, r *http.Request) {
	var in PriorityInput
	id, err := decodeWithID(r, &in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdatePriority(r.Context(), id, in)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) deletePriority(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, nil, h.service.DeletePriority(r.Context(), id))
}

func (h *Handler) listRequestTypes(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListRequestTypes(r.Context())
	h.respond(w, r, http.StatusOK, rows, err)
}

func (h *Handler) createRequestType(w http.ResponseWriter, r *http.Request) {
	var in RequestTypeInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.CreateRequestType(r.Context(), in)
	h.respond(w, r, http.StatusCreated, t, err)
}

func (h *Handler) updateRequestType(w http.ResponseWriter, r *http.Request) {
	var in RequestTypeInput
	id, err := decodeWithID(r, &in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.UpdateRequestType(r.Context(), id, in)
	h.respond(w, r, http.StatusOK, t, err)
}

func (h *Handler) deleteRequestType(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, nil, h.service.DeleteRequestType(r.Context(), id))
}

func (h *Handler) listStatuses(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListStatuses(r.Context())
	h.respond(w, r, http.StatusOK, rows, err)
}

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListCompanies(r.Context())
	h.respond(w, r, http.StatusOK, rows, err)
}

func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request) {
	var in CompanyInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateCompany(r.Context(), in)
	h.respond(w, r, http.StatusCreated, c, err)
}

func (h *Handler) getCompany(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.GetCompany(r.Context(), id)
	h.respond(w, r, http.StatusOK, c, err)
}

func (h *Handler) updateCompany(w http.ResponseWriter, r *http.Request) {
	var in CompanyInput
	id, err := decodeWithID(r, &in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.UpdateCompany(r.Context(), id, in)
	h.respond(w, r, http.StatusOK, c, err)
}

func (h *Handler) deleteCompany(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, nil, h.service.DeleteCompany(r.Context(), id))
}

func (h *Handler) companyProcesses(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.CompanyProcesses(r.Context(), id)
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *Handler) linkProcess(w http.ResponseWriter, r *http.Request) {
	var in LinkInput
	id, err := decodeWithID(r, &in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	link, err := h.service.LinkProcess(r.Context(), id, in)
	h.respond(w, r, http.StatusCreated, link, err)
}

func (h *Handler) toggleProcess(w http.ResponseWriter, r *http.Request) {
	var in ToggleInput
	id, err := decodeWithID(r, &in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	processID, err := httpx.IDParam(r, "processId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	link, err := h.service.SetProcessEnabled(r.Context(), id, processID, in)
	h.respond(w, r, http.StatusOK, link, err)
}

func (h *Handler) unlinkProcess(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	processID, err := httpx.IDParam(r, "processId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, nil, h.service.UnlinkProcess(r.Context(), id, processID))
}
