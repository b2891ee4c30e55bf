package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/clinica-central/helpdesk/internal/shared"
)

type errorKind struct {
	kind    error
	status  int
	message string
}

// Ordered so that more specific kinds are matched first.
var errorKinds = []errorKind{
	{shared.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{shared.ErrInvalidCredentials, http.StatusUnauthorized, "Credenciales inválidas"},
	{shared.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{shared.ErrNotFound, http.StatusNotFound, "Not found"},
	{shared.ErrConflict, http.StatusConflict, "El registro ya existe"},
	{shared.ErrValidation, http.StatusBadRequest, "Faltan campos requeridos"},
	{shared.ErrInvalidTransition, http.StatusBadRequest, "Invalid status"},
	{shared.ErrMissingComment, http.StatusBadRequest, "Comment is required for this status"},
	{shared.ErrInUse, http.StatusBadRequest, "No se puede eliminar, está en uso por solicitudes"},
	{shared.ErrCatalogIncomplete, http.StatusBadRequest, "Catálogo de tipos, prioridad o estado incompleto"},
	{shared.ErrNoCompany, http.StatusBadRequest, "No se encontró una empresa asociada al usuario"},
	{shared.ErrClosedRequest, http.StatusBadRequest, "La solicitud está cerrada"},
}

// StatusFor returns the HTTP status and default message for err.
func StatusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.status, k.message
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// RespondError maps domain errors onto a JSON rejection. Internal errors never
// leak their text to the caller.
func RespondError(w http.ResponseWriter, err error) {
	status, message := StatusFor(err)
	body := ErrorBody{Error: message}
	if status == http.StatusInternalServerError {
		JSON(w, status, body)
		return
	}

	var withMessage *shared.Error
	if errors.As(err, &withMessage) && withMessage.Message != "" {
		body.Error = withMessage.Message
	}
	var validation *shared.ValidationError
	if errors.As(err, &validation) {
		if validation.Message != "" {
			body.Error = validation.Message
		}
		body.Fields = validation.Fields
	}
	var inUse *shared.InUseError
	if errors.As(err, &inUse) {
		count := inUse.Count
		body.InUse = &count
		if inUse.Message != "" {
			body.Error = inUse.Message
		}
	}
	JSON(w, status, body)
}

// Fail logs server-side failures and writes the mapped rejection.
func Fail(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := StatusFor(err); status == http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	RespondError(w, err)
}
