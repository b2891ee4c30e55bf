package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinica-central/helpdesk/internal/shared"
)

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestRespondErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{shared.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("get: %w", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrInvalidTransition, http.StatusBadRequest},
		{shared.ErrMissingComment, http.StatusBadRequest},
		{shared.ErrClosedRequest, http.StatusBadRequest},
		{shared.ErrCatalogIncomplete, http.StatusBadRequest},
		{shared.ErrNoCompany, http.StatusBadRequest},
		{shared.ErrConflict, http.StatusConflict},
		{errors.New("pg: connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	}
}

func TestRespondErrorHidesInternalText(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: password authentication failed for user"))
	body := decodeBody(t, rr)
	assert.NotContains(t, body.Error, "password")
}

func TestRespondErrorInUseCarriesCount(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("delete: %w", &shared.InUseError{Count: 4}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	require.NotNil(t, body.InUse)
	assert.EqualValues(t, 4, *body.InUse)
	assert.Equal(t, "No se puede eliminar, está en uso por solicitudes", body.Error)
}

func TestRespondErrorValidationFields(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, shared.NewValidationError("Faltan campos requeridos", map[string]string{"subject": "required"}))
	body := decodeBody(t, rr)
	assert.Equal(t, "required", body.Fields["subject"])
}

func TestRespondErrorCustomMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, shared.NewError(shared.ErrNotFound, "Imagen no encontrada"))
	assert.Equal(t, "Imagen no encontrada", decodeBody(t, rr).Error)
}

func TestDecodeJSONRejectsMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	var target map[string]any
	err := DecodeJSON(req, &target)
	assert.ErrorIs(t, err, shared.ErrValidation)
}
