package requests_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/requests"
	"github.com/clinica-central/helpdesk/internal/requests/requeststest"
	"github.com/clinica-central/helpdesk/internal/shared"
)

type actorTable map[int64]authz.Actor

func (a actorTable) LoadActor(_ context.Context, id int64) (authz.Actor, error) {
	actor, ok := a[id]
	if !ok {
		return authz.Actor{}, shared.ErrNotFound
	}
	return actor, nil
}

func newRouter(t *testing.T) (http.Handler, *requeststest.Store) {
	t.Helper()
	svc, store := newService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := authz.Guard{Actors: actorTable{10: regularUser, 20: companyAdmin, 1: systemAdmin}, Logger: logger}
	r := chi.NewRouter()
	r.Route("/api/requests", requests.NewHandler(logger, svc, guard, nil).MountRoutes)
	return r, store
}

func do(h http.Handler, method, target, body string, actor *authz.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if actor != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: actor.UserID, Email: actor.Email, Role: actor.Role}))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndTransition(t *testing.T) {
	h, _ := newRouter(t)

	rec := do(h, http.MethodPost, "/api/requests", `{"subject":"AC no enfría","description":"x","location":"Sala 3","processId":1}`, &regularUser)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created requests.Detail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "MT-001", created.RequestCode)

	rec = do(h, http.MethodPatch, "/api/requests/1", `{"statusName":"Cancelled"}`, &companyAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Comment is required for this status")

	rec = do(h, http.MethodPatch, "/api/requests/1", `{"statusName":"In Progress"}`, &regularUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(h, http.MethodPatch, "/api/requests/1", `{"statusName":"In Progress"}`, &companyAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerRequiresSession(t *testing.T) {
	h, _ := newRouter(t)
	rec := do(h, http.MethodGet, "/api/requests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerExportCSV(t *testing.T) {
	h, _ := newRouter(t)
	rec := do(h, http.MethodPost, "/api/requests", `{"subject":"Luz","description":"x","location":"Hall","processId":1}`, &regularUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(h, http.MethodGet, "/api/requests?export=csv", "", &systemAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "requests.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Codigo,Asunto"))

	rec = do(h, http.MethodGet, "/api/requests?export=pdf", "", &systemAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
