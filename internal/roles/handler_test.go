package roles_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/roles"
	"github.com/clinica-central/helpdesk/internal/shared"
)

type stubRepo struct{}

func (stubRepo) ListRoles(context.Context) ([]roles.Role, error) {
	return []roles.Role{{ID: 1, Name: shared.RoleNameSystemAdministrator}, {ID: 3, Name: shared.RoleNameRegularUser}}, nil
}

func TestListRolesRequiresSystemAdmin(t *testing.T) {
	guard := authz.Guard{}
	router := chi.NewRouter()
	router.Route("/api/roles", roles.NewHandler(nil, stubRepo{}, guard).MountRoutes)

	call := func(role shared.Role) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/roles", nil)
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 7, Role: role}))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusForbidden, call(shared.RoleRegularUser).Code)

	rr := call(shared.RoleSystemAdministrator)
	require.Equal(t, http.StatusOK, rr.Code)
	var got []roles.Role
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, shared.RoleNameSystemAdministrator, got[0].Name)
}
