package requests_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/requests"
	"github.com/clinica-central/helpdesk/internal/requests/requeststest"
	"github.com/clinica-central/helpdesk/internal/shared"
	_ "github.com/clinica-central/helpdesk/testing"
)

var (
	regularUser = authz.Actor{UserID: 10, Email: "ana@clinica.com", Role: shared.RoleRegularUser,
		Memberships: []authz.Membership{{CompanyID: 1}}}
	otherUser = authz.Actor{UserID: 11, Email: "luis@clinica.com", Role: shared.RoleRegularUser,
		Memberships: []authz.Membership{{CompanyID: 1}}}
	companyAdmin = authz.Actor{UserID: 20, Email: "jefa@clinica.com", Role: shared.RoleCompanyAdministrator,
		Memberships: []authz.Membership{{CompanyID: 1, IsAdmin: true}}}
	foreignAdmin = authz.Actor{UserID: 30, Email: "norte@clinica.com", Role: shared.RoleCompanyAdministrator,
		Memberships: []authz.Membership{{CompanyID: 2, IsAdmin: true}}}
	systemAdmin = authz.Actor{UserID: 1, Email: "admin@clinica.com", Role: shared.RoleSystemAdministrator}
)

type eventCounter map[string]int

func (c eventCounter) ObserveCreated(code string) { c["created:"+code]++ }
func (c eventCounter) ObserveTransition(from, to string) { c[from+">"+to]++ }

func newService(t *testing.T) (*requests.Service, *requeststest.Store) {
	t.Helper()
	store := requeststest.NewStore()
	store.Users[10] = requests.UserRef{ID: 10, Email: "ana@clinica.com", Name: "Ana", LastName: "Rojas"}
	store.Users[20] = requests.UserRef{ID: 20, Email: "jefa@clinica.com", Name: "Marta", LastName: "Soto"}
	svc := requests.NewService(store, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.SetNotifier(store)
	return svc, store
}

func acInput() requests.CreateInput {
	return requests.CreateInput{
		Subject:     "AC no enfría",
		Description: "El aire acondicionado de la sala 3 no enfría",
		Location:    "Sala 3",
		ProcessID:   1,
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, store := newService(t)

	detail, err := svc.Create(context.Background(), acInput(), regularUser)
	require.NoError(t, err)

	assert.Equal(t, "MT-001", detail.RequestCode)
	assert.Equal(t, "Pending", detail.Status.Name)
	assert.Equal(t, requests.DefaultPriorityName, detail.Priority.Name)
	assert.Equal(t, requests.DefaultRequestTypeName, detail.Type.Name)
	assert.EqualValues(t, 1, detail.CompanyID)
	assert.EqualValues(t, 10, detail.RequesterID)
	require.Len(t, detail.Logs, 1)
	assert.Equal(t, requests.LogCreated, detail.Logs[0].ActionDone)
	require.Len(t, store.Notified, 1)
	assert.Equal(t, []string{"ana@clinica.com"}, store.Notified[0].To)
}

func TestCreateCodesAreSequentialPerType(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, acInput(), regularUser)
	require.NoError(t, err)
	second, err := svc.Create(ctx, acInput(), regularUser)
	require.NoError(t, err)
	support := acInput()
	support.RequestTypeName = "Soporte Técnico"
	other, err := svc.Create(ctx, support, regularUser)
	require.NoError(t, err)

	assert.Equal(t, "MT-001", first.RequestCode)
	assert.Equal(t, "MT-002", second.RequestCode)
	assert.Equal(t, "ST-001", other.RequestCode)
}

func TestCreateValidation(t *testing.T) {
	svc, store := newService(t)
	input := acInput()
	input.Subject = "  "
	input.ProcessID = 0

	_, err := svc.Create(context.Background(), input, regularUser)
	require.ErrorIs(t, err, shared.ErrValidation)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "subject")
	assert.Contains(t, verr.Fields, "processId")
	assert.Empty(t, store.Logs(1))
}

func TestCreateCatalogIncomplete(t *testing.T) {
	svc, store := newService(t)
	store.Priorities = nil
	_, err := svc.Create(context.Background(), acInput(), regularUser)
	assert.ErrorIs(t, err, shared.ErrCatalogIncomplete)

	svc, store = newService(t)
	store.Types[0].Code = ""
	_, err = svc.Create(context.Background(), acInput(), regularUser)
	assert.ErrorIs(t, err, shared.ErrCatalogIncomplete)
}

func TestCreateCompanyResolution(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	lonely := authz.Actor{UserID: 40, Role: shared.RoleRegularUser}
	_, err := svc.Create(ctx, acInput(), lonely)
	assert.ErrorIs(t, err, shared.ErrNoCompany)

	input := acInput()
	input.CompanySlug = "no-existe"
	_, err = svc.Create(ctx, input, regularUser)
	assert.ErrorIs(t, err, shared.ErrValidation)

	input.CompanySlug = "clinica-norte"
	_, err = svc.Create(ctx, input, regularUser)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	detail, err := svc.Create(ctx, input, systemAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 2, detail.CompanyID)
}

func TestTransitionScenario(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, acInput(), regularUser)
	require.NoError(t, err)

	inProgress, err := svc.Transition(ctx, created.ID, requests.TransitionInput{StatusName: "In Progress"}, companyAdmin)
	require.NoError(t, err)
	assert.Equal(t, "In Progress", inProgress.Status.Name)

	done, err := svc.Transition(ctx, created.ID, requests.TransitionInput{StatusName: "Completed", Comment: "Reparado"}, companyAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Completed", done.Status.Name)

	logs := store.Logs(created.ID)
	require.Len(t, logs, 3)
	assert.Equal(t, "Estado cambiado a In Progress", logs[1].ActionDone)
	assert.Equal(t, "Estado cambiado a Completed - Reparado", logs[2].ActionDone)
	assert.Equal(t, "Estado cambiado a Completed - Reparado", done.Logs[0].ActionDone)

	_, err = svc.Transition(ctx, created.ID, requests.TransitionInput{StatusName: "Cancelled", Comment: "tarde"}, companyAdmin)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	assert.Len(t, store.Logs(created.ID), 3)
}

func TestTransitionMissingCommentMutatesNothing(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, acInput(), regularUser)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, created.ID, requests.TransitionInput{StatusName: "Cancelled"}, companyAdmin)
	require.ErrorIs(t, err, shared.ErrMissingComment)
	detail, err := svc.Get(ctx, created.ID, companyAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Pending", detail.Status.Name)
	assert.Len(t, store.Logs(created.ID), 1)

	_, err = svc.Transition(ctx, created.ID, requests.TransitionInput{StatusName: "Cancelled", Comment: "Duplicada"}, companyAdmin)
	require.NoError(t, err)
	assert.Len(t, store.Logs(created.ID), 2)
}

func TestTransitionRejectedInsideTxRollsBack(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, acInput(), regularUser)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, created.ID, requests.TransitionInput{StatusName: "Completed", Comment: "Listo"}, systemAdmin)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	assert.Len(t, store.Logs(created.ID), 1)
}

func TestTransitionAuthorization(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, acInput(), regularUser)
	require.NoError(t, err)
	in := requests.TransitionInput{StatusName: "In Progress"}

	_, err = svc.Transition(ctx, created.ID, in, regularUser)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Transition(ctx, created.ID, in, foreignAdmin)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Transition(ctx, 999, in, systemAdmin)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Transition(ctx, created.ID, requests.TransitionInput{StatusName: "Archived"}, systemAdmin)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	_, err = svc.Transition(ctx, created.ID, requests.TransitionInput{}, systemAdmin)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestLifecycleRecordsMetrics(t *testing.T) {
	svc, _ := newService(t)
	counter := eventCounter{}
	svc.SetMetrics(counter)
	ctx := context.Background()
	created, err := svc.Create(ctx, acInput(), regularUser)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, created.ID, requests.TransitionInput{StatusName: "In Progress"}, systemAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, counter["created:MT"])
	assert.Equal(t, 1, counter["Pending>In Progress"])
}

func TestListAndGetVisibility(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	mine, err := svc.Create(ctx, acInput(), regularUser)
	require.NoError(t, err)
	theirs, err := svc.Create(ctx, acInput(), otherUser)
	require.NoError(t, err)
	north := acInput()
	north.CompanySlug = "clinica-norte"
	_, err = svc.Create(ctx, north, systemAdmin)
	require.NoError(t, err)

	rows, err := svc.List(ctx, regularUser, requests.ListFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, mine.ID, rows[0].ID)

	rows, err = svc.List(ctx, companyAdmin, requests.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = svc.List(ctx, systemAdmin, requests.ListFilter{Company: "clinica-norte"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = svc.Get(ctx, theirs.ID, regularUser)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Get(ctx, theirs.ID, companyAdmin)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, theirs.ID, foreignAdmin)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}
