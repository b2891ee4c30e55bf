package users_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/shared"
	"github.com/clinica-central/helpdesk/internal/users"
)

type storedUser struct {
	user users.User
	hash string
}

type memRepo struct {
	roles     map[string]int64
	companies map[string]int64
	users     map[int64]*storedUser
	nextID    int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		roles: map[string]int64{
			shared.RoleNameSystemAdministrator:  1,
			shared.RoleNameCompanyAdministrator: 2,
			shared.RoleNameRegularUser:          3,
		},
		companies: map[string]int64{"clinica-central": 1, "clinica-norte": 2},
		users:     map[int64]*storedUser{},
	}
}

func (m *memRepo) roleName(id int64) string {
	for name, rid := range m.roles {
		if rid == id {
			return name
		}
	}
	return ""
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, users.Repository) error) error {
	snapshot := map[int64]storedUser{}
	for id, u := range m.users {
		snapshot[id] = *u
	}
	if err := fn(ctx, m); err != nil {
		m.users = map[int64]*storedUser{}
		for id, u := range snapshot {
			u := u
			m.users[id] = &u
		}
		return err
	}
	return nil
}

func (m *memRepo) List(_ context.Context, filter users.ListFilter, limit, offset int) ([]users.User, int, error) {
	var all []users.User
	for _, u := range m.users {
		if filter.Role != "" && u.user.Role != filter.Role {
			continue
		}
		all = append(all, u.user)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (users.User, error) {
	u, ok := m.users[id]
	if !ok {
		return users.User{}, shared.NewError(shared.ErrNotFound, "Usuario no encontrado")
	}
	return u.user, nil
}

func (m *memRepo) RoleID(_ context.Context, name string) (int64, error) {
	id, ok := m.roles[name]
	if !ok {
		return 0, shared.NewValidationError("Role not found", map[string]string{"roleName": name})
	}
	return id, nil
}

func (m *memRepo) CompanyID(_ context.Context, slug string) (int64, error) {
	id, ok := m.companies[slug]
	if !ok {
		return 0, shared.NewValidationError("Company not found", map[string]string{"companySlug": slug})
	}
	return id, nil
}

func (m *memRepo) Insert(_ context.Context, rec users.Record) (int64, error) {
	for _, u := range m.users {
		if u.user.Email == rec.Email {
			return 0, shared.NewError(shared.ErrConflict, "El correo ya está registrado")
		}
	}
	m.nextID++
	m.users[m.nextID] = &storedUser{
		user: users.User{ID: m.nextID, Email: rec.Email, Name: rec.Name, LastName: rec.LastName, Role: m.roleName(rec.RoleID), IsActive: true, Companies: []users.Membership{}},
		hash: rec.PasswordHash,
	}
	return m.nextID, nil
}

func (m *memRepo) Update(_ context.Context, id int64, rec users.Record) error {
	u, ok := m.users[id]
	if !ok {
		return shared.NewError(shared.ErrNotFound, "Usuario no encontrado")
	}
	if rec.Name != "" {
		u.user.Name = rec.Name
	}
	if rec.RoleID != 0 {
		u.user.Role = m.roleName(rec.RoleID)
	}
	if rec.PasswordHash != "" {
		u.hash = rec.PasswordHash
	}
	if rec.IsActive != nil {
		u.user.IsActive = *rec.IsActive
	}
	return nil
}

func (m *memRepo) ReplaceMembership(_ context.Context, userID, companyID int64, isAdmin bool) error {
	u := m.users[userID]
	for slug, id := range m.companies {
		if id == companyID {
			u.user.Companies = []users.Membership{{CompanyID: id, Slug: slug, IsAdmin: isAdmin}}
		}
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return shared.NewError(shared.ErrNotFound, "Usuario no encontrado")
	}
	delete(m.users, id)
	return nil
}

func (m *memRepo) Actor(_ context.Context, id int64) (authz.Actor, error) {
	u, ok := m.users[id]
	if !ok || !u.user.IsActive {
		return authz.Actor{}, shared.NewError(shared.ErrNotFound, "Usuario no encontrado")
	}
	actor := authz.Actor{UserID: id, Email: u.user.Email, Role: shared.ParseRole(u.user.Role)}
	for _, c := range u.user.Companies {
		actor.Memberships = append(actor.Memberships, authz.Membership{CompanyID: c.CompanyID, IsAdmin: c.IsAdmin})
	}
	return actor, nil
}

func newService(repo *memRepo) *users.Service {
	svc := users.NewService(repo, nil)
	svc.SetHashCost(bcrypt.MinCost)
	return svc
}

func TestCreateDefaultsToRegularUser(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newService(repo)

	user, err := svc.Create(ctx, users.CreateInput{
		Email: " Ana@Clinica.cl ", Name: "Ana", LastName: "Pérez", Password: "secreto123", CompanySlug: "clinica-central",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@clinica.cl", user.Email)
	assert.Equal(t, shared.RoleNameRegularUser, user.Role)
	require.Len(t, user.Companies, 1)
	assert.Equal(t, "clinica-central", user.Companies[0].Slug)
	assert.False(t, user.Companies[0].IsAdmin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[user.ID].hash), []byte("secreto123")))

	_, err = svc.Create(ctx, users.CreateInput{Email: "ana@clinica.cl", Name: "Otra", LastName: "Ana", Password: "secreto123"})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateRejectsUnknownRoleAndCompany(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newService(repo)

	_, err := svc.Create(ctx, users.CreateInput{Email: "a@b.cl", Name: "A", LastName: "B", Password: "secreto123", RoleName: "Root"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, users.CreateInput{Email: "a@b.cl", Name: "A", LastName: "B", Password: "secreto123", CompanySlug: "nope"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, repo.users)

	_, err = svc.Create(ctx, users.CreateInput{Email: "a@b.cl", Name: "A", LastName: "B", Password: "corta"})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "min", verr.Fields["password"])
}

func TestUpdateReplacesMembership(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newService(repo)
	user, err := svc.Create(ctx, users.CreateInput{Email: "luis@clinica.cl", Name: "Luis", LastName: "Soto", Password: "secreto123", CompanySlug: "clinica-central"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, user.ID, users.UpdateInput{Name: "Luis"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	updated, err := svc.Update(ctx, user.ID, users.UpdateInput{
		RoleName: shared.RoleNameCompanyAdministrator, CompanySlug: "clinica-norte", IsCompanyAdmin: true,
	})
	require.NoError(t, err)
	assert.Equal(t, shared.RoleNameCompanyAdministrator, updated.Role)
	require.Len(t, updated.Companies, 1)
	assert.Equal(t, "clinica-norte", updated.Companies[0].Slug)

	actor, err := svc.LoadActor(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, actor.IsCompanyAdmin())
	assert.Equal(t, []int64{2}, actor.CompanyIDs())
}

func TestLoadActorRejectsInactive(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newService(repo)
	user, err := svc.Create(ctx, users.CreateInput{Email: "x@clinica.cl", Name: "X", LastName: "Y", Password: "secreto123"})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(ctx, user.ID, users.UpdateInput{CompanySlug: "clinica-central", IsActive: &inactive})
	require.NoError(t, err)
	_, err = svc.LoadActor(ctx, user.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListPaginates(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newService(repo)
	for _, email := range []string{"a@c.cl", "b@c.cl", "c@c.cl"} {
		_, err := svc.Create(ctx, users.CreateInput{Email: email, Name: "N", LastName: "L", Password: "secreto123"})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, users.ListFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "c@c.cl", page.Data[0].Email)

	require.NoError(t, svc.Delete(ctx, page.Data[0].ID))
	assert.ErrorIs(t, svc.Delete(ctx, page.Data[0].ID), shared.ErrNotFound)
}
