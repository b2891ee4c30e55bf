package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinica-central/helpdesk/internal/auth"
	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/session"
	"github.com/clinica-central/helpdesk/internal/shared"
	"github.com/clinica-central/helpdesk/internal/users"
	_ "github.com/clinica-central/helpdesk/testing"
)

type stubRepo struct {
	user *auth.Credentials
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Credentials, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

type stubProfiles struct{}

func (stubProfiles) Get(ctx context.Context, id int64) (users.User, error) {
	return users.User{ID: id, Email: "ana@clinica.cl", Role: shared.RoleNameRegularUser, Companies: []users.Membership{{CompanyID: 1, Slug: "clinica-central"}}}, nil
}

func newRouter(t *testing.T, user *auth.Credentials) (http.Handler, *session.Resolver) {
	t.Helper()
	resolver := session.NewResolver(session.NewCodec("test-secret", 0), "", false, nil)
	handler := auth.NewHandler(nil, auth.NewService(&stubRepo{user: user}), resolver, stubProfiles{}, authz.Guard{})
	r := chi.NewRouter()
	r.Use(resolver.Middleware)
	r.Route("/api", handler.MountRoutes)
	return r, resolver
}

func activeUser(t *testing.T, active bool) *auth.Credentials {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.Credentials{ID: 1, Email: "ana@clinica.cl", Name: "Ana", LastName: "Pérez", Role: shared.RoleNameRegularUser, PasswordHash: string(hashed), IsActive: active}
}

func login(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:5555"
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestLoginInvalidCredentials(t *testing.T) {
	router, _ := newRouter(t, activeUser(t, true))

	res := login(router, `{"email":"ana@clinica.cl","password":"wrongpass"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Credenciales inválidas") {
		t.Fatalf("expected error message in response, got %s", res.Body.String())
	}
	if len(res.Result().Cookies()) != 0 {
		t.Fatalf("no cookie expected on failure")
	}
}

func TestLoginInactiveUser(t *testing.T) {
	router, _ := newRouter(t, activeUser(t, false))
	if res := login(router, `{"email":"ana@clinica.cl","password":"correctpass"}`); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginMissingFields(t *testing.T) {
	router, _ := newRouter(t, nil)
	res := login(router, `{"email":"ana@clinica.cl"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Email y contraseña son requeridos") {
		t.Fatalf("unexpected body %s", res.Body.String())
	}
}

func TestLoginSetsSessionAndMe(t *testing.T) {
	router, resolver := newRouter(t, activeUser(t, true))

	res := login(router, `{"email":" Ana@Clinica.cl ","password":"correctpass"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var body struct {
		User auth.Profile `json:"user"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User.ID != 1 || body.User.Role != shared.RoleNameRegularUser {
		t.Fatalf("unexpected profile %+v", body.User)
	}

	var cookie *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == resolver.CookieName() {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	router.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("expected 200 from /me, got %d", me.Code)
	}
	if !strings.Contains(me.Body.String(), "clinica-central") {
		t.Fatalf("expected companies in profile, got %s", me.Body.String())
	}
}

func TestMeRequiresSession(t *testing.T) {
	router, _ := newRouter(t, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	router, resolver := newRouter(t, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	cookies := res.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != resolver.CookieName() || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected expired session cookie, got %+v", cookies)
	}
}

func TestLoginRateLimited(t *testing.T) {
	router, _ := newRouter(t, nil)
	var last int
	for i := 0; i <= auth.LoginRateLimit; i++ {
		last = login(router, `{"email":"x@y.cl","password":"whatever"}`).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d attempts, got %d", auth.LoginRateLimit, last)
	}
}
