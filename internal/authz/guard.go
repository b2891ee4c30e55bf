package authz

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/clinica-central/helpdesk/internal/platform/httpx"
	"github.com/clinica-central/helpdesk/internal/shared"
)

// RoleHeader names the escalation header honoured when TrustRoleHeader is set.
const RoleHeader = "x-user-role"

// Guard gates handlers on authentication and role.
type Guard struct {
	Actors ActorLoader
	Logger *slog.Logger
	// TrustRoleHeader accepts RoleHeader as a system-administrator credential.
	TrustRoleHeader bool
}

// Authenticated returns the request principal or ErrUnauthorized.
func (g Guard) Authenticated(r *http.Request) (shared.Principal, error) {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		return shared.Principal{}, shared.ErrUnauthorized
	}
	return p, nil
}

// SystemAdmin returns nil when the caller is a system administrator, ErrForbidden otherwise.
func (g Guard) SystemAdmin(r *http.Request) error {
	if g.TrustRoleHeader && shared.ParseRole(r.Header.Get(RoleHeader)).IsSystemAdmin() {
		return nil
	}
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok || !p.Role.IsSystemAdmin() {
		return shared.NewError(shared.ErrForbidden, "Forbidden: system administrator role required.")
	}
	return nil
}

// Actor resolves the principal and loads its stored role and memberships.
func (g Guard) Actor(r *http.Request) (Actor, error) {
	p, err := g.Authenticated(r)
	if err != nil {
		return Actor{}, err
	}
	if g.Actors == nil {
		return Actor{UserID: p.UserID, Email: p.Email, Role: p.Role}, nil
	}
	actor, err := g.Actors.LoadActor(r.Context(), p.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Actor{}, shared.ErrUnauthorized
		}
		return Actor{}, fmt.Errorf("authz: load actor: %w", err)
	}
	return actor, nil
}

// RequireAuthenticated rejects requests without a session with 401.
func (g Guard) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := g.Authenticated(r); err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSystemAdmin rejects callers that are not system administrators with 403.
func (g Guard) RequireSystemAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.SystemAdmin(r); err != nil {
			if g.Logger != nil {
				g.Logger.Debug("system admin required", slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
