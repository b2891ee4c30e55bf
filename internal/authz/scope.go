// Package authz holds the authorization guard and the request visibility rules.
package authz

import (
	"context"
	"slices"

	"github.com/clinica-central/helpdesk/internal/shared"
)

// Membership is a user's association with a company.
type Membership struct {
	CompanyID int64 `json:"companyId"`
	IsAdmin   bool  `json:"isAdmin"`
}

// Actor is a principal enriched with its stored role and company memberships.
type Actor struct {
	UserID      int64
	Email       string
	Role        shared.Role
	Memberships []Membership
}

// ActorLoader loads the stored role and memberships of a user.
type ActorLoader interface {
	LoadActor(ctx context.Context, userID int64) (Actor, error)
}

// IsSystemAdmin reports unrestricted access.
func (a Actor) IsSystemAdmin() bool { return a.Role.IsSystemAdmin() }

// IsCompanyAdmin reports the company-administrator role or an admin flag on any membership.
func (a Actor) IsCompanyAdmin() bool {
	if a.Role.IsCompanyAdmin() {
		return true
	}
	for _, m := range a.Memberships {
		if m.IsAdmin {
			return true
		}
	}
	return false
}

// CompanyIDs lists the companies the actor belongs to, in membership order.
func (a Actor) CompanyIDs() []int64 {
	ids := make([]int64, 0, len(a.Memberships))
	for _, m := range a.Memberships {
		ids = append(ids, m.CompanyID)
	}
	return ids
}

// BelongsTo reports membership in companyID.
func (a Actor) BelongsTo(companyID int64) bool {
	return slices.Contains(a.CompanyIDs(), companyID)
}

// FirstCompanyID returns the first membership's company.
func (a Actor) FirstCompanyID() (int64, bool) {
	if len(a.Memberships) == 0 {
		return 0, false
	}
	return a.Memberships[0].CompanyID, true
}

// ScopeKind enumerates the three visibility tiers.
type ScopeKind uint8

const (
	ScopeOwn ScopeKind = iota
	ScopeCompanies
	ScopeAll
)

// Scope is the set of requests an actor may read or act upon.
type Scope struct {
	Kind       ScopeKind
	UserID     int64
	CompanyIDs []int64
}

// Scope computes the actor's visibility tier.
func (a Actor) Scope() Scope {
	switch {
	case a.IsSystemAdmin():
		return Scope{Kind: ScopeAll, UserID: a.UserID}
	case a.IsCompanyAdmin():
		return Scope{Kind: ScopeCompanies, UserID: a.UserID, CompanyIDs: a.CompanyIDs()}
	default:
		return Scope{Kind: ScopeOwn, UserID: a.UserID}
	}
}

// Allows reports whether a request filed by requesterID against companyID is inside the scope.
func (s Scope) Allows(companyID, requesterID int64) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeCompanies:
		return slices.Contains(s.CompanyIDs, companyID)
	default:
		return requesterID == s.UserID
	}
}

// CanView is the read predicate used for request detail and pictures: the
// requester, a company admin of the request's company, or a system admin.
func (a Actor) CanView(companyID, requesterID int64) bool {
	if requesterID == a.UserID {
		return true
	}
	return a.Scope().Allows(companyID, requesterID)
}

// CanTransition is the status-write predicate: system admins, or company
// admins belonging to the request's company. Regular users never transition.
func (a Actor) CanTransition(companyID int64) bool {
	if a.IsSystemAdmin() {
		return true
	}
	return a.IsCompanyAdmin() && a.BelongsTo(companyID)
}

// CanFileFor reports whether the actor may file a request against companyID.
func (a Actor) CanFileFor(companyID int64) bool {
	return a.IsSystemAdmin() || a.BelongsTo(companyID)
}
