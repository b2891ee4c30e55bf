package users

import (
	"strings"
	"time"

	"github.com/clinica-central/helpdesk/internal/shared"
)

// User is an account as listed to administrators.
type User struct {
	ID        int64        `json:"id"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	LastName  string       `json:"lastName"`
	Role      string       `json:"role"`
	IsActive  bool         `json:"isActive"`
	CreatedAt time.Time    `json:"createdAt"`
	Companies []Membership `json:"companies"`
}

// Membership is a user's association with one company.
type Membership struct {
	CompanyID int64  `json:"companyId"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	IsAdmin   bool   `json:"isAdmin"`
}

// ListFilter narrows the paginated user listing.
type ListFilter struct {
	Page     int
	PageSize int
	Search   string
	Role     string
	Company  string
}

// Page is one page of users.
type Page struct {
	Data []User `json:"data"`
	shared.Pagination
}

// CreateInput is the body of a user creation.
type CreateInput struct {
	Email          string `json:"email" validate:"required,email"`
	Name           string `json:"name" validate:"required,max=100"`
	LastName       string `json:"lastName" validate:"required,max=100"`
	Password       string `json:"password" validate:"required,min=8"`
	RoleName       string `json:"roleName"`
	CompanySlug    string `json:"companySlug"`
	IsCompanyAdmin bool   `json:"isCompanyAdmin"`
}

func (in *CreateInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.LastName = strings.TrimSpace(in.LastName)
	in.RoleName = strings.TrimSpace(in.RoleName)
	in.CompanySlug = strings.TrimSpace(in.CompanySlug)
	if in.RoleName == "" {
		in.RoleName = shared.RoleNameRegularUser
	}
}

// UpdateInput replaces a user's profile and company membership. Empty
// optional fields keep their stored value.
type UpdateInput struct {
	Email          string `json:"email" validate:"omitempty,email"`
	Name           string `json:"name" validate:"omitempty,max=100"`
	LastName       string `json:"lastName" validate:"omitempty,max=100"`
	Password       string `json:"password" validate:"omitempty,min=8"`
	RoleName       string `json:"roleName"`
	CompanySlug    string `json:"companySlug" validate:"required"`
	IsCompanyAdmin bool   `json:"isCompanyAdmin"`
	IsActive       *bool  `json:"isActive"`
}

func (in *UpdateInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.LastName = strings.TrimSpace(in.LastName)
	in.RoleName = strings.TrimSpace(in.RoleName)
	in.CompanySlug = strings.TrimSpace(in.CompanySlug)
}

// Record is the row written on insert and update. Empty strings and a nil
// IsActive leave the stored column untouched on update.
type Record struct {
	Email        string
	Name         string
	LastName     string
	PasswordHash string
	RoleID       int64
	IsActive     *bool
}
