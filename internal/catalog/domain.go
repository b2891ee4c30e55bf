// Package catalog manages the reference data requests point at: processes,
// priorities, request types, statuses and companies with their process links.
package catalog

import "time"

// Process is a workflow area a request is filed under.
type Process struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	RequestCount int64  `json:"requestCount"`
}

// Priority orders requests by urgency. Lower numbers come first.
type Priority struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Number       int    `json:"number"`
	RequestCount int64  `json:"requestCount"`
}

// RequestType carries the prefix of generated request codes.
type RequestType struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	RequestCount int64  `json:"requestCount"`
}

// RequestStatus is one row of the fixed status catalog.
type RequestStatus struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Company is a tenant of the helpdesk.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	Members   []Member  `json:"users,omitempty"`
}

// Member is a user associated with a company.
type Member struct {
	UserID   int64  `json:"userId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
	Role     string `json:"role"`
	IsAdmin  bool   `json:"isAdmin"`
}

// CompanyProcess links a process to a company.
type CompanyProcess struct {
	CompanyID    int64   `json:"companyId"`
	ProcessID    int64   `json:"processId"`
	IsEnabled    bool    `json:"isEnabled"`
	Process      Process `json:"process"`
	RequestCount int64   `json:"requestCount"`
}

// CompanyProcesses is a company with its process links.
type CompanyProcesses struct {
	Company   Company          `json:"company"`
	Processes []CompanyProcess `json:"processes"`
}

// ProcessInput creates or patches a process. Nil fields are left unchanged on update.
type ProcessInput struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// PriorityInput creates or patches a priority.
type PriorityInput struct {
	Name   *string `json:"name"`
	Number *int    `json:"number"`
}

// RequestTypeInput creates or updates a request type.
type RequestTypeInput struct {
	Name string  `json:"name"`
	Code *string `json:"code"`
}

// CompanyUserInput describes the administrator created together with a company.
type CompanyUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	LastName string `json:"lastName" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	IsAdmin  *bool  `json:"isAdmin"`
}

// CompanyInput creates or patches a company.
type CompanyInput struct {
	Name    *string           `json:"name"`
	Address *string           `json:"address"`
	User    *CompanyUserInput `json:"user"`
}

// LinkInput links a process to a company.
type LinkInput struct {
	ProcessID int64 `json:"processId"`
}

// ToggleInput enables or disables a company process link.
type ToggleInput struct {
	IsEnabled *bool `json:"isEnabled"`
}
