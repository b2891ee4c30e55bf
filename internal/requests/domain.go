package requests

import (
	"strings"
	"time"
)

// Default catalog names applied when a create call names no type or priority.
const (
	DefaultRequestTypeName = "Mantenimiento"
	DefaultPriorityName    = "Media - Afecta parcialmente"
)

// Audit texts written to request_logs.
const (
	LogCreated = "Solicitud creada"
)

// TypeRef is the request type joined onto a request.
type TypeRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// ProcessRef is the process joined onto a request.
type ProcessRef struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// PriorityRef is the priority joined onto a request.
type PriorityRef struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Number int    `json:"number"`
}

// StatusRef is the status row joined onto a request.
type StatusRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CompanyRef is the company joined onto a request.
type CompanyRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// UserRef is the public projection of a user.
type UserRef struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
}

// Summary is a request row with its catalog references, as listed.
type Summary struct {
	ID            int64       `json:"id"`
	RequestCode   string      `json:"requestCode"`
	Subject       string      `json:"subject"`
	Description   string      `json:"description"`
	Location      string      `json:"location"`
	DateRequested time.Time   `json:"dateRequested"`
	CompanyID     int64       `json:"companyId"`
	RequesterID   int64       `json:"requesterId"`
	Type          TypeRef     `json:"type"`
	Process       ProcessRef  `json:"process"`
	Priority      PriorityRef `json:"priority"`
	Status        StatusRef   `json:"status"`
	Requester     UserRef     `json:"requester"`
	Company       CompanyRef  `json:"company"`
	PictureCount  int         `json:"pictureCount"`
}

// CurrentStatus parses the joined status name.
func (s Summary) CurrentStatus() (Status, bool) {
	return ParseStatus(s.Status.Name)
}

// Log is one audit entry of a request.
type Log struct {
	ID         int64     `json:"id"`
	RequestID  int64     `json:"requestId"`
	UserID     int64     `json:"userId"`
	ActionDone string    `json:"actionDone"`
	LogDate    time.Time `json:"logDate"`
	User       UserRef   `json:"user"`
}

// Detail is a request with its audit trail, newest entry first.
type Detail struct {
	Summary
	Logs []Log `json:"logs"`
}

// CreateInput is the payload of a create call.
type CreateInput struct {
	Subject         string `json:"subject" validate:"required,max=255"`
	Description     string `json:"description" validate:"required"`
	Location        string `json:"location" validate:"required,max=255"`
	ProcessID       int64  `json:"processId" validate:"required,gt=0"`
	RequestTypeID   int64  `json:"requestTypeId" validate:"gte=0"`
	RequestTypeName string `json:"requestTypeName"`
	PriorityID      int64  `json:"priorityId" validate:"gte=0"`
	PriorityName    string `json:"priorityName"`
	CompanySlug     string `json:"companySlug"`
}

func (in *CreateInput) normalize() {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.RequestTypeName = strings.TrimSpace(in.RequestTypeName)
	in.PriorityName = strings.TrimSpace(in.PriorityName)
	in.CompanySlug = strings.TrimSpace(in.CompanySlug)
	if in.RequestTypeID == 0 && in.RequestTypeName == "" {
		in.RequestTypeName = DefaultRequestTypeName
	}
	if in.PriorityID == 0 && in.PriorityName == "" {
		in.PriorityName = DefaultPriorityName
	}
}

// TransitionInput is the payload of a status change.
type TransitionInput struct {
	StatusName string `json:"statusName"`
	Comment    string `json:"comment"`
}

// ListFilter narrows a listing. Company and UserID are honoured for system
// administrators only.
type ListFilter struct {
	Status  string
	Company string
	UserID  int64
}

// NewRequest is the row inserted on create.
type NewRequest struct {
	Code          string
	Subject       string
	Description   string
	Location      string
	DateRequested time.Time
	CompanyID     int64
	ProcessID     int64
	PriorityID    int64
	RequestTypeID int64
	StatusID      int64
	RequesterID   int64
}

// Notification describes a request event delivered to interested users.
type Notification struct {
	RequestID int64    `json:"requestId"`
	Code      string   `json:"code"`
	Subject   string   `json:"subject"`
	Status    string   `json:"status"`
	ActorID   int64    `json:"actorId"`
	To        []string `json:"to"`
}
