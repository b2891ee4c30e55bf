package requests

import (
	"strings"

	"github.com/clinica-central/helpdesk/internal/shared"
)

// Status represents the lifecycle of a request. Values are the stored
// request_statuses names.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// legacyResolved is an older catalog name for the successful terminal status.
const legacyResolved = "Resolved"

var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// ParseStatus maps a status name onto the canonical Status. "Resolved" and
// "InProgress" are accepted as aliases.
func ParseStatus(name string) (Status, bool) {
	switch strings.TrimSpace(name) {
	case string(StatusPending):
		return StatusPending, true
	case string(StatusInProgress), "InProgress":
		return StatusInProgress, true
	case string(StatusCompleted), legacyResolved:
		return StatusCompleted, true
	case string(StatusCancelled):
		return StatusCancelled, true
	}
	return "", false
}

// StoredNames lists catalog names that may hold the status, canonical first.
func (s Status) StoredNames() []string {
	if s == StatusCompleted {
		return []string{string(StatusCompleted), legacyResolved}
	}
	return []string{string(s)}
}

// IsTerminal reports whether no further transitions or attachments are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// RequiresComment reports whether entering s needs a comment.
func (s Status) RequiresComment() bool {
	return s.IsTerminal()
}

// CanTransitionTo reports whether to is reachable from s in one step.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks the comment requirement and the transition table.
func ValidateTransition(from, to Status, comment string) error {
	if to.RequiresComment() && strings.TrimSpace(comment) == "" {
		return shared.NewError(shared.ErrMissingComment, "Comment is required for this status")
	}
	if !from.CanTransitionTo(to) {
		return shared.NewError(shared.ErrInvalidTransition, "No se puede cambiar de "+string(from)+" a "+string(to))
	}
	return nil
}

// TransitionLog renders the audit text written for a status change.
func TransitionLog(to Status, comment string) string {
	text := "Estado cambiado a " + string(to)
	if c := strings.TrimSpace(comment); c != "" {
		text += " - " + c
	}
	return text
}
