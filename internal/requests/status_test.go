package requests

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinica-central/helpdesk/internal/shared"
)

var allStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

func TestValidateTransitionTable(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusPending, StatusInProgress}:   true,
		{StatusPending, StatusCancelled}:    true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusCancelled}: true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			err := ValidateTransition(from, to, "Reparado")
			if legal[[2]Status{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, shared.ErrInvalidTransition, "%s -> %s", from, to)
			}
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		assert.True(t, from.IsTerminal())
		for _, to := range allStatuses {
			assert.Error(t, ValidateTransition(from, to, "comentario"))
		}
	}
}

func TestClosingTransitionsRequireComment(t *testing.T) {
	cases := []struct{ from, to Status }{
		{StatusPending, StatusCancelled},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusCancelled},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, ValidateTransition(tc.from, tc.to, ""), shared.ErrMissingComment)
		assert.ErrorIs(t, ValidateTransition(tc.from, tc.to, "   "), shared.ErrMissingComment)
	}
	assert.NoError(t, ValidateTransition(StatusPending, StatusInProgress, ""))
}

func TestParseStatusAliases(t *testing.T) {
	cases := map[string]Status{
		"Pending":     StatusPending,
		"In Progress": StatusInProgress,
		"InProgress":  StatusInProgress,
		"Completed":   StatusCompleted,
		"Resolved":    StatusCompleted,
		" Cancelled ": StatusCancelled,
	}
	for in, want := range cases {
		got, ok := ParseStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseStatus("Archived")
	assert.False(t, ok)
	assert.Equal(t, []string{"Completed", "Resolved"}, StatusCompleted.StoredNames())
}

func TestTransitionLog(t *testing.T) {
	assert.Equal(t, "Estado cambiado a In Progress", TransitionLog(StatusInProgress, ""))
	assert.Equal(t, "Estado cambiado a Completed - Reparado", TransitionLog(StatusCompleted, " Reparado "))
}

func TestNextCode(t *testing.T) {
	assert.Equal(t, "MT-001", NextCode("MT", "", 0))
	assert.Equal(t, "MT-002", NextCode("MT", "MT-001", 1))
	assert.Equal(t, "MT-1000", NextCode("MT", "MT-999", 999))
	assert.Equal(t, "MT-005", NextCode("MT", "MT-legacy", 4))

	seq, ok := ParseSequence("ST-042")
	assert.True(t, ok)
	assert.EqualValues(t, 42, seq)
}
