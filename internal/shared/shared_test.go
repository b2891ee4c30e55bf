package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Clínica Central":        "clinica-central",
		"  Hospital San José ":   "hospital-san-jose",
		"Óptica & Co. (Norte)":   "optica-co-norte",
		"---":                    "",
		"Centro Médico Ñuñoa 24": "centro-medico-nunoa-24",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestUniqueSlugAppendsCounter(t *testing.T) {
	existing := map[string]bool{"clinica-central": true, "clinica-central-1": true}
	slug, err := UniqueSlug("Clínica Central", func(s string) (bool, error) {
		return existing[s], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "clinica-central-2", slug)
}

func TestUniqueSlugPropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := UniqueSlug("x", func(string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestRoleParsing(t *testing.T) {
	for _, name := range RoleNames() {
		role := ParseRole(name)
		assert.NotEqual(t, RoleUnknown, role)
		assert.Equal(t, name, role.Name())
	}
	assert.Equal(t, RoleUnknown, ParseRole("Root"))
	assert.True(t, ParseRole("Systems Administrator").IsSystemAdmin())
	assert.False(t, ParseRole("Company Administrator").IsSystemAdmin())
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("delete process: %w", &InUseError{Count: 3})
	assert.ErrorIs(t, err, ErrInUse)
	var inUse *InUseError
	require.True(t, errors.As(err, &inUse))
	assert.EqualValues(t, 3, inUse.Count)

	assert.ErrorIs(t, NewValidationError("x", nil), ErrValidation)
	assert.ErrorIs(t, NewError(ErrNotFound, "Imagen no encontrada"), ErrNotFound)
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0, 25)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PageSize)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, p.Offset())

	p = NewPagination(3, 10, 25)
	assert.Equal(t, 20, p.Offset())
}
