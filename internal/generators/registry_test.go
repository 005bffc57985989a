package generators

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenGenerator always fails validation.
type brokenGenerator struct{}

func (brokenGenerator) Generate(context.Context, GenerationContext) (*GeneratedContent, error) {
	return nil, errors.New("unusable")
}

func (brokenGenerator) Validate() error { return errors.New("missing dependency") }

func TestRegistry_RegisterAndList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Registration{ID: "a", Priority: P2, Generator: okGenerator{}}))
	require.NoError(t, r.Register(Registration{ID: "b", Priority: P3, Generator: okGenerator{}}))

	regs := r.List()
	require.Len(t, regs, 2)
	assert.Equal(t, "a", regs[0].ID)
	assert.Equal(t, "b", regs[1].ID)
}

func TestRegistry_RejectsInvalidGenerator(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Registration{ID: "broken", Generator: brokenGenerator{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing dependency")
	assert.Empty(t, r.List())
}

func TestRegistry_RejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Registration{ID: "dup", Generator: okGenerator{}}))
	assert.Error(t, r.Register(Registration{ID: "dup", Generator: okGenerator{}}))
}

func TestRegistry_RejectsMissingFields(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(Registration{Generator: okGenerator{}}))
	assert.Error(t, r.Register(Registration{ID: "nogen"}))
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Registration{ID: "a", Generator: okGenerator{}}))

	assert.True(t, r.Unregister("a"))
	assert.False(t, r.Unregister("a"))
	assert.Empty(t, r.List())
}

func TestRegistry_GetByID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Registration{ID: "a", Name: "Alpha", Generator: okGenerator{}}))

	reg, ok := r.GetByID("a")
	require.True(t, ok)
	assert.Equal(t, "Alpha", reg.Name)

	_, ok = r.GetByID("missing")
	assert.False(t, ok)
}
