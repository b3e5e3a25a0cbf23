package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New[func() string]()
	require.NoError(t, r.Register("res.users", "team_id", func() string { return "team" }))

	h, ok := r.Lookup("res.users", "team_id")
	require.True(t, ok)
	assert.Equal(t, "team", h())

	_, ok = r.Lookup("res.users", "company_id")
	assert.False(t, ok)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Register("crm.lead", "domain.raw", 1))

	err := r.Register("crm.lead", "domain.raw", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crm.lead#domain.raw")

	assert.Panics(t, func() { r.MustRegister("crm.lead", "domain.raw", 3) })
}

func TestRegistry_NilLookup(t *testing.T) {
	var r *Registry[int]
	_, ok := r.Lookup("any", "thing")
	assert.False(t, ok)
}

func TestRegistry_KeysSorted(t *testing.T) {
	r := New[int]()
	r.MustRegister("sale.order", "b", 1)
	r.MustRegister("crm.lead", "z", 2)
	r.MustRegister("crm.lead", "a", 3)

	assert.Equal(t, []Key{
		{Model: "crm.lead", Point: "a"},
		{Model: "crm.lead", Point: "z"},
		{Model: "sale.order", Point: "b"},
	}, r.Keys())
}
