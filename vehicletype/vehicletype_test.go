package vehicletype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryLookup(t *testing.T) {
	info, ok := DefaultRegistry.Lookup("passenger")
	require.True(t, ok)
	assert.Equal(t, "passenger", info.Name)
	assert.Equal(t, EmissionClassPetrol, info.Emission)

	_, ok = DefaultRegistry.Lookup("nonexistent")
	assert.False(t, ok)
}

func TestNewRegistryDoesNotPanicOnUniqueNames(t *testing.T) {
	// A map cannot carry duplicate keys, so NewRegistry's duplicate-name
	// panic is unreachable; a registry built from distinct names must be
	// accepted without panicking.
	entries := map[string]Info{"car": {Name: "car"}}
	assert.NotPanics(t, func() { NewRegistry(entries) })
}

func TestNamesIncludesAllRegisteredTypes(t *testing.T) {
	names := DefaultRegistry.Names()
	assert.ElementsMatch(t, []string{"passenger", "truck"}, names)
}

func TestCapabilityString(t *testing.T) {
	assert.Equal(t, "human", Human.String())
	assert.Equal(t, "acc", ACC.String())
	assert.Equal(t, "cacc", CACC.String())
	assert.Equal(t, "unknown", Capability(99).String())
}
