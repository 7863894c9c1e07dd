package collision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFindsOverlappingConsecutivePair(t *testing.T) {
	lane := []LaneVehicle{
		{ID: 1, Lane: 0, Position: 100, Length: 4},
		{ID: 2, Lane: 0, Position: 98, Length: 4}, // front rear at 96, back at 98 -> overlap
		{ID: 3, Lane: 0, Position: 50, Length: 4},
	}
	pairs := Detect([][]LaneVehicle{lane})
	require.Len(t, pairs, 1)
	assert.Equal(t, 1, pairs[0].Front.ID)
	assert.Equal(t, 2, pairs[0].Back.ID)
	assert.InDelta(t, 2.0, float64(pairs[0].Overlap), 1e-9)
}

func TestDetectNoneWhenProperlySpaced(t *testing.T) {
	lane := []LaneVehicle{
		{ID: 1, Lane: 0, Position: 100, Length: 4},
		{ID: 2, Lane: 0, Position: 90, Length: 4},
	}
	pairs := Detect([][]LaneVehicle{lane})
	assert.Empty(t, pairs)
}

func TestTeleportSeparationPlacesBackAtFrontRear(t *testing.T) {
	lane := []LaneVehicle{
		{ID: 1, Lane: 0, Position: 100, Length: 4},
		{ID: 2, Lane: 0, Position: 98, Length: 4},
	}
	pairs := Detect([][]LaneVehicle{lane})
	require.Len(t, pairs, 1)
	newPos := TeleportSeparation(pairs[0])
	assert.Equal(t, 96.0, float64(newPos))
}

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"warn", "teleport", "abort"} {
		_, ok := ParsePolicy(s)
		assert.True(t, ok, s)
	}
	_, ok := ParsePolicy("bogus")
	assert.False(t, ok)
}
