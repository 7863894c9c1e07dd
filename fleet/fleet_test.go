package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/vehicletype"
)

func spec(pos float64, lane int) NewVehicleSpec {
	info, _ := vehicletype.DefaultRegistry.Lookup("passenger")
	return NewVehicleSpec{
		Type:         info,
		Capability:   vehicletype.Human,
		Position:     phys.Meters(pos),
		Lane:         lane,
		Speed:        0,
		DesiredSpeed: 30,
		ArrivalPos:   phys.Meters(pos + 1000),
	}
}

func TestAddAssignsUniqueNonReusedIDs(t *testing.T) {
	f := New()
	id1 := f.Add(spec(0, 0))
	id2 := f.Add(spec(10, 0))
	assert.NotEqual(t, id1, id2)
	require.Equal(t, 2, f.Len())

	row, ok := f.Index(id1)
	require.True(t, ok)
	f.Remove(row)
	require.Equal(t, 1, f.Len())

	id3 := f.Add(spec(20, 0))
	assert.NotEqual(t, id1, id3)
	assert.NotEqual(t, id2, id3)

	_, ok = f.Index(id1)
	assert.False(t, ok, "removed id must not resolve")
	_, ok = f.Index(id2)
	assert.True(t, ok, "surviving id must still resolve after a swap-remove")
}

func TestLaneOrderSortsByPositionDescThenID(t *testing.T) {
	f := New()
	idA := f.Add(spec(100, 0))
	idB := f.Add(spec(200, 0))
	idC := f.Add(spec(200, 0)) // tie with B, higher id, breaks after B

	lanes := f.LaneOrder(1)
	require.Len(t, lanes[0], 3)

	gotIDs := make([]int, 3)
	for i, row := range lanes[0] {
		gotIDs[i] = f.At(row).ID
	}
	assert.Equal(t, []int{idB, idC, idA}, gotIDs)
}

func TestPredecessorsFrontMostHasNone(t *testing.T) {
	f := New()
	f.Add(spec(50, 0))
	backID := f.Add(spec(10, 0))

	preds := f.Predecessors(1)
	frontRow, _ := f.Index(backID)
	_ = frontRow
	lanes := f.LaneOrder(1)
	frontMostRow := lanes[0][0]
	assert.False(t, preds[frontMostRow].Valid)

	backRow := lanes[0][1]
	require.True(t, preds[backRow].Valid)
	assert.Equal(t, frontMostRow, preds[backRow].Row)
}
