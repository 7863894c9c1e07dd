package spawner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/simrand"
	"github.com/overdrivelabs/platoonsim/vehicletype"
)

func TestRampsSpacedByInterval(t *testing.T) {
	ramps := Ramps(1000, 250)
	require.Equal(t, []phys.Meters{0, 250, 500, 750}, ramps)
}

func TestScheduleDepartNumberProducesTotalCount(t *testing.T) {
	p := Params{Method: DepartNumber, Total: 5, IntervalSec: 2}
	info, _ := vehicletype.DefaultRegistry.Lookup("passenger")
	out := Schedule(p, 1.0, func(i int) PendingVehicle {
		return PendingVehicle{Type: info, Capability: vehicletype.Human, DesiredSpeed: 30}
	})
	require.Len(t, out, 5)
	for i, v := range out {
		assert.Equal(t, phys.SimTimeFromSeconds(float64(i)*2), v.DepartTime)
	}
}

func TestFirstRampAtOrAfter(t *testing.T) {
	ramps := []phys.Meters{0, 100, 200, 300}
	assert.Equal(t, phys.Meters(200), firstRampAtOrAfter(ramps, 150))
	assert.Equal(t, phys.Meters(0), firstRampAtOrAfter(ramps, 0))
	assert.Equal(t, phys.Meters(300), firstRampAtOrAfter(ramps, 1000))
}

func TestSafeToInsertRejectsTightGap(t *testing.T) {
	site := InsertionSite{Position: 98, Lane: 0}
	ok := SafeToInsert(site, 4, 2, true, 100, 4)
	assert.False(t, ok, "gap of -2 must not be safe")

	site2 := InsertionSite{Position: 50, Lane: 0}
	ok2 := SafeToInsert(site2, 4, 2, true, 100, 4)
	assert.True(t, ok2)
}

func TestPreFillCountScalesWithDensityAndLength(t *testing.T) {
	p := PreFillParams{DensityPerKmPerLane: 10, RoadLength: 5000, NumLanes: 2}
	assert.Equal(t, 100, PreFillCount(p))
}

func TestPreFillSpeedStaysWithinDesired(t *testing.T) {
	rng := simrand.New(7)
	for i := 0; i < 20; i++ {
		got := PreFillSpeed(30, rng)
		assert.GreaterOrEqual(t, float64(got), 0.0)
		assert.LessOrEqual(t, float64(got), 30.0)
	}
}
