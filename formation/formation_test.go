package formation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/platoon"
)

func TestLookupKnownAndUnknown(t *testing.T) {
	a, err := Lookup("SpeedPosition")
	require.NoError(t, err)
	assert.Equal(t, "SpeedPosition", a.Name())

	_, err = Lookup("DoesNotExist")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestSpeedPositionAssignsNearbyLowScoreCandidate(t *testing.T) {
	algo := &SpeedPosition{Alpha: 1.0, Beta: 0.01, Threshold: 5.0}
	snap := Snapshot{
		Vehicles: []VehicleView{
			{ID: 1, Position: 90, Lane: 0, DesiredSpeed: 30, PlatoonID: platoon.NoPlatoon},
		},
		Platoons: []PlatoonView{
			{ID: 7, TailPosition: 100, Lane: 0, DesiredSpeed: 30, Size: 1},
		},
		CommunicationRange: 1000,
	}
	cmds := algo.OnStep(snap)
	require.Len(t, cmds.Joins, 1)
	assert.Equal(t, 1, cmds.Joins[0].VehicleID)
	assert.Equal(t, 7, cmds.Joins[0].PlatoonID)
}

func TestSpeedPositionResolvesConflictLowerIDWins(t *testing.T) {
	algo := &SpeedPosition{Alpha: 1.0, Beta: 0.01, Threshold: 50.0}
	snap := Snapshot{
		Vehicles: []VehicleView{
			{ID: 5, Position: 90, Lane: 0, DesiredSpeed: 30, PlatoonID: platoon.NoPlatoon},
			{ID: 2, Position: 91, Lane: 0, DesiredSpeed: 30, PlatoonID: platoon.NoPlatoon},
		},
		Platoons: []PlatoonView{
			{ID: 7, TailPosition: 100, Lane: 0, DesiredSpeed: 30, Size: 1},
		},
		CommunicationRange: 1000,
	}
	cmds := algo.OnStep(snap)
	require.Len(t, cmds.Joins, 1)
	assert.Equal(t, 2, cmds.Joins[0].VehicleID)
}

type fakeSolver struct {
	assignments []Assignment
	err         error
}

func (f *fakeSolver) Solve(ctx context.Context, snap Snapshot) ([]Assignment, error) {
	return f.assignments, f.err
}

func TestOptimalFallsBackToGreedyOnSolverError(t *testing.T) {
	snap := Snapshot{
		Vehicles: []VehicleView{
			{ID: 1, Position: 90, Lane: 0, DesiredSpeed: 30, PlatoonID: platoon.NoPlatoon},
		},
		Platoons: []PlatoonView{
			{ID: 7, TailPosition: 100, Lane: 0, DesiredSpeed: 30, Size: 1},
		},
		CommunicationRange: 1000,
	}
	opt := &Optimal{
		Solver:   &fakeSolver{err: ErrSolverTimeout},
		Deadline: phys.SimTimeFromSeconds(0.01),
		Fallback: Greedy{Alpha: 1.0, Beta: 0.01, Threshold: 50.0},
	}
	cmds := opt.OnStep(snap)
	require.Len(t, cmds.Joins, 1)
	assert.Equal(t, 1, opt.TimeoutCount)
}
