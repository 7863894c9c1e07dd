package carfollow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/simrand"
)

func TestHumanFreeFlowAcceleratesTowardDesired(t *testing.T) {
	rng := simrand.New(1337)
	in := Input{
		Speed:        10,
		DesiredSpeed: 20,
		MaxAccel:     2,
		MaxDecel:     4.5,
		StepLength:   1.0,
		HasLeader:    false,
	}
	got := Human(in, HumanParams{ReactionTime: 1.0, Imperfection: 0.2}, rng)
	assert.LessOrEqual(t, float64(got), 12.0)
	assert.Greater(t, float64(got), 10.0)
}

func TestHumanNeverExceedsDesiredSpeed(t *testing.T) {
	rng := simrand.New(42)
	in := Input{
		Speed:        19.9,
		DesiredSpeed: 20,
		MaxAccel:     10,
		MaxDecel:     4.5,
		StepLength:   1.0,
		HasLeader:    false,
	}
	for i := 0; i < 50; i++ {
		got := Human(in, HumanParams{ReactionTime: 1.0, Imperfection: 0.2}, rng)
		assert.LessOrEqual(t, float64(got), 20.0)
		assert.GreaterOrEqual(t, float64(got), 0.0)
	}
}

func TestACCRespectsHeadwaySafeSpeed(t *testing.T) {
	in := Input{
		Speed:        20,
		DesiredSpeed: 30,
		MaxAccel:     3,
		MaxDecel:     4.5,
		StepLength:   1.0,
		HasLeader:    true,
		Gap:          10, // tight gap relative to headway time
		LeaderSpeed:  20,
	}
	got := ACC(in, ACCParams{HeadwayTime: 1.0})
	assert.LessOrEqual(t, float64(got), 10.0+1e-9)
}

func TestCACCFollowingTracksLeaderAtSpacing(t *testing.T) {
	in := Input{
		Speed:        20,
		DesiredSpeed: 30,
		MaxAccel:     5,
		MaxDecel:     5,
		StepLength:   1.0,
		HasLeader:    true,
		Gap:          5, // exactly at spacing distance
		LeaderSpeed:  20,
	}
	got := CACC(in, CACCParams{SpacingDistance: 5, ACCFallback: ACCParams{HeadwayTime: 1.0}}, true)
	assert.Equal(t, phys.MetersPerSec(20), got)
}

// TestCACCPlatoonHoldsGapAndMatchesLeaderSpeedEveryStep covers spec.md §8's
// CACC platoon scenario at the single-pair level: starting exactly at the
// spacing distance behind a constant-speed leader, a CACC follower must hold
// gap == SpacingDistance (within 1cm) and speed == leader speed at every
// step, not just once steady state is reached.
func TestCACCPlatoonHoldsGapAndMatchesLeaderSpeedEveryStep(t *testing.T) {
	const (
		leaderSpeed     = phys.MetersPerSec(25)
		leaderLength    = phys.Meters(5)
		spacingDistance = phys.Meters(5)
		stepLength      = 1.0
	)
	params := CACCParams{SpacingDistance: spacingDistance, ACCFallback: ACCParams{HeadwayTime: 1.0}}

	var leaderPos phys.Meters
	followerPos := leaderPos - leaderLength - spacingDistance
	followerSpeed := leaderSpeed

	for step := 0; step < 200; step++ {
		gap := GapAhead(followerPos, leaderPos, leaderLength)
		require.InDelta(t, float64(spacingDistance), float64(gap), 0.01, "step %d: gap drifted from spacing distance", step)
		require.Equal(t, leaderSpeed, followerSpeed, "step %d: follower speed diverged from leader speed", step)

		in := Input{
			Speed:        followerSpeed,
			DesiredSpeed: 30,
			MaxAccel:     3,
			MaxDecel:     4.5,
			StepLength:   stepLength,
			HasLeader:    true,
			Gap:          gap,
			LeaderSpeed:  leaderSpeed,
		}
		followerSpeed = CACC(in, params, true)

		leaderPos += phys.Meters(float64(leaderSpeed) * stepLength)
		followerPos += phys.Meters(float64(followerSpeed) * stepLength)
	}
}

func TestCACCFallsBackToACCWhenNotFollowing(t *testing.T) {
	in := Input{
		Speed:        20,
		DesiredSpeed: 30,
		MaxAccel:     3,
		MaxDecel:     4.5,
		StepLength:   1.0,
		HasLeader:    true,
		Gap:          10,
		LeaderSpeed:  20,
	}
	gotCACC := CACC(in, CACCParams{SpacingDistance: 5, ACCFallback: ACCParams{HeadwayTime: 1.0}}, false)
	gotACC := ACC(in, ACCParams{HeadwayTime: 1.0})
	assert.Equal(t, gotACC, gotCACC)
}
