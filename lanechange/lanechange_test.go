package lanechange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideStaysWhenRightUnsafe(t *testing.T) {
	c := Candidate{
		Speed:           20,
		DesiredSpeed:    20,
		Lane:            1,
		NumLanes:        2,
		RightUsable:     true,
		RightAhead:      Neighbor{Present: true, Speed: 20, Gap: 5}, // too tight for T_safe=1s at 20 m/s
		CurrentGapAhead: 1000,
	}
	got := Decide(c, Params{SafeHeadwayTime: 1.0})
	assert.Equal(t, Stay, got)
}

func TestDecideMovesRightWhenSafe(t *testing.T) {
	c := Candidate{
		Speed:           20,
		DesiredSpeed:    20,
		Lane:            1,
		NumLanes:        2,
		RightUsable:     true,
		RightAhead:      Neighbor{Present: true, Speed: 20, Gap: 100},
		RightBehind:     Neighbor{Present: false},
		CurrentGapAhead: 1000,
	}
	got := Decide(c, Params{SafeHeadwayTime: 1.0})
	assert.Equal(t, MoveRight, got)
}

func TestDecideMovesLeftWhenBlockedAndRightUnusable(t *testing.T) {
	c := Candidate{
		Speed:           10,
		DesiredSpeed:    20,
		Lane:            0,
		NumLanes:        2,
		RightUsable:     false,
		LeftUsable:      true,
		LeftAhead:       Neighbor{Present: false},
		LeftBehind:      Neighbor{Present: false},
		CurrentGapAhead: 5, // blocking at desired speed 20, T_safe=1 => required 20
	}
	got := Decide(c, Params{SafeHeadwayTime: 1.0})
	assert.Equal(t, MoveLeft, got)
}

func TestPlatoonMoveRequiresAllMembersSafe(t *testing.T) {
	leader := Candidate{
		Speed: 20, DesiredSpeed: 20, RightUsable: true,
		RightAhead: Neighbor{Present: true, Speed: 20, Gap: 100},
	}
	follower := Candidate{
		Speed: 20, DesiredSpeed: 20, RightUsable: true,
		RightAhead: Neighbor{Present: true, Speed: 20, Gap: 2}, // unsafe
	}
	got := PlatoonMove([]Candidate{leader, follower}, Params{SafeHeadwayTime: 1.0})
	assert.Equal(t, Stay, got)
}
