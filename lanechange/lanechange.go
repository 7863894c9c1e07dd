// Package lanechange implements the lateral lane-change model (spec.md
// §4.3): a priority-ordered, safety-gapped decision per vehicle, generalized
// to whole-platoon simultaneous moves. It is a pure function of a read-only
// per-lane view, in the same "compute on a snapshot, apply atomically"
// discipline teacher's robo.System.Tick used around sim.Tick.
package lanechange

import "github.com/overdrivelabs/platoonsim/phys"

// Decision is a lane-change outcome for one vehicle (or whole platoon).
type Decision int

const (
	Stay Decision = iota
	MoveRight
	MoveLeft
)

// Neighbor describes the vehicle immediately ahead or behind a candidate on
// a target lane, or the absence of one.
type Neighbor struct {
	Present bool
	Speed   phys.MetersPerSec
	Gap     phys.Meters // distance from the candidate's position to this neighbor, always >= 0 when Present
}

// Candidate is the scalar kinematic state needed to decide one vehicle's
// lane-change move.
type Candidate struct {
	Speed        phys.MetersPerSec
	DesiredSpeed phys.MetersPerSec

	Lane         int
	NumLanes     int
	RightUsable  bool // lane-1 exists and is open to traffic
	LeftUsable   bool // lane+1 exists and is open to traffic

	RightAhead  Neighbor
	RightBehind Neighbor
	LeftAhead   Neighbor
	LeftBehind  Neighbor

	// CurrentGapAhead is the candidate's gap to its current-lane leader,
	// used only for the move-left decision (a left move is attempted only
	// when desired speed is unmet). Stay is always safe by construction (it
	// changes nothing).
	CurrentGapAhead phys.Meters
}

// Params carries the configured safety headway time T_safe (spec.md §4.3).
type Params struct {
	SafeHeadwayTime float64 // seconds
}

// safeGap reports whether a move onto a target lane is safe given the
// candidate's speed and the target lane's ahead/behind neighbors:
// gap_ahead > v·T_safe and gap_behind > v_follower·T_safe.
func safeGap(c Candidate, ahead, behind Neighbor, p Params) bool {
	if ahead.Present {
		required := phys.Meters(float64(c.Speed) * p.SafeHeadwayTime)
		if ahead.Gap <= required {
			return false
		}
	}
	if behind.Present {
		required := phys.Meters(float64(behind.Speed) * p.SafeHeadwayTime)
		if behind.Gap <= required {
			return false
		}
	}
	return true
}

// Decide applies the priority-ordered rule from spec.md §4.3: (a) stay if
// unsafe to move; (b) move right if the right lane is usable and safe; (c)
// move left if the desired speed cannot be met in the current lane and the
// left lane is usable and safe.
func Decide(c Candidate, p Params) Decision {
	if c.RightUsable && safeGap(c, c.RightAhead, c.RightBehind, p) {
		return MoveRight
	}

	desiredUnmet := c.Speed < c.DesiredSpeed && currentLaneBlocks(c, p)
	if desiredUnmet && c.LeftUsable && safeGap(c, c.LeftAhead, c.LeftBehind, p) {
		return MoveLeft
	}

	return Stay
}

// currentLaneBlocks reports whether the current-lane leader (if any) is
// close enough, relative to the safe headway, to be constraining the
// candidate below its desired speed.
func currentLaneBlocks(c Candidate, p Params) bool {
	required := phys.Meters(float64(c.DesiredSpeed) * p.SafeHeadwayTime)
	return c.CurrentGapAhead <= required
}

// PlatoonMove decides a single Decision for an entire platoon: per spec.md
// §4.3, "Platoon members perform a simultaneous lane change only if the
// same decision is safe for the whole platoon; otherwise none move." members
// must be supplied in leader-first (position-in-platoon ascending) order,
// each with its own Candidate computed against the target lane as if the
// whole platoon had already moved together (i.e. neighbor gaps exclude
// other platoon members).
func PlatoonMove(members []Candidate, p Params) Decision {
	if len(members) == 0 {
		return Stay
	}

	allSafe := func(ahead, behind func(Candidate) Neighbor, usable func(Candidate) bool) bool {
		for _, m := range members {
			if !usable(m) {
				return false
			}
			if !safeGap(m, ahead(m), behind(m), p) {
				return false
			}
		}
		return true
	}

	if allSafe(
		func(c Candidate) Neighbor { return c.RightAhead },
		func(c Candidate) Neighbor { return c.RightBehind },
		func(c Candidate) bool { return c.RightUsable },
	) {
		return MoveRight
	}

	anyDesiredUnmet := false
	for _, m := range members {
		if m.Speed < m.DesiredSpeed && currentLaneBlocks(m, p) {
			anyDesiredUnmet = true
			break
		}
	}

	if anyDesiredUnmet && allSafe(
		func(c Candidate) Neighbor { return c.LeftAhead },
		func(c Candidate) Neighbor { return c.LeftBehind },
		func(c Candidate) bool { return c.LeftUsable },
	) {
		return MoveLeft
	}

	return Stay
}
