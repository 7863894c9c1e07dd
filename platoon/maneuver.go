package platoon

import (
	"fmt"

	"github.com/overdrivelabs/platoonsim/fleet"
	"github.com/overdrivelabs/platoonsim/phys"
)

// AbortReason is one of the four named join-abort reasons (spec.md §4.6).
type AbortReason int

const (
	AbortTargetDisbanded AbortReason = iota
	AbortTeleportTooFar
	AbortUnsafeAtDestination
	AbortTimeBudgetExceeded
)

func (r AbortReason) String() string {
	switch r {
	case AbortTargetDisbanded:
		return "target platoon disbanded"
	case AbortTeleportTooFar:
		return "teleport distance exceeds teleport_max"
	case AbortUnsafeAtDestination:
		return "safety violated at destination"
	case AbortTimeBudgetExceeded:
		return "time budget exceeded"
	default:
		return "unknown"
	}
}

// ErrManeuverAborted wraps a named abort reason. Maneuvers.Tick returns the
// vehicle to idle itself and reports the abort in its result; the
// simulation loop only counts it (spec.md §7).
type ErrManeuverAborted struct {
	VehicleID int
	Reason    AbortReason
}

func (e *ErrManeuverAborted) Error() string {
	return fmt.Sprintf("platoon: vehicle %d maneuver aborted: %s", e.VehicleID, e.Reason)
}

// JoinRequest is a command emitted by the formation scheduler: "vehicle v
// should join platoon p" (spec.md §4.7). The maneuver component applies it
// at the next action boundary.
type JoinRequest struct {
	VehicleID int
	PlatoonID int
}

// LeaveRequest is a command to remove a vehicle from its platoon.
type LeaveRequest struct {
	VehicleID int
}

// Params bounds the join maneuver (spec.md §4.6 and §6).
type Params struct {
	ApproachEpsilon     phys.MetersPerSec // ε in the approach-time denominator
	MaxApproachTime     phys.SimTime      // τ_max
	MaxTeleportDistance phys.Meters
	CACCSpacing         phys.Meters
	UpdateDesiredSpeed  bool
}

// approachTime computes τ_app = |distance(v, tail(p))| / (v_desired -
// v_p_desired + ε), bounded by τ_max (spec.md §4.6 step 1).
func approachTime(distance phys.Meters, vDesired, pDesired phys.MetersPerSec, eps phys.MetersPerSec, max phys.SimTime) phys.SimTime {
	denom := float64(vDesired-pDesired) + float64(eps)
	if denom <= 0 {
		return max
	}
	t := phys.SimTimeFromSeconds(float64(absMeters(distance)) / denom)
	if t > max {
		return max
	}
	return t
}

func absMeters(m phys.Meters) phys.Meters {
	if m < 0 {
		return -m
	}
	return m
}

// pendingJoin tracks one in-flight join maneuver's approach deadline.
type pendingJoin struct {
	vehicleID   int
	platoonID   int
	deadline    phys.SimTime
	startedAt   phys.SimTime
}

// Maneuvers tracks in-flight join maneuvers across steps. The simulation
// loop owns one Maneuvers per run; per the design notes this is the only
// state carried between action-phase boundaries for the maneuver
// component, and it only ever references vehicles/platoons by id.
type Maneuvers struct {
	pending map[int]*pendingJoin // keyed by vehicle id
}

// NewManeuvers returns an empty Maneuvers tracker.
func NewManeuvers() *Maneuvers {
	return &Maneuvers{pending: make(map[int]*pendingJoin)}
}

// StartJoin begins the approach-delay phase of a join maneuver for a
// JoinRequest, transitioning the vehicle idle -> joining (spec.md §4.6 step
// 1). distance is the (signed, typically negative — v is behind the tail)
// distance from v to the platoon's tail member.
func (m *Maneuvers) StartJoin(fl *fleet.Fleet, req JoinRequest, distance phys.Meters, vDesired, pDesired phys.MetersPerSec, now phys.SimTime, p Params) {
	row, ok := fl.Index(req.VehicleID)
	if !ok {
		return
	}
	fl.SetManeuver(row, fleet.Joining)
	fl.SetTargetPlatoon(row, req.PlatoonID)

	tau := approachTime(distance, vDesired, pDesired, p.ApproachEpsilon, p.MaxApproachTime)
	m.pending[req.VehicleID] = &pendingJoin{
		vehicleID: req.VehicleID,
		platoonID: req.PlatoonID,
		deadline:  now + tau,
		startedAt: now,
	}
}

// SafetyCheckFn reports whether the teleport destination is currently safe
// (no overlap with neighbors), supplied by the caller since only the
// simulation loop has a current fleet snapshot to check against.
type SafetyCheckFn func(vehicleID int, destination phys.Meters, lane int) bool

// MakeSpaceFn displaces a vehicle occupying the join destination to the
// next lane, by the same rules as the lane-change model (spec.md §4.6 step
// 4, "make-space"); supplied by the caller since it requires the
// lanechange package's safety machinery.
type MakeSpaceFn func(occupyingVehicleID int) bool

// Tick advances every pending join whose approach deadline has arrived: it
// attempts the teleport + commit, or records an abort. Returns the list of
// aborts that occurred this call so the caller can log/count them.
func (m *Maneuvers) Tick(
	now phys.SimTime,
	fl *fleet.Fleet,
	reg *Registry,
	desiredOf DesiredSpeedFn,
	safe SafetyCheckFn,
	makeSpace MakeSpaceFn,
	p Params,
) []*ErrManeuverAborted {
	var aborts []*ErrManeuverAborted

	for vehicleID, pj := range m.pending {
		if now < pj.deadline {
			continue
		}
		delete(m.pending, vehicleID)

		row, ok := fl.Index(vehicleID)
		if !ok {
			continue
		}

		target, ok := reg.Get(pj.platoonID)
		if !ok {
			fl.SetManeuver(row, fleet.Idle)
			fl.SetTargetPlatoon(row, fleet.NoPlatoon)
			aborts = append(aborts, &ErrManeuverAborted{VehicleID: vehicleID, Reason: AbortTargetDisbanded})
			continue
		}

		tailID := target.Members[len(target.Members)-1]
		tailRow, ok := fl.Index(tailID)
		if !ok {
			fl.SetManeuver(row, fleet.Idle)
			aborts = append(aborts, &ErrManeuverAborted{VehicleID: vehicleID, Reason: AbortTargetDisbanded})
			continue
		}
		tail := fl.At(tailRow)
		self := fl.At(row)

		destination := tail.Position - p.CACCSpacing - self.Type.Length
		teleportDist := absMeters(destination - self.Position)
		if teleportDist > p.MaxTeleportDistance {
			fl.SetManeuver(row, fleet.Idle)
			fl.SetTargetPlatoon(row, fleet.NoPlatoon)
			aborts = append(aborts, &ErrManeuverAborted{VehicleID: vehicleID, Reason: AbortTeleportTooFar})
			continue
		}

		if makeSpace != nil {
			if occupant, occupied := occupantAt(fl, destination, target.Lane, vehicleID); occupied {
				if !makeSpace(occupant) {
					fl.SetManeuver(row, fleet.Idle)
					fl.SetTargetPlatoon(row, fleet.NoPlatoon)
					aborts = append(aborts, &ErrManeuverAborted{VehicleID: vehicleID, Reason: AbortUnsafeAtDestination})
					continue
				}
			}
		}

		if safe != nil && !safe(vehicleID, destination, target.Lane) {
			fl.SetManeuver(row, fleet.Idle)
			fl.SetTargetPlatoon(row, fleet.NoPlatoon)
			aborts = append(aborts, &ErrManeuverAborted{VehicleID: vehicleID, Reason: AbortUnsafeAtDestination})
			continue
		}

		// Commit: teleport, rewrite role, append to platoon, assign
		// position-in-platoon (spec.md §4.6 steps 2-3).
		fl.SetPosition(row, destination)
		fl.SetLane(row, target.Lane)
		fl.SetSpeed(row, tail.Speed)
		fl.SetRole(row, fleet.RoleFollower)
		fl.SetPlatoonID(row, target.ID)
		fl.SetManeuver(row, fleet.Idle)
		fl.SetTargetPlatoon(row, fleet.NoPlatoon)
		fl.MarkHadJoin(row)

		target.Members = append(target.Members, vehicleID)
		fl.SetPositionInOrder(row, len(target.Members)-1)
		target.RecomputeDesiredSpeed(p.UpdateDesiredSpeed, desiredOf)
	}

	return aborts
}

func occupantAt(fl *fleet.Fleet, pos phys.Meters, lane int, excludeID int) (int, bool) {
	var found int
	var ok bool
	fl.Each(func(row int) {
		r := fl.At(row)
		if r.ID == excludeID || r.Lane != lane {
			return
		}
		if absMeters(r.Position-pos) < r.Type.Length {
			found, ok = r.ID, true
		}
	})
	return found, ok
}

// Leave applies a LeaveRequest, dispatching to the leader/tail/middle case
// spelled out in spec.md §4.6. desiredOf supplies a vehicle's fixed desired
// speed for the post-leave recompute. reg.Create is called only for the
// middle-leave split, to mint fresh platoon ids ("original id is
// retired").
func Leave(req LeaveRequest, fl *fleet.Fleet, reg *Registry, desiredOf DesiredSpeedFn, p Params, now phys.SimTime) {
	row, ok := fl.Index(req.VehicleID)
	if !ok {
		return
	}
	self := fl.At(row)
	if self.PlatoonID == fleet.NoPlatoon {
		return
	}
	plat, ok := reg.Get(self.PlatoonID)
	if !ok {
		return
	}

	fl.SetManeuver(row, fleet.Leaving)
	idx := plat.IndexOf(req.VehicleID)

	switch {
	case plat.Size() == 1:
		// Sole member leaving: dissolve outright.
		finishLeave(fl, row)
		reg.retire(plat.ID)

	case idx == 0:
		// Leader leaves: promote member at index 1.
		plat.Members = plat.Members[1:]
		finishLeave(fl, row)
		if plat.Size() == 1 {
			promoteSole(fl, plat)
			reg.retire(plat.ID)
		} else {
			promoteLeader(fl, plat)
			reassignPositions(fl, plat)
			plat.RecomputeDesiredSpeed(p.UpdateDesiredSpeed, desiredOf)
		}

	case idx == plat.Size()-1:
		// Tail leaves: simple pop.
		plat.Members = plat.Members[:idx]
		finishLeave(fl, row)
		if plat.Size() == 1 {
			promoteSole(fl, plat)
			reg.retire(plat.ID)
		} else {
			plat.RecomputeDesiredSpeed(p.UpdateDesiredSpeed, desiredOf)
		}

	default:
		// Middle leaves: the members ahead form a fresh platoon, and the
		// members behind form a second fresh platoon when there are two or
		// more of them (a single trailing member is left without a
		// platoon); the original id is retired (spec.md §4.6, Leave, middle
		// case).
		front := plat.Members[:idx]
		back := plat.Members[idx+1:]
		finishLeave(fl, row)
		reg.retire(plat.ID)

		frontPlat := reg.Create(front[0], plat.Lane, plat.DesiredSpeed, now)
		frontPlat.Members = append([]int{}, front...)
		reassignPlatoonID(fl, frontPlat)
		frontPlat.RecomputeDesiredSpeed(p.UpdateDesiredSpeed, desiredOf)

		if len(back) == 1 {
			backRow, ok := fl.Index(back[0])
			if ok {
				fl.SetRole(backRow, fleet.RoleNone)
				fl.SetPlatoonID(backRow, fleet.NoPlatoon)
				fl.SetPositionInOrder(backRow, 0)
			}
		} else {
			backPlat := reg.Create(back[0], plat.Lane, plat.DesiredSpeed, now)
			backPlat.Members = append([]int{}, back...)
			reassignPlatoonID(fl, backPlat)
			backPlat.RecomputeDesiredSpeed(p.UpdateDesiredSpeed, desiredOf)
		}
	}
}

func finishLeave(fl *fleet.Fleet, row int) {
	fl.SetManeuver(row, fleet.Idle)
	fl.SetRole(row, fleet.RoleNone)
	fl.SetPlatoonID(row, fleet.NoPlatoon)
	fl.SetPositionInOrder(row, 0)
}

func promoteSole(fl *fleet.Fleet, plat *Platoon) {
	row, ok := fl.Index(plat.Members[0])
	if !ok {
		return
	}
	fl.SetRole(row, fleet.RoleNone)
	fl.SetPlatoonID(row, fleet.NoPlatoon)
	fl.SetPositionInOrder(row, 0)
}

func promoteLeader(fl *fleet.Fleet, plat *Platoon) {
	row, ok := fl.Index(plat.Leader())
	if !ok {
		return
	}
	fl.SetRole(row, fleet.RoleLeader)
	fl.MarkWasLeader(row)
}

func reassignPositions(fl *fleet.Fleet, plat *Platoon) {
	for i, id := range plat.Members {
		row, ok := fl.Index(id)
		if !ok {
			continue
		}
		fl.SetPositionInOrder(row, i)
	}
}

func reassignPlatoonID(fl *fleet.Fleet, plat *Platoon) {
	for i, id := range plat.Members {
		row, ok := fl.Index(id)
		if !ok {
			continue
		}
		fl.SetPlatoonID(row, plat.ID)
		fl.SetPositionInOrder(row, i)
		if i == 0 {
			fl.SetRole(row, fleet.RoleLeader)
		} else {
			fl.SetRole(row, fleet.RoleFollower)
		}
	}
}

// UpdateFollowers copies the leader's desired speed into every follower's
// car-following target (CFTarget), same step, no delay (spec.md §4.6,
// "Follower update"). Followers' own DesiredSpeed is left unchanged. It is the explicit abstraction the spec calls out: followers
// inherit instantly rather than through a simulated communication channel.
func UpdateFollowers(fl *fleet.Fleet, plat *Platoon) {
	if plat.Size() < 2 {
		return
	}
	leaderRow, ok := fl.Index(plat.Leader())
	if !ok {
		return
	}
	leaderSpeed := fl.At(leaderRow).DesiredSpeed
	for _, id := range plat.Members[1:] {
		row, ok := fl.Index(id)
		if !ok {
			continue
		}
		fl.SetCFTarget(row, leaderSpeed)
	}
}
