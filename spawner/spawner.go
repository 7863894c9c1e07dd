// Package spawner is the insertion policy (spec.md §4.5): it decides when a
// new vehicle's depart time has arrived, where it may insert, and retries a
// bounded number of times when no safety gap is available. It is grounded
// on teacher's gamephase-driven "new entity this tick" idiom
// (engine/gamephase.go) generalized from a fixed demo roster to the three
// depart methods spec.md names, plus density pre-fill.
package spawner

import (
	"errors"

	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/simrand"
	"github.com/overdrivelabs/platoonsim/vehicletype"
)

// DepartMethod selects how arrival times are generated (spec.md §4.5).
type DepartMethod int

const (
	DepartNumber DepartMethod = iota
	DepartInterval
	DepartFlow
)

func ParseDepartMethod(s string) (DepartMethod, bool) {
	switch s {
	case "number":
		return DepartNumber, true
	case "interval":
		return DepartInterval, true
	case "flow":
		return DepartFlow, true
	default:
		return 0, false
	}
}

// ErrNoSafeGap names spec.md §7's Insertion error category. No function in
// this package returns it: SafeToInsert reports a missing safety gap as
// false, and the caller retries next step up to Params.RetryLimit.
var ErrNoSafeGap = errors.New("spawner: no safe gap available for insertion")

// Params configures the spawner for one run (spec.md §6, Vehicles/Trips
// groups).
type Params struct {
	Method         DepartMethod
	Total          int     // for DepartNumber
	IntervalSec    float64 // for DepartInterval
	FlowRatePerSec float64 // for DepartFlow (Poisson rate)

	RandomDepartLane      bool
	RandomDepartPosition  bool
	RandomArrivalLane     bool
	DepartDesiredSpeed    bool // true: depart at v_desired; false: depart at 0
	RandomArrivalPosition bool
	ArrivalPosition       phys.Meters // fixed arrival position; 0 means "use RoadLength"

	RoadLength  phys.Meters
	NumLanes    int
	RampInterval phys.Meters

	RetryLimit int
}

// Ramps returns the fixed set of legal ramp positions, spaced RampInterval
// apart starting at 0.
func Ramps(roadLength, rampInterval phys.Meters) []phys.Meters {
	if rampInterval <= 0 {
		return []phys.Meters{0}
	}
	var ramps []phys.Meters
	for p := phys.Meters(0); p < roadLength; p += rampInterval {
		ramps = append(ramps, p)
	}
	return ramps
}

// PendingVehicle is one not-yet-inserted arrival, generated ahead of time by
// the depart-method schedule.
type PendingVehicle struct {
	DepartTime   phys.SimTime
	Type         vehicletype.Info
	Capability   vehicletype.Capability
	Emission     vehicletype.EmissionClass
	DesiredSpeed phys.MetersPerSec
	Retries      int
}

// Schedule generates the full list of pending arrivals for DepartNumber and
// DepartInterval (deterministic, no PRNG draws). DepartFlow arrivals are
// generated incrementally per step by NextFlowArrival instead, since a
// Poisson process has no fixed total count known in advance.
func Schedule(p Params, stepLength float64, makeVehicle func(i int) PendingVehicle) []PendingVehicle {
	switch p.Method {
	case DepartNumber:
		out := make([]PendingVehicle, 0, p.Total)
		for i := 0; i < p.Total; i++ {
			v := makeVehicle(i)
			v.DepartTime = phys.SimTimeFromSeconds(float64(i) * p.IntervalSec)
			out = append(out, v)
		}
		return out
	case DepartInterval:
		out := make([]PendingVehicle, 0, p.Total)
		for i := 0; i < p.Total; i++ {
			v := makeVehicle(i)
			v.DepartTime = phys.SimTimeFromSeconds(float64(i) * p.IntervalSec)
			out = append(out, v)
		}
		return out
	default:
		return nil
	}
}

// NextFlowArrival draws, for one simulated second of the flow depart
// method, the number of Poisson arrivals to schedule at time `now`
// (spec.md §4.5: "flow (Poisson arrivals with configured rate, PRNG-driven)").
func NextFlowArrival(p Params, now phys.SimTime, rng *simrand.Source) int {
	n := rng.Poisson(p.FlowRatePerSec)
	return int(n + 0.5)
}

// InsertionSite is a candidate (position, lane) pair to attempt insertion
// at.
type InsertionSite struct {
	Position phys.Meters
	Lane     int
}

// ChooseSite picks the insertion position and lane per spec.md §4.5: the
// first ramp >= the requested position (whether or not it is free; the gap
// there is checked separately by SafeToInsert), or a random position, and
// the rightmost lane by default or a random lane when configured.
func ChooseSite(p Params, requestedPos phys.Meters, rng *simrand.Source) InsertionSite {
	lane := 0
	if p.RandomDepartLane {
		lane = rng.IntN(p.NumLanes)
	}

	pos := requestedPos
	if p.RandomDepartPosition {
		pos = phys.Meters(rng.UniformRange(0, float64(p.RoadLength)))
	} else {
		ramps := Ramps(p.RoadLength, p.RampInterval)
		pos = firstRampAtOrAfter(ramps, requestedPos)
	}
	return InsertionSite{Position: pos, Lane: lane}
}

// ArrivalPositionFor resolves a newly-spawned vehicle's arrival position
// (spec.md §6: random-arrival-position, arrival-position): random across the
// road when RandomArrivalPosition is set, else the fixed ArrivalPosition
// when configured (> 0), else the full road length.
func ArrivalPositionFor(p Params, rng *simrand.Source) phys.Meters {
	if p.RandomArrivalPosition {
		return phys.Meters(rng.UniformRange(0, float64(p.RoadLength)))
	}
	if p.ArrivalPosition > 0 {
		return p.ArrivalPosition
	}
	return p.RoadLength
}

func firstRampAtOrAfter(ramps []phys.Meters, pos phys.Meters) phys.Meters {
	for _, r := range ramps {
		if r >= pos {
			return r
		}
	}
	if len(ramps) == 0 {
		return pos
	}
	return ramps[len(ramps)-1]
}

// SafeToInsert reports whether inserting a vehicle at site leaves a gap of
// at least minGap to the nearest vehicle ahead in the target lane (aheadPos,
// aheadLength; aheadPresent=false if the lane is empty ahead of site). The
// length parameter does not enter the check.
func SafeToInsert(site InsertionSite, length phys.Meters, minGap phys.Meters, aheadPresent bool, aheadPos, aheadLength phys.Meters) bool {
	if !aheadPresent {
		return true
	}
	gap := (aheadPos - aheadLength) - site.Position
	return gap >= minGap
}

//////////////////////////////////////////////////////////////////////
// Pre-fill (spec.md §4.5)
//////////////////////////////////////////////////////////////////////

// PreFillParams configures density-based pre-fill of the road before t=0.
type PreFillParams struct {
	DensityPerKmPerLane float64
	RoadLength          phys.Meters
	NumLanes            int
}

// PreFillCount returns the target number of vehicles to pre-fill, per
// spec.md §4.5: "populate the road to target density (vehicles per km per
// lane)".
func PreFillCount(p PreFillParams) int {
	kmLength := float64(p.RoadLength) / 1000.0
	return int(p.DensityPerKmPerLane * kmLength * float64(p.NumLanes))
}

// PreFillPosition samples a uniform-random position along the road for
// pre-fill seeding ("sampling positions uniformly").
func PreFillPosition(p PreFillParams, rng *simrand.Source) phys.Meters {
	return phys.Meters(rng.UniformRange(0, float64(p.RoadLength)))
}

// PreFillSpeed samples a speed at the car-following equilibrium for the
// given desired speed, with small Gaussian jitter ("speeds at the
// cf-equilibrium").
func PreFillSpeed(desiredSpeed phys.MetersPerSec, rng *simrand.Source) phys.MetersPerSec {
	jitter := rng.Normal(0, float64(desiredSpeed)*0.02)
	return phys.Clamp(desiredSpeed+phys.MetersPerSec(jitter), 0, desiredSpeed)
}

// PreFillActionOffset returns a random phase offset (in steps) for a
// pre-filled vehicle's formation-scheduler participation, so pre-filled
// vehicles do not all act on the same step: "Pre-filled vehicles get a
// random offset into the formation scheduler's phase so their actions do
// not synchronize."
func PreFillActionOffset(actionIntervalSteps int, rng *simrand.Source) int {
	if actionIntervalSteps <= 0 {
		return 0
	}
	return rng.IntN(actionIntervalSteps)
}
