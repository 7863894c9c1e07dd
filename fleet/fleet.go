// Package fleet is the columnar table of live vehicles: the simulation's
// single owner of mobility and trip state. It plays the role teacher's
// robo.System.Vehicles slice played, generalized from an owned slice of
// *Vehicle objects into dense columnar arrays plus an id->row index, per the
// re-architecture called for in the design notes: platoons and predecessors
// are indices, never owning pointers, which keeps phases 3 and 4 free of
// aliasing and lets them operate as batch functions over a snapshot.
package fleet

import (
	"image/color"
	"sort"

	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/vehicletype"
)

// Role is a vehicle's current platoon role.
type Role int

const (
	RoleNone Role = iota
	RoleLeader
	RoleFollower
)

// ManeuverState is a vehicle's current maneuver state machine state
// (spec.md §4.6).
type ManeuverState int

const (
	Idle ManeuverState = iota
	Joining
	Leaving
	BeingJoined
)

// NoPlatoon is the sentinel platoon id meaning "no platoon".
const NoPlatoon = -1

// NoRow is the sentinel row index meaning "no such row" (no predecessor, not
// found, etc).
const NoRow = -1

// Row is a read-only view of one vehicle's columns, returned by accessors
// so callers don't need to know the column layout.
type Row struct {
	ID         int
	Type       vehicletype.Info
	Capability vehicletype.Capability
	Color      color.Color

	Position     phys.Meters
	Lane         int
	Speed        phys.MetersPerSec
	DesiredSpeed phys.MetersPerSec
	CFTarget     phys.MetersPerSec

	DepartTime     phys.SimTime
	DepartPosition phys.Meters
	DepartLane     int
	ArrivalPos     phys.Meters
	DepartDelay    phys.SimTime
	TimeLoss       phys.SimTime

	Role            Role
	PlatoonID       int
	PositionInOrder int

	Maneuver        ManeuverState
	TargetPlatoon   int
	TargetPosInPlat int

	PreFilled bool
	Emission  vehicletype.EmissionClass

	// NextActionTime is the earliest simulated time at which this vehicle may
	// participate in the formation scheduler's action phase. Normal spawns
	// start at 0 (eligible immediately); pre-filled vehicles start at a
	// random offset so their actions phase does not synchronize across the
	// whole pre-filled population (spec.md §4.5).
	NextActionTime phys.SimTime

	// Supplemental per-vehicle accumulators (SPEC_FULL.md §3), mutated only
	// through the Fleet's Add*/Mark* methods; the stats package does not read
	// them.
	CO2Total  float64
	FuelTotal float64
	WasLeader bool
	HadJoin   bool
}

// Fleet is the columnar table of live vehicles. All fields are parallel
// arrays indexed by row; a vehicle's row index changes when Remove swaps
// the last row into a freed slot, and freed indices are reused, so callers must
// resolve an id to a row via Index immediately before use, never cache it
// across a phase boundary.
type Fleet struct {
	id         []int
	typ        []vehicletype.Info
	capability []vehicletype.Capability
	color      []color.Color

	position     []phys.Meters
	lane         []int
	speed        []phys.MetersPerSec
	desiredSpeed []phys.MetersPerSec
	cfTarget     []phys.MetersPerSec

	departTime     []phys.SimTime
	departPosition []phys.Meters
	departLane     []int
	arrivalPos     []phys.Meters
	departDelay    []phys.SimTime
	timeLoss       []phys.SimTime

	role            []Role
	platoonID       []int
	positionInOrder []int

	maneuver        []ManeuverState
	targetPlatoon   []int
	targetPosInPlat []int

	preFilled      []bool
	emission       []vehicletype.EmissionClass
	nextActionTime []phys.SimTime

	co2Total  []float64
	fuelTotal []float64
	wasLeader []bool
	hadJoin   []bool

	index  map[int]int // vehicle id -> row
	nextID int
}

// New returns an empty Fleet.
func New() *Fleet {
	return &Fleet{index: make(map[int]int)}
}

// Len returns the number of live vehicles.
func (f *Fleet) Len() int { return len(f.id) }

// Index resolves a vehicle id to its current row, or (NoRow, false) if the
// vehicle is not live.
func (f *Fleet) Index(id int) (int, bool) {
	row, ok := f.index[id]
	return row, ok
}

// NewVehicleSpec is the set of columns supplied when a vehicle is inserted
// by the spawner (spec.md §4.5).
type NewVehicleSpec struct {
	Type           vehicletype.Info
	Capability     vehicletype.Capability
	Position       phys.Meters
	Lane           int
	Speed          phys.MetersPerSec
	DesiredSpeed   phys.MetersPerSec
	DepartTime     phys.SimTime
	DepartPosition phys.Meters
	DepartLane     int
	ArrivalPos     phys.Meters
	PreFilled      bool
	Emission       vehicletype.EmissionClass
	NextActionTime phys.SimTime
}

// Add inserts a new vehicle and returns its unique, non-reusable id.
func (f *Fleet) Add(spec NewVehicleSpec) int {
	id := f.nextID
	f.nextID++

	f.id = append(f.id, id)
	f.typ = append(f.typ, spec.Type)
	f.capability = append(f.capability, spec.Capability)
	f.color = append(f.color, spec.Type.Color)

	f.position = append(f.position, spec.Position)
	f.lane = append(f.lane, spec.Lane)
	f.speed = append(f.speed, spec.Speed)
	f.desiredSpeed = append(f.desiredSpeed, spec.DesiredSpeed)
	f.cfTarget = append(f.cfTarget, spec.Speed)

	f.departTime = append(f.departTime, spec.DepartTime)
	f.departPosition = append(f.departPosition, spec.DepartPosition)
	f.departLane = append(f.departLane, spec.DepartLane)
	f.arrivalPos = append(f.arrivalPos, spec.ArrivalPos)
	f.departDelay = append(f.departDelay, 0)
	f.timeLoss = append(f.timeLoss, 0)

	f.role = append(f.role, RoleNone)
	f.platoonID = append(f.platoonID, NoPlatoon)
	f.positionInOrder = append(f.positionInOrder, 0)

	f.maneuver = append(f.maneuver, Idle)
	f.targetPlatoon = append(f.targetPlatoon, NoPlatoon)
	f.targetPosInPlat = append(f.targetPosInPlat, 0)

	f.preFilled = append(f.preFilled, spec.PreFilled)
	f.emission = append(f.emission, spec.Emission)
	f.nextActionTime = append(f.nextActionTime, spec.NextActionTime)

	f.co2Total = append(f.co2Total, 0)
	f.fuelTotal = append(f.fuelTotal, 0)
	f.wasLeader = append(f.wasLeader, false)
	f.hadJoin = append(f.hadJoin, false)

	f.index[id] = len(f.id) - 1
	return id
}

// Remove deletes the vehicle at row by swapping the last row into its place
// (order among surviving rows for the SAME lane is re-established by the
// caller via predecessor sort each step, so the swap does not violate any
// invariant). The index entry of the vehicle moved out of the last slot is
// updated to its new row.
func (f *Fleet) Remove(row int) {
	last := len(f.id) - 1
	removedID := f.id[row]
	movedID := f.id[last]

	f.id[row] = f.id[last]
	f.typ[row] = f.typ[last]
	f.capability[row] = f.capability[last]
	f.color[row] = f.color[last]

	f.position[row] = f.position[last]
	f.lane[row] = f.lane[last]
	f.speed[row] = f.speed[last]
	f.desiredSpeed[row] = f.desiredSpeed[last]
	f.cfTarget[row] = f.cfTarget[last]

	f.departTime[row] = f.departTime[last]
	f.departPosition[row] = f.departPosition[last]
	f.departLane[row] = f.departLane[last]
	f.arrivalPos[row] = f.arrivalPos[last]
	f.departDelay[row] = f.departDelay[last]
	f.timeLoss[row] = f.timeLoss[last]

	f.role[row] = f.role[last]
	f.platoonID[row] = f.platoonID[last]
	f.positionInOrder[row] = f.positionInOrder[last]

	f.maneuver[row] = f.maneuver[last]
	f.targetPlatoon[row] = f.targetPlatoon[last]
	f.targetPosInPlat[row] = f.targetPosInPlat[last]

	f.preFilled[row] = f.preFilled[last]
	f.emission[row] = f.emission[last]
	f.nextActionTime[row] = f.nextActionTime[last]

	f.co2Total[row] = f.co2Total[last]
	f.fuelTotal[row] = f.fuelTotal[last]
	f.wasLeader[row] = f.wasLeader[last]
	f.hadJoin[row] = f.hadJoin[last]

	f.id = f.id[:last]
	f.typ = f.typ[:last]
	f.capability = f.capability[:last]
	f.color = f.color[:last]
	f.position = f.position[:last]
	f.lane = f.lane[:last]
	f.speed = f.speed[:last]
	f.desiredSpeed = f.desiredSpeed[:last]
	f.cfTarget = f.cfTarget[:last]
	f.departTime = f.departTime[:last]
	f.departPosition = f.departPosition[:last]
	f.departLane = f.departLane[:last]
	f.arrivalPos = f.arrivalPos[:last]
	f.departDelay = f.departDelay[:last]
	f.timeLoss = f.timeLoss[:last]
	f.role = f.role[:last]
	f.platoonID = f.platoonID[:last]
	f.positionInOrder = f.positionInOrder[:last]
	f.maneuver = f.maneuver[:last]
	f.targetPlatoon = f.targetPlatoon[:last]
	f.targetPosInPlat = f.targetPosInPlat[:last]
	f.preFilled = f.preFilled[:last]
	f.emission = f.emission[:last]
	f.nextActionTime = f.nextActionTime[:last]
	f.co2Total = f.co2Total[:last]
	f.fuelTotal = f.fuelTotal[:last]
	f.wasLeader = f.wasLeader[:last]
	f.hadJoin = f.hadJoin[:last]

	delete(f.index, removedID)
	if row != last {
		f.index[movedID] = row
	}
}

// At returns a copy of row i's columns as a Row value.
func (f *Fleet) At(i int) Row {
	return Row{
		ID:              f.id[i],
		Type:            f.typ[i],
		Capability:      f.capability[i],
		Color:           f.color[i],
		Position:        f.position[i],
		Lane:            f.lane[i],
		Speed:           f.speed[i],
		DesiredSpeed:    f.desiredSpeed[i],
		CFTarget:        f.cfTarget[i],
		DepartTime:      f.departTime[i],
		DepartPosition:  f.departPosition[i],
		DepartLane:      f.departLane[i],
		ArrivalPos:      f.arrivalPos[i],
		DepartDelay:     f.departDelay[i],
		TimeLoss:        f.timeLoss[i],
		Role:            f.role[i],
		PlatoonID:       f.platoonID[i],
		PositionInOrder: f.positionInOrder[i],
		Maneuver:        f.maneuver[i],
		TargetPlatoon:   f.targetPlatoon[i],
		TargetPosInPlat: f.targetPosInPlat[i],
		PreFilled:       f.preFilled[i],
		Emission:        f.emission[i],
		NextActionTime:  f.nextActionTime[i],
		CO2Total:        f.co2Total[i],
		FuelTotal:       f.fuelTotal[i],
		WasLeader:       f.wasLeader[i],
		HadJoin:         f.hadJoin[i],
	}
}

// ByID returns a copy of the vehicle row with the given id.
func (f *Fleet) ByID(id int) (Row, bool) {
	row, ok := f.index[id]
	if !ok {
		return Row{}, false
	}
	return f.At(row), true
}

// Each calls fn for every live row index, in table order (not position
// order — use Predecessors or LaneOrder for that).
func (f *Fleet) Each(fn func(row int)) {
	for i := range f.id {
		fn(i)
	}
}

//////////////////////////////////////////////////////////////////////
// Mutators used by phase appliers (simulation package owns the call
// sequence; models themselves only read Row/Snapshot values).
//////////////////////////////////////////////////////////////////////

func (f *Fleet) SetPosition(row int, p phys.Meters)        { f.position[row] = p }
func (f *Fleet) SetLane(row int, lane int)                 { f.lane[row] = lane }
func (f *Fleet) SetSpeed(row int, v phys.MetersPerSec)     { f.speed[row] = v }
func (f *Fleet) SetDesiredSpeed(row int, v phys.MetersPerSec) { f.desiredSpeed[row] = v }
func (f *Fleet) SetCFTarget(row int, v phys.MetersPerSec)  { f.cfTarget[row] = v }
func (f *Fleet) SetRole(row int, r Role)                   { f.role[row] = r }
func (f *Fleet) SetPlatoonID(row int, id int)               { f.platoonID[row] = id }
func (f *Fleet) SetPositionInOrder(row int, n int)          { f.positionInOrder[row] = n }
func (f *Fleet) SetManeuver(row int, m ManeuverState)       { f.maneuver[row] = m }
func (f *Fleet) SetTargetPlatoon(row int, id int)           { f.targetPlatoon[row] = id }
func (f *Fleet) SetTargetPosInPlat(row int, n int)          { f.targetPosInPlat[row] = n }
func (f *Fleet) AddTimeLoss(row int, d phys.SimTime)        { f.timeLoss[row] += d }
func (f *Fleet) SetDepartDelay(row int, d phys.SimTime)     { f.departDelay[row] = d }
func (f *Fleet) SetNextActionTime(row int, t phys.SimTime)  { f.nextActionTime[row] = t }
func (f *Fleet) AddEmission(row int, co2, fuel float64) {
	f.co2Total[row] += co2
	f.fuelTotal[row] += fuel
}
func (f *Fleet) MarkWasLeader(row int) { f.wasLeader[row] = true }
func (f *Fleet) MarkHadJoin(row int)   { f.hadJoin[row] = true }

//////////////////////////////////////////////////////////////////////
// Predecessor computation (spec.md §4.2: "Predecessors are computed once
// per step by sorting each lane by position (ties broken by id)").
//////////////////////////////////////////////////////////////////////

// Predecessor holds, for one row, the row index of its immediate predecessor
// in the same lane (the next vehicle ahead), or NoRow if it is the lane's
// front-most vehicle.
type Predecessor struct {
	Row   int
	Valid bool
}

// LaneOrder returns, for each lane, the row indices of vehicles in that
// lane sorted by position descending (front of lane first), ties broken by
// ascending id — the exact ordering spec.md requires both for predecessor
// computation and for platoon position-in-platoon assignment.
func (f *Fleet) LaneOrder(numLanes int) [][]int {
	lanes := make([][]int, numLanes)
	for i := range f.id {
		lane := f.lane[i]
		if lane < 0 || lane >= numLanes {
			continue
		}
		lanes[lane] = append(lanes[lane], i)
	}
	for lane := range lanes {
		rows := lanes[lane]
		sort.Slice(rows, func(a, b int) bool {
			pa, pb := f.position[rows[a]], f.position[rows[b]]
			if pa != pb {
				return pa > pb
			}
			return f.id[rows[a]] < f.id[rows[b]]
		})
	}
	return lanes
}

// Predecessors returns a Predecessor for every row, derived from LaneOrder.
func (f *Fleet) Predecessors(numLanes int) []Predecessor {
	preds := make([]Predecessor, len(f.id))
	for _, rows := range f.LaneOrder(numLanes) {
		for i, row := range rows {
			if i == 0 {
				preds[row] = Predecessor{Row: NoRow, Valid: false}
				continue
			}
			preds[row] = Predecessor{Row: rows[i-1], Valid: true}
		}
	}
	return preds
}
