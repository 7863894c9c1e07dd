// Package stats is the statistics accumulator (spec.md §4.8): per-step and
// per-vehicle counters, the HBEFA-style emission model, and per-platoon
// aggregates, computed in the core but written out through pluggable Sink
// interfaces — the same "compute here, render elsewhere" split teacher drew
// between robo.System and the (out-of-scope) viz package.
package stats

import (
	"gonum.org/v1/gonum/stat"

	"github.com/overdrivelabs/platoonsim/phys"
)

// Counters are the run-wide recoverable-event counters spec.md §7 calls
// out: every one of these corresponds to a recoverable error category that
// must never surface as exceptional control flow, only as a count.
type Counters struct {
	Spawned           int
	Arrived           int
	Colliding         int
	DroppedInsertions int // spawner.ErrNoSafeGap exhausted its retry limit
	ManeuverAborts    int
	SolverTimeouts    int
}

// PlatoonSizeSample is one step's platoon-size observation, used to compute
// the size distribution spec.md §4.8 calls for ("Per-platoon: ... size
// distribution").
type PlatoonSizeSample struct {
	Sizes []float64
}

// SizeDistribution summarizes a set of platoon sizes with gonum's stat.Mean
// and stat.StdDev (SPEC_FULL.md §4.9) rather than a hand-rolled online
// variance accumulator.
type SizeDistribution struct {
	Mean   float64
	StdDev float64
	Count  int
}

// Summarize computes the mean and standard deviation of a set of platoon
// sizes. Returns the zero value if sizes is empty.
func Summarize(sizes []float64) SizeDistribution {
	if len(sizes) == 0 {
		return SizeDistribution{}
	}
	mean := stat.Mean(sizes, nil)
	var std float64
	if len(sizes) > 1 {
		std = stat.StdDev(sizes, nil)
	}
	return SizeDistribution{Mean: mean, StdDev: std, Count: len(sizes)}
}

// PlatoonEvent records a single formation-time/join/leave event for
// statistics reporting.
type PlatoonEvent struct {
	Time      phys.SimTime
	PlatoonID int
	Kind      string // "formed", "join", "leave", "dissolved"
}

// Accumulator owns all run-long statistics state; it is mutated only by the
// simulation loop (spawn, action, collision and completion phases).
type Accumulator struct {
	Counters        Counters
	PlatoonEvents    []PlatoonEvent
	sizeSamplesAtT   map[phys.SimTime][]float64
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{sizeSamplesAtT: make(map[phys.SimTime][]float64)}
}

// RecordPlatoonSizes stores one step's platoon sizes for later
// SizeDistribution summarization.
func (a *Accumulator) RecordPlatoonSizes(now phys.SimTime, sizes []float64) {
	a.sizeSamplesAtT[now] = sizes
}

// SizeDistributionAt returns the SizeDistribution recorded at a given step,
// or the zero value if none was recorded.
func (a *Accumulator) SizeDistributionAt(now phys.SimTime) SizeDistribution {
	return Summarize(a.sizeSamplesAtT[now])
}

//////////////////////////////////////////////////////////////////////
// Trace records & sinks (spec.md §6 output trace files)
//////////////////////////////////////////////////////////////////////

// VehicleTrip is one row of the vehicle_trips trace.
type VehicleTrip struct {
	ID                                     int
	DepartTime, ArrivalTime                phys.SimTime
	DepartPos, ArrivalPos, RouteLength     phys.Meters
	TimeLoss, DepartDelay                  phys.SimTime
}

// VehicleTrace is one row of the vehicle_traces trace (one per vehicle per
// step).
type VehicleTrace struct {
	Time                      phys.SimTime
	ID                        int
	Position                  phys.Meters
	Lane                      int
	Speed, DesiredSpeed       phys.MetersPerSec
	PlatoonID                 int
	PlatoonRole               string
	Color                     string
}

// VehicleChange is one row of the vehicle_changes trace.
type VehicleChange struct {
	Time             phys.SimTime
	ID               int
	FromLane, ToLane int
	Reason           string
}

// VehicleEmission is one row of the vehicle_emissions trace.
type VehicleEmission struct {
	Time phys.SimTime
	ID   int
	EmissionRates
}

// PlatoonTrace is one row of the platoon_trace trace.
type PlatoonTrace struct {
	Time         phys.SimTime
	PlatoonID    int
	LeaderID     int
	Size         int
	DesiredSpeed phys.MetersPerSec
	Lane         int
	Position     phys.Meters
}

// Sink is the family of write-only output interfaces, one per CSV schema in
// spec.md §6. The core never reads them back; tracesink.CSV is the
// reference implementation, explicitly out of the simulation core.
type (
	VehicleTripSink     interface{ WriteVehicleTrip(VehicleTrip) error }
	VehicleTraceSink    interface{ WriteVehicleTrace(VehicleTrace) error }
	VehicleChangeSink   interface{ WriteVehicleChange(VehicleChange) error }
	VehicleEmissionSink interface{ WriteVehicleEmission(VehicleEmission) error }
	PlatoonTraceSink    interface{ WritePlatoonTrace(PlatoonTrace) error }
)

// Sinks bundles the set of sinks a run may be configured with; any field
// may be nil, meaning that trace is not being recorded (spec.md §6,
// record-* flags).
type Sinks struct {
	VehicleTrips     VehicleTripSink
	VehicleTraces    VehicleTraceSink
	VehicleChanges   VehicleChangeSink
	VehicleEmissions VehicleEmissionSink
	PlatoonTraces    PlatoonTraceSink
}
