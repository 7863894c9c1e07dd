// Package formation is the periodic, pluggable vehicle-to-platoon
// assignment scheduler (spec.md §4.7). Per the design notes, the algorithm
// is modeled as an explicit, build-time-registered capability — never
// reflection-dispatched — echoing teacher's engine.GamePhase interface
// dispatch (engine/gamephase.go), generalized from "which screen renders
// next" to "which assignment algorithm runs next".
package formation

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/platoon"
)

// VehicleView is the read-only per-vehicle state the scheduler can see.
// Candidates only see peers within CommunicationRange for the distributed
// algorithm; centralized algorithms see every vehicle (infrastructure is
// modeled as omniscient, spec.md §3).
type VehicleView struct {
	ID           int
	Position     phys.Meters
	Lane         int
	Speed        phys.MetersPerSec
	DesiredSpeed phys.MetersPerSec
	PlatoonID    int // platoon.NoPlatoon if unassigned
	Capability   int // mirrors vehicletype.Capability without importing it, to keep this package narrow
}

// PlatoonView is the read-only per-platoon state the scheduler can see.
type PlatoonView struct {
	ID           int
	TailPosition phys.Meters
	Lane         int
	DesiredSpeed phys.MetersPerSec
	Size         int
}

// Snapshot is the scheduler's entire view of the world for one invocation —
// a read-only value, never retained across step boundaries (design notes:
// "The scheduler must not retain references into fleet state across step
// boundaries").
type Snapshot struct {
	Now                phys.SimTime
	Vehicles           []VehicleView
	Platoons           []PlatoonView
	CommunicationRange phys.Meters
}

// Commands is the write-only command buffer a scheduler invocation returns;
// the maneuver component applies it at the next action boundary.
type Commands struct {
	Joins  []platoon.JoinRequest
	Leaves []platoon.LeaveRequest
}

// Algorithm is the capability every formation strategy implements:
// "methods {on_step(view, clock) -> commands}" per the design notes.
type Algorithm interface {
	Name() string
	OnStep(snap Snapshot) Commands
}

// registry is the explicit build-time registration table (design notes:
// "Avoid reflection; require explicit registration of names at build time,
// with documented failure on unknown names").
var registry = map[string]Algorithm{}

// ErrUnknownAlgorithm is returned by Lookup for an unregistered name; the
// caller (the CLI entrypoint) treats this as a Config error, exit 1.
var ErrUnknownAlgorithm = errors.New("formation: unknown algorithm name")

// Register adds an Algorithm under its Name(). Called from init() in each
// algorithm's file, never at runtime from user input.
func Register(a Algorithm) {
	registry[a.Name()] = a
}

// Lookup resolves a configured algorithm name to its registered
// implementation.
func Lookup(name string) (Algorithm, error) {
	a, ok := registry[name]
	if !ok {
		return nil, ErrUnknownAlgorithm
	}
	return a, nil
}

// scoreSpeedPosition computes the speed-position score α·|Δv| + β·|Δpos|
// spec.md §4.7 names for the distributed reference policy.
func scoreSpeedPosition(alpha, beta float64, dv phys.MetersPerSec, dpos phys.Meters) float64 {
	return alpha*absF(float64(dv)) + beta*absF(float64(dpos))
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func init() {
	Register(&SpeedPosition{Alpha: 1.0, Beta: 0.01, Threshold: 5.0})
	Register(&Greedy{Alpha: 1.0, Beta: 0.01, Threshold: 5.0})
	Register(&Optimal{
		Solver:   StubSolver{},
		Deadline: phys.SimTimeFromSeconds(1),
		Fallback: Greedy{Alpha: 1.0, Beta: 0.01, Threshold: 5.0},
	})
}

//////////////////////////////////////////////////////////////////////
// Distributed per-vehicle reference algorithm
//////////////////////////////////////////////////////////////////////

// SpeedPosition is the reference distributed policy spec.md §4.7 names:
// each candidate vehicle scores reachable platoons by α·|Δv| + β·|Δpos| and
// requests a join with the best score under Threshold. Conflicts are
// resolved lower-id-wins (spec.md Open Question (b)).
type SpeedPosition struct {
	Alpha, Beta, Threshold float64
}

func (s *SpeedPosition) Name() string { return "SpeedPosition" }

func (s *SpeedPosition) OnStep(snap Snapshot) Commands {
	type candidate struct {
		vehicleID int
		platoonID int
		score     float64
	}

	platoonByID := make(map[int]PlatoonView, len(snap.Platoons))
	for _, p := range snap.Platoons {
		platoonByID[p.ID] = p
	}

	var candidates []candidate
	for _, v := range snap.Vehicles {
		if v.PlatoonID != platoon.NoPlatoon {
			continue // already in a platoon
		}
		best := -1
		bestScore := s.Threshold
		for _, p := range snap.Platoons {
			if p.Lane != v.Lane {
				continue
			}
			dpos := p.TailPosition - v.Position
			if absF(float64(dpos)) > float64(snap.CommunicationRange) {
				continue
			}
			score := scoreSpeedPosition(s.Alpha, s.Beta, v.DesiredSpeed-p.DesiredSpeed, dpos)
			if score < bestScore {
				bestScore = score
				best = p.ID
			}
		}
		if best != -1 {
			candidates = append(candidates, candidate{vehicleID: v.ID, platoonID: best, score: bestScore})
		}
	}

	// Conflict resolution: lower vehicle id wins the same target tail.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].vehicleID < candidates[j].vehicleID })
	claimed := make(map[int]bool)
	var joins []platoon.JoinRequest
	for _, c := range candidates {
		if claimed[c.platoonID] {
			continue
		}
		claimed[c.platoonID] = true
		joins = append(joins, platoon.JoinRequest{VehicleID: c.vehicleID, PlatoonID: c.platoonID})
	}

	return Commands{Joins: joins}
}

//////////////////////////////////////////////////////////////////////
// Centralized greedy
//////////////////////////////////////////////////////////////////////

// Greedy is the centralized-greedy strategy: an infrastructure with full
// knowledge iterates vehicles in arrival order, assigning each to the
// best-scoring currently-formed platoon (spec.md §4.7).
type Greedy struct {
	Alpha, Beta, Threshold float64
}

func (g *Greedy) Name() string { return "Greedy" }

func (g *Greedy) OnStep(snap Snapshot) Commands {
	vehicles := append([]VehicleView(nil), snap.Vehicles...)
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].ID < vehicles[j].ID })

	var joins []platoon.JoinRequest
	claimed := make(map[int]bool)
	for _, v := range vehicles {
		if v.PlatoonID != platoon.NoPlatoon {
			continue
		}
		best := -1
		bestScore := g.Threshold
		for _, p := range snap.Platoons {
			if claimed[p.ID] || p.Lane != v.Lane {
				continue
			}
			score := scoreSpeedPosition(g.Alpha, g.Beta, v.DesiredSpeed-p.DesiredSpeed, p.TailPosition-v.Position)
			if score < bestScore {
				bestScore = score
				best = p.ID
			}
		}
		if best != -1 {
			claimed[best] = true
			joins = append(joins, platoon.JoinRequest{VehicleID: v.ID, PlatoonID: best})
		}
	}
	return Commands{Joins: joins}
}

//////////////////////////////////////////////////////////////////////
// Centralized optimal (external solver)
//////////////////////////////////////////////////////////////////////

// ErrSolverTimeout is returned by Solver.Solve when the deadline passes
// before a solution arrives; the caller falls back to Greedy and records a
// solution-quality statistic (spec.md §4.7, §7).
var ErrSolverTimeout = errors.New("formation: solver timed out")

// Assignment is one vehicle -> platoon (or -1, "remain alone") pairing in a
// solver's solution.
type Assignment struct {
	VehicleID int
	PlatoonID int // platoon.NoPlatoon means "remain alone" (the slack assignment)
}

// Solver is the narrow, blocking external-collaborator interface spec.md
// §4.7/§6 describes: "dispatches it to an external solver via the
// collaborator interface, enforces a time budget". Implementations may
// shell out to a third-party optimizer; this package only depends on the
// interface.
type Solver interface {
	Solve(ctx context.Context, snap Snapshot) ([]Assignment, error)
}

// Optimal is the centralized-optimal strategy: builds the assignment
// problem and dispatches it to Solver, bounded by Deadline; on any solver
// error (a timeout or otherwise) it falls back to Greedy and increments
// TimeoutCount for the caller to read into stats.Counters.SolverTimeouts.
type Optimal struct {
	Solver       Solver
	Deadline     phys.SimTime
	Fallback     Greedy
	TimeoutCount int
}

// StubSolver is the default Solver registered for Optimal: the solver
// algorithm itself is out of scope (spec.md Non-goals), so this always times
// out and lets Optimal fall back to Greedy, same as a real solver would under
// load. A deployment that implements an actual solver replaces this by
// constructing its own *Optimal and Register-ing it under the same name.
type StubSolver struct{}

func (StubSolver) Solve(ctx context.Context, snap Snapshot) ([]Assignment, error) {
	return nil, ErrSolverTimeout
}

func (o *Optimal) Name() string { return "Optimal" }

func (o *Optimal) OnStep(snap Snapshot) Commands {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(o.Deadline))
	defer cancel()

	assignments, err := o.Solver.Solve(ctx, snap)
	if err != nil {
		o.TimeoutCount++
		return o.Fallback.OnStep(snap)
	}

	var joins []platoon.JoinRequest
	for _, a := range assignments {
		if a.PlatoonID == platoon.NoPlatoon {
			continue
		}
		joins = append(joins, platoon.JoinRequest{VehicleID: a.VehicleID, PlatoonID: a.PlatoonID})
	}
	return Commands{Joins: joins}
}
