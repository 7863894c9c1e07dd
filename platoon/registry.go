// Package platoon owns platoon lifecycle and the join/leave/follower-update
// maneuver state machines (spec.md §4.6). Per the design notes, platoons are
// kept as the source of truth — an ordered list of vehicle ids — and
// vehicles carry only the platoon id back to it: a "weak" relation resolved
// by lookup, never an owning pointer, the same cycle-breaking idiom teacher
// used by keeping robo.System.Vehicles as a flat slice indexed by id rather
// than vehicles holding pointers to each other.
package platoon

import (
	"sort"

	"golang.org/x/exp/maps"

	"github.com/overdrivelabs/platoonsim/phys"
)

// NoPlatoon is the sentinel meaning "not in any platoon", mirrored from the
// fleet package's own sentinel so callers can compare without importing
// fleet just for the constant.
const NoPlatoon = -1

// Platoon is the aggregate root for one cooperative convoy: an ordered
// member list (leader at index 0, front-most on the road), a shared desired
// speed, lane, and formation time.
type Platoon struct {
	ID            int
	Members       []int // vehicle ids, leader first
	DesiredSpeed  phys.MetersPerSec
	Lane          int
	FormationTime phys.SimTime
}

// Size returns the number of members.
func (p *Platoon) Size() int { return len(p.Members) }

// Leader returns the leader's vehicle id (Members[0]).
func (p *Platoon) Leader() int { return p.Members[0] }

// IndexOf returns the position-in-platoon of vehicleID, or -1 if absent.
func (p *Platoon) IndexOf(vehicleID int) int {
	for i, id := range p.Members {
		if id == vehicleID {
			return i
		}
	}
	return -1
}

// Registry owns every live platoon, keyed by an id that is never reused
// once retired (spec.md §3: "platoon id becomes free but is never reused").
type Registry struct {
	platoons map[int]*Platoon
	nextID   int
}

// NewRegistry returns an empty platoon Registry.
func NewRegistry() *Registry {
	return &Registry{platoons: make(map[int]*Platoon)}
}

// Get returns the platoon with the given id, or (nil, false) if it does not
// exist (retired or never created).
func (r *Registry) Get(id int) (*Platoon, bool) {
	p, ok := r.platoons[id]
	return p, ok
}

// Create forms a new single-member platoon with leaderID as its sole,
// leading member, and returns it.
func (r *Registry) Create(leaderID int, lane int, desiredSpeed phys.MetersPerSec, now phys.SimTime) *Platoon {
	id := r.nextID
	r.nextID++
	p := &Platoon{
		ID:            id,
		Members:       []int{leaderID},
		DesiredSpeed:  desiredSpeed,
		Lane:          lane,
		FormationTime: now,
	}
	r.platoons[id] = p
	return p
}

// retire removes a platoon from the registry; its id is never reissued.
func (r *Registry) retire(id int) {
	delete(r.platoons, id)
}

// Snapshot returns every live platoon, ordered by id for deterministic
// iteration (tests and trace sinks must not depend on Go's randomized map
// order); grounded on the same stable-snapshot need teacher addressed with
// plain slice iteration, expressed here with x/exp/maps since platoons live
// in a map keyed by id.
func (r *Registry) Snapshot() []*Platoon {
	ids := maps.Keys(r.platoons)
	sort.Ints(ids)
	out := make([]*Platoon, len(ids))
	for i, id := range ids {
		out[i] = r.platoons[id]
	}
	return out
}

// DesiredSpeedFn computes a vehicle's fixed desired speed; supplied by the
// caller (fleet lookup) rather than imported, keeping this package free of
// a fleet dependency.
type DesiredSpeedFn func(vehicleID int) phys.MetersPerSec

// RecomputeDesiredSpeed updates p.DesiredSpeed to the mean of member desired
// speeds, per spec.md §4.6: "On any join/leave that updates membership,
// recompute as the mean of member desired speeds if the update-desired-speed
// flag is on; else keep the original." Callers must invoke this ONLY after a
// successful membership change — see Open Question (a) in DESIGN.md.
func (p *Platoon) RecomputeDesiredSpeed(updateDesiredSpeed bool, desiredOf DesiredSpeedFn) {
	if !updateDesiredSpeed {
		return
	}
	var sum phys.MetersPerSec
	for _, id := range p.Members {
		sum += desiredOf(id)
	}
	p.DesiredSpeed = sum / phys.MetersPerSec(len(p.Members))
}
