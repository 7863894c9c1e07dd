// Package collision is the per-lane overlap detector (spec.md §4.4). It is
// grounded on teacher's robo.CollisionDetector (robo/collision.go) but
// radically simplified: teacher detects 2D rectangle overlap between
// arbitrarily posed vehicles on a curved track; a straight multi-lane road
// reduces that to a one-dimensional, per-lane, consecutive-pair check. No
// collision set is kept between calls: Detect reports every overlapping
// pair each time it runs.
package collision

import "github.com/overdrivelabs/platoonsim/phys"

// Policy is the configured response to a detected collision (spec.md §4.4,
// §6 collisions flag).
type Policy int

const (
	Warn Policy = iota
	Teleport
	Abort
)

func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "warn":
		return Warn, true
	case "teleport":
		return Teleport, true
	case "abort":
		return Abort, true
	default:
		return 0, false
	}
}

// LaneVehicle is the minimal per-vehicle state the detector needs, already
// sorted by the caller into lane groups.
type LaneVehicle struct {
	Row    int // fleet row, opaque to this package
	ID     int
	Lane   int
	Position phys.Meters
	Length phys.Meters
}

// Pair is one detected collision: the front vehicle overlapping the vehicle
// behind it in the same lane.
type Pair struct {
	Lane        int
	Front, Back LaneVehicle
	Overlap     phys.Meters // how far pos_front-length_front intrudes past pos_back
}

// Detect reports every consecutive-pair overlap in each lane, per spec.md
// §4.4: "Per lane, sort by position descending. Report a collision for any
// consecutive pair where pos_front - length_front < pos_back."
//
// laneGroups must already be sorted by position descending per lane (the
// same ordering fleet.LaneOrder produces, so the caller need not re-sort).
func Detect(laneGroups [][]LaneVehicle) []Pair {
	var pairs []Pair
	for _, lane := range laneGroups {
		for i := 1; i < len(lane); i++ {
			front, back := lane[i-1], lane[i]
			frontRear := front.Position - front.Length
			if frontRear < back.Position {
				pairs = append(pairs, Pair{
					Lane:    front.Lane,
					Front:   front,
					Back:    back,
					Overlap: back.Position - frontRear,
				})
			}
		}
	}
	return pairs
}

// TeleportSeparation returns the new position for the back vehicle in a
// Pair under the `teleport` policy: moved minimally backward so the two
// vehicles are exactly touching, never overlapping. This is the minimal
// backward separation spec.md's design notes prescribe for the
// underspecified teleport collision policy (Open Question (c)).
func TeleportSeparation(p Pair) phys.Meters {
	return p.Front.Position - p.Front.Length
}
