// Package vehicletype is the immutable registry of kinematic vehicle-type
// parameters: length, max speed, acceleration/deceleration, minimum gap, and
// headway. It plays the role teacher's vehTypeInfoTable played in
// robo/vehicle.go, generalized from a fixed two-letter model table to named
// freeway vehicle types. The driver-assistance class (human / ACC / CACC) is
// a separate Capability, assigned per vehicle independently of its type.
package vehicletype

import (
	"fmt"
	"image/color"

	cn "golang.org/x/image/colornames"

	"github.com/overdrivelabs/platoonsim/phys"
)

// Capability is the driver-assistance class of a vehicle, which selects its
// car-following model (spec.md §4.2).
type Capability int

const (
	Human Capability = iota
	ACC
	CACC
)

func (c Capability) String() string {
	switch c {
	case Human:
		return "human"
	case ACC:
		return "acc"
	case CACC:
		return "cacc"
	default:
		return "unknown"
	}
}

// EmissionClass tags a vehicle for the HBEFA-style emission model (spec.md
// §4.8).
type EmissionClass string

const (
	EmissionClassPetrol EmissionClass = "PC_G_EU4"
	EmissionClassDiesel EmissionClass = "PC_D_EU4"
)

// Info is the immutable set of kinematic parameters shared by every vehicle
// of a given type. Unlike teacher's VehTypeInfo (which also carried game-only
// fields), Info carries exactly what the car-following and lane-change models
// need, plus the Color used only by the (external, GUI) visualizer.
type Info struct {
	Name     string
	Color    color.Color
	Length   phys.Meters
	MaxSpeed phys.MetersPerSec
	MaxAccel phys.MetersPerSec2
	MaxDecel phys.MetersPerSec2
	MinGap   phys.Meters  // minimum front gap, at a standstill
	Headway  float64      // seconds; the Human model's reaction time (ACC/CACC use the configured acc-headway-time)
	Emission EmissionClass
}

// Registry is an immutable, named set of vehicle-type definitions. Models and
// the spawner only ever read from a Registry; nothing in the simulator
// mutates one after construction.
type Registry struct {
	types map[string]Info
}

// NewRegistry builds a Registry from a set of named Info entries. It keeps
// a panic on duplicate names, the same way teacher's NewVehicle panicked on
// an unknown VehType; since entries is a map, its names are already unique
// and that panic cannot fire for any input.
func NewRegistry(entries map[string]Info) *Registry {
	types := make(map[string]Info, len(entries))
	for name, info := range entries {
		if _, dup := types[name]; dup {
			panic(fmt.Sprintf("vehicletype: duplicate type name %q", name))
		}
		types[name] = info
	}
	return &Registry{types: types}
}

// Lookup returns the Info for a named vehicle type.
func (r *Registry) Lookup(name string) (Info, bool) {
	info, ok := r.types[name]
	return info, ok
}

// Names returns all registered type names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	return names
}

// DefaultRegistry is a small, reasonable default fleet mix: a passenger car
// and a truck (either may carry any Capability), loosely in the spirit of
// teacher's vehTypeInfoTable (one map literal, several named variants), but
// sized from typical car-following-model literature values rather than
// OverDrive toy-car dimensions.
var DefaultRegistry = NewRegistry(map[string]Info{
	"passenger": {
		Name:     "passenger",
		Color:    cn.Royalblue,
		Length:   4.0,
		MaxSpeed: 55.0, // ~200 km/h
		MaxAccel: 2.5,
		MaxDecel: 4.5,
		MinGap:   2.0,
		Headway:  1.5,
		Emission: EmissionClassPetrol,
	},
	"truck": {
		Name:     "truck",
		Color:    cn.Orangered,
		Length:   12.0,
		MaxSpeed: 36.0, // ~130 km/h
		MaxAccel: 1.2,
		MaxDecel: 3.5,
		MinGap:   3.0,
		Headway:  2.0,
		Emission: EmissionClassDiesel,
	},
})
