// Package config is the simulator's command-line-configured parameter
// object (spec.md §6). It is grounded on teacher's
// engine.NewCLIGameConfig (engine/cliconfig.go) — stdlib flag.* parsing
// followed by validation of each parsed value — but generalizes the
// teacher's panic-on-bad-value pattern into validated *Error returns, per
// spec.md §7's Config error category (exit 1, fail before t=0).
package config

import (
	"fmt"

	"github.com/overdrivelabs/platoonsim/collision"
	"github.com/overdrivelabs/platoonsim/spawner"
)

// Error is a Config-category error: an invalid parameter or combination,
// detected before any simulation object is constructed (spec.md §7).
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("config: %s: %s", e.Field, e.Message) }

// FormationStrategy selects distributed vs centralized formation (spec.md
// §6).
type FormationStrategy int

const (
	Distributed FormationStrategy = iota
	Centralized
)

// FormationCentralizedKind further selects greedy vs optimal when
// Centralized is chosen.
type FormationCentralizedKind int

const (
	Greedy FormationCentralizedKind = iota
	Optimal
)

// Config is every flag spec.md §6 names, grouped exactly as the table
// there groups them.
type Config struct {
	// Road
	RoadLength   float64 // meters
	Lanes        int
	RampInterval float64 // meters

	// Vehicles
	Vehicles           int
	Density            float64 // veh/km/lane
	Penetration        float64 // 0..1
	MinDesiredSpeed    float64
	MaxDesiredSpeed    float64
	SpeedVariation     float64
	RandomDesiredSpeed bool

	// Trips
	DepartMethod           string // number | interval | flow
	DepartInterval         float64
	DepartFlow             float64
	DepartDesired          bool
	RandomDepartPosition   bool
	RandomArrivalPosition  bool
	ArrivalPosition        float64
	DepartAllLanes         bool

	// Car-following
	ACCHeadwayTime  float64
	CACCSpacing     float64
	ReducedAirDrag  bool

	// Platoon
	StartAsPlatoon     bool
	PreFill            bool
	UpdateDesiredSpeed bool

	// Formation
	FormationAlgorithm       string
	FormationStrategy        FormationStrategy
	FormationCentralizedKind FormationCentralizedKind
	ExecutionInterval        float64
	Infrastructures          int
	CommunicationRange       float64

	// Simulation
	TimeLimit    float64
	StepLength   float64
	RandomSeed   uint64
	Collisions   string // warn | teleport | abort
	LaneChanges  bool
	DryRun       bool

	// Recording
	ResultBaseFilename     string
	RecordVehicleTrips     bool
	RecordVehicleEmissions bool
	RecordVehicleTraces    bool
	RecordVehicleChanges   bool
	RecordEmissionTraces   bool
	RecordEndTrace         bool
	RecordPrefilled        bool
	RecordPlatoonTrace     bool
}

// Default returns the documented default configuration, matching `-d`'s
// "accept all defaults" semantics (spec.md §6).
func Default() Config {
	return Config{
		RoadLength:   100000,
		Lanes:        3,
		RampInterval: 1000,

		Vehicles:           1000,
		Density:            0,
		Penetration:        0.5,
		MinDesiredSpeed:    22,
		MaxDesiredSpeed:    36,
		SpeedVariation:     0.1,
		RandomDesiredSpeed: true,

		DepartMethod:   "number",
		DepartInterval: 1.0,
		DepartFlow:     1000,
		DepartDesired:  false,

		ACCHeadwayTime: 1.0,
		CACCSpacing:    5.0,

		PreFill:            false,
		UpdateDesiredSpeed: true,

		FormationAlgorithm: "SpeedPosition",
		FormationStrategy:  Distributed,
		ExecutionInterval:  30,
		Infrastructures:    0,
		CommunicationRange: 1000,

		TimeLimit:   3600,
		StepLength:  1.0,
		RandomSeed:  1337,
		Collisions:  "warn",
		LaneChanges: true,

		ResultBaseFilename: "result",
	}
}

// Validate checks every cross-field invariant spec.md §7's Config category
// covers (e.g. "density × length > capacity") before any simulation object
// is constructed.
func (c Config) Validate() *Error {
	if c.RoadLength <= 0 {
		return &Error{"road-length", "must be positive"}
	}
	if c.Lanes < 1 {
		return &Error{"lanes", "must be at least 1"}
	}
	if c.RampInterval <= 0 {
		return &Error{"ramp-interval", "must be positive"}
	}
	if c.Penetration < 0 || c.Penetration > 1 {
		return &Error{"penetration", "must be in [0, 1]"}
	}
	if c.MinDesiredSpeed < 0 || c.MaxDesiredSpeed < c.MinDesiredSpeed {
		return &Error{"min/max-desired-speed", "max must be >= min >= 0"}
	}
	if _, ok := spawner.ParseDepartMethod(c.DepartMethod); !ok {
		return &Error{"depart-method", "must be one of number|interval|flow"}
	}
	if _, ok := collision.ParsePolicy(c.Collisions); !ok {
		return &Error{"collisions", "must be one of warn|teleport|abort"}
	}
	if c.TimeLimit <= 0 {
		return &Error{"time-limit", "must be positive"}
	}
	if c.StepLength <= 0 {
		return &Error{"step-length", "must be positive"}
	}
	if c.ExecutionInterval <= 0 {
		return &Error{"execution-interval", "must be positive"}
	}
	if c.FormationStrategy == Centralized && c.Infrastructures < 1 {
		return &Error{"infrastructures", "centralized formation requires at least one infrastructure"}
	}

	// "density × length > capacity": a naive road-capacity check using a
	// ceiling of 1 vehicle per 7.5m per lane (a combined vehicle length plus
	// minimum gap). Lane count and road length cancel out of the check, since
	// density is already per km per lane.
	if c.Density > 0 {
		capacityPerLanePerKm := 1000.0 / 7.5
		if c.Density > capacityPerLanePerKm {
			return &Error{"density", "exceeds road capacity for the given lane count"}
		}
	}

	return nil
}
