// Command platoonsim is the CLI entrypoint (spec.md §6). It parses exactly
// the documented flag set with stdlib flag, builds a config.Config, runs
// the simulation, and maps its result to the documented exit codes. It is
// grounded on teacher's engine.NewCLIGameConfig (engine/cliconfig.go) —
// flag.* parsing followed by validation — stripped of the pixel/pixelgl GUI
// bridge, which is explicitly out of scope (spec.md §1).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/overdrivelabs/platoonsim/config"
	"github.com/overdrivelabs/platoonsim/formation"
	"github.com/overdrivelabs/platoonsim/platlog"
	"github.com/overdrivelabs/platoonsim/simulation"
	"github.com/overdrivelabs/platoonsim/stats"
	"github.com/overdrivelabs/platoonsim/tracesink"
	"github.com/overdrivelabs/platoonsim/vehicletype"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("platoonsim", flag.ContinueOnError)

	// -d needs no handling of its own: every flag below starts from
	// config.Default(), and flags given alongside -d still apply.
	fs.Bool("d", false, "Accept all documented defaults before applying any other flags")

	cfg := config.Default()
	fs.Float64Var(&cfg.RoadLength, "road-length", cfg.RoadLength, "Road length, meters")
	fs.IntVar(&cfg.Lanes, "lanes", cfg.Lanes, "Number of lanes")
	fs.Float64Var(&cfg.RampInterval, "ramp-interval", cfg.RampInterval, "Ramp spacing, meters")

	fs.IntVar(&cfg.Vehicles, "vehicles", cfg.Vehicles, "Total vehicle count")
	fs.Float64Var(&cfg.Density, "density", cfg.Density, "Pre-fill density, vehicles/km/lane")
	fs.Float64Var(&cfg.Penetration, "penetration", cfg.Penetration, "Fraction of vehicles ACC/CACC-equipped")
	fs.Float64Var(&cfg.MinDesiredSpeed, "min-desired-speed", cfg.MinDesiredSpeed, "Minimum desired speed, m/s")
	fs.Float64Var(&cfg.MaxDesiredSpeed, "max-desired-speed", cfg.MaxDesiredSpeed, "Maximum desired speed, m/s")
	fs.Float64Var(&cfg.SpeedVariation, "speed-variation", cfg.SpeedVariation, "Desired-speed jitter fraction")
	fs.BoolVar(&cfg.RandomDesiredSpeed, "random-desired-speed", cfg.RandomDesiredSpeed, "Sample desired speed randomly")

	fs.StringVar(&cfg.DepartMethod, "depart-method", cfg.DepartMethod, "number|interval|flow")
	fs.Float64Var(&cfg.DepartInterval, "depart-interval", cfg.DepartInterval, "Seconds between departures (interval method)")
	fs.Float64Var(&cfg.DepartFlow, "depart-flow", cfg.DepartFlow, "Vehicles/hour (flow method)")
	fs.BoolVar(&cfg.DepartDesired, "depart-desired", cfg.DepartDesired, "Depart at desired speed instead of 0")
	fs.BoolVar(&cfg.RandomDepartPosition, "random-depart-position", cfg.RandomDepartPosition, "Depart at a random position instead of the nearest ramp")
	fs.BoolVar(&cfg.RandomArrivalPosition, "random-arrival-position", cfg.RandomArrivalPosition, "Arrive at a random position")
	fs.Float64Var(&cfg.ArrivalPosition, "arrival-position", cfg.ArrivalPosition, "Fixed arrival position, meters")
	fs.BoolVar(&cfg.DepartAllLanes, "depart-all-lanes", cfg.DepartAllLanes, "Depart into a random lane instead of rightmost")

	fs.Float64Var(&cfg.ACCHeadwayTime, "acc-headway-time", cfg.ACCHeadwayTime, "ACC headway time, seconds")
	fs.Float64Var(&cfg.CACCSpacing, "cacc-spacing", cfg.CACCSpacing, "CACC spacing distance, meters")
	fs.BoolVar(&cfg.ReducedAirDrag, "reduced-air-drag", cfg.ReducedAirDrag, "Model reduced air drag for CACC followers")

	fs.BoolVar(&cfg.StartAsPlatoon, "start-as-platoon", cfg.StartAsPlatoon, "Pre-fill vehicles as an already-formed platoon")
	fs.BoolVar(&cfg.PreFill, "pre-fill", cfg.PreFill, "Populate the road to target density before t=0")
	fs.BoolVar(&cfg.UpdateDesiredSpeed, "update-desired-speed", cfg.UpdateDesiredSpeed, "Recompute platoon desired speed on membership change")

	fs.StringVar(&cfg.FormationAlgorithm, "formation-algorithm", cfg.FormationAlgorithm, "Registered formation algorithm name")
	var formationStrategy string
	fs.StringVar(&formationStrategy, "formation-strategy", "distributed", "distributed|centralized")
	var formationKind string
	fs.StringVar(&formationKind, "formation-centralized-kind", "greedy", "greedy|optimal")
	fs.Float64Var(&cfg.ExecutionInterval, "execution-interval", cfg.ExecutionInterval, "Formation scheduler period, seconds")
	fs.IntVar(&cfg.Infrastructures, "infrastructures", cfg.Infrastructures, "Number of centralized infrastructures")
	fs.Float64Var(&cfg.CommunicationRange, "communication-range", cfg.CommunicationRange, "Distributed communication range, meters")

	fs.Float64Var(&cfg.TimeLimit, "time-limit", cfg.TimeLimit, "Simulated seconds to run")
	fs.Float64Var(&cfg.StepLength, "step-length", cfg.StepLength, "Simulated seconds per step")
	var seed int64
	fs.Int64Var(&seed, "random-seed", int64(cfg.RandomSeed), "PRNG seed")
	fs.StringVar(&cfg.Collisions, "collisions", cfg.Collisions, "warn|teleport|abort")
	fs.BoolVar(&cfg.LaneChanges, "lane-changes", cfg.LaneChanges, "Enable the lane-change model")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Validate configuration and exit without simulating")

	fs.StringVar(&cfg.ResultBaseFilename, "result-base-filename", cfg.ResultBaseFilename, "Base filename for trace outputs")
	fs.BoolVar(&cfg.RecordVehicleTrips, "record-vehicle-trips", cfg.RecordVehicleTrips, "Write vehicle_trips.csv")
	fs.BoolVar(&cfg.RecordVehicleEmissions, "record-vehicle-emissions", cfg.RecordVehicleEmissions, "Compute per-vehicle emissions (vehicle_emissions.csv also needs -record-emission-traces)")
	fs.BoolVar(&cfg.RecordVehicleTraces, "record-vehicle-traces", cfg.RecordVehicleTraces, "Write vehicle_traces.csv")
	fs.BoolVar(&cfg.RecordVehicleChanges, "record-vehicle-changes", cfg.RecordVehicleChanges, "Write vehicle_changes.csv")
	fs.BoolVar(&cfg.RecordEmissionTraces, "record-emission-traces", cfg.RecordEmissionTraces, "Write vehicle_emissions.csv (with -record-vehicle-emissions)")
	fs.BoolVar(&cfg.RecordEndTrace, "record-end-trace", cfg.RecordEndTrace, "Write a trace row at run end")
	fs.BoolVar(&cfg.RecordPrefilled, "record-prefilled", cfg.RecordPrefilled, "Include pre-filled vehicles in traces")
	fs.BoolVar(&cfg.RecordPlatoonTrace, "record-platoon-trace", cfg.RecordPlatoonTrace, "Write platoon_trace.csv")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg.RandomSeed = uint64(seed)

	switch formationStrategy {
	case "centralized":
		cfg.FormationStrategy = config.Centralized
	default:
		cfg.FormationStrategy = config.Distributed
	}
	switch formationKind {
	case "optimal":
		cfg.FormationCentralizedKind = config.Optimal
	default:
		cfg.FormationCentralizedKind = config.Greedy
	}

	logger := platlog.New(os.Stderr)

	if cfgErr := cfg.Validate(); cfgErr != nil {
		logger.Error().Err(cfgErr).Msg("invalid configuration")
		return 1
	}
	if cfg.DryRun {
		return 0
	}

	algoName := cfg.FormationAlgorithm
	if cfg.FormationStrategy == config.Centralized {
		switch cfg.FormationCentralizedKind {
		case config.Optimal:
			algoName = "Optimal"
		default:
			algoName = "Greedy"
		}
	}
	algo, err := formation.Lookup(algoName)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	sinks, sinkFiles, err := openSinks(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open trace output files")
		return 1
	}
	defer closeSinks(sinkFiles, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := simulation.Deps{
		VehicleTypes: vehicletype.DefaultRegistry,
		Algorithm:    algo,
		Sinks:        sinks,
		Logger:       logger,
	}

	summary, runErr := simulation.Run(ctx, cfg, deps)

	fmt.Fprintf(os.Stderr, "final time: %.1fs, spawned=%d arrived=%d colliding=%d dropped=%d aborts=%d timeouts=%d\n",
		summary.FinalTime.Seconds(), summary.Counters.Spawned, summary.Counters.Arrived,
		summary.Counters.Colliding, summary.Counters.DroppedInsertions, summary.Counters.ManeuverAborts,
		summary.Counters.SolverTimeouts)

	if runErr == nil {
		return 0
	}

	switch runErr.(type) {
	case *simulation.ErrCancelled:
		return 130
	case *simulation.ErrInvariantViolation:
		logger.Invariant(runErr.Error())
		return 2
	case *simulation.ErrSolverFailure:
		return 3
	default:
		logger.Error().Err(runErr).Msg("run failed")
		return 1
	}
}

// sinkFile pairs an opened trace output file with the flushable sink
// wrapping it, so closeSinks can flush buffered rows before closing.
type sinkFile struct {
	file  *os.File
	flush func() error
}

// openSinks opens one file per enabled record-* flag, named
// "<result-base-filename>_<trace>.csv" (spec.md §6), and wraps each in its
// tracesink.CSV implementation. Any record-* flag left off leaves the
// matching stats.Sinks field nil, meaning that trace is not recorded.
func openSinks(cfg config.Config) (stats.Sinks, []sinkFile, error) {
	var sinks stats.Sinks
	var files []sinkFile

	open := func(suffix string) (*os.File, error) {
		return os.Create(cfg.ResultBaseFilename + "_" + suffix + ".csv")
	}

	if cfg.RecordVehicleTrips {
		f, err := open("vehicle_trips")
		if err != nil {
			return sinks, files, err
		}
		sink := tracesink.NewVehicleTripCSV(f)
		sinks.VehicleTrips = sink
		files = append(files, sinkFile{f, sink.Flush})
	}
	if cfg.RecordVehicleTraces {
		f, err := open("vehicle_traces")
		if err != nil {
			return sinks, files, err
		}
		sink := tracesink.NewVehicleTraceCSV(f)
		sinks.VehicleTraces = sink
		files = append(files, sinkFile{f, sink.Flush})
	}
	if cfg.RecordVehicleChanges {
		f, err := open("vehicle_changes")
		if err != nil {
			return sinks, files, err
		}
		sink := tracesink.NewVehicleChangeCSV(f)
		sinks.VehicleChanges = sink
		files = append(files, sinkFile{f, sink.Flush})
	}
	if cfg.RecordVehicleEmissions && cfg.RecordEmissionTraces {
		f, err := open("vehicle_emissions")
		if err != nil {
			return sinks, files, err
		}
		sink := tracesink.NewVehicleEmissionCSV(f)
		sinks.VehicleEmissions = sink
		files = append(files, sinkFile{f, sink.Flush})
	}
	if cfg.RecordPlatoonTrace {
		f, err := open("platoon_trace")
		if err != nil {
			return sinks, files, err
		}
		sink := tracesink.NewPlatoonTraceCSV(f)
		sinks.PlatoonTraces = sink
		files = append(files, sinkFile{f, sink.Flush})
	}
	return sinks, files, nil
}

// closeSinks flushes and closes every opened trace output file, logging
// (not failing the run) on error, since these are all best-effort outputs
// after the simulation itself has already completed.
func closeSinks(files []sinkFile, logger platlog.Logger) {
	for _, sf := range files {
		if err := sf.flush(); err != nil {
			logger.Error().Err(err).Msg("failed to flush trace output")
		}
		if err := sf.file.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close trace output")
		}
	}
}
