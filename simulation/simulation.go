// Package simulation is the step orchestrator (spec.md §4.1): it owns the
// fixed 8-phase order, the fleet, the platoon registry, and the PRNG, and is
// the only package that mutates any of them. It is grounded on teacher's
// robo.System.Tick (robo/system.go) — "sim.Tick, then post-step hooks,
// called once per frame" — generalized from one physics + collider call
// into the full spawn/actions/lane-change/car-following/position/
// collision/completion/time-advance sequence spec.md §4.1 names.
package simulation

import (
	"context"
	"fmt"
	"sort"

	"github.com/overdrivelabs/platoonsim/carfollow"
	"github.com/overdrivelabs/platoonsim/collision"
	"github.com/overdrivelabs/platoonsim/config"
	"github.com/overdrivelabs/platoonsim/fleet"
	"github.com/overdrivelabs/platoonsim/formation"
	"github.com/overdrivelabs/platoonsim/lanechange"
	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/platlog"
	"github.com/overdrivelabs/platoonsim/platoon"
	"github.com/overdrivelabs/platoonsim/simrand"
	"github.com/overdrivelabs/platoonsim/spawner"
	"github.com/overdrivelabs/platoonsim/stats"
	"github.com/overdrivelabs/platoonsim/vehicletype"
)

// RunSummary is returned by Run on success or recoverable-only completion.
type RunSummary struct {
	FinalTime phys.SimTime
	Counters  stats.Counters
}

// Deps bundles everything Run needs beyond the Config itself: the
// resolved formation algorithm (already looked up from its configured
// name), the vehicle-type registry, and the trace sinks to write through.
// Constructing these is the CLI entrypoint's job, not this package's.
type Deps struct {
	VehicleTypes *vehicletype.Registry
	Algorithm    formation.Algorithm
	Sinks        stats.Sinks
	Logger       platlog.Logger
}

// Run advances the simulation per spec.md §4.1 until time reaches the
// configured limit or the fleet is empty with no further arrivals expected.
// ctx is checked for cancellation once per step, before the spawn phase
// (spec.md §5); a cancellation yields (summary-so-far, *ErrCancelled).
func Run(ctx context.Context, cfg config.Config, deps Deps) (RunSummary, error) {
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}

	rng := simrand.New(cfg.RandomSeed)
	fl := fleet.New()
	plats := platoon.NewRegistry()
	maneuvers := platoon.NewManeuvers()
	acc := stats.NewAccumulator()

	dt := phys.SimTimeFromSeconds(cfg.StepLength)
	timeLimit := phys.SimTimeFromSeconds(cfg.TimeLimit)
	executionInterval := phys.SimTimeFromSeconds(cfg.ExecutionInterval)
	collisionPolicy, _ := collision.ParsePolicy(cfg.Collisions)
	departMethod, _ := spawner.ParseDepartMethod(cfg.DepartMethod)

	spawnParams := spawner.Params{
		Method:                departMethod,
		Total:                 cfg.Vehicles,
		IntervalSec:           cfg.DepartInterval,
		FlowRatePerSec:        cfg.DepartFlow / 3600.0,
		RandomDepartLane:      cfg.DepartAllLanes,
		RandomDepartPosition:  cfg.RandomDepartPosition,
		DepartDesiredSpeed:    cfg.DepartDesired,
		RandomArrivalPosition: cfg.RandomArrivalPosition,
		ArrivalPosition:       phys.Meters(cfg.ArrivalPosition),
		RoadLength:            phys.Meters(cfg.RoadLength),
		NumLanes:              cfg.Lanes,
		RampInterval:          phys.Meters(cfg.RampInterval),
		RetryLimit:            10,
	}

	maneuverParams := platoon.Params{
		ApproachEpsilon:     0.1,
		MaxApproachTime:     phys.SimTimeFromSeconds(300),
		MaxTeleportDistance: 500,
		CACCSpacing:         phys.Meters(cfg.CACCSpacing),
		UpdateDesiredSpeed:  cfg.UpdateDesiredSpeed,
	}

	makeVehicle := func(i int) spawner.PendingVehicle {
		info, _ := deps.VehicleTypes.Lookup(pickTypeName(deps.VehicleTypes, i))
		cap := pickCapability(cfg.Penetration, rng)
		desired := sampleDesiredSpeed(cfg, rng)
		return spawner.PendingVehicle{
			Type:         info,
			Capability:   cap,
			Emission:     info.Emission,
			DesiredSpeed: desired,
		}
	}

	pending := spawner.Schedule(spawnParams, cfg.StepLength, makeVehicle)
	sort.Slice(pending, func(i, j int) bool { return pending[i].DepartTime < pending[j].DepartTime })

	if cfg.PreFill {
		preFillFleet(fl, plats, cfg, deps, rng)
	}

	desiredOf := func(vehicleID int) phys.MetersPerSec {
		row, ok := fl.Index(vehicleID)
		if !ok {
			return 0
		}
		return fl.At(row).DesiredSpeed
	}

	nextAction := executionInterval
	var now phys.SimTime

	for now < timeLimit {
		select {
		case <-ctx.Done():
			return RunSummary{FinalTime: now, Counters: acc.Counters}, &ErrCancelled{}
		default:
		}

		if len(pending) == 0 && fl.Len() == 0 && departMethod != spawner.DepartFlow {
			break
		}

		// 1. Spawn
		pending = spawnPhase(fl, plats, pending, now, spawnParams, acc, deps.Logger)
		if departMethod == spawner.DepartFlow {
			spawnFlowArrivals(fl, plats, cfg, deps, now, rng, acc)
		}

		// 2. Actions (formation + periodic stats), every execution-interval.
		if now >= nextAction {
			runFormation(fl, plats, maneuvers, deps.Algorithm, cfg, now, executionInterval, desiredOf, maneuverParams, acc, deps.Logger)
			recordPeriodicStats(fl, plats, acc, now, deps.Sinks)
			nextAction += executionInterval
		}
		if _, aborted := maneuverTick(maneuvers, now, fl, plats, desiredOf, maneuverParams); aborted > 0 {
			acc.Counters.ManeuverAborts += aborted
		}

		// Followers inherit the leader's current desired speed the same
		// step, no propagation delay (spec.md §4.6, "Follower update").
		for _, p := range plats.Snapshot() {
			platoon.UpdateFollowers(fl, p)
		}

		// 3. Lane change
		if cfg.LaneChanges {
			applyLaneChanges(fl, cfg, deps.Sinks, now)
		}

		// 4. Car-following
		applyCarFollowing(fl, cfg, rng, deps.Sinks, now)

		// 5. Position update
		fl.Each(func(row int) {
			r := fl.At(row)
			fl.SetPosition(row, r.Position+phys.Meters(float64(r.Speed)*cfg.StepLength))
		})

		// 6. Collision check
		pairs := detectCollisions(fl, cfg.Lanes)
		acc.Counters.Colliding += len(pairs)
		for _, pair := range pairs {
			switch collisionPolicy {
			case collision.Warn:
				deps.Logger.Collision(pair.Front.ID, pair.Back.ID, "warn")
			case collision.Teleport:
				deps.Logger.Collision(pair.Front.ID, pair.Back.ID, "teleport")
				if row, ok := fl.Index(pair.Back.ID); ok {
					fl.SetPosition(row, collision.TeleportSeparation(pair))
				}
			case collision.Abort:
				deps.Logger.Invariant("collision under abort policy")
				return RunSummary{FinalTime: now, Counters: acc.Counters}, &ErrInvariantViolation{Detail: "collision detected under abort policy"}
			}
		}

		// 7. Completion
		completeArrivals(fl, plats, desiredOf, maneuverParams, now, acc, deps.Sinks, cfg)

		if cfg.RecordVehicleTraces && deps.Sinks.VehicleTraces != nil {
			recordVehicleTraces(fl, deps.Sinks, cfg, now)
		}

		// 8. Time advance
		now += dt
	}

	if cfg.RecordEndTrace && deps.Sinks.VehicleTrips != nil {
		fl.Each(func(row int) {
			r := fl.At(row)
			if r.PreFilled && !cfg.RecordPrefilled {
				return
			}
			deps.Sinks.VehicleTrips.WriteVehicleTrip(vehicleTripOf(r, now))
		})
	}

	return RunSummary{FinalTime: now, Counters: acc.Counters}, nil
}

func pickTypeName(reg *vehicletype.Registry, i int) string {
	names := reg.Names()
	sort.Strings(names)
	if len(names) == 0 {
		return ""
	}
	return names[i%len(names)]
}

func pickCapability(penetration float64, rng *simrand.Source) vehicletype.Capability {
	if rng.Float64() >= penetration {
		return vehicletype.Human
	}
	if rng.Float64() < 0.5 {
		return vehicletype.ACC
	}
	return vehicletype.CACC
}

func sampleDesiredSpeed(cfg config.Config, rng *simrand.Source) phys.MetersPerSec {
	if !cfg.RandomDesiredSpeed {
		return phys.MetersPerSec((cfg.MinDesiredSpeed + cfg.MaxDesiredSpeed) / 2)
	}
	base := rng.UniformRange(cfg.MinDesiredSpeed, cfg.MaxDesiredSpeed)
	jitter := rng.Normal(0, cfg.SpeedVariation*base)
	v := base + jitter
	if v < 0 {
		v = 0
	}
	return phys.MetersPerSec(v)
}

// preFillSeed is one pre-filled vehicle's id and attributes, collected
// before platoon membership is assigned so StartAsPlatoon can group seeds by
// lane instead of seeding one-member platoons (spec.md §4.5, §6).
type preFillSeed struct {
	id         int
	lane       int
	capability vehicletype.Capability
	desired    phys.MetersPerSec
	position   phys.Meters
}

func preFillFleet(fl *fleet.Fleet, plats *platoon.Registry, cfg config.Config, deps Deps, rng *simrand.Source) {
	params := spawner.PreFillParams{
		DensityPerKmPerLane: cfg.Density,
		RoadLength:          phys.Meters(cfg.RoadLength),
		NumLanes:            cfg.Lanes,
	}
	arrivalParams := spawner.Params{
		RoadLength:            phys.Meters(cfg.RoadLength),
		RandomArrivalPosition: cfg.RandomArrivalPosition,
		ArrivalPosition:       phys.Meters(cfg.ArrivalPosition),
	}
	actionIntervalSteps := int(cfg.ExecutionInterval / cfg.StepLength)

	count := spawner.PreFillCount(params)
	seeds := make([]preFillSeed, 0, count)
	for i := 0; i < count; i++ {
		info, _ := deps.VehicleTypes.Lookup(pickTypeName(deps.VehicleTypes, i))
		capability := pickCapability(cfg.Penetration, rng)
		desired := sampleDesiredSpeed(cfg, rng)
		pos := spawner.PreFillPosition(params, rng)
		speed := spawner.PreFillSpeed(desired, rng)
		lane := rng.IntN(cfg.Lanes)
		offsetSteps := spawner.PreFillActionOffset(actionIntervalSteps, rng)
		id := fl.Add(fleet.NewVehicleSpec{
			Type:           info,
			Capability:     capability,
			Position:       pos,
			Lane:           lane,
			Speed:          speed,
			DesiredSpeed:   desired,
			ArrivalPos:     spawner.ArrivalPositionFor(arrivalParams, rng),
			PreFilled:      true,
			Emission:       info.Emission,
			NextActionTime: phys.SimTimeFromSeconds(float64(offsetSteps) * cfg.StepLength),
		})
		seeds = append(seeds, preFillSeed{id: id, lane: lane, capability: capability, desired: desired, position: pos})
	}

	if cfg.StartAsPlatoon {
		formPreFilledPlatoons(fl, plats, seeds)
		return
	}
	for _, s := range seeds {
		seedSoloPlatoon(fl, plats, s.id, s.capability, s.lane, s.desired, 0)
	}
}

// formPreFilledPlatoons groups CACC-capable pre-fill seeds by lane into
// already-formed platoons (spec.md §6 "start-as-platoon"), front-most
// vehicle leading, instead of seeding one-member platoons for the formation
// scheduler to grow incrementally. ACC/Human seeds are never auto-platooned,
// matching seedSoloPlatoon's rule for regular spawns.
func formPreFilledPlatoons(fl *fleet.Fleet, plats *platoon.Registry, seeds []preFillSeed) {
	byLane := make(map[int][]preFillSeed)
	for _, s := range seeds {
		if s.capability != vehicletype.CACC {
			continue
		}
		byLane[s.lane] = append(byLane[s.lane], s)
	}

	for lane, members := range byLane {
		sort.Slice(members, func(i, j int) bool { return members[i].position > members[j].position })

		leader := members[0]
		leaderRow, ok := fl.Index(leader.id)
		if !ok {
			continue
		}
		p := plats.Create(leader.id, lane, leader.desired, 0)
		fl.SetRole(leaderRow, fleet.RoleLeader)
		fl.SetPlatoonID(leaderRow, p.ID)
		fl.SetPositionInOrder(leaderRow, 0)
		fl.MarkWasLeader(leaderRow)

		for i, m := range members[1:] {
			row, ok := fl.Index(m.id)
			if !ok {
				continue
			}
			p.Members = append(p.Members, m.id)
			fl.SetRole(row, fleet.RoleFollower)
			fl.SetPlatoonID(row, p.ID)
			fl.SetPositionInOrder(row, i+1)
		}
	}
}

// seedSoloPlatoon forms a one-member platoon for a freshly inserted
// CACC-capable vehicle, so the formation scheduler always has a tail to
// offer a join against (spec.md §3: "Platoon... created on first join").
// ACC/Human vehicles are never auto-platooned; they must be targeted by a
// scheduler join like any other candidate.
func seedSoloPlatoon(fl *fleet.Fleet, plats *platoon.Registry, id int, capability vehicletype.Capability, lane int, desired phys.MetersPerSec, now phys.SimTime) {
	if capability != vehicletype.CACC {
		return
	}
	row, ok := fl.Index(id)
	if !ok {
		return
	}
	p := plats.Create(id, lane, desired, now)
	fl.SetRole(row, fleet.RoleLeader)
	fl.SetPlatoonID(row, p.ID)
	fl.SetPositionInOrder(row, 0)
	fl.MarkWasLeader(row)
}

func spawnPhase(fl *fleet.Fleet, plats *platoon.Registry, pending []spawner.PendingVehicle, now phys.SimTime, p spawner.Params, acc *stats.Accumulator, logger platlog.Logger) []spawner.PendingVehicle {
	var remaining []spawner.PendingVehicle
	for _, pv := range pending {
		if pv.DepartTime > now {
			remaining = append(remaining, pv)
			continue
		}
		id, ok := trySpawn(fl, pv, now, p)
		if !ok {
			pv.Retries++
			if pv.Retries >= p.RetryLimit {
				acc.Counters.DroppedInsertions++
				logger.DroppedInsertion(pv.Retries)
				continue
			}
			remaining = append(remaining, pv)
			continue
		}
		acc.Counters.Spawned++
		row, _ := fl.Index(id)
		seedSoloPlatoon(fl, plats, id, pv.Capability, fl.At(row).Lane, pv.DesiredSpeed, now)
	}
	return remaining
}

func spawnFlowArrivals(fl *fleet.Fleet, plats *platoon.Registry, cfg config.Config, deps Deps, now phys.SimTime, rng *simrand.Source, acc *stats.Accumulator) {
	n := spawner.NextFlowArrival(spawner.Params{FlowRatePerSec: cfg.DepartFlow / 3600.0}, now, rng)
	for i := 0; i < n; i++ {
		info, _ := deps.VehicleTypes.Lookup(pickTypeName(deps.VehicleTypes, i))
		capability := pickCapability(cfg.Penetration, rng)
		desired := sampleDesiredSpeed(cfg, rng)
		pv := spawner.PendingVehicle{
			DepartTime:   now,
			Type:         info,
			Capability:   capability,
			Emission:     info.Emission,
			DesiredSpeed: desired,
		}
		id, ok := trySpawn(fl, pv, now, spawner.Params{
			RoadLength:            phys.Meters(cfg.RoadLength),
			NumLanes:              cfg.Lanes,
			DepartDesiredSpeed:    cfg.DepartDesired,
			RandomArrivalPosition: cfg.RandomArrivalPosition,
			ArrivalPosition:       phys.Meters(cfg.ArrivalPosition),
		})
		if ok {
			acc.Counters.Spawned++
			row, _ := fl.Index(id)
			seedSoloPlatoon(fl, plats, id, capability, fl.At(row).Lane, desired, now)
		}
	}
}

func trySpawn(fl *fleet.Fleet, pv spawner.PendingVehicle, now phys.SimTime, p spawner.Params) (int, bool) {
	rng := simrand.New(uint64(now) + uint64(pv.DepartTime))
	site := spawner.ChooseSite(p, 0, rng)

	aheadPresent := false
	var aheadPos, aheadLen phys.Meters
	lanes := fl.LaneOrder(maxInt(p.NumLanes, site.Lane+1))
	if site.Lane < len(lanes) {
		for _, row := range lanes[site.Lane] {
			r := fl.At(row)
			if r.Position >= site.Position {
				aheadPresent = true
				aheadPos, aheadLen = r.Position, r.Type.Length
				break
			}
		}
	}

	speed := phys.MetersPerSec(0)
	if p.DepartDesiredSpeed {
		speed = pv.DesiredSpeed
	}

	if !spawner.SafeToInsert(site, pv.Type.Length, pv.Type.MinGap, aheadPresent, aheadPos, aheadLen) {
		return 0, false
	}

	id := fl.Add(fleet.NewVehicleSpec{
		Type:           pv.Type,
		Capability:     pv.Capability,
		Position:       site.Position,
		Lane:           site.Lane,
		Speed:          speed,
		DesiredSpeed:   pv.DesiredSpeed,
		DepartTime:     now,
		DepartPosition: site.Position,
		DepartLane:     site.Lane,
		ArrivalPos:     spawner.ArrivalPositionFor(p, rng),
		Emission:       pv.Emission,
	})
	return id, true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func runFormation(fl *fleet.Fleet, plats *platoon.Registry, maneuvers *platoon.Maneuvers, algo formation.Algorithm, cfg config.Config, now phys.SimTime, executionInterval phys.SimTime, desiredOf platoon.DesiredSpeedFn, mp platoon.Params, acc *stats.Accumulator, logger platlog.Logger) {
	if algo == nil {
		return
	}
	var vehicles []formation.VehicleView
	fl.Each(func(row int) {
		r := fl.At(row)
		if r.NextActionTime > now {
			return // not yet eligible: pre-fill phase desync (spec.md §4.5)
		}
		vehicles = append(vehicles, formation.VehicleView{
			ID: r.ID, Position: r.Position, Lane: r.Lane, Speed: r.Speed,
			DesiredSpeed: r.DesiredSpeed, PlatoonID: r.PlatoonID, Capability: int(r.Capability),
		})
		fl.SetNextActionTime(row, now+executionInterval)
	})
	var platoonViews []formation.PlatoonView
	for _, p := range plats.Snapshot() {
		tailID := p.Members[len(p.Members)-1]
		tailRow, ok := fl.Index(tailID)
		if !ok {
			continue
		}
		tail := fl.At(tailRow)
		platoonViews = append(platoonViews, formation.PlatoonView{
			ID: p.ID, TailPosition: tail.Position, Lane: p.Lane, DesiredSpeed: p.DesiredSpeed, Size: p.Size(),
		})
	}

	snap := formation.Snapshot{Now: now, Vehicles: vehicles, Platoons: platoonViews, CommunicationRange: phys.Meters(cfg.CommunicationRange)}

	var timeoutsBefore int
	if opt, ok := algo.(*formation.Optimal); ok {
		timeoutsBefore = opt.TimeoutCount
	}
	cmds := algo.OnStep(snap)
	if opt, ok := algo.(*formation.Optimal); ok && opt.TimeoutCount > timeoutsBefore {
		acc.Counters.SolverTimeouts += opt.TimeoutCount - timeoutsBefore
		logger.SolverTimeout()
	}

	for _, j := range cmds.Joins {
		row, ok := fl.Index(j.VehicleID)
		if !ok {
			continue
		}
		self := fl.At(row)
		if self.PlatoonID != fleet.NoPlatoon || self.Maneuver != fleet.Idle {
			continue
		}
		target, ok := plats.Get(j.PlatoonID)
		if !ok {
			continue
		}
		tailID := target.Members[len(target.Members)-1]
		tailRow, ok := fl.Index(tailID)
		if !ok {
			continue
		}
		tail := fl.At(tailRow)
		distance := self.Position - tail.Position
		maneuvers.StartJoin(fl, j, distance, self.DesiredSpeed, target.DesiredSpeed, now, mp)
	}

	for _, l := range cmds.Leaves {
		platoon.Leave(l, fl, plats, desiredOf, mp, now)
	}
}

func maneuverTick(maneuvers *platoon.Maneuvers, now phys.SimTime, fl *fleet.Fleet, plats *platoon.Registry, desiredOf platoon.DesiredSpeedFn, mp platoon.Params) (bool, int) {
	aborts := maneuvers.Tick(now, fl, plats, desiredOf, nil, nil, mp)
	return len(aborts) > 0, len(aborts)
}

func recordPeriodicStats(fl *fleet.Fleet, plats *platoon.Registry, acc *stats.Accumulator, now phys.SimTime, sinks stats.Sinks) {
	var sizes []float64
	for _, p := range plats.Snapshot() {
		sizes = append(sizes, float64(p.Size()))
		if sinks.PlatoonTraces == nil {
			continue
		}
		tailID := p.Members[len(p.Members)-1]
		tailRow, ok := fl.Index(tailID)
		if !ok {
			continue
		}
		tail := fl.At(tailRow)
		sinks.PlatoonTraces.WritePlatoonTrace(stats.PlatoonTrace{
			Time: now, PlatoonID: p.ID, LeaderID: p.Leader(), Size: p.Size(),
			DesiredSpeed: p.DesiredSpeed, Lane: p.Lane, Position: tail.Position,
		})
	}
	acc.RecordPlatoonSizes(now, sizes)
}

// applyLaneChanges decides and applies one lane-change move per vehicle.
// Platoon members (Role != fleet.RoleNone) are grouped by PlatoonID,
// ordered leader-first by PositionInOrder, and decided as one unit via
// lanechange.PlatoonMove so a platoon moves together or not at all (spec.md
// §4.3); solo vehicles keep deciding independently via lanechange.Decide.
func applyLaneChanges(fl *fleet.Fleet, cfg config.Config, sinks stats.Sinks, now phys.SimTime) {
	lanes := fl.LaneOrder(cfg.Lanes)
	params := lanechange.Params{SafeHeadwayTime: cfg.ACCHeadwayTime}

	candidates := make(map[int]lanechange.Candidate) // row -> candidate
	platoonRows := make(map[int][]int)               // platoon id -> member rows

	for lane, rows := range lanes {
		for i, row := range rows {
			r := fl.At(row)
			var currentGapAhead phys.Meters = 1e12
			if i > 0 {
				ahead := fl.At(rows[i-1])
				currentGapAhead = carfollow.GapAhead(r.Position, ahead.Position, ahead.Type.Length)
			}

			c := lanechange.Candidate{
				Speed: r.Speed, DesiredSpeed: r.DesiredSpeed,
				Lane: lane, NumLanes: cfg.Lanes,
				RightUsable:     lane > 0,
				LeftUsable:      lane < cfg.Lanes-1,
				CurrentGapAhead: currentGapAhead,
			}
			fillNeighbors(&c, fl, lanes, lane-1, r.Position, true)
			fillNeighbors(&c, fl, lanes, lane+1, r.Position, false)
			candidates[row] = c

			if r.Role != fleet.RoleNone {
				platoonRows[r.PlatoonID] = append(platoonRows[r.PlatoonID], row)
			}
		}
	}

	decisions := make(map[int]lanechange.Decision) // vehicle id -> decision
	grouped := make(map[int]bool)                   // row already decided as part of a platoon group

	for _, rows := range platoonRows {
		sort.Slice(rows, func(i, j int) bool { return fl.At(rows[i]).PositionInOrder < fl.At(rows[j]).PositionInOrder })
		members := make([]lanechange.Candidate, len(rows))
		for i, row := range rows {
			members[i] = candidates[row]
		}
		dec := lanechange.PlatoonMove(members, params)
		for _, row := range rows {
			decisions[fl.At(row).ID] = dec
			grouped[row] = true
		}
	}

	for _, rows := range lanes {
		for _, row := range rows {
			if grouped[row] {
				continue
			}
			r := fl.At(row)
			decisions[r.ID] = lanechange.Decide(candidates[row], params)
		}
	}

	for id, dec := range decisions {
		if dec == lanechange.Stay {
			continue
		}
		row, ok := fl.Index(id)
		if !ok {
			continue
		}
		r := fl.At(row)
		fromLane := r.Lane
		toLane := fromLane
		switch dec {
		case lanechange.MoveRight:
			toLane = fromLane - 1
		case lanechange.MoveLeft:
			toLane = fromLane + 1
		}
		fl.SetLane(row, toLane)

		if sinks.VehicleChanges != nil && (!r.PreFilled || cfg.RecordPrefilled) {
			reason := "individual"
			if r.Role != fleet.RoleNone {
				reason = "platoon"
			}
			sinks.VehicleChanges.WriteVehicleChange(stats.VehicleChange{
				Time: now, ID: id, FromLane: fromLane, ToLane: toLane, Reason: reason,
			})
		}
	}
}

func fillNeighbors(c *lanechange.Candidate, fl *fleet.Fleet, lanes [][]int, targetLane int, pos phys.Meters, right bool) {
	if targetLane < 0 || targetLane >= len(lanes) {
		return
	}
	var ahead, behind lanechange.Neighbor
	for _, row := range lanes[targetLane] {
		r := fl.At(row)
		if r.Position >= pos {
			ahead = lanechange.Neighbor{Present: true, Speed: r.Speed, Gap: r.Position - r.Type.Length - pos}
		} else if !behind.Present {
			behind = lanechange.Neighbor{Present: true, Speed: r.Speed, Gap: pos - r.Position}
		}
	}
	if right {
		c.RightAhead, c.RightBehind = ahead, behind
	} else {
		c.LeftAhead, c.LeftBehind = ahead, behind
	}
}

func applyCarFollowing(fl *fleet.Fleet, cfg config.Config, rng *simrand.Source, sinks stats.Sinks, now phys.SimTime) {
	preds := fl.Predecessors(cfg.Lanes)
	newSpeeds := make([]phys.MetersPerSec, fl.Len())

	newEmissions := make([]stats.EmissionRates, fl.Len())

	fl.Each(func(row int) {
		r := fl.At(row)

		// Followers track the leader's same-step CFTarget (spec.md §3, §4.6);
		// everyone else follows their fixed desired speed.
		target := r.DesiredSpeed
		if r.Role == fleet.RoleFollower {
			target = r.CFTarget
		}

		maxAccel := r.Type.MaxAccel
		if cfg.ReducedAirDrag && r.Capability == vehicletype.CACC && r.Role == fleet.RoleFollower {
			// A CACC follower drafts behind its leader; model the reduced
			// air drag as a modest boost to its achievable acceleration
			// (SPEC_FULL.md's ReducedAirDrag assumption; see DESIGN.md).
			maxAccel = phys.MetersPerSec2(float64(maxAccel) * 1.15)
		}

		in := carfollow.Input{
			Speed: r.Speed, DesiredSpeed: target,
			MaxAccel: maxAccel, MaxDecel: r.Type.MaxDecel, StepLength: cfg.StepLength,
		}
		pred := preds[row]
		if pred.Valid {
			leader := fl.At(pred.Row)
			in.HasLeader = true
			in.LeaderSpeed = leader.Speed
			in.Gap = carfollow.GapAhead(r.Position, leader.Position, leader.Type.Length)
		}

		var v phys.MetersPerSec
		switch r.Capability {
		case vehicletype.Human:
			v = carfollow.Human(in, carfollow.HumanParams{ReactionTime: r.Type.Headway, Imperfection: 1.0}, rng)
		case vehicletype.ACC:
			v = carfollow.ACC(in, carfollow.ACCParams{HeadwayTime: cfg.ACCHeadwayTime})
		case vehicletype.CACC:
			following := r.Role == fleet.RoleFollower
			v = carfollow.CACC(in, carfollow.CACCParams{
				SpacingDistance: phys.Meters(cfg.CACCSpacing),
				ACCFallback:     carfollow.ACCParams{HeadwayTime: cfg.ACCHeadwayTime},
			}, following)
		}
		newSpeeds[row] = v

		if cfg.RecordVehicleEmissions {
			accel := phys.MetersPerSec2(float64(v-r.Speed) / cfg.StepLength)
			rates := stats.Instantaneous(r.Emission, v, accel)
			newEmissions[row] = stats.Integrate(rates, cfg.StepLength)
		}
	})

	fl.Each(func(row int) {
		fl.SetSpeed(row, newSpeeds[row])
		if cfg.RecordVehicleEmissions {
			e := newEmissions[row]
			fl.AddEmission(row, e.CO2, e.Fuel)
			if sinks.VehicleEmissions != nil {
				r := fl.At(row)
				if !r.PreFilled || cfg.RecordPrefilled {
					sinks.VehicleEmissions.WriteVehicleEmission(stats.VehicleEmission{
						Time: now, ID: r.ID, EmissionRates: e,
					})
				}
			}
		}
	})
}

// recordVehicleTraces writes one vehicle_traces row per live vehicle for
// this step (spec.md §6), skipping pre-filled vehicles unless RecordPrefilled
// is set.
func recordVehicleTraces(fl *fleet.Fleet, sinks stats.Sinks, cfg config.Config, now phys.SimTime) {
	fl.Each(func(row int) {
		r := fl.At(row)
		if r.PreFilled && !cfg.RecordPrefilled {
			return
		}
		sinks.VehicleTraces.WriteVehicleTrace(stats.VehicleTrace{
			Time: now, ID: r.ID, Position: r.Position, Lane: r.Lane,
			Speed: r.Speed, DesiredSpeed: r.DesiredSpeed,
			PlatoonID: r.PlatoonID, PlatoonRole: roleString(r.Role),
			Color: fmt.Sprintf("%v", r.Color),
		})
	})
}

func roleString(role fleet.Role) string {
	switch role {
	case fleet.RoleLeader:
		return "leader"
	case fleet.RoleFollower:
		return "follower"
	default:
		return "none"
	}
}

func detectCollisions(fl *fleet.Fleet, numLanes int) []collision.Pair {
	lanes := fl.LaneOrder(numLanes)
	groups := make([][]collision.LaneVehicle, len(lanes))
	for lane, rows := range lanes {
		for _, row := range rows {
			r := fl.At(row)
			groups[lane] = append(groups[lane], collision.LaneVehicle{Row: row, ID: r.ID, Lane: lane, Position: r.Position, Length: r.Type.Length})
		}
	}
	return collision.Detect(groups)
}

func completeArrivals(fl *fleet.Fleet, plats *platoon.Registry, desiredOf platoon.DesiredSpeedFn, mp platoon.Params, now phys.SimTime, acc *stats.Accumulator, sinks stats.Sinks, cfg config.Config) {
	var arrivedIDs []int
	fl.Each(func(row int) {
		r := fl.At(row)
		if r.Position >= r.ArrivalPos {
			arrivedIDs = append(arrivedIDs, r.ID)
		}
	})
	for _, id := range arrivedIDs {
		row, ok := fl.Index(id)
		if !ok {
			continue
		}
		r := fl.At(row)
		if sinks.VehicleTrips != nil && (!r.PreFilled || cfg.RecordPrefilled) {
			sinks.VehicleTrips.WriteVehicleTrip(vehicleTripOf(r, now))
		}
		if r.PlatoonID != fleet.NoPlatoon {
			platoon.Leave(platoon.LeaveRequest{VehicleID: id}, fl, plats, desiredOf, mp, now)
		}
		row, ok = fl.Index(id)
		if ok {
			fl.Remove(row)
		}
		acc.Counters.Arrived++
	}
}

// vehicleTripOf builds the vehicle_trips trace row for a vehicle completing
// or ending its run at `now` (spec.md §6).
func vehicleTripOf(r fleet.Row, now phys.SimTime) stats.VehicleTrip {
	return stats.VehicleTrip{
		ID:           r.ID,
		DepartTime:   r.DepartTime,
		ArrivalTime:  now,
		DepartPos:    r.DepartPosition,
		ArrivalPos:   r.Position,
		RouteLength:  r.Position - r.DepartPosition,
		TimeLoss:     r.TimeLoss,
		DepartDelay:  r.DepartDelay,
	}
}
