// Package carfollow implements the three longitudinal car-following models
// (spec.md §4.2): Human (Krauß safe-speed), ACC (headway-time-based), and
// CACC (perfect leader-following with spacing control). Each is expressed as
// a pure function of scalar per-vehicle inputs, in the spirit of teacher's
// gameutil/follow.Follower.Update — a small, stateless step computed fresh
// every call from the current kinematic relationship to a leader — but
// generalized from one hand-tuned racing-kart catchup/fallback ladder into
// the three capability-specific formulas spec.md names.
//
// The contract is scalar, but nothing here retains state across calls: the
// simulation loop is free to invoke these once per vehicle over a borrowed
// snapshot, which is what spec.md means by "vectorized operations... no
// per-vehicle iteration is required by the spec".
package carfollow

import (
	"math"

	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/simrand"
)

// Input is the scalar kinematic state a car-following model needs to
// compute one vehicle's next speed.
type Input struct {
	Speed        phys.MetersPerSec
	DesiredSpeed phys.MetersPerSec
	MaxAccel     phys.MetersPerSec2
	MaxDecel     phys.MetersPerSec2
	StepLength   float64 // seconds

	HasLeader   bool
	Gap         phys.Meters // front bumper-to-bumper gap; meaningless if !HasLeader
	LeaderSpeed phys.MetersPerSec
}

// GapAhead computes the bumper-to-bumper gap between a vehicle at selfPos
// and the leader ahead of it (leaderPos, leaderLength).
func GapAhead(selfPos, leaderPos phys.Meters, leaderLength phys.Meters) phys.Meters {
	return (leaderPos - leaderLength) - selfPos
}

//////////////////////////////////////////////////////////////////////
// Human (Krauß)
//////////////////////////////////////////////////////////////////////

// HumanParams are the per-vehicle-type / config parameters the Krauß model
// needs beyond Input.
type HumanParams struct {
	ReactionTime float64 // τ, seconds
	Imperfection float64 // σ, speed imperfection, m/s
}

// Human computes the Krauß safe-speed car-following model (spec.md §4.2):
//
//	v_safe = v_lead + (g - v_lead·τ) / ((v̄/b) + τ)
//	new    = min(v_desired, v + a·Δt, v_safe)
//	final  = max(0, new - η·σ), η ∈ [0,1) drawn fresh per vehicle per step
//
// rng must be the run's single simrand.Source; Human is the only model with
// a stochastic term.
func Human(in Input, p HumanParams, rng *simrand.Source) phys.MetersPerSec {
	accelLimited := in.Speed + phys.MetersPerSec(float64(in.MaxAccel)*in.StepLength)
	target := minSpeed(in.DesiredSpeed, accelLimited)

	if in.HasLeader {
		vSafe := krausSafeSpeed(in.Speed, in.LeaderSpeed, in.Gap, p.ReactionTime, in.MaxDecel)
		target = minSpeed(target, vSafe)
	}

	eta := rng.Float64() // η ∈ [0,1)
	final := target - phys.MetersPerSec(eta*p.Imperfection)
	return phys.Clamp(final, 0, in.DesiredSpeed)
}

func krausSafeSpeed(selfSpeed, leadSpeed phys.MetersPerSec, gap phys.Meters, tau float64, decel phys.MetersPerSec2) phys.MetersPerSec {
	vAvg := (float64(selfSpeed) + float64(leadSpeed)) / 2
	b := float64(decel)
	if b <= 0 {
		b = 1e-6
	}
	denom := vAvg/b + tau
	if denom <= 0 {
		denom = 1e-6
	}
	vSafe := float64(leadSpeed) + (float64(gap)-float64(leadSpeed)*tau)/denom
	if vSafe < 0 {
		vSafe = 0
	}
	return phys.MetersPerSec(vSafe)
}

//////////////////////////////////////////////////////////////////////
// ACC
//////////////////////////////////////////////////////////////////////

// ACCParams holds the configured headway time T_ACC (spec.md §6,
// acc-headway-time).
type ACCParams struct {
	HeadwayTime float64 // T_ACC, seconds
}

// ACC computes min(v_desired, v + a·Δt, v_safe_ACC), where v_safe_ACC
// enforces the configured headway time rather than a reaction-based safe
// speed. No stochastic term (spec.md §4.2).
func ACC(in Input, p ACCParams) phys.MetersPerSec {
	accelLimited := in.Speed + phys.MetersPerSec(float64(in.MaxAccel)*in.StepLength)
	target := minSpeed(in.DesiredSpeed, accelLimited)

	if in.HasLeader {
		vSafe := headwaySafeSpeed(in.Gap, p.HeadwayTime)
		target = minSpeed(target, vSafe)
	}

	return phys.Clamp(target, 0, in.DesiredSpeed)
}

func headwaySafeSpeed(gap phys.Meters, headwayTime float64) phys.MetersPerSec {
	if headwayTime <= 0 {
		return phys.MetersPerSec(math.Inf(1))
	}
	v := float64(gap) / headwayTime
	if v < 0 {
		v = 0
	}
	return phys.MetersPerSec(v)
}

//////////////////////////////////////////////////////////////////////
// CACC
//////////////////////////////////////////////////////////////////////

// CACCParams holds the configured spacing distance d_CACC (spec.md §6,
// cacc-spacing) and the ACC fallback headway time, used when the vehicle is
// not currently following a platoon leader.
type CACCParams struct {
	SpacingDistance phys.Meters // d_CACC
	ACCFallback     ACCParams
}

// Spacing-error correction ladder, in the spirit of teacher's
// gameutil/follow.Follower catchup/fallback factors (majorCatchupFactor /
// majorFallbackFactor / minorCatchupFactor / minorFallbackFactor), applied
// here to speed rather than lateral offset.
const (
	majorErrorMeters = 2.0
	minorErrorMeters = 0.3

	majorCatchupFactor  = 1.10
	majorFallbackFactor = 0.90
	minorCatchupFactor  = 1.02
	minorFallbackFactor = 0.98
)

// CACC computes the CACC car-following speed (spec.md §4.2). When Following
// is true, the vehicle tracks its platoon leader's speed directly (a
// perfect, delay-free channel abstraction) with a small proportional
// correction toward the configured spacing distance. When Following is
// false it falls back to ACC.
func CACC(in Input, p CACCParams, following bool) phys.MetersPerSec {
	if !following || !in.HasLeader {
		return ACC(in, p.ACCFallback)
	}

	spacingError := in.Gap - p.SpacingDistance
	factor := 1.0
	switch {
	case spacingError > majorErrorMeters:
		factor = majorCatchupFactor
	case spacingError < -majorErrorMeters:
		factor = majorFallbackFactor
	case spacingError > minorErrorMeters:
		factor = minorCatchupFactor
	case spacingError < -minorErrorMeters:
		factor = minorFallbackFactor
	}

	target := phys.MetersPerSec(float64(in.LeaderSpeed) * factor)

	accelLimited := in.Speed + phys.MetersPerSec(float64(in.MaxAccel)*in.StepLength)
	decelLimited := in.Speed - phys.MetersPerSec(float64(in.MaxDecel)*in.StepLength)
	if target > accelLimited {
		target = accelLimited
	}
	if target < decelLimited {
		target = decelLimited
	}
	return phys.Clamp(target, 0, in.DesiredSpeed)
}

func minSpeed(a, b phys.MetersPerSec) phys.MetersPerSec {
	if a < b {
		return a
	}
	return b
}
