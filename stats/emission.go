package stats

import (
	"gonum.org/v1/gonum/floats"

	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/vehicletype"
)

// EmissionRates is one instant's HBEFA-style emission/fuel rates (spec.md
// §4.8).
type EmissionRates struct {
	CO2, CO, HC, NOx, PMx, Fuel float64
}

// polynomial evaluates an HBEFA-style emission polynomial: a quadratic in
// speed and acceleration, Σ coeff[i]·term[i], using gonum's floats.Dot
// against a coefficient vector instead of a hand-unrolled Horner loop
// (SPEC_FULL.md §4.9).
//
// Terms, matching the HBEFA convention: [1, v, v^2, a, a^2, v*a].
func polynomial(coeffs []float64, speed phys.MetersPerSec, accel phys.MetersPerSec2) float64 {
	v, a := float64(speed), float64(accel)
	terms := []float64{1, v, v * v, a, a * a, v * a}
	rate := floats.Dot(coeffs, terms)
	if rate < 0 {
		rate = 0
	}
	return rate
}

// coefficients is a minimal two-class HBEFA-style coefficient table,
// indexed by vehicletype.EmissionClass and pollutant. Values are
// illustrative polynomial coefficients in the spirit of the HBEFA model
// spec.md names, not a transcription of the real HBEFA tables (those are
// proprietary and out of scope).
var coefficients = map[vehicletype.EmissionClass]map[string][]float64{
	vehicletype.EmissionClassPetrol: {
		"CO2":  {500, 20, 0.05, 300, 40, 10},
		"CO":   {20, 0.5, 0.001, 8, 1, 0.2},
		"HC":   {2, 0.05, 0.0001, 1, 0.1, 0.02},
		"NOx":  {3, 0.08, 0.0002, 2, 0.2, 0.05},
		"PMx":  {0.1, 0.002, 0.00001, 0.05, 0.01, 0.002},
		"Fuel": {0.2, 0.01, 0.00002, 0.15, 0.02, 0.005},
	},
	vehicletype.EmissionClassDiesel: {
		"CO2":  {700, 25, 0.06, 400, 50, 12},
		"CO":   {10, 0.3, 0.0005, 4, 0.5, 0.1},
		"HC":   {1, 0.02, 0.00005, 0.5, 0.05, 0.01},
		"NOx":  {6, 0.15, 0.0004, 4, 0.4, 0.1},
		"PMx":  {0.3, 0.005, 0.00002, 0.1, 0.02, 0.004},
		"Fuel": {0.25, 0.012, 0.00003, 0.18, 0.025, 0.006},
	},
}

// Instantaneous computes one instant's emission/fuel rates for a vehicle of
// the given emission class, speed, and acceleration (spec.md §4.8:
// "instantaneous rate").
func Instantaneous(class vehicletype.EmissionClass, speed phys.MetersPerSec, accel phys.MetersPerSec2) EmissionRates {
	table, ok := coefficients[class]
	if !ok {
		table = coefficients[vehicletype.EmissionClassPetrol]
	}
	return EmissionRates{
		CO2:  polynomial(table["CO2"], speed, accel),
		CO:   polynomial(table["CO"], speed, accel),
		HC:   polynomial(table["HC"], speed, accel),
		NOx:  polynomial(table["NOx"], speed, accel),
		PMx:  polynomial(table["PMx"], speed, accel),
		Fuel: polynomial(table["Fuel"], speed, accel),
	}
}

// Integrate accumulates one step's worth of emission, using the rectangle
// rule over stepLength seconds (spec.md §4.8, design notes: "acceptable
// drift because validation is performed against the reference simulator
// which uses the same convention").
func Integrate(rates EmissionRates, stepLength float64) EmissionRates {
	return EmissionRates{
		CO2:  rates.CO2 * stepLength,
		CO:   rates.CO * stepLength,
		HC:   rates.HC * stepLength,
		NOx:  rates.NOx * stepLength,
		PMx:  rates.PMx * stepLength,
		Fuel: rates.Fuel * stepLength,
	}
}
