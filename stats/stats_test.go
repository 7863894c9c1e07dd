package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/overdrivelabs/platoonsim/vehicletype"
)

func TestInstantaneousEmissionsNonNegative(t *testing.T) {
	rates := Instantaneous(vehicletype.EmissionClassPetrol, 20, 1.5)
	assert.GreaterOrEqual(t, rates.CO2, 0.0)
	assert.GreaterOrEqual(t, rates.Fuel, 0.0)
}

func TestIntegrateScalesByStepLength(t *testing.T) {
	rates := EmissionRates{CO2: 10, Fuel: 2}
	got := Integrate(rates, 0.5)
	assert.Equal(t, 5.0, got.CO2)
	assert.Equal(t, 1.0, got.Fuel)
}

func TestSummarizeEmptyIsZeroValue(t *testing.T) {
	got := Summarize(nil)
	assert.Equal(t, SizeDistribution{}, got)
}

func TestSummarizeComputesMeanAndStdDev(t *testing.T) {
	got := Summarize([]float64{2, 2, 2, 4})
	assert.InDelta(t, 2.5, got.Mean, 1e-9)
	assert.Greater(t, got.StdDev, 0.0)
	assert.Equal(t, 4, got.Count)
}

func TestAccumulatorRecordsSizeDistributionPerStep(t *testing.T) {
	a := NewAccumulator()
	a.RecordPlatoonSizes(0, []float64{2, 3})
	got := a.SizeDistributionAt(0)
	assert.InDelta(t, 2.5, got.Mean, 1e-9)
}
