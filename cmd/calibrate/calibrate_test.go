package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/mpmfluid/config"
	"github.com/pthm-cable/mpmfluid/mpm"
	"github.com/pthm-cable/mpmfluid/telemetry"
)

func TestNormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	raw := []float64{100, 2000, 7, -0.1}

	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		assert.InDelta(t, raw[i], back[i], 1e-9, pv.Specs[i].Name)
	}
}

func TestClampAndApply(t *testing.T) {
	pv := NewParamVector()
	m := config.MaterialConfig{Name: "water", Mass: 125, RestDensity: 1000}

	applied := pv.ApplyToMaterial(m, []float64{-5, 1e6, 3, 0.5})
	assert.Equal(t, 0.1, applied.Viscosity)
	assert.Equal(t, 5000.0, applied.EOSStiffness)
	assert.Equal(t, 3.0, applied.EOSPower)
	assert.Equal(t, 0.0, applied.MaxNegativePressure)
	assert.Equal(t, 125.0, applied.Mass, "fixed parameters untouched")

	assert.Equal(t, []float64{0.1, 5000, 3, 0}, pv.ExtractFromMaterial(applied))
}

func TestComputeFitness(t *testing.T) {
	fe := &FitnessEvaluator{maxSteps: 100}

	settled := &runResult{
		restVolume: 0.125,
		windowStats: []telemetry.WindowStats{
			{VolumeMean: 1, SpeedMean: 100}, // dropped: outside the trailing windows
			{VolumeMean: 0.125, SpeedMean: 0},
			{VolumeMean: 0.15, SpeedMean: 2},
			{VolumeMean: 0.1, SpeedMean: 4},
		},
	}
	want := (0+0.2+0.2)/3.0 + speedWeight*2
	assert.InDelta(t, want, fe.computeFitness(settled), 1e-9)

	early := fe.computeFitness(&runResult{diverged: true, steps: 10})
	late := fe.computeFitness(&runResult{diverged: true, steps: 90})
	assert.Greater(t, early, late, "diverging later scores better")
	assert.Greater(t, late, divergencePenalty)
	assert.Greater(t, late, fe.computeFitness(settled))

	assert.Equal(t, divergencePenalty, fe.computeFitness(&runResult{restVolume: 1}))
}

func TestEvaluateRunsSimulation(t *testing.T) {
	base, err := config.Parse([]byte("simulation:\n  grid_size: [16, 16, 16]\n"))
	require.NoError(t, err)

	pv := NewParamVector()
	water, ok := base.LookupMaterial("water")
	require.True(t, ok)

	fe := NewFitnessEvaluator(pv, "water", mpm.ShapeCube, 64, 32, []int64{1, 2}, base)
	fitness := fe.Evaluate(pv.ExtractFromMaterial(water))

	assert.False(t, math.IsNaN(fitness))
	assert.Less(t, fitness, divergencePenalty)
	assert.Zero(t, fe.LastDiverged())

	// The base config is not modified by evaluations
	after, _ := base.LookupMaterial("water")
	assert.Equal(t, water, after)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1m05s", formatDuration(65e9))
	assert.Equal(t, "2h00m01s", formatDuration(7201e9))
}
