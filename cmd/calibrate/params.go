package main

import (
	"github.com/pthm-cable/mpmfluid/config"
)

// ParamSpec defines a single optimizable material parameter.
type ParamSpec struct {
	Name string  // Human-readable name, also the materials[] YAML key
	Min  float64 // Lower bound
	Max  float64 // Upper bound
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of calibrated equation-of-state parameters.
// Mass and rest density stay fixed: they define the fluid being matched.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "viscosity", Min: 0.1, Max: 500},
			{Name: "eos_stiffness", Min: 10, Max: 5000},
			{Name: "eos_power", Min: 1, Max: 8},
			{Name: "max_negative_pressure", Min: -1, Max: 0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToMaterial returns m with the clamped parameter values applied.
// Order must match Specs order.
func (pv *ParamVector) ApplyToMaterial(m config.MaterialConfig, values []float64) config.MaterialConfig {
	clamped := pv.Clamp(values)
	m.Viscosity = clamped[0]
	m.EOSStiffness = clamped[1]
	m.EOSPower = clamped[2]
	m.MaxNegativePressure = clamped[3]
	return m
}

// ExtractFromMaterial extracts current parameter values from a material, clamped to bounds.
func (pv *ParamVector) ExtractFromMaterial(m config.MaterialConfig) []float64 {
	return pv.Clamp([]float64{
		m.Viscosity,
		m.EOSStiffness,
		m.EOSPower,
		m.MaxNegativePressure,
	})
}
