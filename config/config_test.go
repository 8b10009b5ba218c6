package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/mpmfluid/mpm"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, [3]int{64, 64, 64}, cfg.Simulation.GridSize)
	assert.Equal(t, float32(0.016), cfg.Derived.Timestep32)
	assert.Equal(t, mgl32.Vec3{0, -9.81, 0}, cfg.Derived.Gravity32)
	assert.Equal(t, 1, cfg.Runner.MaxStepsPerFrame)
	assert.Equal(t, mpm.ShapeSphere, cfg.Derived.SpawnShape)
	assert.Positive(t, cfg.Derived.Workers)

	water, ok := cfg.Material("water")
	require.True(t, ok)
	assert.Equal(t, float32(125), water.Mass)
	assert.Equal(t, float32(1000), water.RestDensity)
	assert.Equal(t, float32(100), water.Viscosity)
	assert.Equal(t, float32(2000), water.EOSStiffness)
	assert.Equal(t, float32(7), water.EOSPower)
	assert.Equal(t, mgl32.Vec3{0.1, 0, 0.9}, water.Color)
	assert.Equal(t, water, cfg.DefaultMaterial())
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
simulation:
  grid_size: [40, 40, 40]
  gravity: [0, 0, 0]
runner:
  max_steps_per_frame: 0
spawn:
  shape: cube
`))
	require.NoError(t, err)

	assert.Equal(t, [3]int{40, 40, 40}, cfg.Simulation.GridSize)
	assert.Equal(t, mgl32.Vec3{}, cfg.Derived.Gravity32)
	assert.Equal(t, 0.016, cfg.Simulation.Timestep, "untouched keys keep their defaults")
	assert.Equal(t, 1, cfg.Runner.MaxStepsPerFrame, "step cap is raised to 1")
	assert.Equal(t, mpm.ShapeCube, cfg.Derived.SpawnShape)
}

func TestParseSynthesizesWater(t *testing.T) {
	cfg, err := Parse([]byte("materials: []\nsimulation:\n  default_material: \"\"\n"))
	require.NoError(t, err)

	require.Len(t, cfg.Derived.Materials, 1)
	assert.Equal(t, "water", cfg.Simulation.DefaultMaterial)
	assert.Equal(t, 0, cfg.Derived.MaterialIndex["water"])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		unknown bool
	}{
		{"unknown default material", "simulation:\n  default_material: lava\n", true},
		{"unknown emitter material", "scenario:\n  emitters:\n    - material: lava\n      count: 10\n", true},
		{"bad spawn shape", "spawn:\n  shape: torus\n", false},
		{"bad emitter shape", "scenario:\n  emitters:\n    - shape: torus\n", false},
		{"zero density", "materials:\n  - name: water\n    mass: 1\n", false},
		{"malformed yaml", "simulation: [", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.unknown, errors.Is(err, ErrUnknownMaterial))
		})
	}
}

func TestEmitterShapeDefaultsToSpawnShape(t *testing.T) {
	cfg, err := Parse([]byte(`
spawn:
  shape: cube
scenario:
  emitters:
    - count: 27
      at_step: 5
`))
	require.NoError(t, err)
	require.Len(t, cfg.Scenario.Emitters, 1)
	assert.Equal(t, "cube", cfg.Scenario.Emitters[0].Shape)
}

func TestSimParams(t *testing.T) {
	cfg, err := Parse([]byte("parallel:\n  workers: 3\n  threshold: 10\n"))
	require.NoError(t, err)

	p := cfg.SimParams()
	assert.Equal(t, 3, p.Workers)
	assert.Equal(t, 10, p.ParallelThreshold)
	assert.Equal(t, float32(1), p.Boundary)
	assert.Equal(t, float32(0.3), p.BoundaryElasticity)
	assert.Equal(t, "water", p.Material.Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte("simulation:\n  grid_size: [20, 30, 40]\n"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Simulation, loaded.Simulation)
	assert.Equal(t, cfg.Derived.Materials, loaded.Derived.Materials)
}

func TestCfgBeforeInitPanics(t *testing.T) {
	saved := global
	defer func() { global = saved }()

	global = nil
	assert.Panics(t, func() { Cfg() })

	require.NoError(t, Init(""))
	assert.NotPanics(t, func() { Cfg() })
}

func TestCloneIsDeep(t *testing.T) {
	cfg, err := Parse([]byte("scenario:\n  emitters:\n    - count: 8\n"))
	require.NoError(t, err)

	clone, err := cfg.Clone()
	require.NoError(t, err)
	assert.Equal(t, cfg.Simulation, clone.Simulation)
	assert.Equal(t, cfg.Derived.Materials, clone.Derived.Materials)
	assert.Equal(t, cfg.Scenario.Emitters, clone.Scenario.Emitters)

	clone.Materials[0].Viscosity = 12345
	clone.Scenario.Emitters[0].Count = 99
	assert.NotEqual(t, float64(12345), cfg.Materials[0].Viscosity)
	assert.Equal(t, 8, cfg.Scenario.Emitters[0].Count)
}

func TestSetMaterial(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	syrup, ok := cfg.LookupMaterial("syrup")
	require.True(t, ok)
	syrup.EOSStiffness = 750
	require.NoError(t, cfg.SetMaterial(syrup))

	m, ok := cfg.Material("syrup")
	require.True(t, ok)
	assert.Equal(t, float32(750), m.EOSStiffness)

	err = cfg.SetMaterial(MaterialConfig{Name: "lava", Mass: 1, RestDensity: 1})
	assert.ErrorIs(t, err, ErrUnknownMaterial)

	// Invalid parameters are rejected and the previous values kept
	syrup.Mass = 0
	require.Error(t, cfg.SetMaterial(syrup))
	m, _ = cfg.Material("syrup")
	assert.Equal(t, float32(125), m.Mass)

	_, ok = cfg.LookupMaterial("lava")
	assert.False(t, ok)
}

func TestFromMaterialInvertsToMaterial(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	for _, mc := range cfg.Materials {
		assert.Equal(t, mc, FromMaterial(mc.toMaterial()), mc.Name)
	}

	m := mpm.DefaultMaterial()
	mc := FromMaterial(m)
	assert.Equal(t, 0.1, mc.Viscosity, "float32 values keep their decimal form")
	assert.Equal(t, -0.1, mc.MaxNegativePressure)
	assert.Equal(t, m, mc.toMaterial())
}
