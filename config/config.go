// Package config provides configuration loading and access for the simulator.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/mpmfluid/mpm"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulator configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Simulation SimulationConfig `yaml:"simulation"`
	Runner     RunnerConfig     `yaml:"runner"`
	Parallel   ParallelConfig   `yaml:"parallel"`
	Spawn      SpawnConfig      `yaml:"spawn"`
	Materials  []MaterialConfig `yaml:"materials"`
	Scenario   ScenarioConfig   `yaml:"scenario"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// SimulationConfig holds the simulation domain.
type SimulationConfig struct {
	GridSize           [3]int     `yaml:"grid_size"`
	Timestep           float64    `yaml:"timestep"`
	Boundary           float64    `yaml:"boundary"`
	BoundaryElasticity float64    `yaml:"boundary_elasticity"`
	Gravity            [3]float64 `yaml:"gravity"`
	DefaultMaterial    string     `yaml:"default_material"`
	Seed               int64      `yaml:"seed"`
}

// RunnerConfig holds fixed-timestep driver parameters.
type RunnerConfig struct {
	MaxStepsPerFrame int `yaml:"max_steps_per_frame"` // Cap on catch-up steps per Advance call
	StepsPerUpdate   int `yaml:"steps_per_update"`
}

// ParallelConfig holds worker pool parameters.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`   // 0 = runtime.NumCPU()
	Threshold int `yaml:"threshold"` // Minimum particle count to use the pool
}

// SpawnConfig holds the interactive spawn defaults.
type SpawnConfig struct {
	Count int    `yaml:"count"`
	Shape string `yaml:"shape"`
}

// MaterialConfig defines a named particle material.
type MaterialConfig struct {
	Name                string     `yaml:"name"`
	Mass                float64    `yaml:"mass"` // kg per particle
	RestDensity         float64    `yaml:"rest_density"`
	Viscosity           float64    `yaml:"viscosity"`
	EOSStiffness        float64    `yaml:"eos_stiffness"`
	EOSPower            float64    `yaml:"eos_power"`
	MaxNegativePressure float64    `yaml:"max_negative_pressure"`
	Color               [3]float64 `yaml:"color"`
}

// ScenarioConfig holds scripted spawns.
type ScenarioConfig struct {
	Emitters []EmitterConfig `yaml:"emitters"`
}

// EmitterConfig spawns particles at a given step, optionally repeating.
type EmitterConfig struct {
	Material string `yaml:"material"` // empty = simulation.default_material
	Shape    string `yaml:"shape"`    // empty = spawn.shape
	Count    int    `yaml:"count"`
	AtStep   uint64 `yaml:"at_step"`
	Every    uint64 `yaml:"every"`  // Steps between repeats (0 = fire once)
	Repeat   int    `yaml:"repeat"` // Extra firings after the first
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // Simulated seconds per window
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Timestep32    float32        // Simulation.Timestep as float32
	Gravity32     mgl32.Vec3     // Simulation.Gravity as float32
	Workers       int            // Effective worker count
	SpawnShape    mpm.Shape      // Parsed Spawn.Shape
	Materials     []mpm.Material // Materials converted to the solver type, same order
	MaterialIndex map[string]int // name -> index into Materials
}

// ErrUnknownMaterial is returned when a material name does not match any configured material.
var ErrUnknownMaterial = errors.New("unknown material")

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return Parse(data)
}

// Parse overlays the given YAML document on the embedded defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Unmarshal into same struct - only overwrites fields present in the document
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived calculates values derived from loaded config and validates references.
func (c *Config) computeDerived() error {
	c.Derived.Timestep32 = float32(c.Simulation.Timestep)
	g := c.Simulation.Gravity
	c.Derived.Gravity32 = mgl32.Vec3{float32(g[0]), float32(g[1]), float32(g[2])}

	c.Derived.Workers = c.Parallel.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.NumCPU()
	}
	if c.Runner.MaxStepsPerFrame < 1 {
		c.Runner.MaxStepsPerFrame = 1
	}
	if c.Runner.StepsPerUpdate < 1 {
		c.Runner.StepsPerUpdate = 1
	}

	shape, err := mpm.ParseShape(c.Spawn.Shape)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	c.Derived.SpawnShape = shape

	// Synthesize water if no materials were specified
	if len(c.Materials) == 0 {
		c.Materials = []MaterialConfig{{
			Name:                "water",
			Mass:                125,
			RestDensity:         1000,
			Viscosity:           100,
			EOSStiffness:        2000,
			EOSPower:            7,
			MaxNegativePressure: -0.1,
			Color:               [3]float64{0.1, 0, 0.9},
		}}
	}

	c.Derived.Materials = make([]mpm.Material, len(c.Materials))
	c.Derived.MaterialIndex = make(map[string]int, len(c.Materials))
	for i, m := range c.Materials {
		if m.RestDensity <= 0 || m.Mass <= 0 {
			return fmt.Errorf("material %q: mass and rest_density must be positive", m.Name)
		}
		c.Derived.Materials[i] = m.toMaterial()
		c.Derived.MaterialIndex[m.Name] = i
	}

	if c.Simulation.DefaultMaterial == "" {
		c.Simulation.DefaultMaterial = c.Materials[0].Name
	}
	if _, ok := c.Derived.MaterialIndex[c.Simulation.DefaultMaterial]; !ok {
		return fmt.Errorf("simulation.default_material: %w: %q", ErrUnknownMaterial, c.Simulation.DefaultMaterial)
	}

	for i := range c.Scenario.Emitters {
		e := &c.Scenario.Emitters[i]
		if e.Shape == "" {
			e.Shape = c.Spawn.Shape
		}
		if e.Material != "" {
			if _, ok := c.Derived.MaterialIndex[e.Material]; !ok {
				return fmt.Errorf("scenario.emitters[%d]: %w: %q", i, ErrUnknownMaterial, e.Material)
			}
		}
		if _, err := mpm.ParseShape(e.Shape); err != nil {
			return fmt.Errorf("scenario.emitters[%d]: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy with derived values recomputed.
func (c *Config) Clone() (*Config, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return Parse(data)
}

// SetMaterial replaces the parameters of the material with the same name.
func (c *Config) SetMaterial(m MaterialConfig) error {
	for i := range c.Materials {
		if c.Materials[i].Name == m.Name {
			prev := c.Materials[i]
			c.Materials[i] = m
			if err := c.computeDerived(); err != nil {
				c.Materials[i] = prev
				// Previous values were valid, this restores Derived
				_ = c.computeDerived()
				return err
			}
			return nil
		}
	}
	return fmt.Errorf("set material: %w: %q", ErrUnknownMaterial, m.Name)
}

// LookupMaterial returns the named material as configured.
func (c *Config) LookupMaterial(name string) (MaterialConfig, bool) {
	for _, m := range c.Materials {
		if m.Name == name {
			return m, true
		}
	}
	return MaterialConfig{}, false
}

// Material returns the named material converted to the solver type.
func (c *Config) Material(name string) (mpm.Material, bool) {
	i, ok := c.Derived.MaterialIndex[name]
	if !ok {
		return mpm.Material{}, false
	}
	return c.Derived.Materials[i], true
}

// DefaultMaterial returns simulation.default_material.
func (c *Config) DefaultMaterial() mpm.Material {
	m, _ := c.Material(c.Simulation.DefaultMaterial)
	return m
}

// SimParams builds the solver construction parameters.
func (c *Config) SimParams() mpm.Params {
	return mpm.Params{
		GridSize:           c.Simulation.GridSize,
		Timestep:           c.Derived.Timestep32,
		Boundary:           float32(c.Simulation.Boundary),
		BoundaryElasticity: float32(c.Simulation.BoundaryElasticity),
		Gravity:            c.Derived.Gravity32,
		Material:           c.DefaultMaterial(),
		Workers:            c.Derived.Workers,
		ParallelThreshold:  c.Parallel.Threshold,
		Seed:               c.Simulation.Seed,
	}
}

func (m MaterialConfig) toMaterial() mpm.Material {
	return mpm.Material{
		Name:                m.Name,
		Mass:                float32(m.Mass),
		RestDensity:         float32(m.RestDensity),
		Viscosity:           float32(m.Viscosity),
		EOSStiffness:        float32(m.EOSStiffness),
		EOSPower:            float32(m.EOSPower),
		MaxNegativePressure: float32(m.MaxNegativePressure),
		Color:               mgl32.Vec3{float32(m.Color[0]), float32(m.Color[1]), float32(m.Color[2])},
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FromMaterial converts a solver material back to its config form.
func FromMaterial(m mpm.Material) MaterialConfig {
	return MaterialConfig{
		Name:                m.Name,
		Mass:                widen(m.Mass),
		RestDensity:         widen(m.RestDensity),
		Viscosity:           widen(m.Viscosity),
		EOSStiffness:        widen(m.EOSStiffness),
		EOSPower:            widen(m.EOSPower),
		MaxNegativePressure: widen(m.MaxNegativePressure),
		Color:               [3]float64{widen(m.Color[0]), widen(m.Color[1]), widen(m.Color[2])},
	}
}

// widen converts f to the float64 with the same shortest decimal form, so 0.1 stays 0.1
// rather than becoming 0.10000000149011612.
func widen(f float32) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	return v
}
