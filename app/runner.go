// Package app drives a simulation at a fixed timestep and routes control inputs to it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/mpmfluid/config"
	"github.com/pthm-cable/mpmfluid/mpm"
	"github.com/pthm-cable/mpmfluid/scene"
	"github.com/pthm-cable/mpmfluid/telemetry"
)

// Options configures a Runner beyond what the config file holds.
type Options struct {
	Seed           int64   // 0 = simulation.seed from config
	Workers        int     // 0 = parallel.workers from config
	LogStats       bool    // log window stats, perf stats and events via slog
	StatsWindowSec float64 // 0 = telemetry.stats_window from config
	OutputDir      string  // empty = no CSV output
	StepsPerUpdate int     // 0 = runner.steps_per_update from config

	// StatsCallback, if set, receives every flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// Runner owns a simulation plus its scripted emitters and telemetry.
type Runner struct {
	cfg   *config.Config
	sim   *mpm.Simulation
	scene *scene.Scene

	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	output        *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)

	budget           float64 // seconds of real time not yet simulated
	maxStepsPerFrame int
	stepsPerUpdate   int
	paused           bool
}

// New builds a runner from configuration.
func New(cfg *config.Config, opts Options) (*Runner, error) {
	params := cfg.SimParams()
	if opts.Seed != 0 {
		params.Seed = opts.Seed
	}
	if opts.Workers > 0 {
		params.Workers = opts.Workers
	}

	sc, err := scene.New(cfg.Scenario.Emitters)
	if err != nil {
		return nil, fmt.Errorf("building scene: %w", err)
	}

	statsWindow := cfg.Telemetry.StatsWindow
	if opts.StatsWindowSec > 0 {
		statsWindow = opts.StatsWindowSec
	}
	stepsPerUpdate := cfg.Runner.StepsPerUpdate
	if opts.StepsPerUpdate > 0 {
		stepsPerUpdate = opts.StepsPerUpdate
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		output.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	r := &Runner{
		cfg:              cfg,
		sim:              mpm.New(params),
		scene:            sc,
		collector:        telemetry.NewCollector(statsWindow, params.Timestep),
		perf:             telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow, params.Timestep),
		output:           output,
		logStats:         opts.LogStats,
		statsCallback:    opts.StatsCallback,
		maxStepsPerFrame: cfg.Runner.MaxStepsPerFrame,
		stepsPerUpdate:   stepsPerUpdate,
	}
	r.sim.SetPhaseTimer(r.perf)

	slog.Info("simulation created",
		"grid", r.sim.GridSize(),
		"timestep", r.sim.Timestep(),
		"workers", params.Workers,
		"seed", params.Seed,
		"default_material", params.Material.Name,
		"emitters", sc.Pending(),
	)
	return r, nil
}

// Sim returns the simulation for read-only access by renderers.
func (r *Runner) Sim() *mpm.Simulation { return r.sim }

// Config returns the configuration the runner was built from.
func (r *Runner) Config() *config.Config { return r.cfg }

// Perf returns the step timing collector.
func (r *Runner) Perf() *telemetry.PerfCollector { return r.perf }

// Step returns the number of completed simulation steps.
func (r *Runner) Step() uint64 { return r.sim.StepCount() }

// Paused reports whether Advance is currently ignoring elapsed time.
func (r *Runner) Paused() bool { return r.paused }

// SetPaused stops or resumes time accumulation. Pausing drops any banked budget.
func (r *Runner) SetPaused(paused bool) {
	r.paused = paused
	if paused {
		r.budget = 0
	}
}

// Advance adds elapsed real time to the budget and runs as many fixed steps as the budget
// covers, at most runner.max_steps_per_frame. Leftover budget is capped at that many steps
// so a slow frame does not cause a catch-up spiral later. Returns the steps taken.
func (r *Runner) Advance(elapsed time.Duration) (int, error) {
	if r.paused {
		return 0, nil
	}

	dt := float64(r.sim.Timestep())
	r.budget += elapsed.Seconds()

	steps := 0
	for r.budget >= dt && steps < r.maxStepsPerFrame {
		if err := r.StepOnce(); err != nil {
			return steps, err
		}
		r.budget -= dt
		steps++
	}

	if limit := float64(r.maxStepsPerFrame) * dt; r.budget > limit {
		r.budget = limit
	}
	return steps, nil
}

// StepOnce fires due emitters, runs one simulation step and flushes telemetry if the window is full.
func (r *Runner) StepOnce() error {
	step := r.sim.StepCount()
	added, err := r.scene.Update(step, emitterSpawner{r})
	if added > 0 {
		r.emit(telemetry.NewEmitterEvent(step, added))
	}
	if err != nil {
		slog.Warn("emitter failed", "step", step, "error", err)
	}

	r.perf.StartStep()
	err = r.sim.Step()
	r.perf.EndStep()
	if err != nil {
		var de *mpm.DivergenceError
		if errors.As(err, &de) {
			r.emit(telemetry.NewDivergenceEvent(de))
		}
		return err
	}

	r.collector.RecordStep()
	r.flushTelemetry()
	return nil
}

// Spawn adds particles of the named material ("" = default) and returns how many were added.
func (r *Runner) Spawn(shape mpm.Shape, count int, material string) (int, error) {
	added, m, err := r.spawn(shape, count, material)
	if err != nil {
		return 0, err
	}
	r.emit(telemetry.NewSpawnEvent(r.sim.StepCount(), shape, added, m.Name))
	return added, nil
}

// SpawnDefault spawns spawn.count particles of the default material.
func (r *Runner) SpawnDefault(shape mpm.Shape) (int, error) {
	return r.Spawn(shape, r.cfg.Spawn.Count, "")
}

// SpawnConfigured spawns spawn.count particles of the default material in spawn.shape.
func (r *Runner) SpawnConfigured() (int, error) {
	return r.SpawnDefault(r.cfg.Derived.SpawnShape)
}

func (r *Runner) spawn(shape mpm.Shape, count int, material string) (int, mpm.Material, error) {
	if material == "" {
		material = r.cfg.Simulation.DefaultMaterial
	}
	m, ok := r.cfg.Material(material)
	if !ok {
		return 0, m, fmt.Errorf("spawn: %w: %q", config.ErrUnknownMaterial, material)
	}
	added := r.sim.Spawn(shape, count, m)
	r.collector.RecordSpawn(added)
	return added, m, nil
}

// emitterSpawner lets scripted emitters spawn without logging one event per emitter.
type emitterSpawner struct{ r *Runner }

func (e emitterSpawner) Spawn(shape mpm.Shape, count int, material string) (int, error) {
	added, _, err := e.r.spawn(shape, count, material)
	return added, err
}

// Resize reallocates the grid and clamps existing particles into it.
func (r *Runner) Resize(x, y, z int) {
	r.sim.ResizeGrid(x, y, z)
	r.collector.RecordResize()
	r.emit(telemetry.NewResizeEvent(r.sim.StepCount(), r.sim.GridSize(), r.sim.ParticleCount()))
}

// Reset drops every particle and restarts the step counter. Scripted emitters that already
// fired do not fire again.
func (r *Runner) Reset() {
	dropped := r.sim.ParticleCount()
	step := r.sim.StepCount()
	r.sim.Reset()
	r.budget = 0
	r.collector.RecordReset()
	r.collector.Restart(0)
	r.emit(telemetry.NewResetEvent(step, dropped))
}

// UpdateMaterial changes a material's parameters for existing particles and future spawns.
// The change is written through to the config, so it survives Clone and WriteYAML.
func (r *Runner) UpdateMaterial(m mpm.Material) (int, error) {
	if err := r.cfg.SetMaterial(config.FromMaterial(m)); err != nil {
		return 0, fmt.Errorf("update material: %w", err)
	}
	m, _ = r.cfg.Material(m.Name)
	n := r.sim.UpdateMaterial(m)
	r.emit(telemetry.NewMaterialUpdateEvent(r.sim.StepCount(), m.Name, n))
	return n, nil
}

// SetGravity changes the gravity acceleration.
func (r *Runner) SetGravity(g mgl32.Vec3) {
	r.sim.SetGravity(g)
}

// RunHeadless steps the simulation without a time budget until ctx is done or maxSteps
// steps have completed (0 = unlimited).
func (r *Runner) RunHeadless(ctx context.Context, maxSteps uint64) error {
	for {
		for i := 0; i < r.stepsPerUpdate; i++ {
			if maxSteps > 0 && r.sim.StepCount() >= maxSteps {
				slog.Info("max steps reached", "step", r.sim.StepCount())
				return nil
			}
			if err := r.StepOnce(); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			slog.Info("headless run stopped", "step", r.sim.StepCount(), "reason", ctx.Err())
			return nil
		default:
		}
	}
}

// Close stops workers and closes output files.
func (r *Runner) Close() error {
	r.sim.Close()
	err := r.output.Close()
	r.output = nil
	return err
}
