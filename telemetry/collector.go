package telemetry

import "math"

// Collector accumulates events within windows of simulated time and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationSteps uint64
	dt                  float32

	windowStartStep uint64

	// Event counters for current window
	steps   int
	spawns  int
	spawned int
	resets  int
	resizes int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per step (used for step-to-time conversion)
func NewCollector(windowDurationSec float64, dt float32) *Collector {
	stepsPerWindow := uint64(0)
	if dt > 0 && windowDurationSec > 0 {
		stepsPerWindow = uint64(math.Round(windowDurationSec / float64(dt)))
	}
	if stepsPerWindow < 1 {
		stepsPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationSteps: stepsPerWindow,
		dt:                  dt,
	}
}

// RecordStep records one completed simulation step.
func (c *Collector) RecordStep() {
	c.steps++
}

// RecordSpawn records a spawn request and how many particles it added.
func (c *Collector) RecordSpawn(count int) {
	c.spawns++
	c.spawned += count
}

// RecordReset records a simulation reset.
func (c *Collector) RecordReset() {
	c.resets++
}

// RecordResize records a grid resize.
func (c *Collector) RecordResize() {
	c.resizes++
}

// ShouldFlush returns true if enough steps have passed to flush the window.
func (c *Collector) ShouldFlush(currentStep uint64) bool {
	return currentStep >= c.windowStartStep+c.windowDurationSteps
}

// Restart moves the window start to step without flushing, used when the step counter resets.
func (c *Collector) Restart(step uint64) {
	c.windowStartStep = step
}

// Flush produces a WindowStats from the counters and snapshot and resets counters for the next window.
func (c *Collector) Flush(currentStep uint64, snap Snapshot, pendingEmitters int) WindowStats {
	mean, std, p50, p90, max := ComputeSpeedStats(snap.Speeds)

	stats := WindowStats{
		WindowStartStep: c.windowStartStep,
		WindowEndStep:   currentStep,
		SimTimeSec:      float64(currentStep) * float64(c.dt),

		Steps:    c.steps,
		Spawns:   c.spawns,
		Spawned:  c.spawned,
		Resets:   c.resets,
		Resizes:  c.resizes,
		Emitters: pendingEmitters,

		Particles:     snap.Particles,
		SpeedMean:     mean,
		SpeedStd:      std,
		SpeedP50:      p50,
		SpeedP90:      p90,
		SpeedMax:      max,
		MomentumX:     snap.Momentum[0],
		MomentumY:     snap.Momentum[1],
		MomentumZ:     snap.Momentum[2],
		KineticEnergy: snap.KineticEnergy,
		VolumeMean:    Mean(snap.Volumes),
		HeightMean:    Mean(snap.Heights),

		ActiveCells: snap.ActiveCells,
		MaxCellMass: snap.MaxCellMass,
	}

	c.windowStartStep = currentStep
	c.steps = 0
	c.spawns = 0
	c.spawned = 0
	c.resets = 0
	c.resizes = 0

	return stats
}

// WindowDurationSteps returns the number of steps per window.
func (c *Collector) WindowDurationSteps() uint64 {
	return c.windowDurationSteps
}
