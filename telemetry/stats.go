package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/mpmfluid/mpm"
)

// WindowStats holds aggregated statistics for a window of simulation steps.
type WindowStats struct {
	WindowStartStep uint64  `csv:"-"`
	WindowEndStep   uint64  `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Events during window
	Steps    int `csv:"steps"`
	Spawns   int `csv:"spawns"`
	Spawned  int `csv:"spawned"`
	Resets   int `csv:"resets"`
	Resizes  int `csv:"resizes"`
	Emitters int `csv:"emitters_pending"`

	// Particle state sampled at window end
	Particles     int     `csv:"particles"`
	SpeedMean     float64 `csv:"speed_mean"`
	SpeedStd      float64 `csv:"speed_std"`
	SpeedP50      float64 `csv:"speed_p50"`
	SpeedP90      float64 `csv:"speed_p90"`
	SpeedMax      float64 `csv:"speed_max"`
	MomentumX     float64 `csv:"momentum_x"`
	MomentumY     float64 `csv:"momentum_y"`
	MomentumZ     float64 `csv:"momentum_z"`
	KineticEnergy float64 `csv:"kinetic_energy"`
	VolumeMean    float64 `csv:"volume_mean"`
	HeightMean    float64 `csv:"height_mean"` // mean particle y, a cheap settling indicator

	// Grid state left by the last step
	ActiveCells int     `csv:"active_cells"`
	MaxCellMass float64 `csv:"max_cell_mass"`
}

// Snapshot holds per-particle and per-cell measurements taken from a simulation.
type Snapshot struct {
	Particles     int
	Speeds        []float64
	Volumes       []float64
	Heights       []float64
	Momentum      [3]float64
	KineticEnergy float64
	ActiveCells   int
	MaxCellMass   float64
}

// TakeSnapshot measures the current particle and grid state.
func TakeSnapshot(sim *mpm.Simulation) Snapshot {
	particles := sim.Particles()
	snap := Snapshot{
		Particles: len(particles),
		Speeds:    make([]float64, len(particles)),
		Volumes:   make([]float64, len(particles)),
		Heights:   make([]float64, len(particles)),
	}
	for i := range particles {
		p := &particles[i]
		snap.Speeds[i] = float64(p.Velocity.Len())
		snap.Volumes[i] = float64(p.Volume)
		snap.Heights[i] = float64(p.Position[1])
	}

	m := sim.TotalMomentum()
	snap.Momentum = [3]float64{float64(m[0]), float64(m[1]), float64(m[2])}
	snap.KineticEnergy = float64(sim.KineticEnergy())

	for _, c := range sim.Cells() {
		if c.Mass > 0 {
			snap.ActiveCells++
			if float64(c.Mass) > snap.MaxCellMass {
				snap.MaxCellMass = float64(c.Mass)
			}
		}
	}
	return snap
}

// Quantile returns the p-th empirical quantile of sorted values, p in [0, 1].
// Returns 0 if the slice is empty.
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// ComputeSpeedStats calculates mean, population std, median, p90 and max of values.
func ComputeSpeedStats(values []float64) (mean, std, p50, p90, max float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, std = stat.PopMeanStdDev(sorted, nil)
	return mean, std, Quantile(sorted, 0.5), Quantile(sorted, 0.9), floats.Max(sorted)
}

// Mean returns the arithmetic mean of values, or 0 if empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values) / float64(len(values))
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartStep),
		slog.Uint64("window_end", s.WindowEndStep),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("steps", s.Steps),
		slog.Int("spawns", s.Spawns),
		slog.Int("spawned", s.Spawned),
		slog.Int("resets", s.Resets),
		slog.Int("resizes", s.Resizes),
		slog.Int("emitters_pending", s.Emitters),
		slog.Int("particles", s.Particles),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("momentum_x", s.MomentumX),
		slog.Float64("momentum_y", s.MomentumY),
		slog.Float64("momentum_z", s.MomentumZ),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("volume_mean", s.VolumeMean),
		slog.Float64("height_mean", s.HeightMean),
		slog.Int("active_cells", s.ActiveCells),
		slog.Float64("max_cell_mass", s.MaxCellMass),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
