package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/mpmfluid/mpm"
)

// phaseIndex maps a solver phase name to its slot in a stepTiming.
var phaseIndex = func() map[string]int {
	m := make(map[string]int, len(mpm.Phases))
	for i, name := range mpm.Phases {
		m[name] = i
	}
	return m
}()

// stepTiming is one step's wall time split by solver phase, in mpm.Phases order.
// Time spent outside any known phase counts toward total only.
type stepTiming struct {
	total  time.Duration
	phases []time.Duration
}

// PerfCollector keeps a ring of the most recent step timings. It implements mpm.PhaseTimer;
// the runner brackets each Step with StartStep and EndStep.
type PerfCollector struct {
	clock func() time.Time
	dt    float32 // simulated seconds per step

	ring  []stepTiming
	next  int
	count int

	// In-flight step
	cur        stepTiming
	stepStart  time.Time
	phaseStart time.Time
	phase      int // index into mpm.Phases, -1 outside a known phase

	lastFrame     time.Time
	frameDuration time.Duration
}

var _ mpm.PhaseTimer = (*PerfCollector)(nil)

// NewPerfCollector creates a collector averaging over the last window steps of length dt.
func NewPerfCollector(window int, dt float32) *PerfCollector {
	if window < 1 {
		window = 60
	}
	ring := make([]stepTiming, window)
	for i := range ring {
		ring[i].phases = make([]time.Duration, len(mpm.Phases))
	}
	return &PerfCollector{
		clock: time.Now,
		dt:    dt,
		ring:  ring,
		cur:   stepTiming{phases: make([]time.Duration, len(mpm.Phases))},
		phase: -1,
	}
}

// StartStep begins timing a new simulation step.
func (p *PerfCollector) StartStep() {
	now := p.clock()
	p.stepStart = now
	p.phaseStart = now
	p.phase = -1
	clear(p.cur.phases)
}

// StartPhase closes the running phase and starts timing the named one.
// Names outside mpm.Phases are timed as part of the step but not broken out.
func (p *PerfCollector) StartPhase(name string) {
	now := p.clock()
	p.closePhase(now)
	p.phase = -1
	if i, ok := phaseIndex[name]; ok {
		p.phase = i
	}
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase >= 0 {
		p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
}

// EndStep finishes the current step and stores it in the ring.
func (p *PerfCollector) EndStep() {
	now := p.clock()
	p.closePhase(now)
	p.phase = -1

	slot := &p.ring[p.next]
	slot.total = now.Sub(p.stepStart)
	copy(slot.phases, p.cur.phases)

	p.next = (p.next + 1) % len(p.ring)
	if p.count < len(p.ring) {
		p.count++
	}
}

// RecordFrame marks the start of a rendered frame.
func (p *PerfCollector) RecordFrame() {
	now := p.clock()
	if !p.lastFrame.IsZero() {
		p.frameDuration = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgStepDuration time.Duration
	MinStepDuration time.Duration
	MaxStepDuration time.Duration

	// Per-phase average duration and share of the average step, keyed by mpm phase name
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	StepsPerSecond float64
	// RealtimeFactor is simulated seconds per wall second while stepping.
	// Below 1 the viewer cannot keep up with real time.
	RealtimeFactor float64

	// Frame timing (graphics mode)
	FrameDuration time.Duration
	FPS           float64
}

// Stats aggregates the steps currently in the ring.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{
		PhaseAvg:      make(map[string]time.Duration, len(mpm.Phases)),
		PhasePct:      make(map[string]float64, len(mpm.Phases)),
		FrameDuration: p.frameDuration,
	}
	if p.frameDuration > 0 {
		s.FPS = float64(time.Second) / float64(p.frameDuration)
	}
	if p.count == 0 {
		return s
	}

	var total time.Duration
	phaseSum := make([]time.Duration, len(mpm.Phases))
	for i := 0; i < p.count; i++ {
		t := &p.ring[i]
		total += t.total
		if i == 0 || t.total < s.MinStepDuration {
			s.MinStepDuration = t.total
		}
		if t.total > s.MaxStepDuration {
			s.MaxStepDuration = t.total
		}
		for j, d := range t.phases {
			phaseSum[j] += d
		}
	}

	n := time.Duration(p.count)
	s.AvgStepDuration = total / n
	for j, name := range mpm.Phases {
		avg := phaseSum[j] / n
		s.PhaseAvg[name] = avg
		if s.AvgStepDuration > 0 {
			s.PhasePct[name] = float64(avg) / float64(s.AvgStepDuration) * 100
		}
	}
	if s.AvgStepDuration > 0 {
		s.StepsPerSecond = float64(time.Second) / float64(s.AvgStepDuration)
		s.RealtimeFactor = s.StepsPerSecond * float64(p.dt)
	}
	return s
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	slog.Info("perf", "perf", s)
}

// LogValue implements slog.LogValuer; phases appear in execution order.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_step_us", s.AvgStepDuration.Microseconds()),
		slog.Int64("min_step_us", s.MinStepDuration.Microseconds()),
		slog.Int64("max_step_us", s.MaxStepDuration.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
		slog.Float64("realtime", s.RealtimeFactor),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range mpm.Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd      uint64  `csv:"window_end"`
	AvgStepUS      int64   `csv:"avg_step_us"`
	MinStepUS      int64   `csv:"min_step_us"`
	MaxStepUS      int64   `csv:"max_step_us"`
	StepsPerSec    float64 `csv:"steps_per_sec"`
	Realtime       float64 `csv:"realtime_factor"`
	FPS            float64 `csv:"fps"`
	GridResetPct   float64 `csv:"grid_reset_pct"`
	P2GMomentumPct float64 `csv:"p2g_momentum_pct"`
	P2GStressPct   float64 `csv:"p2g_stress_pct"`
	GridUpdatePct  float64 `csv:"grid_update_pct"`
	G2PPct         float64 `csv:"g2p_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd uint64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:      windowEnd,
		AvgStepUS:      s.AvgStepDuration.Microseconds(),
		MinStepUS:      s.MinStepDuration.Microseconds(),
		MaxStepUS:      s.MaxStepDuration.Microseconds(),
		StepsPerSec:    s.StepsPerSecond,
		Realtime:       s.RealtimeFactor,
		FPS:            s.FPS,
		GridResetPct:   s.PhasePct[mpm.PhaseGridReset],
		P2GMomentumPct: s.PhasePct[mpm.PhaseP2GMomentum],
		P2GStressPct:   s.PhasePct[mpm.PhaseP2GStress],
		GridUpdatePct:  s.PhasePct[mpm.PhaseGridUpdate],
		G2PPct:         s.PhasePct[mpm.PhaseG2P],
	}
}
