package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/pthm-cable/mpmfluid/mpm"
)

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time            { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCollector(window int, dt float32) (*PerfCollector, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	pc := NewPerfCollector(window, dt)
	pc.clock = clk.now
	return pc, clk
}

func TestPerfCollector_PhaseBreakdown(t *testing.T) {
	pc, clk := newTestCollector(10, 0.016)

	for i := 0; i < 5; i++ {
		pc.StartStep()
		pc.StartPhase(mpm.PhaseP2GMomentum)
		clk.advance(1 * time.Millisecond)
		pc.StartPhase(mpm.PhaseG2P)
		clk.advance(3 * time.Millisecond)
		pc.EndStep()
	}

	stats := pc.Stats()
	if stats.AvgStepDuration != 4*time.Millisecond {
		t.Errorf("avg step = %v, want 4ms", stats.AvgStepDuration)
	}
	if stats.PhaseAvg[mpm.PhaseP2GMomentum] != time.Millisecond {
		t.Errorf("p2g_momentum avg = %v, want 1ms", stats.PhaseAvg[mpm.PhaseP2GMomentum])
	}
	if got := stats.PhasePct[mpm.PhaseG2P]; math.Abs(got-75) > 1e-9 {
		t.Errorf("g2p share = %v%%, want 75%%", got)
	}
	if got := stats.PhasePct[mpm.PhaseGridReset]; got != 0 {
		t.Errorf("untimed phase share = %v%%, want 0", got)
	}
	if math.Abs(stats.StepsPerSecond-250) > 1e-9 {
		t.Errorf("steps/s = %v, want 250", stats.StepsPerSecond)
	}
	// 250 steps/s of 16ms each is 4 simulated seconds per wall second
	if math.Abs(stats.RealtimeFactor-4) > 1e-6 {
		t.Errorf("realtime factor = %v, want 4", stats.RealtimeFactor)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc, clk := newTestCollector(3, 0.016)

	// Five steps of 1..5ms; only the last three stay in the window
	for i := 1; i <= 5; i++ {
		pc.StartStep()
		pc.StartPhase(mpm.PhaseGridReset)
		clk.advance(time.Duration(i) * time.Millisecond)
		pc.EndStep()
	}

	stats := pc.Stats()
	if stats.MinStepDuration != 3*time.Millisecond || stats.MaxStepDuration != 5*time.Millisecond {
		t.Errorf("min/max = %v/%v, want 3ms/5ms", stats.MinStepDuration, stats.MaxStepDuration)
	}
	if stats.AvgStepDuration != 4*time.Millisecond {
		t.Errorf("avg = %v, want 4ms", stats.AvgStepDuration)
	}
}

func TestPerfCollector_UnknownPhaseCountsTowardStepOnly(t *testing.T) {
	pc, clk := newTestCollector(4, 0.016)

	pc.StartStep()
	pc.StartPhase("setup")
	clk.advance(2 * time.Millisecond)
	pc.StartPhase(mpm.PhaseG2P)
	clk.advance(2 * time.Millisecond)
	pc.EndStep()

	stats := pc.Stats()
	if _, ok := stats.PhaseAvg["setup"]; ok {
		t.Error("unknown phase should not be broken out")
	}
	if stats.PhasePct[mpm.PhaseG2P] != 50 {
		t.Errorf("g2p share = %v%%, want 50%%", stats.PhasePct[mpm.PhaseG2P])
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	stats := NewPerfCollector(10, 0.016).Stats()

	if stats.AvgStepDuration != 0 || stats.RealtimeFactor != 0 {
		t.Error("expected zero timings for empty collector")
	}
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("expected non-nil phase maps")
	}
}

func TestPerfCollector_FrameTiming(t *testing.T) {
	pc, clk := newTestCollector(4, 0.016)

	pc.RecordFrame()
	clk.advance(20 * time.Millisecond)
	pc.RecordFrame()

	stats := pc.Stats()
	if stats.FrameDuration != 20*time.Millisecond {
		t.Errorf("frame duration = %v, want 20ms", stats.FrameDuration)
	}
	if math.Abs(stats.FPS-50) > 1e-9 {
		t.Errorf("fps = %v, want 50", stats.FPS)
	}
}

func TestPerfCollector_AsPhaseTimer(t *testing.T) {
	sim := mpm.New(mpm.DefaultParams())
	pc := NewPerfCollector(4, sim.Timestep())
	sim.SetPhaseTimer(pc)
	sim.SpawnCube(27, mpm.DefaultMaterial())

	pc.StartStep()
	if err := sim.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	pc.EndStep()

	stats := pc.Stats()
	for _, phase := range mpm.Phases {
		if _, ok := stats.PhaseAvg[phase]; !ok {
			t.Errorf("expected phase %s to be tracked", phase)
		}
	}

	row := stats.ToCSV(1)
	if row.WindowEnd != 1 {
		t.Errorf("window_end = %d, want 1", row.WindowEnd)
	}
}
