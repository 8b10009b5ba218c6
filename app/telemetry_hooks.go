package app

import (
	"log/slog"

	"github.com/pthm-cable/mpmfluid/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and writes it out.
func (r *Runner) flushTelemetry() {
	step := r.sim.StepCount()
	if !r.collector.ShouldFlush(step) {
		return
	}

	stats := r.collector.Flush(step, telemetry.TakeSnapshot(r.sim), r.scene.Pending())
	perfStats := r.perf.Stats()

	if r.statsCallback != nil {
		r.statsCallback(stats)
	}

	if r.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if r.output != nil {
		if err := r.output.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := r.output.WritePerf(perfStats, stats.WindowEndStep); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}

// emit logs and records a control or lifecycle event.
func (r *Runner) emit(e telemetry.Event) {
	if r.logStats || e.Type == telemetry.EventDivergence {
		e.LogEvent()
	}
	if err := r.output.WriteEvent(e); err != nil {
		slog.Error("failed to write event", "error", err)
	}
}
