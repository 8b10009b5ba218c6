package viewer

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/mpmfluid/mpm"
	"github.com/pthm-cable/mpmfluid/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title     string
	Particles int
	Grid      [3]int
	Step      uint64
	FPS       int32
	Paused    bool
	Perf      telemetry.PerfStats
}

// drawHUD renders the top-left status block.
func drawHUD(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	rl.DrawText(
		fmt.Sprintf("Particles: %d | Grid: %dx%dx%d", data.Particles, data.Grid[0], data.Grid[1], data.Grid[2]),
		10, 35, 16, rl.LightGray,
	)

	rl.DrawText(
		fmt.Sprintf("Step: %d | FPS: %d | Steps/s: %.0f | Avg step: %.2fms",
			data.Step, data.FPS, data.Perf.StepsPerSecond, float64(data.Perf.AvgStepDuration.Microseconds())/1000),
		10, 55, 16, rl.LightGray,
	)

	statusText := fmt.Sprintf("Running %.2fx realtime", data.Perf.RealtimeFactor)
	statusColor := rl.Yellow
	if data.Perf.RealtimeFactor > 0 && data.Perf.RealtimeFactor < 1 {
		statusColor = rl.Orange
	}
	if data.Paused {
		statusText = "PAUSED"
		statusColor = rl.Yellow
	}
	rl.DrawText(statusText, 10, 75, 16, statusColor)

	// Phase breakdown
	y := int32(100)
	for _, phase := range mpm.Phases {
		rl.DrawText(fmt.Sprintf("%-13s %5.1f%%", phase, data.Perf.PhasePct[phase]), 10, y, 14, rl.Gray)
		y += 16
	}
}

// drawControls renders the key legend at the bottom of the screen.
func drawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}
