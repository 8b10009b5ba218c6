package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/mpmfluid/app"
	"github.com/pthm-cable/mpmfluid/config"
	"github.com/pthm-cable/mpmfluid/viewer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats and events via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in simulated seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = simulation.seed from config, -1 = time-based)")
	maxSteps := flag.Uint64("max-steps", 0, "Stop after N steps (0 = unlimited)")
	stepsPerUpdate := flag.Int("steps-per-update", 0, "Simulation steps per headless update (0 = use config)")
	workers := flag.Int("workers", 0, "Worker goroutines for the step phases (0 = use config)")
	spawn := flag.Bool("spawn", false, "Spawn spawn.count particles of spawn.shape at startup")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed < 0 {
		rngSeed = time.Now().UnixNano()
	}

	opts := app.Options{
		Seed:           rngSeed,
		Workers:        *workers,
		LogStats:       *logStats,
		StatsWindowSec: *statsWindow,
		OutputDir:      *outputDir,
		StepsPerUpdate: *stepsPerUpdate,
	}

	if *headless {
		// Headless mode - pure CPU simulation, no raylib needed
		os.Exit(runHeadless(cfg, opts, *spawn, *maxSteps))
	}
	os.Exit(runGraphical(cfg, opts, *spawn, *maxSteps))
}

func runHeadless(cfg *config.Config, opts app.Options, spawn bool, maxSteps uint64) int {
	r, err := newRunner(cfg, opts, spawn)
	if err != nil {
		slog.Error("failed to start simulation", "error", err)
		return 1
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting headless simulation",
		"seed", opts.Seed,
		"max_steps", maxSteps,
		"particles", r.Sim().ParticleCount(),
	)

	if err := r.RunHeadless(ctx, maxSteps); err != nil {
		slog.Error("simulation stopped", "step", r.Step(), "error", err)
		return 1
	}
	return 0
}

func runGraphical(cfg *config.Config, opts app.Options, spawn bool, maxSteps uint64) int {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "MPM Fluid")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	r, err := newRunner(cfg, opts, spawn)
	if err != nil {
		slog.Error("failed to start simulation", "error", err)
		return 1
	}
	defer r.Close()

	if err := viewer.New(r).Run(maxSteps); err != nil {
		slog.Error("simulation stopped", "step", r.Step(), "error", err)
		return 1
	}
	return 0
}

// newRunner builds the runner and performs the optional startup spawn.
func newRunner(cfg *config.Config, opts app.Options, spawn bool) (*app.Runner, error) {
	r, err := app.New(cfg, opts)
	if err != nil {
		return nil, err
	}
	if !spawn {
		return r, nil
	}
	if _, err := r.SpawnConfigured(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}
