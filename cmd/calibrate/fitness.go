package main

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/pthm-cable/mpmfluid/app"
	"github.com/pthm-cable/mpmfluid/config"
	"github.com/pthm-cable/mpmfluid/mpm"
	"github.com/pthm-cable/mpmfluid/telemetry"
)

// Fitness weights and penalties.
const (
	// divergencePenalty dominates every non-diverged score
	divergencePenalty = 1000.0

	speedWeight   = 0.05 // per grid unit/s of residual mean speed
	settleWindows = 3    // trailing windows scored
)

// FitnessEvaluator runs headless simulations of one material and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	material    string
	shape       mpm.Shape
	count       int
	maxSteps    uint64
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64

	mu           sync.Mutex
	lastDiverged int // seeds that diverged in the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator for the named material.
func NewFitnessEvaluator(params *ParamVector, material string, shape mpm.Shape, count int, maxSteps uint64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		material:    material,
		shape:       shape,
		count:       count,
		maxSteps:    maxSteps,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 0.25,
	}
}

// LastDiverged returns how many seeds diverged in the most recent evaluation.
func (fe *FitnessEvaluator) LastDiverged() int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastDiverged
}

// runResult holds the results from a single simulation run.
type runResult struct {
	steps       uint64
	diverged    bool
	windowStats []telemetry.WindowStats
	restVolume  float64
	err         error
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// Seeds run concurrently and their fitness is averaged.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]*runResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	var total float64
	diverged := 0
	for _, r := range results {
		if r.diverged {
			diverged++
		}
		total += fe.computeFitness(r)
	}

	fe.mu.Lock()
	fe.lastDiverged = diverged
	fe.mu.Unlock()

	return total / float64(len(results))
}

// runSimulation executes a single headless run with the parameters applied.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	result := &runResult{}

	cfg, err := fe.configFor(x)
	if err != nil {
		result.err = err
		return result
	}
	m, _ := cfg.Material(fe.material)
	result.restVolume = float64(m.Mass / m.RestDensity)

	r, err := app.New(cfg, app.Options{
		Seed:           seed,
		Workers:        1, // seeds already run in parallel
		StatsWindowSec: fe.statsWindow,
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
		},
	})
	if err != nil {
		result.err = err
		return result
	}
	defer r.Close()

	if _, err := r.Spawn(fe.shape, fe.count, fe.material); err != nil {
		result.err = err
		return result
	}

	err = r.RunHeadless(context.Background(), fe.maxSteps)
	result.steps = r.Step()
	if errors.Is(err, mpm.ErrDiverged) {
		result.diverged = true
	} else if err != nil {
		result.err = err
	}
	return result
}

// configFor clones the base config and applies x to the calibrated material.
func (fe *FitnessEvaluator) configFor(x []float64) (*config.Config, error) {
	cfg, err := fe.baseConfig.Clone()
	if err != nil {
		return nil, err
	}
	mc, ok := cfg.LookupMaterial(fe.material)
	if !ok {
		return nil, config.ErrUnknownMaterial
	}
	if err := cfg.SetMaterial(fe.params.ApplyToMaterial(mc, x)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeFitness scores one run (lower = better).
// A diverged run scores the penalty plus the fraction of the run it failed to complete.
// Otherwise the score is the mean compression error |V/V0 - 1| plus a residual-motion term
// over the trailing windows.
func (fe *FitnessEvaluator) computeFitness(r *runResult) float64 {
	if r.err != nil {
		return 2 * divergencePenalty
	}
	if r.diverged {
		missed := 1.0
		if fe.maxSteps > 0 {
			missed = 1 - float64(r.steps)/float64(fe.maxSteps)
		}
		return divergencePenalty * (1 + missed)
	}

	windows := r.windowStats
	if len(windows) == 0 || r.restVolume <= 0 {
		return divergencePenalty
	}
	if len(windows) > settleWindows {
		windows = windows[len(windows)-settleWindows:]
	}

	var compression, speed float64
	for _, w := range windows {
		compression += math.Abs(w.VolumeMean/r.restVolume - 1)
		speed += w.SpeedMean
	}
	n := float64(len(windows))
	return compression/n + speedWeight*speed/n
}
