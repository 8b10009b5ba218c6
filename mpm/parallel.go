package mpm

import (
	"sync"
)

// ParallelThreshold is the default minimum particle count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead and partial-grid merges.
const ParallelThreshold = 256

// workChunk is a contiguous range handed to one worker. chunk is the chunk's ordinal within the
// current dispatch and selects the partial grid it writes, so ownership does not depend on
// which goroutine picks the chunk up.
type workChunk struct {
	chunk      int
	start, end int
	fn         func(chunk, start, end int)
}

// workerPool runs range-partitioned work on persistent goroutines.
type workerPool struct {
	numWorkers int

	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool

	// One partial grid per chunk for the scatter phases, merged in chunk order.
	partials [][]Cell
}

func newWorkerPool(numWorkers int) *workerPool {
	return &workerPool{numWorkers: numWorkers}
}

// start launches the worker goroutines.
func (p *workerPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case c, ok := <-p.workChan:
			if !ok {
				return
			}
			c.fn(c.chunk, c.start, c.end)
			p.doneChan <- struct{}{}
		}
	}
}

// run splits [0, n) into at most numWorkers chunks and blocks until all are processed.
func (p *workerPool) run(n int, fn func(chunk, start, end int)) {
	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{chunk: w, start: start, end: end, fn: fn}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}

// ensurePartials sizes one partial grid per worker to cells entries.
func (p *workerPool) ensurePartials(cells int) {
	if len(p.partials) == p.numWorkers && len(p.partials[0]) == cells {
		return
	}
	p.partials = make([][]Cell, p.numWorkers)
	for i := range p.partials {
		p.partials[i] = make([]Cell, cells)
	}
}

// scatter runs a particle-to-grid phase into per-chunk partial grids, then adds them into dst
// in chunk order. The merge order is fixed, so results are reproducible for a given worker count.
func (p *workerPool) scatter(numParticles int, dst []Cell, fn func(start, end int, out []Cell)) {
	p.ensurePartials(len(dst))

	used := make([]bool, p.numWorkers)
	p.run(numParticles, func(chunk, start, end int) {
		out := p.partials[chunk]
		clear(out)
		fn(start, end, out)
		used[chunk] = true
	})

	p.run(len(dst), func(_, start, end int) {
		for w, part := range p.partials {
			if !used[w] {
				continue
			}
			for i := start; i < end; i++ {
				dst[i].Mass += part[i].Mass
				dst[i].Velocity = dst[i].Velocity.Add(part[i].Velocity)
			}
		}
	})
}
