package simulator

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/domain"
)

// Sink receives simulator output.
type Sink interface {
	SetProgress(progress float64)
	AppendLog(line domain.LogLine)
}

// Runner drives a Simulator from clock tickers: progress every ProgressTick,
// one console line every LogCadence. Sink calls are made with the runner
// lock held, so they arrive in order and never after Stop for a stale run.
type Runner struct {
	mu         sync.Mutex
	sim        *Simulator
	clock      clockwork.Clock
	sink       Sink
	generation uint64
	cancel     context.CancelFunc
}

func NewRunner(sim *Simulator, clock clockwork.Clock, sink Sink) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{sim: sim, clock: clock, sink: sink}
}

// Start (re)starts the simulation for mode. A running simulation is
// replaced.
func (r *Runner) Start(mode domain.Mode, deepResearch bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLoopLocked()
	r.generation++
	r.sim.Start(mode, deepResearch)
	r.sink.SetProgress(r.sim.Progress())
	r.emitLineLocked()

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.loop(ctx, r.generation)
}

// Stop jumps to 100 and schedules the reset to 0. Stopping an idle runner
// is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.sim.Active() {
		return
	}
	r.stopLoopLocked()
	r.generation++
	gen := r.generation
	r.sim.Stop()
	r.sink.SetProgress(r.sim.Progress())

	r.clock.AfterFunc(constants.SimulatorConfig.ResetDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.generation != gen || r.sim.Active() {
			return
		}
		r.sim.Reset()
		r.sink.SetProgress(r.sim.Progress())
	})
}

// Active reports whether a simulation is running.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Active()
}

// Close stops the loop without touching the sink.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLoopLocked()
	r.generation++
}

func (r *Runner) stopLoopLocked() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
}

func (r *Runner) loop(ctx context.Context, gen uint64) {
	progress := r.clock.NewTicker(constants.SimulatorConfig.ProgressTick)
	defer progress.Stop()
	logs := r.clock.NewTicker(constants.SimulatorConfig.LogCadence)
	defer logs.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-progress.Chan():
			if !r.step(gen, func() { r.sink.SetProgress(r.sim.TickProgress()) }) {
				return
			}
		case <-logs.Chan():
			if !r.step(gen, r.emitLineLocked) {
				return
			}
		}
	}
}

// step runs fn under the lock if gen is still current.
func (r *Runner) step(gen uint64, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		return false
	}
	fn()
	return true
}

func (r *Runner) emitLineLocked() {
	line, ok := r.sim.NextLine()
	if !ok {
		return
	}
	r.sink.AppendLog(domain.LogLine{
		Time:  r.clock.Now(),
		Level: domain.LogLevelInfo,
		Text:  line,
	})
}
