package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mifdirfan/climatetrack/internal/logging"
)

// State is the lifecycle phase of a Runner.
type State string

const (
	// StateIdle means Start has not been called.
	StateIdle State = "idle"
	// StateRunning means the background ingestion is in progress.
	StateRunning State = "running"
	// StateDone means the background ingestion finished.
	StateDone State = "done"
)

// Runner launches a Pipeline in the background exactly once. Completion is
// observable only through State and the index growing; there is no barrier
// for callers to wait on.
type Runner struct {
	pipeline *Pipeline
	sources  []Source
	log      *slog.Logger

	once   sync.Once
	state  atomic.Value
	report atomic.Pointer[Report]
}

// NewRunner constructs a Runner for the given pipeline and sources.
func NewRunner(pipeline *Pipeline, sources []Source, log *slog.Logger) *Runner {
	r := &Runner{
		pipeline: pipeline,
		sources:  sources,
		log:      logging.OrDefault(log),
	}
	r.state.Store(StateIdle)
	return r
}

// Start spawns the ingestion goroutine on the first call and returns true.
// Every later call is a no-op returning false. The run stops early if ctx
// is cancelled.
func (r *Runner) Start(ctx context.Context) bool {
	started := false
	r.once.Do(func() {
		started = true
		r.state.Store(StateRunning)
		r.log.Info("ingestion: starting background run", slog.Int("sources", len(r.sources)))
		go func() {
			report := r.pipeline.Run(ctx, r.sources)
			r.report.Store(&report)
			r.state.Store(StateDone)
		}()
	})
	return started
}

// State reports the current lifecycle phase.
func (r *Runner) State() State {
	return r.state.Load().(State)
}

// Report returns the summary of the finished run, or false while the run
// has not completed.
func (r *Runner) Report() (Report, bool) {
	rep := r.report.Load()
	if rep == nil {
		return Report{}, false
	}
	return *rep, true
}
