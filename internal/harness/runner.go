package harness

import (
	"fmt"
	"log/slog"

	"github.com/macterra/Axio-sub003/internal/journal"
	"github.com/macterra/Axio-sub003/pkg/audit"
	"github.com/macterra/Axio-sub003/pkg/kernel"
)

// RunnerConfig wires the optional sinks of a run.
type RunnerConfig struct {
	Logger  *slog.Logger
	Journal *journal.Store       // nil disables journaling
	Audit   *audit.StreamEmitter // nil disables audit emission
}

// Runner feeds batches through one kernel instance, journaling and auditing
// each result as it lands. It is as single-threaded as the kernel it drives.
type Runner struct {
	log     *slog.Logger
	kernel  *kernel.Kernel
	journal *journal.Store
	audit   *audit.StreamEmitter
	seq     int
}

// NewRunner wraps an existing kernel.
func NewRunner(k *kernel.Kernel, cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		log:     logger,
		kernel:  k,
		journal: cfg.Journal,
		audit:   cfg.Audit,
	}
}

// Run processes every batch in order. A kernel failure stops the run at the
// offending batch; already-processed batches stay journaled.
func (r *Runner) Run(batches []Batch) ([]*kernel.BatchResult, error) {
	results := make([]*kernel.BatchResult, 0, len(batches))
	for _, b := range batches {
		res, err := r.kernel.ProcessStepBatch(b.Step)
		if err != nil {
			return results, fmt.Errorf("batch %s: %w", b.BatchID, err)
		}

		if r.journal != nil {
			if err := r.journal.AppendBatch(b.BatchID, r.seq, b.Step, res); err != nil {
				return results, fmt.Errorf("journal batch %s: %w", b.BatchID, err)
			}
		}
		if r.audit != nil {
			r.audit.EmitBatch(b.BatchID, res)
		}
		r.seq++

		r.log.Debug("batch processed",
			"batch_id", b.BatchID,
			"outputs", len(res.Outputs),
			"state_id", res.State.StateID)
		results = append(results, res)
	}
	return results, nil
}

// State returns the driven kernel's current snapshot.
func (r *Runner) State() *kernel.AuthorityState {
	return r.kernel.State()
}
