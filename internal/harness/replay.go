package harness

import (
	"fmt"

	"github.com/macterra/Axio-sub003/internal/journal"
	"github.com/macterra/Axio-sub003/pkg/kernel"
)

// Divergence pinpoints the first hash mismatch between a journaled run and
// its replay.
type Divergence struct {
	BatchID    string
	EventIndex int
	Journaled  string
	Replayed   string
}

// ReplayReport summarizes a replay verification.
type ReplayReport struct {
	Batches      int
	Outputs      int
	Match        bool
	Divergence   *Divergence
	FinalStateID string
}

// Verify replays every journaled batch through a fresh kernel built from cfg
// and compares the resulting hash stream against the journal, output by
// output. cfg must be the same configuration (constitution, seeds, budget)
// the journaled run started from; any difference shows up as a divergence,
// which is the point.
func Verify(store *journal.Store, cfg kernel.Config) (*ReplayReport, error) {
	batches, err := store.Batches()
	if err != nil {
		return nil, err
	}

	k, err := kernel.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("construct replay kernel: %w", err)
	}

	report := &ReplayReport{Match: true}
	for _, rb := range batches {
		report.Batches++

		res, err := k.ProcessStepBatch(rb.Batch)
		if err != nil {
			return nil, fmt.Errorf("replay batch %s: %w", rb.BatchID, err)
		}
		journaled, err := store.Outputs(rb.BatchID)
		if err != nil {
			return nil, err
		}

		if d := compareOutputs(rb.BatchID, journaled, res.Outputs); d != nil {
			report.Divergence = d
			report.Match = false
			report.FinalStateID = res.State.StateID
			return report, nil
		}
		report.Outputs += len(res.Outputs)

		if rb.FinalStateID != res.State.StateID {
			report.Divergence = &Divergence{
				BatchID:   rb.BatchID,
				Journaled: rb.FinalStateID,
				Replayed:  res.State.StateID,
			}
			report.Match = false
			report.FinalStateID = res.State.StateID
			return report, nil
		}
		report.FinalStateID = res.State.StateID
	}
	return report, nil
}

func compareOutputs(batchID string, journaled []journal.RecordedOutput, replayed []kernel.Output) *Divergence {
	n := len(journaled)
	if len(replayed) < n {
		n = len(replayed)
	}
	for i := 0; i < n; i++ {
		if journaled[i].StateHash != replayed[i].StateHash ||
			journaled[i].EventIndex != replayed[i].EventIndex ||
			journaled[i].OutputType != replayed[i].Type {
			return &Divergence{
				BatchID:    batchID,
				EventIndex: journaled[i].EventIndex,
				Journaled:  journaled[i].StateHash,
				Replayed:   replayed[i].StateHash,
			}
		}
	}
	if len(journaled) != len(replayed) {
		d := &Divergence{BatchID: batchID}
		if len(journaled) > n {
			d.EventIndex = journaled[n].EventIndex
			d.Journaled = journaled[n].StateHash
		} else {
			d.EventIndex = replayed[n].EventIndex
			d.Replayed = replayed[n].StateHash
		}
		return d
	}
	return nil
}
