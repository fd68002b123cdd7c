package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/macterra/Axio-sub003/internal/harness"
	"github.com/macterra/Axio-sub003/internal/journal"
	"github.com/macterra/Axio-sub003/pkg/clierror"
)

func init() {
	rootCmd.AddCommand(verifyCmd)
}

// verifyResult is the machine-readable shape of a verification report.
type verifyResult struct {
	Match        bool   `json:"match" yaml:"match"`
	Batches      int    `json:"batches" yaml:"batches"`
	Outputs      int    `json:"outputs" yaml:"outputs"`
	FinalStateID string `json:"final_state_id" yaml:"final_state_id"`

	DivergedBatch string `json:"diverged_batch,omitempty" yaml:"diverged_batch,omitempty"`
	DivergedIndex int    `json:"diverged_index,omitempty" yaml:"diverged_index,omitempty"`
	Journaled     string `json:"journaled,omitempty" yaml:"journaled,omitempty"`
	Replayed      string `json:"replayed,omitempty" yaml:"replayed,omitempty"`
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay the journal and verify its hash stream",
	Long: `Verify replays every journaled batch through a fresh kernel built from
the constitution and compares state hashes output by output. Any divergence
means the journal and constitution no longer describe the same run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConstitution()
		if err != nil {
			return err
		}
		if _, err := os.Stat(journalPath); err != nil {
			return clierror.JournalNotFound(journalPath)
		}
		store, err := journal.Open(journalPath)
		if err != nil {
			return clierror.InternalError(err)
		}
		defer store.Close()

		report, err := harness.Verify(store, c.KernelConfig(newLogger()))
		if err != nil {
			return clierror.KernelFailure(err)
		}

		result := verifyResult{
			Match:        report.Match,
			Batches:      report.Batches,
			Outputs:      report.Outputs,
			FinalStateID: report.FinalStateID,
		}
		if d := report.Divergence; d != nil {
			result.DivergedBatch = d.BatchID
			result.DivergedIndex = d.EventIndex
			result.Journaled = d.Journaled
			result.Replayed = d.Replayed
		}

		if outputFormat != "table" {
			if err := formatOutput(os.Stdout, result); err != nil {
				return err
			}
		} else if report.Match {
			okFmt := color.New(color.FgGreen, color.Bold).SprintFunc()
			fmt.Printf("%s %d batches, %d outputs, final state %s\n",
				okFmt("VERIFIED"), report.Batches, report.Outputs, shortHash(report.FinalStateID))
		} else {
			errFmt := color.New(color.FgRed, color.Bold).SprintFunc()
			fmt.Printf("%s batch %s event index %d\n  journaled %s\n  replayed  %s\n",
				errFmt("DIVERGED"), result.DivergedBatch, result.DivergedIndex,
				result.Journaled, result.Replayed)
		}

		if !report.Match {
			return clierror.ReplayDiverged(result.DivergedBatch, result.DivergedIndex)
		}
		return nil
	},
}
