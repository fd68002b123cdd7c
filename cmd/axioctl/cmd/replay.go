package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/macterra/Axio-sub003/internal/journal"
	"github.com/macterra/Axio-sub003/pkg/clierror"
	"github.com/macterra/Axio-sub003/pkg/kernel"
)

func init() {
	rootCmd.AddCommand(replayCmd)
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run the journaled batches and print the regenerated outputs",
	Long: `Replay feeds every journaled batch through a fresh kernel built from
the constitution and prints the regenerated output stream. Unlike 'verify'
it does not compare against the journal; use it to inspect what a run
produces under the current constitution.`,
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

		batches, err := store.Batches()
		if err != nil {
			return clierror.InternalError(err)
		}

		k, err := kernel.New(c.KernelConfig(newLogger()))
		if err != nil {
			return clierror.KernelFailure(err)
		}

		var rows []runOutput
		for _, rb := range batches {
			res, err := k.ProcessStepBatch(rb.Batch)
			if err != nil {
				return clierror.KernelFailure(err)
			}
			for _, out := range res.Outputs {
				rows = append(rows, runOutput{
					BatchID:    rb.BatchID,
					EventIndex: out.EventIndex,
					Type:       string(out.Type),
					StateHash:  out.StateHash,
					Details:    out.Details,
				})
			}
		}

		if outputFormat != "table" {
			return formatOutput(os.Stdout, rows)
		}

		fmt.Printf("Replayed %d batches, %d outputs\n", len(batches), len(rows))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BATCH\tINDEX\tOUTPUT\tSTATE")
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				row.BatchID, row.EventIndex, row.Type, shortHash(row.StateHash))
		}
		w.Flush()
		final := k.State()
		fmt.Printf("Final state %s at epoch %d\n", shortHash(final.StateID), final.CurrentEpoch)
		return nil
	},
}
