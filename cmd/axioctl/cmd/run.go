package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/macterra/Axio-sub003/internal/harness"
	"github.com/macterra/Axio-sub003/internal/journal"
	"github.com/macterra/Axio-sub003/pkg/audit"
	"github.com/macterra/Axio-sub003/pkg/clierror"
	"github.com/macterra/Axio-sub003/pkg/kernel"
)

var auditLogPath string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&auditLogPath, "audit-log", "", "Write RFC 5424 audit lines to this file")
}

// runOutput is the per-output row rendered by 'axioctl run'.
type runOutput struct {
	BatchID    string         `json:"batch_id" yaml:"batch_id"`
	EventIndex int            `json:"event_index" yaml:"event_index"`
	Type       string         `json:"type" yaml:"type"`
	StateHash  string         `json:"state_hash" yaml:"state_hash"`
	Details    map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario through the kernel and journal the results",
	Long: `Run loads a scenario file, resolves it against the constitution,
processes every step batch through a fresh kernel, and appends each batch
with its outputs to the journal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConstitution()
		if err != nil {
			return err
		}
		name, batches, err := harness.LoadScenario(args[0], c)
		if err != nil {
			return clierror.ScenarioInvalid(args[0], err)
		}

		store, err := journal.Open(journalPath)
		if err != nil {
			return clierror.InternalError(err)
		}
		defer store.Close()

		logger := newLogger()
		backends := []audit.EventEmitter{}
		if auditLogPath != "" {
			f, err := os.OpenFile(auditLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return clierror.InternalError(err)
			}
			defer f.Close()
			backends = append(backends, audit.NewLineEmitter(f, audit.LineConfig{}))
		}
		if verbose {
			backends = append(backends, audit.NewSlogEmitter(logger))
		}

		k, err := kernel.New(c.KernelConfig(logger))
		if err != nil {
			return clierror.KernelFailure(err)
		}
		runner := harness.NewRunner(k, harness.RunnerConfig{
			Logger:  logger,
			Journal: store,
			Audit:   audit.NewStreamEmitter(logger, backends...),
		})

		results, err := runner.Run(batches)
		if err != nil {
			return clierror.KernelFailure(err)
		}

		var rows []runOutput
		for i, res := range results {
			for _, out := range res.Outputs {
				rows = append(rows, runOutput{
					BatchID:    batches[i].BatchID,
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

		okFmt := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("Scenario %s: %d batches, %d outputs\n", name, len(batches), len(rows))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BATCH\tINDEX\tOUTPUT\tSTATE")
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				row.BatchID, row.EventIndex, row.Type, shortHash(row.StateHash))
		}
		w.Flush()
		final := k.State()
		fmt.Printf("%s final state %s at epoch %d\n",
			okFmt("OK"), shortHash(final.StateID), final.CurrentEpoch)
		return nil
	},
}

// shortHash abbreviates a state hash for table display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
