package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/macterra/Axio-sub003/internal/journal"
	"github.com/macterra/Axio-sub003/pkg/clierror"
)

func init() {
	rootCmd.AddCommand(stateCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the final journaled authority state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(journalPath); err != nil {
			return clierror.JournalNotFound(journalPath)
		}
		store, err := journal.Open(journalPath)
		if err != nil {
			return clierror.InternalError(err)
		}
		defer store.Close()

		snap, err := store.FinalSnapshot()
		if err != nil {
			return clierror.InternalError(err)
		}
		if snap == nil {
			fmt.Println("Journal is empty. Use 'axioctl run' to process a scenario.")
			return nil
		}

		if outputFormat != "table" {
			return formatOutput(os.Stdout, snap)
		}

		fmt.Printf("Epoch %d, state %s\n", snap.CurrentEpoch, shortHash(snap.StateID))
		if snap.Deadlock {
			fmt.Printf("DEADLOCKED (%s)\n", snap.DeadlockCause)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "AUTHORITY\tHOLDER\tSCOPE\tSTATUS\tEXPIRY")
		for _, id := range sortedKeys(snap.Authorities) {
			rec := snap.Authorities[id]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				rec.AuthorityID, rec.HolderID, rec.ResourceScope, rec.Status, rec.ExpiryEpoch)
		}
		for _, id := range sortedKeys(snap.PendingAuthorities) {
			rec := snap.PendingAuthorities[id]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				rec.AuthorityID, rec.HolderID, rec.ResourceScope, rec.Status, rec.ExpiryEpoch)
		}
		w.Flush()

		if len(snap.Conflicts) > 0 {
			fmt.Println()
			cw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(cw, "CONFLICT\tSCOPE\tSTATUS\tPARTICIPANTS")
			for _, id := range sortedKeys(snap.Conflicts) {
				c := snap.Conflicts[id]
				fmt.Fprintf(cw, "%s\t%s\t%s\t%d\n",
					c.ConflictID, c.ResourceScope, c.Status, len(c.AuthorityIDs))
			}
			cw.Flush()
		}
		return nil
	},
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
