package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macterra/Axio-sub003/internal/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show axioctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("axioctl %s\n", version.String())
	},
}
