// Authority kernel CLI
// Runs scenario files through the kernel, journals the results, and
// verifies journaled runs by deterministic replay.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/macterra/Axio-sub003/cmd/axioctl/cmd"
	"github.com/macterra/Axio-sub003/pkg/clierror"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var cliErr *clierror.CLIError
		if errors.As(err, &cliErr) {
			fmt.Fprintln(os.Stderr, clierror.FormatError(cliErr, cmd.OutputFormat()))
			os.Exit(cliErr.ExitCode)
		}
		os.Exit(clierror.ExitGeneral)
	}
}
