// Package cmd implements the axioctl CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/macterra/Axio-sub003/pkg/clierror"
	"github.com/macterra/Axio-sub003/pkg/constitution"
)

var (
	// Global flags
	outputFormat     string
	constitutionPath string
	journalPath      string
	verbose          bool
)

var rootCmd = &cobra.Command{
	Use:   "axioctl",
	Short: "Authority kernel runner and replay verifier",
	Long: `axioctl drives the authority kernel from declarative scenario files.

It processes step batches through a kernel seeded from a constitution,
journals every batch with its output hash stream, and verifies journaled
runs by replaying them through a fresh kernel.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&constitutionPath, "constitution", "c", "constitution.yaml", "Constitution file path")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "axio-journal.db", "Journal database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// OutputFormat exposes the --output flag value for error rendering.
func OutputFormat() string {
	return outputFormat
}

// newLogger builds the CLI logger; debug level when --verbose is set.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConstitution reads and validates the --constitution file.
func loadConstitution() (*constitution.Constitution, error) {
	c, err := constitution.Load(constitutionPath)
	if err != nil {
		return nil, clierror.ConstitutionInvalid(constitutionPath, err)
	}
	return c, nil
}

// formatOutput handles output formatting based on the --output flag.
// Table format is handled by each command.
func formatOutput(w io.Writer, data any) error {
	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case "yaml":
		out, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(out))
		return nil
	default:
		return nil
	}
}
