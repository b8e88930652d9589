// Package cmd wires the crewbrief command-line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crewbrief/crewbrief/internal/log"
)

var (
	flagDebug    bool
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "crewbrief",
	Short: "Knowledge retrieval and advice service for event operations",
	Long: `crewbrief ingests reference manuals into searchable passages and serves
cached, rate-limited best-practice advice for incident occurrences.

Run "crewbrief serve" to start the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "emit logs as JSON")
}

// newLogger builds the process logger from the global flags. Logs go to
// stderr so command output stays clean on stdout.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagDebug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, log.Config{
		Level:     level,
		JSON:      flagJSONLogs,
		AddSource: flagDebug,
	})
}
