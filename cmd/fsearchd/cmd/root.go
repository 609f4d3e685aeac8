// Package cmd provides the CLI commands for fsearchd.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fsearchd/fsearchd/internal/profiling"
	"github.com/fsearchd/fsearchd/pkg/version"
)

var (
	cfgFile  string
	debugLog bool

	profileCPU string
	profileMem string
	profiler   = profiling.NewProfiler()
	cpuCleanup func()
)

// NewRootCmd builds the fsearchd root command. Unlike the teacher's
// "smart default" (index-then-serve-over-stdio), fsearchd has no
// standalone interactive loop to fall back into: every invocation
// names an explicit subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fsearchd",
		Short: "Local file indexer and search daemon",
		Long: `fsearchd watches a directory tree, extracts and tokenizes text,
and serves full-text search over the result. It runs as a one-shot indexer,
a foreground watcher, or a background search daemon, depending on the
subcommand.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("fsearchd version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: built-in defaults)")
	cmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug-level logging")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "write a heap profile to this file on exit")
	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	cmd.AddCommand(newIndexCmd(), newSearchCmd(), newWatchCmd(), newServeCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if profileCPU == "" {
		return nil
	}
	cleanup, err := profiler.StartCPU(profileCPU)
	if err != nil {
		return err
	}
	cpuCleanup = cleanup
	return nil
}

func stopProfiling(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			slog.Warn("failed to write heap profile", slog.String("error", err.Error()))
		}
	}
	return nil
}

func logLevel() slog.Level {
	if debugLog {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
