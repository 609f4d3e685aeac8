package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fsearchd/fsearchd/internal/output"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Scan a directory once and build its search index",
		Long: `Index walks the given directory (or the current directory if none is
given), extracting text from every supported file, tagging it with
AI-ranked keywords, and upserting the result into the full-text index.
A second run re-indexes only files whose tag cache entry is stale.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			return runIndex(ctx, path)
		},
	}
	return cmd
}

func runIndex(ctx context.Context, path string) error {
	logger, cleanup, err := setupLogging()
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	cs, err := buildCoreStack(path)
	if err != nil {
		return err
	}
	defer cs.Close()

	w := output.New(os.Stdout)
	w.Statusf("", "Indexing %s", cs.cfg.Paths.WatchPath)

	start := time.Now()
	stats, err := cs.scanner.Scan(ctx, cs.cfg.Paths.WatchPath)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	w.Successf("Indexed %d files (%d skipped, %d orphans swept, %d errors) in %s",
		stats.FilesIndexed, stats.FilesSkipped, stats.OrphansSwept, stats.Errors,
		time.Since(start).Round(10*time.Millisecond))

	return nil
}
