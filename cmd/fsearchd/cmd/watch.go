package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fsearchd/fsearchd/internal/index"
	"github.com/fsearchd/fsearchd/internal/output"
	"github.com/fsearchd/fsearchd/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Index once, then keep the index current as files change",
		Long: `Watch runs the initial scan, then stays in the foreground applying
live filesystem events: events seen while the scan is still running
are buffered and replayed exactly once the scan completes, matching
the scan-then-drain-then-live sequencing the Coordinator implements.
Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runWatch(ctx, path)
		},
	}
	return cmd
}

func runWatch(ctx context.Context, path string) error {
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

	absRoot, err := filepath.Abs(cs.cfg.Paths.WatchPath)
	if err != nil {
		return fmt.Errorf("resolve root path: %w", err)
	}

	w := output.New(os.Stdout)
	w.Statusf("", "Watching %s", absRoot)

	coord := index.NewCoordinator(index.CoordinatorConfig{
		RootPath:            absRoot,
		Registry:            cs.reg,
		Indexer:             cs.indexer,
		SupportedExtensions: cs.cfg.Walker.SupportedExtensions,
	})

	opts := watcher.DefaultOptions()
	opts.IgnorePatterns = cs.cfg.Walker.CustomIgnorePatterns

	hw, err := watcher.NewHybridWatcher(opts, cs.cfg.Walker.SkipHidden)
	if err != nil {
		return fmt.Errorf("build watcher: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)

	// The watcher starts first so no filesystem event between "watcher
	// up" and "scan complete" is lost — the Coordinator buffers
	// anything it sees before DrainPendingScanEvents runs.
	if err := hw.Start(gctx, absRoot); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer func() { _ = hw.Stop() }()

	group.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case events, ok := <-hw.Events():
				if !ok {
					return nil
				}
				coord.HandleEvents(gctx, events)
			case watchErr, ok := <-hw.Errors():
				if !ok {
					continue
				}
				slog.Warn("watcher error", slog.String("error", watchErr.Error()))
			}
		}
	})

	group.Go(func() error {
		stats, err := cs.scanner.Scan(gctx, absRoot)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		w.Successf("Initial scan complete: %d files indexed, %d skipped, %d orphans swept",
			stats.FilesIndexed, stats.FilesSkipped, stats.OrphansSwept)
		coord.DrainPendingScanEvents(gctx)
		w.Status("", "Watching for changes (Ctrl+C to stop)")
		return nil
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
