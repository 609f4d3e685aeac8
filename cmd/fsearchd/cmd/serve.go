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

	"github.com/fsearchd/fsearchd/internal/daemon"
	"github.com/fsearchd/fsearchd/internal/index"
	"github.com/fsearchd/fsearchd/internal/keywords"
	"github.com/fsearchd/fsearchd/internal/output"
	"github.com/fsearchd/fsearchd/internal/response"
	"github.com/fsearchd/fsearchd/internal/search"
	"github.com/fsearchd/fsearchd/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Run the background search daemon over a Unix socket",
		Long: `Serve keeps the index store, query engine, and live watcher open in
one process, and exposes search/status over a Unix-socket JSON-RPC 2.0
service so repeated CLI searches skip the cost of reopening the bleve
index on every invocation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runServe(ctx, path, socketPath)
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", "", "Unix socket path (default: ~/.fsearchd/daemon.sock)")
	return cmd
}

// fsearchHandler adapts the long-lived search.Engine, the core stack's
// store, and the watcher to daemon.RequestHandler.
type fsearchHandler struct {
	rootPath string
	engine   *search.Engine
	cs       *coreStack
	hw       *watcher.HybridWatcher
}

func (h *fsearchHandler) HandleSearch(_ context.Context, params daemon.SearchParams) (*response.SearchResponse, error) {
	req := search.DefaultRequest(params.Query)
	if params.Limit > 0 {
		req.Limit = params.Limit
	}
	req.Offset = params.Offset
	req.Highlight = params.Highlight
	return h.engine.Search(req)
}

func (h *fsearchHandler) GetStatus() daemon.StatusResult {
	status := daemon.StatusResult{
		RootPath:      h.rootPath,
		WatcherStatus: "stopped",
	}
	if count, err := h.cs.store.DocCount(); err == nil {
		status.TotalDocs = int(count)
	}
	if h.hw != nil && h.hw.IsHealthy() {
		status.WatcherStatus = "running"
	}
	return status
}

func runServe(ctx context.Context, path, socketPath string) error {
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

	daemonCfg := daemon.DefaultConfig()
	if socketPath != "" {
		daemonCfg.SocketPath = socketPath
	}
	if err := daemonCfg.EnsureDir(); err != nil {
		return fmt.Errorf("prepare daemon dir: %w", err)
	}
	if err := daemonCfg.Validate(); err != nil {
		return fmt.Errorf("invalid daemon config: %w", err)
	}

	w := output.New(os.Stdout)
	w.Statusf("", "Serving %s on %s", absRoot, daemonCfg.SocketPath)

	engine := search.New(cs.store, keywords.New())
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

	handler := &fsearchHandler{rootPath: absRoot, engine: engine, cs: cs, hw: hw}

	srv, err := daemon.NewServer(daemonCfg.SocketPath)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	srv.SetHandler(handler)

	group, gctx := errgroup.WithContext(ctx)

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
		_, err := cs.scanner.Scan(gctx, absRoot)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		coord.DrainPendingScanEvents(gctx)
		return nil
	})

	group.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
