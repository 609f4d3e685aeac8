package cmd

import (
	"log/slog"

	"github.com/fsearchd/fsearchd/internal/logging"
)

// setupLogging builds the process-wide file-backed logger, honoring
// --debug. Callers install the returned logger with slog.SetDefault
// and must call cleanup before exit.
func setupLogging() (*slog.Logger, func(), error) {
	cfg := logging.DefaultConfig()
	if logLevel() == slog.LevelDebug {
		cfg.Level = "debug"
	}
	return logging.Setup(cfg)
}
