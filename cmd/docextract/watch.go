package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/73ai/docextract/internal/index"
	"github.com/73ai/docextract/internal/metrics"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path...]",
	Short: "Keep the index up to date as files change",
	Long: `Bring the index up to date for the given paths, then watch them and
re-extract files as they are created, modified or deleted. Runs until
interrupted. If no paths are specified, the current directory is used.

EXAMPLES:
    docextract watch                          # Watch the current directory
    docextract watch ./src --log-level info   # Log every applied batch`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}

	store, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	builder, err := newBuilder(ctx, store, m)
	if err != nil {
		return err
	}

	stats, err := builder.BuildIndex(ctx, roots...)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	printBuildStats(os.Stderr, stats, config.Verbose)

	watcherConfig := index.DefaultWatcherConfig()
	watcherConfig.Roots = roots
	watcherConfig.Hidden = config.Hidden
	watcherConfig.NoIgnore = config.NoIgnore
	watcherConfig.DefaultIgnores = true
	watcherConfig.Logger = slog.Default()
	watcherConfig.OnBatch = func(batch index.WatchBatch) {
		slog.Info("index updated",
			"events", len(batch.Events),
			"extracted", batch.Stats.FilesProcessed,
			"removed", batch.Stats.FilesRemoved,
			"failed", batch.Stats.FilesErrored)
		if config.MetricsFile != "" {
			if err := m.WriteTextfile(config.MetricsFile); err != nil {
				slog.Warn("failed to write metrics", "error", err)
			}
		}
	}
	watcherConfig.OnError = func(err error) {
		slog.Error("watch error", "error", err)
	}

	watcher, err := index.NewWatcher(builder, watcherConfig)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Watching %d directories, press Ctrl+C to stop\n", len(watcher.WatchedDirectories()))

	<-ctx.Done()
	return watcher.Stop()
}
