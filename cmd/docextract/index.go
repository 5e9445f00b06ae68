package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/73ai/docextract/internal/index"
	"github.com/73ai/docextract/internal/metrics"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the documentation index",
	Long: `Manage the persistent index of extracted documentation used by the query
and watch commands. The index must be built before it can be queried.`,
}

var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild [path...]",
	Short: "Rebuild the index from scratch",
	Long: `Clear the index and extract every supported source file under the given
paths again. If no paths are specified, the current directory is used.

EXAMPLES:
    docextract index rebuild                  # Rebuild for the current directory
    docextract index rebuild ./src ./lib      # Rebuild for specific directories
    docextract index rebuild --progress .     # Show a progress bar`,
	RunE: runRebuildIndex,
}

var updateIndexCmd = &cobra.Command{
	Use:   "update [path...]",
	Short: "Re-extract changed files",
	Long: `Update the index for the given paths, extracting only files whose size,
modification time or content changed since they were indexed. Files that
were deleted are removed from the index.

EXAMPLES:
    docextract index update                   # Update for the current directory
    docextract index update ./src`,
	RunE: runUpdateIndex,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current status of the index",
	Long: `Display information about the index: its location and size, the number of
indexed files and declarations, documentation coverage per language and the
most recent build.

EXAMPLES:
    docextract index status                   # Human readable status
    docextract index status --format json     # Status as JSON`,
	RunE: runIndexStatus,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all index data",
	Long: `Remove every record from the index. The index must be rebuilt before it
can be queried again.

EXAMPLES:
    docextract index clear                    # Clear after confirmation
    docextract index clear --force            # Clear without confirmation`,
	RunE: runClearIndex,
}

var indexForce bool

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(rebuildIndexCmd)
	indexCmd.AddCommand(updateIndexCmd)
	indexCmd.AddCommand(statusCmd)
	indexCmd.AddCommand(clearCmd)

	statusCmd.Flags().StringP("format", "f", "text", "Output format (text, json, yaml)")
	clearCmd.Flags().BoolVar(&indexForce, "force", false, "Clear without confirmation")
}

func runRebuildIndex(cmd *cobra.Command, args []string) error {
	return buildIndex(cmd.Context(), args, true)
}

func runUpdateIndex(cmd *cobra.Command, args []string) error {
	return buildIndex(cmd.Context(), args, false)
}

func buildIndex(ctx context.Context, args []string, rebuild bool) error {
	paths := args
	if len(paths) == 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		paths = []string{pwd}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("path does not exist: %s", path)
		}
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

	var stats *index.BuildStats
	if rebuild {
		fmt.Fprintf(os.Stderr, "Rebuilding index for %s\n", strings.Join(paths, ", "))
		stats, err = builder.RebuildIndex(ctx, paths...)
	} else {
		fmt.Fprintf(os.Stderr, "Updating index for %s\n", strings.Join(paths, ", "))
		stats, err = builder.BuildIndex(ctx, paths...)
	}
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	printBuildStats(os.Stdout, stats, config.Verbose)

	if config.MetricsFile != "" {
		return m.WriteTextfile(config.MetricsFile)
	}
	return nil
}

// newBuilder creates an incremental builder over the configured file
// selection and extraction settings
func newBuilder(ctx context.Context, store *index.Store, m *metrics.Metrics) (*index.Builder, error) {
	progress := newProgressBar(config.Progress, "Indexing")
	collector, err := newCollector(ctx, config, m, nil)
	if err != nil {
		return nil, err
	}

	builderConfig := index.DefaultBuilderConfig()
	builderConfig.Workers = config.Workers
	builderConfig.ReportProgress = config.Verbose && progress == nil
	builderConfig.Progress = progress.Callback()
	builderConfig.Logger = slog.Default()
	return index.NewBuilder(store, collector, builderConfig), nil
}

func printBuildStats(w io.Writer, stats *index.BuildStats, verbose bool) {
	fmt.Fprintf(w, "Index %s build %s completed in %v\n", stats.Mode, stats.RunID, stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Files discovered: %d\n", stats.FilesDiscovered)
	fmt.Fprintf(w, "  Files extracted:  %d\n", stats.FilesProcessed)
	fmt.Fprintf(w, "  Files unchanged:  %d\n", stats.FilesSkipped)
	fmt.Fprintf(w, "  Files removed:    %d\n", stats.FilesRemoved)
	fmt.Fprintf(w, "  Declarations:     %d (%d documented)\n", stats.Declarations, stats.Documented)

	if stats.FilesErrored > 0 {
		fmt.Fprintf(w, "  Files with errors: %d\n", stats.FilesErrored)
		if verbose {
			for _, buildErr := range stats.Errors {
				fmt.Fprintf(w, "    %s: %s\n", buildErr.FilePath, buildErr.Error)
			}
		}
	}

	if verbose && stats.Duration > 0 {
		fmt.Fprintf(w, "  Files/second:     %.1f\n", float64(stats.FilesProcessed)/stats.Duration.Seconds())
	}
}

// indexStatus is the machine readable form of `index status`
type indexStatus struct {
	Path     string            `json:"path" yaml:"path"`
	DiskSize int64             `json:"disk_size" yaml:"disk_size"`
	Coverage float64           `json:"coverage" yaml:"coverage"`
	Index    *index.IndexStats `json:"index" yaml:"index"`
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	status := indexStatus{
		Path:     indexPath(),
		DiskSize: stats.Storage.TotalSize,
		Coverage: stats.Coverage(),
		Index:    stats,
	}

	switch config.Format {
	case "json":
		return writeJSON(os.Stdout, status)
	case "yaml", "yml":
		return writeYAML(os.Stdout, status)
	case "text", "txt":
		printIndexStatus(os.Stdout, status)
		return nil
	default:
		return fmt.Errorf("unsupported status format %q (want text, json or yaml)", config.Format)
	}
}

func printIndexStatus(w io.Writer, status indexStatus) {
	stats := status.Index

	fmt.Fprintf(w, "Index location: %s\n", status.Path)
	fmt.Fprintf(w, "Index size:     %s\n", formatBytes(status.DiskSize))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Files indexed:  %d (%d failed)\n", stats.Files, stats.Failed)
	fmt.Fprintf(w, "Declarations:   %d\n", stats.Declarations)
	fmt.Fprintf(w, "Documented:     %d (%.1f%%)\n", stats.Documented, status.Coverage*100)
	fmt.Fprintf(w, "Warnings:       %d\n", stats.Warnings)

	if build := stats.LastBuild; build != nil {
		fmt.Fprintf(w, "Last build:     %s %s at %s (%s ago)\n",
			build.Mode,
			build.RunID,
			build.FinishedAt.Format("2006-01-02 15:04:05"),
			time.Since(build.FinishedAt).Round(time.Second))
	} else {
		fmt.Fprintln(w, "Last build:     never")
	}

	if len(stats.Languages) == 0 {
		return
	}
	languages := make([]string, 0, len(stats.Languages))
	for lang := range stats.Languages {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Languages:")
	for _, lang := range languages {
		count := stats.Languages[lang]
		fmt.Fprintf(w, "  %-12s %4d files (%.1f%%)\n", lang, count, float64(count)/float64(stats.Files)*100)
	}
}

func runClearIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !indexForce {
		fmt.Fprint(os.Stderr, "This will permanently delete all index data. Continue? (y/N): ")
		response, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(os.Stderr, "Operation cancelled.")
			return nil
		}
	}

	store, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	paths, err := store.Paths(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Cleared index data for %d files\n", len(paths))
	return nil
}

func indexPath() string {
	if config.IndexPath != "" {
		return config.IndexPath
	}
	return defaultIndexPath()
}

// openIndex opens the on-disk index, creating it when missing
func openIndex(ctx context.Context) (*index.Store, error) {
	path := indexPath()
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	opts := index.DefaultBadgerOptions(path)
	opts.Logger = slog.Default()
	store, err := index.OpenStore(ctx, path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open index at %s: %w", path, err)
	}
	return store, nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func writeYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}
