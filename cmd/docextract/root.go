package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Config holds every setting after flags, environment and config file are merged
type Config struct {
	// Output
	Format       string `mapstructure:"format" validate:"oneof=json jsonl ndjson yaml yml markdown md text txt"`
	Output       string `mapstructure:"output"`
	Color        string `mapstructure:"color" validate:"oneof=auto always never"`
	Undocumented bool   `mapstructure:"undocumented" validate:"excluded_with=Documented"`
	Documented   bool   `mapstructure:"documented"`
	Signatures   bool   `mapstructure:"signatures"`
	Warnings     bool   `mapstructure:"warnings"`
	Summary      bool   `mapstructure:"summary"`

	// Extraction
	Lang              string   `mapstructure:"lang"`
	DocOnly           bool     `mapstructure:"doc_only"`
	Relaxed           bool     `mapstructure:"relaxed"`
	ResolveVisibility bool     `mapstructure:"resolve_visibility"`
	Grammars          []string `mapstructure:"grammars" validate:"dive,required"`

	// File selection
	Include        []string `mapstructure:"include"`
	Exclude        []string `mapstructure:"exclude"`
	MaxFileSize    int64    `mapstructure:"max_file_size" validate:"gte=0"`
	MaxDepth       int      `mapstructure:"max_depth" validate:"gte=0"`
	NoIgnore       bool     `mapstructure:"no_ignore"`
	Hidden         bool     `mapstructure:"hidden"`
	FollowSymlinks bool     `mapstructure:"follow_symlinks"`

	// Execution
	Workers     int    `mapstructure:"workers" validate:"gte=0,lte=1024"`
	Progress    bool   `mapstructure:"progress"`
	MetricsFile string `mapstructure:"metrics_file"`
	IndexPath   string `mapstructure:"index_path"`

	// Logging
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Verbose  bool   `mapstructure:"verbose"`
}

var (
	config     *Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "docextract [OPTIONS] [PATH...]",
	Short: "Extract documentation comments bound to declarations",
	Long: `docextract finds the documentation comment of every function, method, class,
interface, struct, enum, field and constant in source files, without parsing
them. It understands JavaScript, TypeScript, Java, C, C++, C#, Go, Rust and
Python, and more languages can be described in a YAML grammar file.

Paths may be files or directories; "-" reads standard input (use --lang).

EXAMPLES:
    docextract src/
    docextract --format markdown --undocumented ./pkg
    cat util.py | docextract --lang python -
    docextract --format jsonl --doc-only --output docs.jsonl .

    docextract index rebuild .
    docextract query --name 'Parse*' --kind function`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd.Flags())
		var err error
		config, err = loadConfig()
		return err
	},
	RunE: runExtract,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default .docextract.yaml in . or $HOME)")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.BoolP("verbose", "v", false, "Shorthand for --log-level debug")

	pf.String("lang", "", "Force the language of every file (required for stdin)")
	pf.Bool("doc-only", false, "Bind only doc comment variants (/**, ///, docstrings)")
	pf.Bool("relaxed", false, "Also bind comments that directly follow a statement")
	pf.Bool("resolve-visibility", false, "Apply the language default to unspecified visibility")
	pf.StringSlice("grammars", nil, "YAML files describing additional languages")

	pf.StringSlice("include", nil, "Only process files matching GLOB")
	pf.StringSlice("exclude", nil, "Skip files matching GLOB")
	pf.Int64("max-file-size", 0, "Skip files larger than SIZE bytes (0 = default limit)")
	pf.Int("max-depth", 0, "Limit directory traversal depth")
	pf.Bool("no-ignore", false, "Don't respect .gitignore and .docextractignore")
	pf.Bool("hidden", false, "Process hidden files and directories")
	pf.Bool("follow-symlinks", false, "Follow symbolic links")

	pf.IntP("workers", "j", 0, "Number of files extracted in parallel (0 = number of CPUs)")
	pf.Bool("progress", false, "Show a progress bar on terminals")
	pf.String("metrics-file", "", "Write Prometheus metrics in textfile format to FILE")
	pf.String("index-path", "", "Index directory (default ~/.cache/docextract/index)")

	addOutputFlags(rootCmd.Flags())
}

// addOutputFlags registers the flags that control rendering
func addOutputFlags(fs *pflag.FlagSet) {
	fs.StringP("format", "f", "json", "Output format (json, jsonl, yaml, markdown, text)")
	fs.StringP("output", "o", "", "Write output to FILE instead of stdout")
	fs.String("color", "auto", "When to use colors in text output (auto, always, never)")
	fs.Bool("undocumented", false, "Only show declarations without documentation")
	fs.Bool("documented", false, "Only show documented declarations")
	fs.Bool("signatures", false, "Show the declaration line")
	fs.Bool("warnings", false, "Show extraction warnings in text and markdown output")
	fs.Bool("summary", false, "Append a summary")
}

// bindFlags binds every flag of the running command to the viper key of
// the same name with dashes replaced by underscores. Binding happens per
// run because several commands define flags with the same name.
func bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		viper.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".docextract")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("DOCEXTRACT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("using config file", "path", viper.ConfigFileUsed())
	} else if configFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", configFile, err)
		os.Exit(2)
	}
}

// loadConfig decodes and validates the merged configuration
func loadConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Format = strings.ToLower(cfg.Format)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	slog.SetDefault(newLogger(&cfg))
	return &cfg, nil
}

// newLogger creates the stderr logger used by every command
func newLogger(cfg *Config) *slog.Logger {
	level := slog.LevelWarn
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func defaultIndexPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".docextract-index"
	}
	return filepath.Join(homeDir, ".cache", "docextract", "index")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
