package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wudi/pptxkit/observability"
	"github.com/wudi/pptxkit/pipeline"
)

var (
	configPath string
	logFormat  string
	verbose    bool
	strict     bool
)

var rootCmd = &cobra.Command{
	Use:           "pptxslim",
	Short:         "Shrink PowerPoint presentations",
	Long:          "Removes hidden slides and unused layouts, masters, themes and media from a .pptx file, then recompresses its images.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Fail on the first unreadable part instead of skipping it")
}

func newLogger() (observability.Logger, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch logFormat {
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", logFormat)
	}
	return observability.NewSlogLogger(slog.New(h)), nil
}

// loadConfig reads --config when given and applies the flags the user set
// on top of it.
func loadConfig(cmd *cobra.Command) (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if cmd.Flags().Changed("strict") {
		cfg.Strict = strict
	}
	log, err := newLogger()
	if err != nil {
		return cfg, err
	}
	cfg.Logger = log
	return cfg, nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}
