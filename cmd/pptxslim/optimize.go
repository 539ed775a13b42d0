package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wudi/pptxkit/pipeline"
)

var optimizeFlags struct {
	output       string
	quality      int
	maxDimension int
	policy       string
	keepHidden   bool
	noPrune      bool
	noImages     bool
	progress     bool
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize <input.pptx>",
	Short: "Write a smaller copy of a presentation",
	Long: `Removes hidden slides, prunes parts nothing references and recompresses
images. Without -o the result is written next to the input as <name>.min.pptx.`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimize,
}

func init() {
	f := optimizeCmd.Flags()
	f.StringVarP(&optimizeFlags.output, "output", "o", "", "Output file")
	f.IntVarP(&optimizeFlags.quality, "quality", "q", 0, "Image quality 1-100 (default 80)")
	f.IntVar(&optimizeFlags.maxDimension, "max-dimension", 0, "Longest image side in pixels (default 1600)")
	f.StringVar(&optimizeFlags.policy, "policy", "", "Format change policy: rename, keep or in-place")
	f.BoolVar(&optimizeFlags.keepHidden, "keep-hidden", false, "Keep hidden slides")
	f.BoolVar(&optimizeFlags.noPrune, "no-prune", false, "Do not remove unused parts")
	f.BoolVar(&optimizeFlags.noImages, "no-images", false, "Do not recompress images")
	f.BoolVarP(&optimizeFlags.progress, "progress", "p", false, "Print progress to stderr")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	in := args[0]
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("quality") {
		cfg.Images.Quality = optimizeFlags.quality
	}
	if flags.Changed("max-dimension") {
		cfg.Images.MaxDimension = optimizeFlags.maxDimension
	}
	if flags.Changed("policy") {
		cfg.Images.Policy = optimizeFlags.policy
	}
	if flags.Changed("keep-hidden") {
		cfg.KeepHidden = optimizeFlags.keepHidden
	}
	if flags.Changed("no-prune") {
		cfg.SkipPrune = optimizeFlags.noPrune
	}
	if flags.Changed("no-images") {
		cfg.SkipImages = optimizeFlags.noImages
	}
	if optimizeFlags.progress {
		stderr := cmd.ErrOrStderr()
		cfg.Progress = func(e pipeline.Event) {
			fmt.Fprintf(stderr, "[%3d%%] %s: %s\n", e.Percent, e.Stage, e.Message)
		}
	}

	data, err := readInput(in)
	if err != nil {
		return err
	}
	res, err := pipeline.New(cfg).Run(cmd.Context(), in, data)
	if err != nil {
		return err
	}

	out := optimizeFlags.output
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".min.pptx"
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	printSummary(cmd, out, res)
	return nil
}

func printSummary(cmd *cobra.Command, out string, res *pipeline.Result) {
	w := cmd.OutOrStdout()
	s := res.Stats
	if saved := s.Saved(); saved > 0 {
		pct := float64(saved) / float64(s.OriginalSize) * 100
		fmt.Fprintf(w, "%s: %s -> %s (saved %s, %.1f%%)\n", out,
			humanize.Bytes(uint64(s.OriginalSize)), humanize.Bytes(uint64(s.CompressedSize)),
			humanize.Bytes(uint64(saved)), pct)
	} else {
		fmt.Fprintf(w, "%s: %s -> %s (already optimal)\n", out,
			humanize.Bytes(uint64(s.OriginalSize)), humanize.Bytes(uint64(s.CompressedSize)))
	}
	if res.Hidden != nil && len(res.Hidden.Removed) > 0 {
		fmt.Fprintf(w, "  hidden slides removed: %d\n", len(res.Hidden.Removed))
	}
	if res.Prune != nil && res.Prune.Total() > 0 {
		fmt.Fprintf(w, "  unused parts removed:  %d\n", res.Prune.Total())
	}
	if res.Prune != nil {
		for _, warn := range res.Prune.Warnings {
			fmt.Fprintf(w, "  kept all %s: %v\n", warn.Class, warn)
		}
	}
	if img := res.Images; img != nil && img.Found > 0 {
		fmt.Fprintf(w, "  images recompressed:   %d of %d (saved %s)\n",
			img.Compressed, img.Found, humanize.Bytes(uint64(img.SavedBytes)))
		if img.Failed > 0 {
			fmt.Fprintf(w, "  images left unchanged after errors: %d\n", img.Failed)
		}
	}
	if n := len(res.Skipped); n > 0 {
		fmt.Fprintf(w, "  unreadable parts skipped: %d (use --verbose for details)\n", n)
	}
	fmt.Fprintf(w, "  run %s in %s\n", res.RunID, s.Elapsed.Round(time.Millisecond))
}
