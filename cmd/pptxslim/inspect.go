package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wudi/pptxkit/pipeline"
	"github.com/wudi/pptxkit/prune"
)

var inspectJSON bool

func init() {
	cmd := &cobra.Command{
		Use:   "inspect <input.pptx>",
		Short: "Report what optimize would remove without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	cmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(cmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := readInput(args[0])
	if err != nil {
		return err
	}
	in, err := pipeline.New(cfg).Inspect(cmd.Context(), args[0], data)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if inspectJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(in)
	}

	fmt.Fprintf(w, "%s: %s, %d parts\n", args[0], humanize.Bytes(uint64(in.Size)), in.Parts)
	fmt.Fprintf(w, "  hidden slides: %d\n", len(in.Hidden))
	for _, class := range prune.Classes {
		fmt.Fprintf(w, "  %-8s %4d total, %4d unused\n", class, in.Totals[class], len(in.Unused[class]))
	}
	fmt.Fprintf(w, "  media size: %s (%s unused)\n",
		humanize.Bytes(uint64(in.MediaBytes)), humanize.Bytes(uint64(in.UnusedBytes)))
	for _, warn := range in.Warnings {
		fmt.Fprintf(w, "  guard: %v\n", warn)
	}
	if len(in.Skipped) > 0 {
		fmt.Fprintf(w, "  unreadable parts: %v\n", in.Skipped)
	}
	return nil
}
