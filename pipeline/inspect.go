package pipeline

import (
	"context"
	"fmt"

	"github.com/wudi/pptxkit/hidden"
	"github.com/wudi/pptxkit/prune"
	"github.com/wudi/pptxkit/validate"
)

// Inspection is a dry-run report: what a Run with the same settings would
// remove, computed without changing anything.
type Inspection struct {
	Size  int64
	Parts int

	// Totals counts the parts of each class present in the package.
	Totals map[prune.Class]int
	// Unused lists, per class, the parts pruning would delete.
	Unused map[prune.Class][]string
	// Hidden lists the hidden slides that would be removed first.
	Hidden []string

	MediaBytes  int64
	UnusedBytes int64

	Warnings []*prune.SafetyAbortWarning
	Skipped  []string
}

// Inspect validates data and reports what Run would remove.
func (o *Optimizer) Inspect(ctx context.Context, name string, data []byte) (*Inspection, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	a, err := validate.Input(name, data, o.cfg.MaxInputSize)
	if err != nil {
		return nil, err
	}
	strategy := o.cfg.strategy()
	in := &Inspection{
		Size:   int64(len(data)),
		Parts:  a.Len(),
		Totals: make(map[prune.Class]int),
		Unused: make(map[prune.Class][]string),
	}

	tx := a.Begin()
	defer tx.Discard()

	if !o.cfg.KeepHidden {
		rep, err := hidden.New(hidden.Config{KeepAll: true, Recovery: strategy, Logger: o.log}).Run(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("pipeline: hidden slides: %w", err)
		}
		in.Hidden = rep.Removed
		in.Skipped = append(in.Skipped, rep.Skipped...)
	}

	reach, err := prune.Analyze(ctx, tx, nil, o.cfg.pruneConfig(strategy, o.log))
	if err != nil {
		return nil, fmt.Errorf("pipeline: analyze: %w", err)
	}
	// Hidden slides are gone from tx; count them back in the slide total.
	in.Totals[prune.ClassSlide] = len(in.Hidden)
	for _, class := range prune.Classes {
		in.Totals[class] += len(reach.Candidates(class))
		if unused := reach.Unused(class); len(unused) > 0 && !o.cfg.SkipPrune {
			in.Unused[class] = unused
		}
	}
	used := reach.Used(prune.ClassMedia)
	for _, part := range reach.Candidates(prune.ClassMedia) {
		payload, _ := tx.Get(part)
		in.MediaBytes += int64(len(payload))
		if !used.Has(part) && !o.cfg.SkipPrune {
			in.UnusedBytes += int64(len(payload))
		}
	}
	in.Warnings = reach.Warnings
	in.Skipped = append(in.Skipped, reach.Skipped.Sorted()...)
	return in, nil
}
