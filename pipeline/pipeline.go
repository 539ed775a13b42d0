// Package pipeline runs the full optimization of one presentation: input
// validation, hidden slide removal, pruning, media recompression and
// serialization.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/hidden"
	"github.com/wudi/pptxkit/observability"
	"github.com/wudi/pptxkit/optimize"
	"github.com/wudi/pptxkit/prune"
	"github.com/wudi/pptxkit/recovery"
	"github.com/wudi/pptxkit/validate"
)

// Optimizer runs the pipeline. One Optimizer may serve many runs, in
// sequence or concurrently; each run owns its archive.
type Optimizer struct {
	cfg    Config
	log    observability.Logger
	tracer observability.Tracer
	cache  *optimize.Cache
}

func New(cfg Config) *Optimizer {
	o := &Optimizer{
		cfg:    cfg,
		log:    observability.OrNop(cfg.Logger),
		tracer: cfg.Tracer,
	}
	if o.tracer == nil {
		o.tracer = observability.NopTracer()
	}
	if cfg.CacheBudget > 0 {
		o.cache = optimize.NewCache(cfg.CacheBudget)
	}
	return o
}

// Result is the output of one run.
type Result struct {
	RunID string
	Data  []byte
	Stats Stats

	Hidden *hidden.Report // nil when KeepHidden is set
	Prune  *prune.Report  // nil when SkipPrune is set
	Images *optimize.Report

	// Skipped lists the per-part errors the lenient strategy absorbed.
	Skipped []error
}

// Run optimizes the presentation in data. name is only used for the
// extension check and may be empty. On error no output is produced and
// data is untouched.
func (o *Optimizer) Run(ctx context.Context, name string, data []byte) (*Result, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	start := time.Now()
	r := &run{
		Optimizer: o,
		ctx:       ctx,
		em:        &emitter{runID: ulid.Make().String(), fn: o.cfg.Progress},
		strategy:  o.cfg.strategy(),
	}
	r.log = o.log.With(observability.String("run", r.em.runID))
	if name != "" {
		r.log = r.log.With(observability.String("file", name))
	}

	r.em.emit(Event{Stage: StageAnalysis, Message: "validating " + humanize.Bytes(uint64(len(data)))})
	a, err := r.validate(name, data)
	if err != nil {
		return nil, r.fail(err)
	}
	r.em.emit(Event{Stage: StageAnalysis, Percent: percentValidated, Message: "input accepted"})

	res := &Result{RunID: r.em.runID}
	err = archive.Update(ctx, a, func(tx *archive.Tx) error {
		var err error
		if res.Hidden, err = r.hidden(tx); err != nil {
			return err
		}
		if res.Prune, err = r.prune(tx); err != nil {
			return err
		}
		res.Images, err = r.images(tx)
		return err
	})
	if err != nil {
		return nil, r.fail(err)
	}

	r.em.emit(Event{Stage: StageFinalize, Percent: percentFinalize, Message: "writing package"})
	out, err := r.serialize(a)
	if err != nil {
		return nil, r.fail(err)
	}

	res.Data = out
	res.Stats = Stats{
		OriginalSize:   int64(len(data)),
		CompressedSize: int64(len(out)),
		Elapsed:        time.Since(start),
	}
	if res.Images != nil {
		res.Stats.MediaFound = res.Images.Found
		res.Stats.MediaSaved = res.Images.SavedBytes
	}
	if l, ok := r.strategy.(*recovery.LenientStrategy); ok {
		res.Skipped = l.Errors()
	}

	stats := res.Stats
	r.em.emit(Event{
		Stage:   StageComplete,
		Percent: percentComplete,
		Message: fmt.Sprintf("%s -> %s", humanize.Bytes(uint64(stats.OriginalSize)), humanize.Bytes(uint64(stats.CompressedSize))),
		Stats:   &stats,
	})
	r.log.Info("optimized presentation",
		observability.Int64("original_bytes", stats.OriginalSize),
		observability.Int64("compressed_bytes", stats.CompressedSize),
		observability.Int(observability.MetricMediaFound, stats.MediaFound),
		observability.Int64(observability.MetricMediaSaved, stats.MediaSaved),
		observability.Int("skipped", len(res.Skipped)),
		observability.String("elapsed", stats.Elapsed.String()))
	return res, nil
}

// run carries the per-run state shared by the stages.
type run struct {
	*Optimizer
	ctx      context.Context
	log      observability.Logger
	em       *emitter
	strategy recovery.Strategy
}

func (r *run) span(name string) (context.Context, observability.Span) {
	ctx, span := r.tracer.StartSpan(r.ctx, name)
	span.SetTag("run", r.em.runID)
	return ctx, span
}

func (r *run) fail(err error) error {
	r.em.emit(Event{Stage: StageError, Message: "optimization failed", Err: err.Error()})
	r.log.Error("optimization failed", observability.Error("error", err))
	return err
}

func (r *run) validate(name string, data []byte) (*archive.Archive, error) {
	_, span := r.span(observability.SpanValidate)
	defer span.Finish()
	a, err := validate.Input(name, data, r.cfg.MaxInputSize)
	span.SetError(err)
	return a, err
}

func (r *run) hidden(tx *archive.Tx) (*hidden.Report, error) {
	if r.cfg.KeepHidden {
		return nil, nil
	}
	ctx, span := r.span(observability.SpanHidden)
	defer span.Finish()
	rep, err := hidden.New(hidden.Config{KeepAll: true, Recovery: r.strategy, Logger: r.log}).Run(ctx, tx)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("pipeline: hidden slides: %w", err)
	}
	span.SetTag("removed", len(rep.Removed))
	r.em.emit(Event{Stage: StageAnalysis, Percent: percentHidden,
		Message: fmt.Sprintf("removed %d hidden slides", len(rep.Removed))})
	return rep, nil
}

func (r *run) prune(tx *archive.Tx) (*prune.Report, error) {
	if r.cfg.SkipPrune {
		return nil, nil
	}
	ctx, span := r.span(observability.SpanPrune)
	defer span.Finish()
	rep, err := prune.New(r.cfg.pruneConfig(r.strategy, r.log)).Run(ctx, tx)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("pipeline: prune: %w", err)
	}
	span.SetTag(observability.MetricPartsPruned, rep.Total())
	r.em.emit(Event{Stage: StageAnalysis, Percent: percentPruned,
		Message: fmt.Sprintf("removed %d unused parts", rep.Total())})
	return rep, nil
}

func (r *run) images(tx *archive.Tx) (*optimize.Report, error) {
	if r.cfg.SkipImages {
		return nil, nil
	}
	ctx, span := r.span(observability.SpanImages)
	defer span.Finish()
	progress := func(p optimize.Progress) {
		pct := percentPruned
		if p.Total > 0 {
			pct += (percentMediaDone - percentPruned) * p.Done / p.Total
		}
		msg := fmt.Sprintf("compressed %d of %d images", p.Done, p.Total)
		if len(p.Files) > 0 {
			msg = fmt.Sprintf("compressing images %d-%d of %d", p.Done+1, p.Done+len(p.Files), p.Total)
		}
		r.em.emit(Event{
			Stage:   StageMedia,
			Percent: pct,
			Message: msg,
			Current: p.Done,
			Total:   p.Total,
			Files:   p.Files,
		})
	}
	rep, err := optimize.New(r.cfg.imageConfig(r.cache, r.log)).Run(ctx, tx, progress)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("pipeline: images: %w", err)
	}
	span.SetTag(observability.MetricMediaFound, rep.Found)
	span.SetTag(observability.MetricMediaSaved, rep.SavedBytes)
	return rep, nil
}

func (r *run) serialize(a *archive.Archive) ([]byte, error) {
	_, span := r.span(observability.SpanSerialize)
	defer span.Finish()
	out, err := a.Bytes()
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("pipeline: serialize: %w", err)
	}
	return out, nil
}
