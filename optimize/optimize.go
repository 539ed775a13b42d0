// Package optimize recompresses the raster media of a presentation.
package optimize

import (
	"context"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/observability"
	"github.com/wudi/pptxkit/opc"
)

// FormatPolicy decides what happens when the smallest candidate is in a
// different format from the part it replaces.
type FormatPolicy int

const (
	// FormatRename writes the payload under a part name with the matching
	// extension and rewrites every relationship and content type entry
	// that named the old part.
	FormatRename FormatPolicy = iota
	// FormatKeep only tries the format the part's extension declares, so
	// labels never change. Lossless PNG stays reserved for icons and
	// diagrams: a photo stored as PNG is left as it is.
	FormatKeep
	// FormatInPlace writes any format under the original part name. The
	// extension and content type may then disagree with the payload.
	FormatInPlace
)

func (p FormatPolicy) String() string {
	switch p {
	case FormatKeep:
		return "keep"
	case FormatInPlace:
		return "in-place"
	}
	return "rename"
}

// ParseFormatPolicy parses the String form of a policy.
func ParseFormatPolicy(s string) (FormatPolicy, error) {
	switch strings.ToLower(s) {
	case "", "rename":
		return FormatRename, nil
	case "keep":
		return FormatKeep, nil
	case "in-place", "inplace":
		return FormatInPlace, nil
	}
	return 0, fmt.Errorf("optimize: unknown format policy %q", s)
}

type Config struct {
	Quality        int     // 1-100, default 80
	FlatQuality    int     // quality ceiling for icons and diagrams, default 70
	MaxDimension   int     // longest side in pixels, default 1600
	MinSavingRatio float64 // a candidate must be smaller than ratio*original, default 0.95
	BatchSize      int     // images processed concurrently, default 5
	Policy         FormatPolicy

	// Cache memoizes outcomes across runs. Nil disables caching.
	Cache *Cache

	Logger observability.Logger
}

// Defaults.
const (
	DefaultQuality        = 80
	DefaultFlatQuality    = 70
	DefaultMaxDimension   = 1600
	DefaultMinSavingRatio = 0.95
	DefaultBatchSize      = 5
)

func (c Config) withDefaults() Config {
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = DefaultQuality
	}
	if c.FlatQuality <= 0 || c.FlatQuality > 100 {
		c.FlatQuality = DefaultFlatQuality
	}
	if c.MaxDimension <= 0 {
		c.MaxDimension = DefaultMaxDimension
	}
	if c.MinSavingRatio <= 0 || c.MinSavingRatio > 1 {
		c.MinSavingRatio = DefaultMinSavingRatio
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	c.Logger = observability.OrNop(c.Logger)
	return c
}

type Optimizer struct {
	config Config
}

func New(config Config) *Optimizer {
	return &Optimizer{config: config.withDefaults()}
}

// Progress is reported once per batch, before the batch starts.
type Progress struct {
	Done  int // images finished so far
	Total int
	Files []string // parts in the starting batch
}

type ProgressFunc func(Progress)

// Run recompresses every raster media part of tx. Images are processed in
// concurrent batches of Config.BatchSize; results are applied in archive
// order once each batch finishes, so output does not depend on scheduling.
// Per-image failures are recorded in the report and leave the part
// unchanged. Only cancellation returns an error.
func (o *Optimizer) Run(ctx context.Context, tx archive.Store, progress ProgressFunc) (*Report, error) {
	cfg := o.config
	pres := opc.FindPresentation(tx)
	parts := archive.Paths(tx, archive.And(
		archive.InDir(opc.PartDir(pres, opc.DirMedia)),
		IsRaster))

	report := &Report{Found: len(parts)}
	renames := make(map[string]string)
	for start := 0; start < len(parts); start += cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := parts[start:min(start+cfg.BatchSize, len(parts))]
		if progress != nil {
			progress(Progress{Done: start, Total: len(parts), Files: batch})
		}

		inputs := make([][]byte, len(batch))
		for i, part := range batch {
			inputs[i], _ = tx.Get(part)
		}
		results := make([]FileResult, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.BatchSize)
		for i := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = o.process(batch[i], inputs[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i := range results {
			o.apply(tx, &results[i], renames)
			report.add(results[i])
		}
	}
	if len(renames) > 0 {
		if err := o.relabel(tx, renames); err != nil {
			return nil, err
		}
	}
	if progress != nil && len(parts) > 0 {
		progress(Progress{Done: len(parts), Total: len(parts)})
	}

	cfg.Logger.Info("recompressed media",
		observability.Int("found", report.Found),
		observability.Int("compressed", report.Compressed),
		observability.Int("failed", report.Failed),
		observability.Int64("saved_bytes", report.SavedBytes))
	return report, nil
}

// apply writes an accepted result into tx according to the format policy.
func (o *Optimizer) apply(tx archive.Store, r *FileResult, renames map[string]string) {
	if r.data == nil {
		return
	}
	r.NewPart = r.Part
	if o.config.Policy == FormatRename && formatOfExt(r.Part) != r.Chosen {
		r.NewPart = freeName(tx, r.Part, extOf(r.Chosen))
		tx.Remove(r.Part)
		renames[r.Part] = r.NewPart
		o.config.Logger.Debug("renamed media part",
			observability.String("from", r.Part),
			observability.String("to", r.NewPart))
	}
	tx.Set(r.NewPart, r.data)
	r.data = nil
}

// freeName swaps the extension of part for ext, adding a numeric suffix
// when that name is taken.
func freeName(src archive.Reader, part, ext string) string {
	base := strings.TrimSuffix(part, path.Ext(part))
	name := base + "." + ext
	for i := 2; src.Has(name); i++ {
		name = fmt.Sprintf("%s-%d.%s", base, i, ext)
	}
	return name
}

// relabel points every relationship at renamed parts and fixes the
// content types manifest.
func (o *Optimizer) relabel(tx archive.Store, renames map[string]string) error {
	order := slices.Sorted(maps.Keys(renames))
	for _, relsPath := range archive.Paths(tx, opc.IsRelsPath) {
		owner, _ := opc.OwnerOf(relsPath)
		rels, err := opc.LoadRelationships(tx, owner)
		if err != nil {
			o.config.Logger.Warn("cannot retarget relationships",
				observability.String("part", relsPath),
				observability.Error("error", err))
			continue
		}
		n := 0
		for _, from := range order {
			n += rels.Retarget(from, renames[from])
		}
		if n > 0 {
			rels.Save(tx)
		}
	}

	ct, err := opc.LoadContentTypes(tx)
	if err != nil {
		return fmt.Errorf("optimize: relabel content types: %w", err)
	}
	for _, from := range order {
		to := renames[from]
		ext := strings.TrimPrefix(path.Ext(to), ".")
		mime := opc.ImageContentTypes[ext]
		ct.EnsureDefault(ext, mime)
		ct.RenameOverride(from, to, mime)
	}
	ct.Save(tx)
	return nil
}
