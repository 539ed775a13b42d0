package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/wudi/pptxkit/observability"
	"github.com/wudi/pptxkit/optimize"
	"github.com/wudi/pptxkit/prune"
	"github.com/wudi/pptxkit/recovery"
	"github.com/wudi/pptxkit/validate"
)

// Config controls one Optimizer. The TOML fields can be loaded from a file
// with LoadConfig; the rest are set in code.
type Config struct {
	MaxInputSize int64 `toml:"max_input_size"`

	// KeepHidden disables hidden slide removal.
	KeepHidden bool `toml:"keep_hidden"`
	// SkipPrune disables reachability pruning.
	SkipPrune bool `toml:"skip_prune"`
	// SkipImages disables media recompression.
	SkipImages bool `toml:"skip_images"`
	// Strict aborts the run on the first unreadable part instead of
	// skipping it.
	Strict bool `toml:"strict"`

	// CacheBudget sizes the recompression cache shared by every run of one
	// Optimizer. Zero disables it.
	CacheBudget int64 `toml:"cache_budget"`

	Images ImageConfig `toml:"images"`
	Prune  PruneConfig `toml:"prune"`

	Logger   observability.Logger `toml:"-"`
	Tracer   observability.Tracer `toml:"-"`
	Progress func(Event)          `toml:"-"`
}

type ImageConfig struct {
	Quality        int     `toml:"quality"`
	FlatQuality    int     `toml:"flat_quality"`
	MaxDimension   int     `toml:"max_dimension"`
	MinSavingRatio float64 `toml:"min_saving_ratio"`
	BatchSize      int     `toml:"batch_size"`
	Policy         string  `toml:"format_policy"`
}

type PruneConfig struct {
	MediaGuard   float64 `toml:"media_guard"`
	DisableGuard bool    `toml:"disable_guard"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxInputSize: validate.DefaultMaxSize,
		CacheBudget:  optimize.DefaultCacheBudget,
		Images: ImageConfig{
			Quality:        optimize.DefaultQuality,
			FlatQuality:    optimize.DefaultFlatQuality,
			MaxDimension:   optimize.DefaultMaxDimension,
			MinSavingRatio: optimize.DefaultMinSavingRatio,
			BatchSize:      optimize.DefaultBatchSize,
			Policy:         optimize.FormatRename.String(),
		},
		Prune: PruneConfig{MediaGuard: prune.DefaultMediaGuard},
	}
}

// LoadConfig reads a TOML file over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("pipeline: open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var missing *toml.StrictMissingError
		if errors.As(err, &missing) {
			return cfg, fmt.Errorf("pipeline: config %s: %s", path, missing.String())
		}
		return cfg, fmt.Errorf("pipeline: config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("pipeline: config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges. Zero values are allowed and mean default.
func (c Config) Validate() error {
	var errs []error
	if c.MaxInputSize < 0 {
		errs = append(errs, errors.New("max_input_size must not be negative"))
	}
	if q := c.Images.Quality; q < 0 || q > 100 {
		errs = append(errs, fmt.Errorf("images.quality %d out of range 1-100", q))
	}
	if q := c.Images.FlatQuality; q < 0 || q > 100 {
		errs = append(errs, fmt.Errorf("images.flat_quality %d out of range 1-100", q))
	}
	if r := c.Images.MinSavingRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("images.min_saving_ratio %g out of range 0-1", r))
	}
	if g := c.Prune.MediaGuard; g < 0 || g > 1 {
		errs = append(errs, fmt.Errorf("prune.media_guard %g out of range 0-1", g))
	}
	if _, err := optimize.ParseFormatPolicy(c.Images.Policy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) strategy() recovery.Strategy {
	if c.Strict {
		return recovery.NewStrictStrategy()
	}
	return recovery.NewLenientStrategy()
}

func (c Config) pruneConfig(s recovery.Strategy, log observability.Logger) prune.Config {
	return prune.Config{
		MediaGuard:   c.Prune.MediaGuard,
		DisableGuard: c.Prune.DisableGuard,
		Recovery:     s,
		Logger:       log,
	}
}

func (c Config) imageConfig(cache *optimize.Cache, log observability.Logger) optimize.Config {
	policy, _ := optimize.ParseFormatPolicy(c.Images.Policy)
	return optimize.Config{
		Quality:        c.Images.Quality,
		FlatQuality:    c.Images.FlatQuality,
		MaxDimension:   c.Images.MaxDimension,
		MinSavingRatio: c.Images.MinSavingRatio,
		BatchSize:      c.Images.BatchSize,
		Policy:         policy,
		Cache:          cache,
		Logger:         log,
	}
}
