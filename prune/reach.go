package prune

import (
	"context"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/observability"
	"github.com/wudi/pptxkit/opc"
	"github.com/wudi/pptxkit/recovery"
)

// Reachability holds the parts of each class that the presentation root
// reaches. It is computed from the current archive state and is only valid
// until the archive changes.
type Reachability struct {
	Presentation string

	Slides  Set
	Notes   Set
	Layouts Set
	Masters Set
	Themes  Set
	Media   Set

	// Warnings lists the classes whose deletion the guard vetoed; their
	// unused members were added back to the used set.
	Warnings []*SafetyAbortWarning

	// Skipped holds parts whose relationships could not be read and so
	// contributed nothing.
	Skipped Set

	candidates map[Class][]string
}

// Used returns the reachable set for class.
func (r *Reachability) Used(class Class) Set {
	switch class {
	case ClassSlide:
		return r.Slides
	case ClassNotes:
		return r.Notes
	case ClassLayout:
		return r.Layouts
	case ClassMaster:
		return r.Masters
	case ClassTheme:
		return r.Themes
	case ClassMedia:
		return r.Media
	}
	return nil
}

// Candidates returns every part of class present in the archive, in archive
// order.
func (r *Reachability) Candidates(class Class) []string {
	return r.candidates[class]
}

// Unused returns the candidates of class that are not reachable.
func (r *Reachability) Unused(class Class) []string {
	used := r.Used(class)
	var out []string
	for _, p := range r.candidates[class] {
		if !used.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

var classDirs = map[Class]string{
	ClassSlide:  opc.DirSlides,
	ClassNotes:  opc.DirNotesSlides,
	ClassLayout: opc.DirSlideLayouts,
	ClassMaster: opc.DirSlideMasters,
	ClassTheme:  opc.DirTheme,
	ClassMedia:  opc.DirMedia,
}

func candidates(src archive.Reader, pres string, class Class) []string {
	pred := archive.InDir(opc.PartDir(pres, classDirs[class]))
	if class != ClassMedia {
		pred = archive.And(pred, archive.HasSuffix(".xml"))
	}
	return archive.Paths(src, pred)
}

// SkipFunc is called for a part whose relationships cannot be read. A nil
// return skips the part; an error aborts the analysis.
type SkipFunc func(part string, err error) error

// LayoutsUsedBySlides returns the layouts that slides reference directly.
// A layout listed only by a master is not included: masters never keep
// layouts alive.
func LayoutsUsedBySlides(res *opc.Resolver, slides Set, skip SkipFunc) (Set, error) {
	used := NewSet()
	for _, slide := range slides.Sorted() {
		layout, err := res.SlideLayoutOf(slide)
		if err != nil {
			if skip != nil {
				if err := skip(slide, err); err != nil {
					return nil, err
				}
			}
			continue
		}
		if layout != "" {
			used.Add(layout)
		}
	}
	return used, nil
}

type analyzer struct {
	ctx   context.Context
	src   archive.Reader
	res   *opc.Resolver
	cfg   Config
	reach *Reachability

	// dropped accumulates the unused parts of settled classes.
	dropped Set
}

// Analyze computes which slides, notes, layouts, masters, themes and media
// are reachable from the presentation root of src. The guard is applied per
// class as soon as that class is settled, so a vetoed class keeps the parts
// it depends on alive too. res may be nil.
func Analyze(ctx context.Context, src archive.Reader, res *opc.Resolver, cfg Config) (*Reachability, error) {
	cfg = cfg.withDefaults()
	if res == nil {
		res = opc.NewResolver(src)
	}
	pres := opc.FindPresentation(src)
	r := &Reachability{
		Presentation: pres,
		Skipped:      NewSet(),
		candidates:   make(map[Class][]string, len(classDirs)),
	}
	for class := range classDirs {
		r.candidates[class] = candidates(src, pres, class)
	}
	a := &analyzer{ctx: ctx, src: src, res: res, cfg: cfg, reach: r, dropped: NewSet()}

	steps := []struct {
		class Class
		run   func() (Set, error)
	}{
		{ClassSlide, a.slides},
		{ClassNotes, a.notes},
		{ClassLayout, a.layouts},
		{ClassMaster, a.masters},
		{ClassTheme, func() (Set, error) { return a.referenced(ClassTheme) }},
		{ClassMedia, func() (Set, error) { return a.referenced(ClassMedia) }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		used, err := step.run()
		if err != nil {
			return nil, err
		}
		a.settle(step.class, used)
	}
	return r, nil
}

func (a *analyzer) settle(class Class, used Set) {
	r := a.reach
	switch class {
	case ClassSlide:
		r.Slides = used
	case ClassNotes:
		r.Notes = used
	case ClassLayout:
		r.Layouts = used
	case ClassMaster:
		r.Masters = used
	case ClassTheme:
		r.Themes = used
	case ClassMedia:
		r.Media = used
	}
	unused := r.Unused(class)
	if w := a.cfg.guard(class, len(unused), len(r.candidates[class])); w != nil {
		a.cfg.Logger.Warn("deletion guard tripped, keeping class",
			observability.String("class", string(class)),
			observability.Int("unused", w.Unused),
			observability.Int("total", w.Total))
		r.Warnings = append(r.Warnings, w)
		for _, p := range unused {
			used.Add(p)
		}
		return
	}
	for _, p := range unused {
		a.dropped.Add(p)
	}
}

func (a *analyzer) skip(part string, err error) error {
	if a.reach.Skipped.Has(part) {
		return nil
	}
	a.reach.Skipped.Add(part)
	a.cfg.Logger.Warn("skipping part with unreadable relationships",
		observability.String("part", part),
		observability.Error("error", err))
	return recovery.Resolve(a.cfg.Recovery, a.ctx, err, recovery.Location{Part: part, Component: "prune"})
}

func (a *analyzer) targets(part string, kinds ...opc.Kind) ([]string, error) {
	out, err := a.res.Targets(part, kinds...)
	if err != nil {
		return nil, a.skip(part, err)
	}
	return out, nil
}

func (a *analyzer) slides() (Set, error) {
	targets, err := a.targets(a.reach.Presentation, opc.KindSlide)
	if err != nil {
		return nil, err
	}
	used := NewSet()
	for _, t := range targets {
		if a.src.Has(t) {
			used.Add(t)
		}
	}
	return used, nil
}

func (a *analyzer) notes() (Set, error) {
	used := NewSet()
	for _, slide := range a.reach.Slides.Sorted() {
		targets, err := a.targets(slide, opc.KindNotesSlide)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			used.Add(t)
		}
	}
	return used, nil
}

func (a *analyzer) layouts() (Set, error) {
	return LayoutsUsedBySlides(a.res, a.reach.Slides, a.skip)
}

func (a *analyzer) masters() (Set, error) {
	used := NewSet()
	for _, layout := range a.reach.Layouts.Sorted() {
		master, err := a.res.MasterOf(layout)
		if err != nil {
			if err := a.skip(layout, err); err != nil {
				return nil, err
			}
			continue
		}
		if master != "" {
			used.Add(master)
		}
	}
	return used, nil
}

// referenced returns the candidates of class that some retained part links
// to through a relationship of any type. Parts of class itself do not count
// as referrers, so a group of parts referring only to each other is
// collected. Any relationship type counts because media is also reached
// through vendor types such as hdphoto.
func (a *analyzer) referenced(class Class) (Set, error) {
	own := NewSet(a.reach.candidates[class]...)
	used := NewSet()

	owners := append([]string{""}, archive.Paths(a.src, archive.Not(opc.IsRelsPath))...)
	for _, owner := range owners {
		if own.Has(owner) || a.dropped.Has(owner) {
			continue
		}
		if owner != "" && !a.src.Has(opc.RelsPath(owner)) {
			continue
		}
		if err := a.ctx.Err(); err != nil {
			return nil, err
		}
		targets, err := a.targets(owner)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			if own.Has(t) {
				used.Add(t)
			}
		}
	}
	return used, nil
}
