// Package hidden removes slides that are marked hidden in their own XML.
package hidden

import (
	"context"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/observability"
	"github.com/wudi/pptxkit/ooxml"
	"github.com/wudi/pptxkit/opc"
	"github.com/wudi/pptxkit/recovery"
)

type Config struct {
	// KeepAll leaves the package untouched when every listed slide is
	// hidden instead of producing an empty presentation.
	KeepAll bool

	Recovery recovery.Strategy
	Logger   observability.Logger
}

type Filter struct {
	cfg Config
	log observability.Logger
}

func New(cfg Config) *Filter {
	return &Filter{cfg: cfg, log: observability.OrNop(cfg.Logger)}
}

// Report lists the slides a run removed.
type Report struct {
	Removed []string

	// AllHidden is set when every slide was hidden and KeepAll vetoed the
	// removal.
	AllHidden bool

	// Unlinked counts hyperlinks and r:id attributes removed from other
	// parts because they pointed at a removed slide.
	Unlinked int

	Skipped []string
}

// IsHidden reports whether a slide part is explicitly hidden: its root
// carries show="0" (or the equivalent "false").
func IsHidden(doc *ooxml.Document) bool {
	root := doc.Root()
	if root == nil {
		return false
	}
	v, ok := root.Attr("show")
	return ok && (v == "0" || v == "false")
}

// Run removes hidden slides from tx: the slide part, its relationship part,
// its presentation relationship, its slide id entry and its content type
// override. Slides whose part cannot be resolved or parsed are kept.
func (f *Filter) Run(ctx context.Context, tx archive.Store) (*Report, error) {
	report := &Report{}
	pres := opc.FindPresentation(tx)

	doc, err := opc.LoadPart(tx, pres)
	if err == nil {
		var rels *opc.Relationships
		if rels, err = opc.LoadRelationships(tx, pres); err == nil {
			return f.run(ctx, tx, report, doc, rels)
		}
	}
	if err := f.skip(ctx, report, pres, err); err != nil {
		return nil, err
	}
	return report, nil
}

func (f *Filter) run(ctx context.Context, tx archive.Store, report *Report, doc *ooxml.Document, rels *opc.Relationships) (*Report, error) {
	entries := opc.IDList(doc, opc.SlideIDList, opc.SlideIDItem)
	hidden := make(map[string]string) // rel id -> slide part
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, ok := rels.Get(e.RelID)
		if !ok || rel.External || rel.Kind != opc.KindSlide || !tx.Has(rel.Target) {
			continue
		}
		slide, err := opc.LoadPart(tx, rel.Target)
		if err != nil {
			if err := f.skip(ctx, report, rel.Target, err); err != nil {
				return nil, err
			}
			continue
		}
		if IsHidden(slide) {
			hidden[e.RelID] = rel.Target
		}
	}
	if len(hidden) == 0 {
		return report, nil
	}
	if len(hidden) == len(entries) && f.cfg.KeepAll {
		f.log.Warn("every slide is hidden, keeping them", observability.Int("slides", len(entries)))
		report.AllHidden = true
		return report, nil
	}

	ct, err := opc.LoadContentTypes(tx)
	if err != nil {
		if err := f.skip(ctx, report, opc.ContentTypesPath, err); err != nil {
			return nil, err
		}
	}

	for _, e := range entries {
		part, ok := hidden[e.RelID]
		if !ok {
			continue
		}
		tx.Remove(part)
		tx.Remove(opc.RelsPath(part))
		if ct != nil {
			ct.RemoveOverride(part)
		}
		report.Removed = append(report.Removed, part)
		f.log.Debug("removed hidden slide", observability.String("part", part))
	}
	rels.Remove(func(rel opc.Relationship) bool {
		_, ok := hidden[rel.ID]
		return ok
	})
	keep := func(id string) bool {
		_, gone := hidden[id]
		return !gone
	}
	opc.PruneIDList(doc, opc.SlideIDList, opc.SlideIDItem, keep)
	opc.PruneIDList(doc, opc.CustomShowList, opc.CustomShowItem, keep)

	rels.Save(tx)
	opc.SavePart(tx, doc)
	if ct != nil {
		ct.Save(tx)
	}
	if err := f.unlink(ctx, tx, report, opc.RelsPath(doc.Part)); err != nil {
		return nil, err
	}
	f.log.Info("removed hidden slides", observability.Int("count", len(report.Removed)))
	return report, nil
}

// unlink drops the relationships other parts hold to the removed slides,
// along with the hyperlinks and r:id attributes that used them. The
// presentation's own relationships, at presRels, were already rewritten.
func (f *Filter) unlink(ctx context.Context, tx archive.Store, report *Report, presRels string) error {
	removed := make(map[string]bool, len(report.Removed))
	for _, part := range report.Removed {
		removed[part] = true
	}
	for _, relsPath := range archive.Paths(tx, opc.IsRelsPath) {
		if err := ctx.Err(); err != nil {
			return err
		}
		owner, _ := opc.OwnerOf(relsPath)
		if relsPath == presRels || removed[owner] || !tx.Has(owner) {
			continue
		}
		rels, err := opc.LoadRelationships(tx, owner)
		if err == nil {
			var dropped []opc.Relationship
			var refs int
			dropped, refs, err = opc.Unlink(tx, rels, func(rel opc.Relationship) bool {
				return !rel.External && removed[rel.Target]
			})
			report.Unlinked += refs
			if len(dropped) > 0 {
				f.log.Debug("unlinked removed slides",
					observability.String("part", owner),
					observability.Int("relationships", len(dropped)),
					observability.Int("references", refs))
			}
		}
		if err != nil {
			if err := f.skip(ctx, report, owner, err); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Filter) skip(ctx context.Context, report *Report, part string, err error) error {
	report.Skipped = append(report.Skipped, part)
	f.log.Warn("skipping unreadable part",
		observability.String("part", part),
		observability.Error("error", err))
	return recovery.Resolve(f.cfg.Recovery, ctx, err, recovery.Location{Part: part, Component: "hidden"})
}
