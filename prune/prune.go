// Package prune deletes the parts of a presentation that are not reachable
// from its root and repairs every relationship part, id list and content
// type entry that pointed at them.
package prune

import (
	"context"
	"strings"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/observability"
	"github.com/wudi/pptxkit/opc"
	"github.com/wudi/pptxkit/recovery"
)

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Report describes one pruning pass.
type Report struct {
	Removed map[Class][]string

	// OrphanRels lists relationship parts deleted because their owner was
	// gone.
	OrphanRels []string

	// DroppedRelationships counts relationship entries removed because
	// their target no longer exists.
	DroppedRelationships int

	// DroppedReferences counts r:id style attributes and hyperlinks removed
	// from retained parts because their relationship was dropped.
	DroppedReferences int

	// DroppedIDs counts id list entries removed from the presentation and
	// masters.
	DroppedIDs int

	// Overrides lists content type overrides removed for missing parts.
	Overrides []string

	Warnings []*SafetyAbortWarning
	Skipped  []string
}

// Total returns the number of parts deleted, relationship parts included.
func (r *Report) Total() int {
	n := len(r.OrphanRels)
	for _, parts := range r.Removed {
		n += len(parts)
	}
	return n
}

type pass struct {
	ctx     context.Context
	tx      archive.Store
	res     *opc.Resolver
	cfg     Config
	report  *Report
	skipped Set
}

// Run prunes tx in one pass. Running it again on its output removes
// nothing. Failures to read one part are handled by Config.Recovery; only
// cancellation and a failing strategy return an error.
func (e *Engine) Run(ctx context.Context, tx archive.Store) (*Report, error) {
	res := opc.NewResolver(tx)
	reach, err := Analyze(ctx, tx, res, e.cfg)
	if err != nil {
		return nil, err
	}

	p := &pass{
		ctx:     ctx,
		tx:      tx,
		res:     res,
		cfg:     e.cfg,
		report:  &Report{Removed: make(map[Class][]string), Warnings: reach.Warnings},
		skipped: reach.Skipped,
	}
	for _, class := range Classes {
		for _, part := range reach.Unused(class) {
			tx.Remove(part)
			tx.Remove(opc.RelsPath(part))
			res.Forget(part)
			p.report.Removed[class] = append(p.report.Removed[class], part)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.pruneIDLists(reach.Presentation); err != nil {
		return nil, err
	}
	if err := p.sweepRelationships(); err != nil {
		return nil, err
	}
	if err := p.pruneContentTypes(); err != nil {
		return nil, err
	}
	p.report.Skipped = p.skipped.Sorted()

	e.cfg.Logger.Info("pruned package",
		observability.Int("slides", len(p.report.Removed[ClassSlide])),
		observability.Int("layouts", len(p.report.Removed[ClassLayout])),
		observability.Int("masters", len(p.report.Removed[ClassMaster])),
		observability.Int("media", len(p.report.Removed[ClassMedia])),
		observability.Int("relationships", p.report.DroppedRelationships),
		observability.Int("references", p.report.DroppedReferences),
		observability.Int("overrides", len(p.report.Overrides)))
	return p.report, nil
}

func (p *pass) skip(part string, err error) error {
	if p.skipped.Has(part) {
		return nil
	}
	p.skipped.Add(part)
	p.cfg.Logger.Warn("skipping unreadable part",
		observability.String("part", part),
		observability.Error("error", err))
	return recovery.Resolve(p.cfg.Recovery, p.ctx, err, recovery.Location{Part: part, Component: "prune"})
}

// sweepRelationships deletes relationship parts whose owner is gone and
// drops internal relationships whose target is gone, together with the
// owner's attributes and hyperlinks that named them.
func (p *pass) sweepRelationships() error {
	for _, relsPath := range archive.Paths(p.tx, opc.IsRelsPath) {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		owner, _ := opc.OwnerOf(relsPath)
		if owner != "" && !p.tx.Has(owner) {
			p.tx.Remove(relsPath)
			p.res.Forget(owner)
			p.report.OrphanRels = append(p.report.OrphanRels, relsPath)
			continue
		}
		rels, err := opc.LoadRelationships(p.tx, owner)
		if err != nil {
			if err := p.skip(owner, err); err != nil {
				return err
			}
			continue
		}
		dropped, refs, err := opc.Unlink(p.tx, rels, func(rel opc.Relationship) bool {
			return !p.exists(rel)
		})
		if len(dropped) > 0 {
			p.res.Forget(owner)
			p.report.DroppedRelationships += len(dropped)
			p.report.DroppedReferences += refs
			for _, rel := range dropped {
				p.cfg.Logger.Debug("dropped relationship",
					observability.String("part", owner),
					observability.String("id", rel.ID),
					observability.String("target", rel.Target))
			}
		}
		if err != nil {
			if err := p.skip(owner, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// exists reports whether rel still leads somewhere: external targets always
// do, internal ones only while their part is present.
func (p *pass) exists(rel opc.Relationship) bool {
	return rel.External || rel.Target == "" || p.tx.Has(rel.Target)
}

type idList struct {
	list, item string
}

var presentationLists = []idList{
	{opc.SlideIDList, opc.SlideIDItem},
	{opc.MasterIDList, opc.MasterIDItem},
	{opc.NotesMasterIDList, opc.NotesMasterIDItem},
	{opc.HandoutIDList, opc.HandoutIDItem},
	{opc.CustomShowList, opc.CustomShowItem},
}

var masterLists = []idList{
	{opc.LayoutIDList, opc.LayoutIDItem},
}

// pruneIDLists drops id list entries whose r:id no longer names a
// relationship of the same part, or names one whose target is gone. It runs
// before the relationship sweep so entries are removed whole rather than
// left without their r:id.
func (p *pass) pruneIDLists(pres string) error {
	if err := p.pruneIDListsOf(pres, presentationLists); err != nil {
		return err
	}
	masters := archive.Paths(p.tx, archive.And(
		archive.InDir(opc.PartDir(pres, opc.DirSlideMasters)),
		archive.HasSuffix(".xml")))
	for _, master := range masters {
		if err := p.pruneIDListsOf(master, masterLists); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) pruneIDListsOf(part string, lists []idList) error {
	if !p.tx.Has(part) {
		return nil
	}
	doc, err := opc.LoadPart(p.tx, part)
	if err != nil {
		return p.skip(part, err)
	}
	rels, err := p.res.Resolve(part)
	if err != nil {
		return p.skip(part, err)
	}
	ids := NewSet()
	for _, rel := range rels {
		if p.exists(rel) {
			ids.Add(rel.ID)
		}
	}
	keep := func(id string) bool { return id == "" || ids.Has(id) }

	n := 0
	for _, l := range lists {
		n += opc.PruneIDList(doc, l.list, l.item, keep)
	}
	if n > 0 {
		opc.SavePart(p.tx, doc)
		p.report.DroppedIDs += n
	}
	return nil
}

// pruneContentTypes removes overrides for parts that no longer exist. Part
// names compare case-insensitively.
func (p *pass) pruneContentTypes() error {
	ct, err := opc.LoadContentTypes(p.tx)
	if err != nil {
		return p.skip(opc.ContentTypesPath, err)
	}
	present := NewSet()
	for name := range p.tx.List(nil) {
		present.Add(strings.ToLower(name))
	}
	removed := ct.PruneOverrides(func(name string) bool {
		return present.Has(strings.ToLower(name))
	})
	if len(removed) > 0 {
		ct.Save(p.tx)
		p.report.Overrides = removed
	}
	return nil
}
