package opc

import (
	"sync"

	"github.com/wudi/pptxkit/archive"
)

// Resolver memoizes parsed relationship parts for the duration of one run.
// It must be told about rewrites through Forget; it is never shared between
// runs.
type Resolver struct {
	src   archive.Reader
	mu    sync.Mutex
	cache map[string]resolved
}

type resolved struct {
	rels []Relationship
	err  error
}

func NewResolver(src archive.Reader) *Resolver {
	return &Resolver{src: src, cache: make(map[string]resolved)}
}

// Resolve returns the relationships owned by part with targets normalized
// to archive paths. A part without a .rels sibling has no relationships. A
// .rels part that fails to parse yields a *ooxml.ParseError; the result is
// cached so the failure is reported once per run.
func (r *Resolver) Resolve(part string) ([]Relationship, error) {
	part = archive.Normalize(part)
	r.mu.Lock()
	if hit, ok := r.cache[part]; ok {
		r.mu.Unlock()
		return hit.rels, hit.err
	}
	r.mu.Unlock()

	var res resolved
	if data, ok := r.src.Get(RelsPath(part)); ok {
		rels, err := ParseRelationships(part, data)
		if err != nil {
			res.err = err
		} else {
			res.rels = rels.List()
		}
	}

	r.mu.Lock()
	r.cache[part] = res
	r.mu.Unlock()
	return res.rels, res.err
}

// Targets returns the internal targets of part's relationships whose kind is
// one of kinds, in document order. With no kinds every internal target is
// returned. Duplicate targets are kept.
func (r *Resolver) Targets(part string, kinds ...Kind) ([]string, error) {
	rels, err := r.Resolve(part)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rel := range rels {
		if rel.External || rel.Target == "" {
			continue
		}
		if len(kinds) == 0 {
			out = append(out, rel.Target)
			continue
		}
		for _, k := range kinds {
			if rel.Kind == k {
				out = append(out, rel.Target)
				break
			}
		}
	}
	return out, nil
}

// SlideLayoutOf returns the layout used by slide, or "" when it has none.
func (r *Resolver) SlideLayoutOf(slide string) (string, error) {
	return r.single(slide, KindSlideLayout)
}

// MasterOf returns the master used by layout, or "" when it has none.
func (r *Resolver) MasterOf(layout string) (string, error) {
	return r.single(layout, KindSlideMaster)
}

func (r *Resolver) single(part string, kind Kind) (string, error) {
	targets, err := r.Targets(part, kind)
	if err != nil || len(targets) == 0 {
		return "", err
	}
	return targets[0], nil
}

// Forget drops the cached relationships of part. Call it after rewriting
// part's .rels.
func (r *Resolver) Forget(part string) {
	r.mu.Lock()
	delete(r.cache, archive.Normalize(part))
	r.mu.Unlock()
}

// Reset drops every cached entry.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]resolved)
	r.mu.Unlock()
}
