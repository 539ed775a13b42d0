package opc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/ooxml"
)

// Relationship is one typed link from an owning part. Target is the
// normalized archive path; it is empty for external targets.
type Relationship struct {
	ID        string
	Type      string
	Kind      Kind
	Target    string
	RawTarget string
	External  bool
}

// Relationships is an editable .rels part.
type Relationships struct {
	Owner string
	doc   *ooxml.Document
}

const relsSkeleton = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
	`<Relationships xmlns="` + ooxml.NSPackageRels + `"/>`

// ParseRelationships parses the .rels part owned by owner.
func ParseRelationships(owner string, data []byte) (*Relationships, error) {
	doc, err := ooxml.Parse(RelsPath(owner), data)
	if err != nil {
		return nil, err
	}
	if !doc.Root().Is("Relationships") {
		return nil, &ooxml.ParseError{Part: RelsPath(owner), Err: fmt.Errorf("unexpected root <%s>", doc.Root().QName())}
	}
	return &Relationships{Owner: archive.Normalize(owner), doc: doc}, nil
}

// NewRelationships returns an empty relationship part for owner.
func NewRelationships(owner string) *Relationships {
	r, err := ParseRelationships(owner, []byte(relsSkeleton))
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRelationships reads the .rels part of owner from src. A missing part
// yields an empty set, not an error.
func LoadRelationships(src archive.Reader, owner string) (*Relationships, error) {
	data, ok := src.Get(RelsPath(owner))
	if !ok {
		return NewRelationships(owner), nil
	}
	return ParseRelationships(owner, data)
}

func (r *Relationships) entries() []*ooxml.Element {
	return r.doc.Root().All("Relationship")
}

func (r *Relationships) decode(el *ooxml.Element) Relationship {
	rel := Relationship{
		ID:        el.AttrOr("Id", ""),
		Type:      el.AttrOr("Type", ""),
		RawTarget: el.AttrOr("Target", ""),
	}
	rel.Kind = KindOf(rel.Type)
	rel.External = strings.EqualFold(el.AttrOr("TargetMode", ""), "External")
	if !rel.External && rel.RawTarget != "" {
		rel.Target = ResolveTarget(r.Owner, rel.RawTarget)
	}
	return rel
}

// List returns every relationship in document order.
func (r *Relationships) List() []Relationship {
	els := r.entries()
	out := make([]Relationship, 0, len(els))
	for _, el := range els {
		out = append(out, r.decode(el))
	}
	return out
}

// Len returns the number of relationships.
func (r *Relationships) Len() int { return len(r.entries()) }

// Get returns the relationship with the given id.
func (r *Relationships) Get(id string) (Relationship, bool) {
	for _, el := range r.entries() {
		if el.AttrOr("Id", "") == id {
			return r.decode(el), true
		}
	}
	return Relationship{}, false
}

// Remove drops every relationship for which drop returns true and returns
// the removed entries.
func (r *Relationships) Remove(drop func(Relationship) bool) []Relationship {
	var removed []Relationship
	r.doc.Root().RemoveChildren(func(el *ooxml.Element) bool {
		if !el.Is("Relationship") {
			return false
		}
		rel := r.decode(el)
		if drop(rel) {
			removed = append(removed, rel)
			return true
		}
		return false
	})
	return removed
}

// Retain keeps only the relationships for which keep returns true and
// returns the removed entries.
func (r *Relationships) Retain(keep func(Relationship) bool) []Relationship {
	return r.Remove(func(rel Relationship) bool { return !keep(rel) })
}

// Retarget points every internal relationship targeting from at to instead,
// keeping the relative form used by the source. It returns the number of
// entries changed.
func (r *Relationships) Retarget(from, to string) int {
	from, to = archive.Normalize(from), archive.Normalize(to)
	n := 0
	for _, el := range r.entries() {
		rel := r.decode(el)
		if rel.External || rel.Target != from {
			continue
		}
		raw := rel.RawTarget
		if strings.HasPrefix(raw, "/") {
			el.SetAttr("Target", "/"+to)
		} else {
			el.SetAttr("Target", RelativeTarget(r.Owner, to))
		}
		n++
	}
	return n
}

// Add appends a relationship with a fresh id and returns that id.
func (r *Relationships) Add(relType, target string) string {
	id := r.nextID()
	el := ooxml.NewElement("Relationship")
	el.SetAttr("Id", id)
	el.SetAttr("Type", relType)
	el.SetAttr("Target", RelativeTarget(r.Owner, target))
	r.doc.Root().Append(el)
	return id
}

func (r *Relationships) nextID() string {
	max := 0
	for _, el := range r.entries() {
		id := el.AttrOr("Id", "")
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "rId")); err == nil && n > max {
			max = n
		}
	}
	return "rId" + strconv.Itoa(max+1)
}

// Bytes serializes the relationship part.
func (r *Relationships) Bytes() []byte {
	return r.doc.Bytes()
}

// Save writes the part back to dst under RelsPath(Owner).
func (r *Relationships) Save(dst archive.Store) {
	dst.Set(RelsPath(r.Owner), r.Bytes())
}
