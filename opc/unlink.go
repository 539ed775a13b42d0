package opc

import (
	"encoding/xml"
	"path"
	"strings"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/ooxml"
)

// hyperlinks are removed whole when their relationship goes; an action
// without its target is a jump to nowhere.
var hyperlinks = []string{"a:hlinkClick", "a:hlinkHover", "a:hlinkMouseOver"}

// Unlink drops the relationships of rels for which drop returns true, saves
// rels to dst and removes the owner's references to the dropped ids (see
// DropReferences). It returns the dropped relationships and how many
// references were removed. When the owner cannot be parsed, rels is still
// saved and the parse error is returned with the dropped relationships.
func Unlink(dst archive.Store, rels *Relationships, drop func(Relationship) bool) ([]Relationship, int, error) {
	dropped := rels.Remove(drop)
	if len(dropped) == 0 {
		return nil, 0, nil
	}
	rels.Save(dst)

	owner := rels.Owner
	if owner == "" || !isMarkup(owner) || !dst.Has(owner) {
		return dropped, 0, nil
	}
	doc, err := LoadPart(dst, owner)
	if err != nil {
		return dropped, 0, err
	}
	ids := make(map[string]bool, len(dropped))
	for _, rel := range dropped {
		ids[rel.ID] = true
	}
	n := DropReferences(doc, ids)
	if n > 0 {
		SavePart(dst, doc)
	}
	return dropped, n, nil
}

// DropReferences removes every attribute in the relationships namespace
// whose value is one of ids, and every hyperlink element whose r:id is one
// of ids. It returns the number of references removed.
func DropReferences(doc *ooxml.Document, ids map[string]bool) int {
	root := doc.Root()
	if root == nil || len(ids) == 0 {
		return 0
	}
	return dropReferences(root, ids)
}

func dropReferences(el *ooxml.Element, ids map[string]bool) int {
	n := el.RemoveChildren(func(child *ooxml.Element) bool {
		return isHyperlink(child) && ids[child.AttrOr("r:id", "")]
	})

	kept := make([]xml.Attr, 0, len(el.Attrs))
	for _, a := range el.Attrs {
		if ids[a.Value] && isRelationshipAttr(el, a) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) != len(el.Attrs) {
		el.Attrs = kept
	}

	for _, child := range el.Elements() {
		n += dropReferences(child, ids)
	}
	return n
}

func isRelationshipAttr(el *ooxml.Element, a xml.Attr) bool {
	if a.Name.Space == "" || a.Name.Space == "xmlns" {
		return false
	}
	return el.NamespaceOf(a.Name.Space) == ooxml.NSRelationships
}

func isHyperlink(el *ooxml.Element) bool {
	for _, name := range hyperlinks {
		if el.Is(name) {
			return true
		}
	}
	return false
}

func isMarkup(part string) bool {
	switch strings.ToLower(path.Ext(part)) {
	case ".xml", ".vml":
		return true
	}
	return false
}
