// Package ooxml parses OOXML parts into an order-preserving node tree and
// writes them back without disturbing prefixes, attribute order or
// namespace declarations.
package ooxml

import (
	"encoding/xml"
	"strings"
)

// Node is one of *Element, Text, Comment, ProcInst or Directive.
type Node interface {
	node()
}

// Element is an XML element. Name.Space and every Attr's Name.Space hold the
// literal prefix from the source, not a resolved namespace URI.
type Element struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []Node
	parent   *Element
}

type Text string

type Comment string

type ProcInst struct {
	Target string
	Inst   string
}

type Directive string

func (*Element) node()  {}
func (Text) node()      {}
func (Comment) node()   {}
func (ProcInst) node()  {}
func (Directive) node() {}

// Document is a parsed part: prolog nodes, the root element and anything
// trailing it, in source order.
type Document struct {
	Part  string
	Nodes []Node
}

// Root returns the document element, or nil for an empty document.
func (d *Document) Root() *Element {
	for _, n := range d.Nodes {
		if el, ok := n.(*Element); ok {
			return el
		}
	}
	return nil
}

// NewElement builds an element from a qualified name such as "p:sldId".
func NewElement(qname string) *Element {
	return &Element{Name: splitQName(qname)}
}

// QName returns the element name as written in the source.
func (e *Element) QName() string {
	return joinQName(e.Name)
}

func (e *Element) Parent() *Element { return e.parent }

// Is reports whether e matches the logical name, using the same rules as
// Attr.
func (e *Element) Is(name string) bool {
	q := parseQuery(name)
	return q.matches(e, e.Name, true)
}

// Elements returns the element children of e in order, skipping text and
// other nodes.
func (e *Element) Elements() []*Element {
	out := make([]*Element, 0, len(e.Children))
	for _, n := range e.Children {
		if el, ok := n.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// All returns every direct child matching name. The result is always a
// slice, whether the source held zero, one or many matches.
func (e *Element) All(name string) []*Element {
	q := parseQuery(name)
	var out []*Element
	for _, n := range e.Children {
		if el, ok := n.(*Element); ok && q.matches(el, el.Name, true) {
			out = append(out, el)
		}
	}
	return out
}

// First returns the first direct child matching name, or nil.
func (e *Element) First(name string) *Element {
	q := parseQuery(name)
	for _, n := range e.Children {
		if el, ok := n.(*Element); ok && q.matches(el, el.Name, true) {
			return el
		}
	}
	return nil
}

// Find walks a slash-separated path of child names, e.g.
// "p:sldIdLst/p:sldId", and returns every element at the end of it.
func (e *Element) Find(path string) []*Element {
	current := []*Element{e}
	for _, step := range strings.Split(path, "/") {
		if step == "" {
			continue
		}
		var next []*Element
		for _, el := range current {
			next = append(next, el.All(step)...)
		}
		current = next
	}
	return current
}

// Append adds child as the last child of e.
func (e *Element) Append(child Node) {
	if el, ok := child.(*Element); ok {
		el.parent = e
	}
	e.Children = append(e.Children, child)
}

// RemoveChildren drops every direct element child for which drop returns
// true, together with any whitespace-only text immediately preceding it, and
// returns how many elements were removed.
func (e *Element) RemoveChildren(drop func(*Element) bool) int {
	removed := 0
	kept := e.Children[:0]
	for _, n := range e.Children {
		if el, ok := n.(*Element); ok && drop(el) {
			removed++
			if len(kept) > 0 {
				if t, ok := kept[len(kept)-1].(Text); ok && strings.TrimSpace(string(t)) == "" {
					kept = kept[:len(kept)-1]
				}
			}
			el.parent = nil
			continue
		}
		kept = append(kept, n)
	}
	for i := len(kept); i < len(e.Children); i++ {
		e.Children[i] = nil
	}
	e.Children = kept
	return removed
}

// Text returns the concatenated character data of e's direct children.
func (e *Element) Text() string {
	var sb strings.Builder
	for _, n := range e.Children {
		if t, ok := n.(Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func splitQName(qname string) xml.Name {
	if prefix, local, ok := strings.Cut(qname, ":"); ok {
		return xml.Name{Space: prefix, Local: local}
	}
	return xml.Name{Local: qname}
}

func joinQName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// IndexOf returns the position of child among e's children, or -1.
func (e *Element) IndexOf(child Node) int {
	for i, n := range e.Children {
		if n == child {
			return i
		}
	}
	return -1
}

// InsertAt inserts child before position i; i beyond the end appends.
func (e *Element) InsertAt(i int, child Node) {
	if i < 0 {
		i = 0
	}
	if i >= len(e.Children) {
		e.Append(child)
		return
	}
	if el, ok := child.(*Element); ok {
		el.parent = e
	}
	e.Children = append(e.Children[:i+1], e.Children[i:]...)
	e.Children[i] = child
}
