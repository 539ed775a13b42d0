package ooxml

import "strings"

// Equal reports whether two documents are structurally equivalent: same
// element names, attributes in the same order with the same values, same
// child order and text. Whitespace-only text nodes are ignored.
func Equal(a, b *Document) bool {
	return nodesEqual(significant(a.Nodes), significant(b.Nodes))
}

// ElementsEqual is Equal for two subtrees.
func ElementsEqual(a, b *Element) bool {
	return nodeEqual(a, b)
}

func significant(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if t, ok := n.(Text); ok && strings.TrimSpace(string(t)) == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

func nodesEqual(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !nodeEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func nodeEqual(a, b Node) bool {
	switch x := a.(type) {
	case *Element:
		y, ok := b.(*Element)
		if !ok || x.Name != y.Name || len(x.Attrs) != len(y.Attrs) {
			return false
		}
		for i := range x.Attrs {
			if x.Attrs[i] != y.Attrs[i] {
				return false
			}
		}
		return nodesEqual(significant(x.Children), significant(y.Children))
	default:
		return a == b
	}
}
