package ooxml

import (
	"encoding/xml"
	"strings"
)

// Namespace URIs used across presentation packages.
const (
	NSRelationships    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSPresentationML   = "http://schemas.openxmlformats.org/presentationml/2006/main"
	NSDrawingML        = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSPackageRels      = "http://schemas.openxmlformats.org/package/2006/relationships"
	NSContentTypes     = "http://schemas.openxmlformats.org/package/2006/content-types"
	NSMarkupCompat     = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	attrPrefixMarker   = "@_"
	xmlnsPrefix        = "xmlns"
	strictRelationship = "http://purl.oclc.org/ooxml/officeDocument/relationships"
	strictPresentation = "http://purl.oclc.org/ooxml/presentationml/main"
	strictDrawing      = "http://purl.oclc.org/ooxml/drawingml/main"
)

// wellKnownPrefixes lets callers write "r:id" and still match a producer
// that bound the relationships namespace to a different prefix.
var wellKnownPrefixes = map[string]string{
	"r":  NSRelationships,
	"p":  NSPresentationML,
	"a":  NSDrawingML,
	"mc": NSMarkupCompat,
}

// Strict conformance packages use purl.oclc.org URIs for the same
// vocabularies.
var strictEquivalents = map[string]string{
	strictRelationship: NSRelationships,
	strictPresentation: NSPresentationML,
	strictDrawing:      NSDrawingML,
}

func canonicalNS(uri string) string {
	if t, ok := strictEquivalents[uri]; ok {
		return t
	}
	return uri
}

// query is a parsed logical name used for attribute and element lookup.
type query struct {
	prefix string
	local  string
	uri    string
}

// parseQuery accepts "Target", "@_Target", "r:id", "@_r:id" and
// "{http://...}id".
func parseQuery(name string) query {
	name = strings.TrimPrefix(name, attrPrefixMarker)
	if strings.HasPrefix(name, "{") {
		if end := strings.Index(name, "}"); end > 0 {
			return query{uri: canonicalNS(name[1:end]), local: name[end+1:]}
		}
	}
	n := splitQName(name)
	q := query{prefix: n.Space, local: n.Local}
	if q.prefix != "" {
		q.uri = wellKnownPrefixes[q.prefix]
	}
	return q
}

// matches applies the lookup priority documented on Attr to a single name
// owned by scope. Unprefixed element names live in the default namespace;
// unprefixed attribute names live in no namespace.
func (q query) matches(scope *Element, n xml.Name, elem bool) bool {
	if n.Local != q.local {
		return false
	}
	if q.prefix == "" && q.uri == "" {
		return true
	}
	if q.prefix != "" && n.Space == q.prefix {
		return true
	}
	target := q.uri
	if target == "" {
		target = canonicalNS(scope.LookupPrefix(q.prefix))
	}
	if target == "" {
		return false
	}
	if n.Space == "" && !elem {
		return false
	}
	return canonicalNS(scope.LookupPrefix(n.Space)) == target
}

// Attr looks up an attribute by logical name. The lookup checks, in order:
//
//  1. an attribute written exactly as name ("Target", "r:id");
//  2. for a prefixed or "{uri}local" name, any attribute whose prefix binds
//     to the same namespace URI, so "r:id" finds "rel:id" when rel is bound
//     to the relationships namespace, and strict URIs match transitional;
//  3. for an unprefixed name, any attribute with that local name regardless
//     of prefix, in document order.
//
// A leading "@_" marker on name is ignored.
func (e *Element) Attr(name string) (string, bool) {
	if i := e.attrIndex(name); i >= 0 {
		return e.Attrs[i].Value, true
	}
	return "", false
}

// AttrOr returns the attribute value or def when it is absent.
func (e *Element) AttrOr(name, def string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return def
}

func (e *Element) attrIndex(name string) int {
	q := parseQuery(name)
	exact := joinQName(xml.Name{Space: q.prefix, Local: q.local})
	if q.uri == "" || q.prefix != "" {
		for i, a := range e.Attrs {
			if a.Name.Space == xmlnsPrefix {
				continue
			}
			if joinQName(a.Name) == exact {
				return i
			}
		}
	}
	for i, a := range e.Attrs {
		if a.Name.Space == xmlnsPrefix || (a.Name.Space == "" && a.Name.Local == xmlnsPrefix) {
			continue
		}
		if q.prefix == "" && q.uri == "" && a.Name.Space == "" {
			continue
		}
		if q.matches(e, a.Name, false) {
			return i
		}
	}
	return -1
}

// SetAttr updates the attribute matched by name, or appends a new one
// written as name.
func (e *Element) SetAttr(name, value string) {
	if i := e.attrIndex(name); i >= 0 {
		e.Attrs[i].Value = value
		return
	}
	e.Attrs = append(e.Attrs, xml.Attr{
		Name:  splitQName(strings.TrimPrefix(name, attrPrefixMarker)),
		Value: value,
	})
}

// RemoveAttr deletes the attribute matched by name and reports whether one
// was present.
func (e *Element) RemoveAttr(name string) bool {
	i := e.attrIndex(name)
	if i < 0 {
		return false
	}
	e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
	return true
}

// NamespaceOf resolves prefix like LookupPrefix and maps strict URIs to
// their transitional equivalents.
func (e *Element) NamespaceOf(prefix string) string {
	return canonicalNS(e.LookupPrefix(prefix))
}

// LookupPrefix resolves prefix to the namespace URI bound on e or its
// ancestors. The empty prefix resolves the default namespace.
func (e *Element) LookupPrefix(prefix string) string {
	for el := e; el != nil; el = el.parent {
		for _, a := range el.Attrs {
			if prefix == "" && a.Name.Space == "" && a.Name.Local == xmlnsPrefix {
				return a.Value
			}
			if prefix != "" && a.Name.Space == xmlnsPrefix && a.Name.Local == prefix {
				return a.Value
			}
		}
	}
	if prefix == "xml" {
		return "http://www.w3.org/XML/1998/namespace"
	}
	return ""
}
