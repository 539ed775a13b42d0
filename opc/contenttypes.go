package opc

import (
	"fmt"
	"path"
	"strings"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/ooxml"
)

// Override declares the content type of one exact part.
type Override struct {
	PartName    string
	ContentType string
}

// ContentTypes is an editable [Content_Types].xml manifest.
type ContentTypes struct {
	doc *ooxml.Document
}

func ParseContentTypes(data []byte) (*ContentTypes, error) {
	doc, err := ooxml.Parse(ContentTypesPath, data)
	if err != nil {
		return nil, err
	}
	if !doc.Root().Is("Types") {
		return nil, &ooxml.ParseError{Part: ContentTypesPath, Err: fmt.Errorf("unexpected root <%s>", doc.Root().QName())}
	}
	return &ContentTypes{doc: doc}, nil
}

// LoadContentTypes reads the manifest from src.
func LoadContentTypes(src archive.Reader) (*ContentTypes, error) {
	data, ok := src.Get(ContentTypesPath)
	if !ok {
		return nil, &ooxml.ParseError{Part: ContentTypesPath, Err: errMissing}
	}
	return ParseContentTypes(data)
}

func partName(name string) string {
	return archive.Normalize(name)
}

func (c *ContentTypes) Overrides() []Override {
	var out []Override
	for _, el := range c.doc.Root().All("Override") {
		out = append(out, Override{
			PartName:    partName(el.AttrOr("PartName", "")),
			ContentType: el.AttrOr("ContentType", ""),
		})
	}
	return out
}

// Defaults maps lower-cased extensions to content types.
func (c *ContentTypes) Defaults() map[string]string {
	out := make(map[string]string)
	for _, el := range c.doc.Root().All("Default") {
		out[strings.ToLower(el.AttrOr("Extension", ""))] = el.AttrOr("ContentType", "")
	}
	return out
}

// ContentTypeOf returns the declared type of part: its Override if one
// exists, else the Default for its extension. Part names compare
// case-insensitively as OPC requires.
func (c *ContentTypes) ContentTypeOf(part string) string {
	part = partName(part)
	for _, o := range c.Overrides() {
		if strings.EqualFold(o.PartName, part) {
			return o.ContentType
		}
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(part), "."))
	return c.Defaults()[ext]
}

// RemoveOverride drops the Override for part, if any.
func (c *ContentTypes) RemoveOverride(part string) bool {
	part = partName(part)
	return c.doc.Root().RemoveChildren(func(el *ooxml.Element) bool {
		return el.Is("Override") && strings.EqualFold(partName(el.AttrOr("PartName", "")), part)
	}) > 0
}

// PruneOverrides drops every Override whose part does not exist and returns
// the removed part names.
func (c *ContentTypes) PruneOverrides(exists func(string) bool) []string {
	var removed []string
	c.doc.Root().RemoveChildren(func(el *ooxml.Element) bool {
		if !el.Is("Override") {
			return false
		}
		name := partName(el.AttrOr("PartName", ""))
		if exists(name) {
			return false
		}
		removed = append(removed, name)
		return true
	})
	return removed
}

// RenameOverride moves an Override from one part name to another, setting
// contentType when it is non-empty.
func (c *ContentTypes) RenameOverride(from, to, contentType string) bool {
	from = partName(from)
	for _, el := range c.doc.Root().All("Override") {
		if strings.EqualFold(partName(el.AttrOr("PartName", "")), from) {
			el.SetAttr("PartName", "/"+partName(to))
			if contentType != "" {
				el.SetAttr("ContentType", contentType)
			}
			return true
		}
	}
	return false
}

// EnsureDefault adds a Default for ext when none exists and reports whether
// the manifest changed.
func (c *ContentTypes) EnsureDefault(ext, contentType string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if _, ok := c.Defaults()[ext]; ok {
		return false
	}
	el := ooxml.NewElement("Default")
	el.SetAttr("Extension", ext)
	el.SetAttr("ContentType", contentType)

	root := c.doc.Root()
	defaults := root.All("Default")
	if len(defaults) == 0 {
		root.InsertAt(0, el)
		return true
	}
	root.InsertAt(root.IndexOf(defaults[len(defaults)-1])+1, el)
	return true
}

func (c *ContentTypes) Bytes() []byte {
	return c.doc.Bytes()
}

// Save writes the manifest back to dst.
func (c *ContentTypes) Save(dst archive.Store) {
	dst.Set(ContentTypesPath, c.Bytes())
}
