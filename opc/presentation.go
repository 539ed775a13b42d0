package opc

import (
	"path"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/ooxml"
)

// Directories under the presentation part's directory that hold each part
// class.
const (
	DirSlides       = "slides"
	DirSlideLayouts = "slideLayouts"
	DirSlideMasters = "slideMasters"
	DirNotesSlides  = "notesSlides"
	DirTheme        = "theme"
	DirMedia        = "media"
)

// FindPresentation locates the presentation part through the package
// relationships, falling back to ppt/presentation.xml.
func FindPresentation(src archive.Reader) string {
	if data, ok := src.Get(RootRelsPath); ok {
		if rels, err := ParseRelationships("", data); err == nil {
			for _, rel := range rels.List() {
				if rel.Kind == KindOfficeDocument && rel.Target != "" && src.Has(rel.Target) {
					return rel.Target
				}
			}
		}
	}
	return PresentationPath
}

// PartDir returns the directory of a part class for the given presentation
// part, e.g. "ppt/slideLayouts".
func PartDir(presentation, class string) string {
	return archive.Normalize(path.Join(path.Dir(presentation), class))
}

// IDEntry is one entry of a presentation or master id list.
type IDEntry struct {
	ID    string
	RelID string
}

// IDList returns the entries of an id list such as "p:sldIdLst/p:sldId".
func IDList(doc *ooxml.Document, list, item string) []IDEntry {
	var out []IDEntry
	for _, el := range doc.Root().Find(list + "/" + item) {
		out = append(out, IDEntry{ID: el.AttrOr("id", ""), RelID: el.AttrOr("r:id", "")})
	}
	return out
}

// PruneIDList removes entries of the id list whose relationship id is not
// kept and returns how many were removed. list may be a path such as
// "p:custShowLst/p:custShow/p:sldLst".
func PruneIDList(doc *ooxml.Document, list, item string, keep func(relID string) bool) int {
	n := 0
	for _, l := range doc.Root().Find(list) {
		n += l.RemoveChildren(func(el *ooxml.Element) bool {
			return el.Is(item) && !keep(el.AttrOr("r:id", ""))
		})
	}
	return n
}

// Presentation id lists.
const (
	SlideIDList       = "p:sldIdLst"
	SlideIDItem       = "p:sldId"
	MasterIDList      = "p:sldMasterIdLst"
	MasterIDItem      = "p:sldMasterId"
	LayoutIDList      = "p:sldLayoutIdLst"
	LayoutIDItem      = "p:sldLayoutId"
	NotesMasterIDList = "p:notesMasterIdLst"
	NotesMasterIDItem = "p:notesMasterId"
	HandoutIDList     = "p:handoutMasterIdLst"
	HandoutIDItem     = "p:handoutMasterId"
	CustomShowList    = "p:custShowLst/p:custShow/p:sldLst"
	CustomShowItem    = "p:sld"
)

// LoadPart parses an XML part from src.
func LoadPart(src archive.Reader, part string) (*ooxml.Document, error) {
	data, ok := src.Get(part)
	if !ok {
		return nil, &ooxml.ParseError{Part: part, Err: errMissing}
	}
	return ooxml.Parse(part, data)
}

// SavePart serializes doc back to its part.
func SavePart(dst archive.Store, doc *ooxml.Document) {
	dst.Set(doc.Part, doc.Bytes())
}
