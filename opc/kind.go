package opc

import "strings"

// Kind classifies a relationship by markers in its type URI. Producers mix
// transitional, strict and relative type URIs, so classification never
// compares whole URIs.
type Kind int

const (
	KindOther Kind = iota
	KindOfficeDocument
	KindSlide
	KindSlideLayout
	KindSlideMaster
	KindNotesSlide
	KindNotesMaster
	KindHandoutMaster
	KindTheme
	KindImage
	KindAudio
	KindVideo
	KindMedia
)

var kindNames = map[Kind]string{
	KindOther:          "other",
	KindOfficeDocument: "officeDocument",
	KindSlide:          "slide",
	KindSlideLayout:    "slideLayout",
	KindSlideMaster:    "slideMaster",
	KindNotesSlide:     "notesSlide",
	KindNotesMaster:    "notesMaster",
	KindHandoutMaster:  "handoutMaster",
	KindTheme:          "theme",
	KindImage:          "image",
	KindAudio:          "audio",
	KindVideo:          "video",
	KindMedia:          "media",
}

func (k Kind) String() string { return kindNames[k] }

// IsMedia reports whether k links to an image, audio or video payload.
func (k Kind) IsMedia() bool {
	switch k {
	case KindImage, KindAudio, KindVideo, KindMedia:
		return true
	}
	return false
}

// Markers are tested in order. The bare "/slide", "/theme" and
// "/officeDocument" markers only match at the end of the URI because they are
// prefixes of other markers or of the namespace path itself.
var containsMarkers = []struct {
	marker string
	kind   Kind
}{
	{"/slideLayout", KindSlideLayout},
	{"/slideMaster", KindSlideMaster},
	{"/notesSlide", KindNotesSlide},
	{"/notesMaster", KindNotesMaster},
	{"/handoutMaster", KindHandoutMaster},
	{"/image", KindImage},
	{"/audio", KindAudio},
	{"/video", KindVideo},
	{"/media", KindMedia},
}

func KindOf(relType string) Kind {
	for _, m := range containsMarkers {
		if strings.Contains(relType, m.marker) {
			return m.kind
		}
	}
	switch {
	case strings.HasSuffix(relType, "/officeDocument"):
		return KindOfficeDocument
	case strings.HasSuffix(relType, "/slide"):
		return KindSlide
	case strings.HasSuffix(relType, "/theme"):
		return KindTheme
	}
	return KindOther
}
