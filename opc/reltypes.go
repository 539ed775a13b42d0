package opc

// Transitional relationship and content type URIs written by this package.
const (
	relBase = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"

	RelOfficeDocument = relBase + "officeDocument"
	RelSlide          = relBase + "slide"
	RelSlideLayout    = relBase + "slideLayout"
	RelSlideMaster    = relBase + "slideMaster"
	RelNotesSlide     = relBase + "notesSlide"
	RelTheme          = relBase + "theme"
	RelImage          = relBase + "image"
	RelAudio          = relBase + "audio"
	RelVideo          = relBase + "video"

	ctBase = "application/vnd.openxmlformats-officedocument.presentationml."

	CTPresentation  = ctBase + "presentation.main+xml"
	CTSlide         = ctBase + "slide+xml"
	CTSlideLayout   = ctBase + "slideLayout+xml"
	CTSlideMaster   = ctBase + "slideMaster+xml"
	CTNotesSlide    = ctBase + "notesSlide+xml"
	CTTheme         = "application/vnd.openxmlformats-officedocument.theme+xml"
	CTRelationships = "application/vnd.openxmlformats-package.relationships+xml"
)

// ImageContentTypes maps raster extensions to their MIME types.
var ImageContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
}
