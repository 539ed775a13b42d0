package optimize

import (
	"bytes"
	"path"
	"strings"
)

// Image formats recognized by DetectFormat.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatWebP = "webp"
)

var magic = []struct {
	format string
	match  func([]byte) bool
}{
	{FormatPNG, func(b []byte) bool { return bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")) }},
	{FormatJPEG, func(b []byte) bool { return bytes.HasPrefix(b, []byte{0xff, 0xd8, 0xff}) }},
	{FormatGIF, func(b []byte) bool {
		return bytes.HasPrefix(b, []byte("GIF87a")) || bytes.HasPrefix(b, []byte("GIF89a"))
	}},
	{FormatWebP, func(b []byte) bool {
		return len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP"
	}},
	{FormatBMP, func(b []byte) bool { return bytes.HasPrefix(b, []byte("BM")) }},
}

// DetectFormat identifies an image payload by its magic bytes, ignoring
// whatever extension it was stored under. It returns "" when unknown.
func DetectFormat(data []byte) string {
	for _, m := range magic {
		if m.match(data) {
			return m.format
		}
	}
	return ""
}

// formatOfExt maps a part extension to a format name.
func formatOfExt(name string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")); ext {
	case "jpg", "jpe", "jpeg":
		return FormatJPEG
	case FormatPNG, FormatGIF, FormatBMP, FormatWebP:
		return ext
	}
	return ""
}

// extOf returns the file extension written for format.
func extOf(format string) string {
	if format == FormatJPEG {
		return "jpg"
	}
	return format
}

// IsRaster reports whether a part name has a supported raster extension.
func IsRaster(name string) bool {
	return formatOfExt(name) != ""
}
