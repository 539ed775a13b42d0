// Package opc implements the Open Packaging Conventions layer of a
// presentation: relationship files, the content-types manifest and the
// well-known part locations.
package opc

import (
	"net/url"
	"path"
	"strings"

	"github.com/wudi/pptxkit/archive"
)

const (
	ContentTypesPath = archive.ContentTypesName
	RootRelsPath     = "_rels/.rels"
	PresentationPath = "ppt/presentation.xml"

	relsDir    = "_rels"
	relsSuffix = ".rels"
)

// Normalize converts a part name or target to the archive path form.
func Normalize(name string) string { return archive.Normalize(name) }

// RelsPath returns the relationship part for part: dir(part)/_rels/base(part).rels.
// The package itself (part "") owns "_rels/.rels".
func RelsPath(part string) string {
	part = archive.Normalize(part)
	dir, base := path.Split(part)
	return dir + relsDir + "/" + base + relsSuffix
}

// OwnerOf is the inverse of RelsPath. ok is false when relsPath is not a
// relationship part.
func OwnerOf(relsPath string) (owner string, ok bool) {
	relsPath = archive.Normalize(relsPath)
	if !strings.HasSuffix(relsPath, relsSuffix) {
		return "", false
	}
	dir, base := path.Split(relsPath)
	dir = strings.TrimSuffix(dir, "/")
	if path.Base(dir) != relsDir {
		return "", false
	}
	parent := path.Dir(dir)
	name := strings.TrimSuffix(base, relsSuffix)
	if parent == "." {
		return name, true
	}
	return parent + "/" + name, true
}

// IsRelsPath reports whether name is a relationship part.
func IsRelsPath(name string) bool {
	_, ok := OwnerOf(name)
	return ok
}

// ResolveTarget resolves a relationship target against the directory of the
// owning part (not the directory of the .rels file) and returns an archive
// path. Absolute targets ("/ppt/...") are taken from the package root.
func ResolveTarget(owner, target string) string {
	if strings.Contains(target, "%") {
		if unescaped, err := url.PathUnescape(target); err == nil {
			target = unescaped
		}
	}
	if i := strings.IndexAny(target, "#?"); i >= 0 {
		target = target[:i]
	}
	if strings.HasPrefix(target, "/") {
		return archive.Normalize(target)
	}
	return archive.Normalize(path.Join(path.Dir(archive.Normalize(owner)), target))
}

// RelativeTarget expresses the archive path target relative to the
// directory of owner, the form Office writes into .rels files.
func RelativeTarget(owner, target string) string {
	from := strings.Split(path.Dir(archive.Normalize(owner)), "/")
	if len(from) == 1 && from[0] == "." {
		from = nil
	}
	to := strings.Split(archive.Normalize(target), "/")
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	parts := make([]string, 0, len(from)-i+len(to)-i)
	for range from[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	return strings.Join(parts, "/")
}
