// Package validate rejects inputs that are not presentation packages before
// any optimization touches them.
package validate

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/opc"
)

// DefaultMaxSize is the largest accepted input.
const DefaultMaxSize int64 = 300 << 20

type Code string

const (
	CodeExtension   Code = "extension"
	CodeSize        Code = "size"
	CodeNotZip      Code = "not-zip"
	CodeMissingPart Code = "missing-part"
	CodeNoSlides    Code = "no-slides"
)

// ValidationError describes why an input was rejected. It is fatal: no
// part of the input has been modified.
type ValidationError struct {
	Code    Code
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return "invalid presentation: " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Input checks the name and size of an upload, opens it as a ZIP and
// checks its structure. A maxSize of zero or less uses DefaultMaxSize. An
// empty name skips the extension check.
func Input(name string, data []byte, maxSize int64) (*archive.Archive, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if name != "" && !strings.EqualFold(path.Ext(name), ".pptx") {
		return nil, &ValidationError{Code: CodeExtension, Message: fmt.Sprintf("%q is not a .pptx file", path.Base(name))}
	}
	if int64(len(data)) > maxSize {
		return nil, &ValidationError{
			Code:    CodeSize,
			Message: fmt.Sprintf("file is %s, limit is %s", humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(maxSize))),
		}
	}

	a, err := archive.Decode(data)
	if err != nil {
		var ioErr *archive.IOError
		if errors.As(err, &ioErr) && ioErr.Op == "open" {
			return nil, &ValidationError{Code: CodeNotZip, Message: "file is not a ZIP archive", Err: err}
		}
		return nil, err
	}
	if err := Package(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Package returns the first structural problem of a, or nil.
func Package(a archive.Reader) error {
	if problems := Check(a); len(problems) > 0 {
		return problems[0]
	}
	return nil
}

// Check lists every structural problem of a: the content types manifest,
// package relationships and presentation part must exist, and at least one
// slide part must be present.
func Check(a archive.Reader) []*ValidationError {
	var out []*ValidationError
	pres := opc.FindPresentation(a)
	for _, part := range []string{opc.ContentTypesPath, opc.RootRelsPath, pres} {
		if !a.Has(part) {
			out = append(out, &ValidationError{Code: CodeMissingPart, Message: "missing " + part})
		}
	}
	slides := archive.Paths(a, archive.And(
		archive.InDir(opc.PartDir(pres, opc.DirSlides)),
		archive.HasSuffix(".xml")))
	if len(slides) == 0 {
		out = append(out, &ValidationError{Code: CodeNoSlides, Message: "presentation has no slides"})
	}
	return out
}
