package ooxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseError reports a part that is not well-formed XML. The original
// decoder error is kept for errors.Is/As.
type ParseError struct {
	Part string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Part == "" {
		return fmt.Sprintf("parse xml: %v", e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Part, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var encodingDecl = regexp.MustCompile(`(encoding\s*=\s*)("[^"]*"|'[^']*')`)

// Parse decodes data into a Document. part is only used for error
// reporting. Parts in UTF-16 or a legacy charset are transcoded to UTF-8 and
// their declaration rewritten to match.
func Parse(part string, data []byte) (*Document, error) {
	wide := bytes.HasPrefix(data, []byte{0xFE, 0xFF}) || bytes.HasPrefix(data, []byte{0xFF, 0xFE})
	src := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(transform.Nop))
	dec := xml.NewDecoder(src)
	dec.Strict = true
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		// BOMOverride already produced UTF-8 for byte-order-marked input.
		if wide && strings.HasPrefix(strings.ToLower(label), "utf-16") {
			return input, nil
		}
		return charset.NewReaderLabel(label, input)
	}

	doc := &Document{Part: part}
	var stack []*Element
	appendNode := func(n Node) {
		if len(stack) == 0 {
			doc.Nodes = append(doc.Nodes, n)
			return
		}
		stack[len(stack)-1].Append(n)
	}

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Part: part, Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && doc.Root() != nil {
				return nil, &ParseError{Part: part, Err: errors.New("multiple root elements")}
			}
			el := &Element{Name: t.Name, Attrs: make([]xml.Attr, len(t.Attr))}
			copy(el.Attrs, t.Attr)
			appendNode(el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, &ParseError{Part: part, Err: fmt.Errorf("unexpected end element </%s>", joinQName(t.Name))}
			}
			top := stack[len(stack)-1]
			if top.Name != t.Name {
				return nil, &ParseError{Part: part, Err: fmt.Errorf("element <%s> closed by </%s>", top.QName(), joinQName(t.Name))}
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) != 0 {
					return nil, &ParseError{Part: part, Err: errors.New("character data outside root element")}
				}
				continue
			}
			appendNode(Text(string(t)))
		case xml.Comment:
			appendNode(Comment(string(t)))
		case xml.ProcInst:
			inst := string(t.Inst)
			if t.Target == "xml" {
				inst = encodingDecl.ReplaceAllString(inst, `${1}"UTF-8"`)
			}
			appendNode(ProcInst{Target: t.Target, Inst: inst})
		case xml.Directive:
			appendNode(Directive(string(t)))
		}
	}

	if len(stack) != 0 {
		return nil, &ParseError{Part: part, Err: fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].QName())}
	}
	if doc.Root() == nil {
		return nil, &ParseError{Part: part, Err: errors.New("no root element")}
	}
	return doc, nil
}
