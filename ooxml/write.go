package ooxml

import (
	"bytes"
	"io"
	"strings"
)

// Bytes serializes the document.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	_ = d.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo serializes the document to w.
func (d *Document) WriteTo(w io.Writer) error {
	sw := &stickyWriter{w: w}
	for i, n := range d.Nodes {
		writeNode(sw, n)
		// Keep the declaration on its own line the way Office writes it.
		if pi, ok := n.(ProcInst); ok && pi.Target == "xml" && i+1 < len(d.Nodes) {
			sw.str("\r\n")
		}
	}
	return sw.err
}

// Bytes serializes a single element subtree.
func (e *Element) Bytes() []byte {
	var buf bytes.Buffer
	sw := &stickyWriter{w: &buf}
	writeNode(sw, e)
	return buf.Bytes()
}

func writeNode(w *stickyWriter, n Node) {
	switch t := n.(type) {
	case *Element:
		name := t.QName()
		w.str("<")
		w.str(name)
		for _, a := range t.Attrs {
			w.str(" ")
			w.str(joinQName(a.Name))
			w.str(`="`)
			w.str(escapeAttr(a.Value))
			w.str(`"`)
		}
		if len(t.Children) == 0 {
			w.str("/>")
			return
		}
		w.str(">")
		for _, c := range t.Children {
			writeNode(w, c)
		}
		w.str("</")
		w.str(name)
		w.str(">")
	case Text:
		w.str(escapeText(string(t)))
	case Comment:
		w.str("<!--")
		w.str(string(t))
		w.str("-->")
	case ProcInst:
		w.str("<?")
		w.str(t.Target)
		if t.Inst != "" {
			w.str(" ")
			w.str(strings.TrimLeft(t.Inst, " \t\r\n"))
		}
		w.str("?>")
	case Directive:
		w.str("<!")
		w.str(string(t))
		w.str(">")
	}
}

var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\r", "&#xD;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		`"`, "&quot;",
		"\n", "&#xA;",
		"\r", "&#xD;",
		"\t", "&#x9;",
	)
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }

type stickyWriter struct {
	w   io.Writer
	err error
}

func (s *stickyWriter) str(v string) {
	if s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.w, v)
}
