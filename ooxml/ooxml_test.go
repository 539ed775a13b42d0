package ooxml

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

const presentationXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentation xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" saveSubsetFonts="1">
  <p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>
  <p:sldIdLst>
    <p:sldId id="256" r:id="rId2"/>
  </p:sldIdLst>
  <p:sldSz cx="12192000" cy="6858000"/>
  <!-- kept -->
  <a:t>Q&amp;A &lt;draft&gt;</a:t>
</p:presentation>`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse("test.xml", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestRoundTrip(t *testing.T) {
	doc := mustParse(t, presentationXML)
	again := mustParse(t, string(doc.Bytes()))
	if !Equal(doc, again) {
		t.Fatalf("round trip changed structure:\n%s", doc.Bytes())
	}
	out := string(doc.Bytes())
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`,
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`,
		`<p:sldId id="256" r:id="rId2"/>`,
		`<!-- kept -->`,
		`Q&amp;A &lt;draft&gt;`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("serialized output missing %q", want)
		}
	}
}

func TestSingleChildDecodesAsSequence(t *testing.T) {
	root := mustParse(t, presentationXML).Root()
	ids := root.Find("p:sldIdLst/p:sldId")
	if len(ids) != 1 {
		t.Fatalf("expected one sldId in a slice, got %d", len(ids))
	}
	if got := root.Find("p:notesMasterIdLst/p:notesMasterId"); got != nil {
		t.Fatalf("expected nil slice for missing path, got %v", got)
	}
}

func TestAttrUniformAccess(t *testing.T) {
	src := `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"
  xmlns:rel="http://schemas.openxmlformats.org/officeDocument/2006/relationships"
  xmlns:s="http://purl.oclc.org/ooxml/officeDocument/relationships">
  <Relationship Id="rId1" Target="slides/slide1.xml"/>
  <x rel:id="rId7" id="plain"/>
  <y s:id="rId9"/>
</Relationships>`
	root := mustParse(t, src).Root()
	rel := root.First("Relationship")
	x := root.First("x")
	y := root.First("y")

	cases := []struct {
		el   *Element
		name string
		want string
	}{
		{rel, "Target", "slides/slide1.xml"},
		{rel, "@_Target", "slides/slide1.xml"},
		{x, "id", "plain"},
		{x, "r:id", "rId7"},
		{x, "@_r:id", "rId7"},
		{x, "{" + NSRelationships + "}id", "rId7"},
		{y, "r:id", "rId9"},
		{y, "id", "rId9"},
	}
	for _, c := range cases {
		got, ok := c.el.Attr(c.name)
		if !ok || got != c.want {
			t.Errorf("%s.Attr(%q) = %q, %v; want %q", c.el.QName(), c.name, got, ok, c.want)
		}
	}
	if _, ok := rel.Attr("r:id"); ok {
		t.Errorf("unprefixed Id must not satisfy r:id")
	}
}

func TestElementMatchesDefaultNamespace(t *testing.T) {
	src := `<presentation xmlns="http://schemas.openxmlformats.org/presentationml/2006/main"><sldIdLst/></presentation>`
	root := mustParse(t, src).Root()
	if !root.Is("p:presentation") {
		t.Fatalf("default-namespace root should match p:presentation")
	}
	if root.First("p:sldIdLst") == nil {
		t.Fatalf("expected p:sldIdLst lookup to match unprefixed child")
	}
}

func TestSetAndRemoveAttr(t *testing.T) {
	root := mustParse(t, `<p:sld xmlns:p="`+NSPresentationML+`" show="1"/>`).Root()
	root.SetAttr("show", "0")
	root.SetAttr("r:new", "v")
	if v, _ := root.Attr("show"); v != "0" {
		t.Fatalf("show not updated: %q", v)
	}
	if !strings.Contains(string(root.Bytes()), `r:new="v"`) {
		t.Fatalf("new attribute not written: %s", root.Bytes())
	}
	if !root.RemoveAttr("show") || root.RemoveAttr("show") {
		t.Fatalf("RemoveAttr should succeed once")
	}
}

func TestRemoveChildren(t *testing.T) {
	root := mustParse(t, "<l>\n  <i n=\"1\"/>\n  <i n=\"2\"/>\n  <i n=\"3\"/>\n</l>").Root()
	n := root.RemoveChildren(func(el *Element) bool { return el.AttrOr("n", "") != "2" })
	if n != 2 {
		t.Fatalf("expected 2 removals, got %d", n)
	}
	if got := string(root.Bytes()); got != "<l>\n  <i n=\"2\"/>\n</l>" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestAttributeEscaping(t *testing.T) {
	root := NewElement("a:t")
	root.SetAttr("v", "a\"b<c&d\n")
	doc := &Document{Nodes: []Node{root}}
	back := mustParse(t, string(doc.Bytes()))
	if v, _ := back.Root().Attr("v"); v != "a\"b<c&d\n" {
		t.Fatalf("attribute did not survive escaping: %q", v)
	}
}

func TestParseErrors(t *testing.T) {
	for name, src := range map[string]string{
		"mismatch": "<a><b></a>",
		"unclosed": "<a><b/>",
		"empty":    "",
		"garbage":  "not xml at all",
		"tworoots": "<a/><b/>",
	} {
		_, err := Parse("ppt/bad.xml", []byte(src))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%s: expected ParseError, got %v", name, err)
			continue
		}
		if pe.Part != "ppt/bad.xml" || pe.Unwrap() == nil {
			t.Errorf("%s: ParseError missing context: %+v", name, pe)
		}
	}
}

func TestParseUTF16(t *testing.T) {
	src := `<?xml version="1.0" encoding="UTF-16"?><root a="é"/>`
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := Parse("utf16.xml", data)
	if err != nil {
		t.Fatalf("parse utf-16: %v", err)
	}
	if v, _ := doc.Root().Attr("a"); v != "é" {
		t.Fatalf("unexpected attribute %q", v)
	}
	if !strings.Contains(string(doc.Bytes()), `encoding="UTF-8"`) {
		t.Fatalf("declaration should be rewritten to UTF-8: %s", doc.Bytes())
	}
}

func TestParseLatin1(t *testing.T) {
	data := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><root a=\"caf\xe9\"/>")
	doc, err := Parse("latin1.xml", data)
	if err != nil {
		t.Fatalf("parse latin-1: %v", err)
	}
	if v, _ := doc.Root().Attr("a"); v != "café" {
		t.Fatalf("unexpected attribute %q", v)
	}
}
