package hidden

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/ooxml"
	"github.com/wudi/pptxkit/opc"
	"github.com/wudi/pptxkit/pptxtest"
)

func TestIsHidden(t *testing.T) {
	cases := map[string]bool{
		`<p:sld xmlns:p="` + ooxml.NSPresentationML + `" show="0"/>`:     true,
		`<p:sld xmlns:p="` + ooxml.NSPresentationML + `" show="false"/>`: true,
		`<p:sld xmlns:p="` + ooxml.NSPresentationML + `" show="1"/>`:     false,
		`<p:sld xmlns:p="` + ooxml.NSPresentationML + `"/>`:              false,
		`<p:sld xmlns:p="` + ooxml.NSPresentationML + `" p:show="0"/>`:   true,
	}
	for src, want := range cases {
		doc, err := ooxml.Parse("slide.xml", []byte(src))
		if err != nil {
			t.Fatalf("parse %s: %v", src, err)
		}
		if got := IsHidden(doc); got != want {
			t.Errorf("IsHidden(%s) = %v, want %v", src, got, want)
		}
	}
}

func TestRemoveHiddenSlide(t *testing.T) {
	p := pptxtest.New()
	m := p.AddMaster()
	l := p.AddLayout(m)
	for i := 1; i <= 5; i++ {
		if i == 3 {
			p.AddSlide(l, pptxtest.Hidden())
			continue
		}
		p.AddSlide(l)
	}
	a := p.Archive()

	tx := a.Begin()
	report, err := New(Config{}).Run(context.Background(), tx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"ppt/slides/slide3.xml"}, report.Removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
	slides := archive.Paths(a, archive.And(archive.InDir("ppt/slides"), archive.HasSuffix(".xml")))
	if len(slides) != 4 {
		t.Errorf("expected 4 slides, got %v", slides)
	}
	if a.Has("ppt/slides/_rels/slide3.xml.rels") {
		t.Errorf("hidden slide relationships survived")
	}

	pres, err := opc.LoadPart(a, opc.PresentationPath)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(opc.IDList(pres, opc.SlideIDList, opc.SlideIDItem)); n != 4 {
		t.Errorf("slide id list has %d entries, want 4", n)
	}
	rels, err := opc.LoadRelationships(a, opc.PresentationPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, rel := range rels.List() {
		if rel.Target == "ppt/slides/slide3.xml" {
			t.Errorf("relationship %s still points at the hidden slide", rel.ID)
		}
	}
	ct, err := opc.LoadContentTypes(a)
	if err != nil {
		t.Fatal(err)
	}
	if got := ct.ContentTypeOf("ppt/slides/slide3.xml"); got == opc.CTSlide {
		t.Errorf("override for hidden slide survived")
	}
}

func TestLinksToHiddenSlideAreRemoved(t *testing.T) {
	p := pptxtest.New()
	m := p.AddMaster()
	l := p.AddLayout(m)
	s1 := p.AddSlide(l)
	s2 := p.AddSlide(l)
	s3 := p.AddSlide(l, pptxtest.Hidden())
	gone := p.LinkSlide(s1, s3)
	kept := p.LinkSlide(s2, s1)
	a := p.Archive()

	tx := a.Begin()
	report, err := New(Config{}).Run(context.Background(), tx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	if report.Unlinked != 1 {
		t.Errorf("unlinked = %d, want 1", report.Unlinked)
	}
	rels1, _ := opc.LoadRelationships(a, s1)
	if _, ok := rels1.Get(gone); ok {
		t.Errorf("%s keeps relationship %s to the hidden slide", s1, gone)
	}
	rels2, _ := opc.LoadRelationships(a, s2)
	if _, ok := rels2.Get(kept); !ok {
		t.Errorf("%s lost its link to a visible slide", s2)
	}
	for part, want := range map[string]int{s1: 0, s2: 1} {
		doc, err := opc.LoadPart(a, part)
		if err != nil {
			t.Fatal(err)
		}
		if n := len(doc.Root().Find("p:cSld/p:spTree/p:sp/p:nvSpPr/p:cNvPr/a:hlinkClick")); n != want {
			t.Errorf("%s has %d hyperlinks, want %d", part, n, want)
		}
	}
	if got := pptxtest.DanglingReferences(a); len(got) != 0 {
		t.Errorf("dangling references: %v", got)
	}
}

func TestNoHiddenSlidesLeavesPackageAlone(t *testing.T) {
	a := pptxtest.Basic(3).Archive()
	before, _ := a.Bytes()

	tx := a.Begin()
	report, err := New(Config{}).Run(context.Background(), tx)
	if err != nil {
		t.Fatal(err)
	}
	if w, r := tx.Pending(); w != 0 || r != 0 {
		t.Errorf("expected no staged changes, got %d writes %d removals", w, r)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	after, _ := a.Bytes()
	if len(report.Removed) != 0 || string(before) != string(after) {
		t.Errorf("package changed without hidden slides")
	}
}

func TestAllHidden(t *testing.T) {
	build := func() *archive.Archive {
		p := pptxtest.New()
		l := p.AddLayout(p.AddMaster())
		p.AddSlide(l, pptxtest.Hidden())
		p.AddSlide(l, pptxtest.Hidden())
		return p.Archive()
	}

	a := build()
	tx := a.Begin()
	report, err := New(Config{KeepAll: true}).Run(context.Background(), tx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.AllHidden || len(report.Removed) != 0 {
		t.Errorf("KeepAll should veto removal: %+v", report)
	}
	tx.Discard()

	a = build()
	tx = a.Begin()
	report, err = New(Config{}).Run(context.Background(), tx)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Removed) != 2 {
		t.Errorf("expected both slides removed, got %v", report.Removed)
	}
	tx.Discard()
}

func TestUnparseableSlideIsKept(t *testing.T) {
	p := pptxtest.Basic(2)
	p.SetPart("ppt/slides/slide2.xml", []byte("<p:sld show=\"0\""))
	a := p.Archive()

	tx := a.Begin()
	defer tx.Discard()
	report, err := New(Config{}).Run(context.Background(), tx)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Removed) != 0 {
		t.Errorf("unparseable slide must be kept, removed %v", report.Removed)
	}
	if diff := cmp.Diff([]string{"ppt/slides/slide2.xml"}, report.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
}
