// Package pptxtest builds small, openable presentation packages in memory
// for tests.
package pptxtest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path"
	"sort"
	"strings"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/ooxml"
	"github.com/wudi/pptxkit/opc"
)

const (
	nsP = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`
	decl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n"
)

type rel struct {
	id     string
	typ    string
	target string
}

// Package accumulates parts; Archive renders them.
type Package struct {
	rels    map[string][]rel
	order   []string
	parts   map[string]func() []byte
	cts     map[string]string
	hidden  map[string]bool
	slides  []string
	masters []string
	layouts map[string][]string
	extra   map[string][]byte
	nMaster int
	nLayout int
	nSlide  int
	nNotes  int
	nTheme  int
	nMedia  int
}

// New returns a package with a presentation part and no slides.
func New() *Package {
	p := &Package{
		rels:    make(map[string][]rel),
		parts:   make(map[string]func() []byte),
		cts:     make(map[string]string),
		hidden:  make(map[string]bool),
		layouts: make(map[string][]string),
		extra:   make(map[string][]byte),
	}
	p.link("", opc.RelOfficeDocument, opc.PresentationPath)
	p.addPart(opc.PresentationPath, opc.CTPresentation, p.renderPresentation)
	return p
}

func (p *Package) addPart(name, ct string, render func() []byte) {
	p.order = append(p.order, name)
	p.parts[name] = render
	if ct != "" {
		p.cts[name] = ct
	}
}

func (p *Package) link(owner, typ, target string) string {
	id := fmt.Sprintf("rId%d", len(p.rels[owner])+1)
	p.rels[owner] = append(p.rels[owner], rel{id: id, typ: typ, target: target})
	return id
}

func (p *Package) relID(owner, target string) string {
	for _, r := range p.rels[owner] {
		if r.target == target {
			return r.id
		}
	}
	return ""
}

// AddMaster adds a slide master with its own theme.
func (p *Package) AddMaster() string {
	p.nMaster++
	p.nTheme++
	master := fmt.Sprintf("ppt/slideMasters/slideMaster%d.xml", p.nMaster)
	theme := fmt.Sprintf("ppt/theme/theme%d.xml", p.nTheme)
	p.addPart(theme, opc.CTTheme, func() []byte {
		return []byte(decl + `<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="Office Theme"><a:themeElements/></a:theme>`)
	})
	p.addPart(master, opc.CTSlideMaster, func() []byte { return p.renderMaster(master) })
	p.link(master, opc.RelTheme, theme)
	p.link(opc.PresentationPath, opc.RelSlideMaster, master)
	p.masters = append(p.masters, master)
	return master
}

// AddLayout adds a layout under master.
func (p *Package) AddLayout(master string) string {
	p.nLayout++
	layout := fmt.Sprintf("ppt/slideLayouts/slideLayout%d.xml", p.nLayout)
	p.addPart(layout, opc.CTSlideLayout, func() []byte {
		return []byte(decl + `<p:sldLayout ` + nsP + ` preserve="1"><p:cSld name="Layout"><p:spTree/></p:cSld></p:sldLayout>`)
	})
	p.link(layout, opc.RelSlideMaster, master)
	p.link(master, opc.RelSlideLayout, layout)
	p.layouts[master] = append(p.layouts[master], layout)
	return layout
}

// SlideOption customizes AddSlide.
type SlideOption func(p *Package, slide string)

// Hidden marks the slide with show="0".
func Hidden() SlideOption {
	return func(p *Package, slide string) { p.hidden[slide] = true }
}

// AddSlide adds a slide using layout and lists it in the presentation.
func (p *Package) AddSlide(layout string, opts ...SlideOption) string {
	p.nSlide++
	slide := fmt.Sprintf("ppt/slides/slide%d.xml", p.nSlide)
	p.addPart(slide, opc.CTSlide, func() []byte {
		show := ""
		if p.hidden[slide] {
			show = ` show="0"`
		}
		var pics strings.Builder
		for _, r := range p.rels[slide] {
			switch kind := opc.KindOf(r.typ); {
			case kind.IsMedia():
				fmt.Fprintf(&pics, `<p:pic><p:blipFill><a:blip r:embed="%s"/></p:blipFill></p:pic>`, r.id)
			case kind == opc.KindSlide:
				fmt.Fprintf(&pics, `<p:sp><p:nvSpPr><p:cNvPr id="2" name="Link"><a:hlinkClick r:id="%s" action="ppaction://hlinksldjump"/></p:cNvPr></p:nvSpPr></p:sp>`, r.id)
			}
		}
		return []byte(decl + `<p:sld ` + nsP + show + `><p:cSld><p:spTree>` + pics.String() + `</p:spTree></p:cSld></p:sld>`)
	})
	if layout != "" {
		p.link(slide, opc.RelSlideLayout, layout)
	}
	p.link(opc.PresentationPath, opc.RelSlide, slide)
	p.slides = append(p.slides, slide)
	for _, opt := range opts {
		opt(p, slide)
	}
	return slide
}

// AddOrphanSlide adds a slide part that the presentation does not reference.
func (p *Package) AddOrphanSlide(layout string) string {
	p.nSlide++
	slide := fmt.Sprintf("ppt/slides/slide%d.xml", p.nSlide)
	p.addPart(slide, opc.CTSlide, func() []byte {
		return []byte(decl + `<p:sld ` + nsP + `><p:cSld><p:spTree/></p:cSld></p:sld>`)
	})
	if layout != "" {
		p.link(slide, opc.RelSlideLayout, layout)
	}
	return slide
}

// AddNotes attaches a notes slide to slide.
func (p *Package) AddNotes(slide string) string {
	p.nNotes++
	notes := fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", p.nNotes)
	p.addPart(notes, opc.CTNotesSlide, func() []byte {
		return []byte(decl + `<p:notes ` + nsP + `><p:cSld><p:spTree/></p:cSld></p:notes>`)
	})
	p.link(slide, opc.RelNotesSlide, notes)
	p.link(notes, opc.RelSlide, slide)
	return notes
}

// AddMedia stores data as a new media part referenced from owner. ext
// selects the file extension, e.g. "png".
func (p *Package) AddMedia(owner, ext string, data []byte) string {
	p.nMedia++
	media := fmt.Sprintf("ppt/media/image%d.%s", p.nMedia, ext)
	p.addPart(media, "", func() []byte { return data })
	if owner != "" {
		p.LinkMedia(owner, media)
	}
	return media
}

// LinkMedia references an existing media part from owner.
func (p *Package) LinkMedia(owner, media string) {
	p.link(owner, opc.RelImage, media)
}

// LinkSlide adds a shape to from that jumps to slide to when clicked.
func (p *Package) LinkSlide(from, to string) string {
	return p.link(from, opc.RelSlide, to)
}

// SetPart adds or replaces a raw part, bypassing the model.
func (p *Package) SetPart(name string, data []byte) {
	p.extra[name] = data
}

func (p *Package) renderPresentation() []byte {
	var b strings.Builder
	b.WriteString(decl + `<p:presentation ` + nsP + ` saveSubsetFonts="1">`)
	b.WriteString(`<p:sldMasterIdLst>`)
	for i, m := range p.masters {
		fmt.Fprintf(&b, `<p:sldMasterId id="%d" r:id="%s"/>`, 2147483648+i*12, p.relID(opc.PresentationPath, m))
	}
	b.WriteString(`</p:sldMasterIdLst>`)
	if len(p.slides) > 0 {
		b.WriteString(`<p:sldIdLst>`)
		for i, s := range p.slides {
			fmt.Fprintf(&b, `<p:sldId id="%d" r:id="%s"/>`, 256+i, p.relID(opc.PresentationPath, s))
		}
		b.WriteString(`</p:sldIdLst>`)
	}
	b.WriteString(`<p:sldSz cx="12192000" cy="6858000"/><p:notesSz cx="6858000" cy="9144000"/></p:presentation>`)
	return []byte(b.String())
}

func (p *Package) renderMaster(master string) []byte {
	var b strings.Builder
	b.WriteString(decl + `<p:sldMaster ` + nsP + `><p:cSld><p:spTree/></p:cSld><p:sldLayoutIdLst>`)
	for i, l := range p.layouts[master] {
		fmt.Fprintf(&b, `<p:sldLayoutId id="%d" r:id="%s"/>`, 2147483649+i, p.relID(master, l))
	}
	b.WriteString(`</p:sldLayoutIdLst></p:sldMaster>`)
	return []byte(b.String())
}

func (p *Package) renderRels(owner string) []byte {
	var b strings.Builder
	b.WriteString(decl + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range p.rels[owner] {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s" Target="%s"/>`, r.id, r.typ, opc.RelativeTarget(owner, r.target))
	}
	b.WriteString(`</Relationships>`)
	return []byte(b.String())
}

func (p *Package) renderContentTypes() []byte {
	var b strings.Builder
	b.WriteString(decl + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="` + opc.CTRelationships + `"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	exts := map[string]bool{}
	for _, name := range p.order {
		ext := strings.TrimPrefix(path.Ext(name), ".")
		if ct, ok := opc.ImageContentTypes[ext]; ok && !exts[ext] {
			exts[ext] = true
			fmt.Fprintf(&b, `<Default Extension="%s" ContentType="%s"/>`, ext, ct)
		}
	}
	for _, name := range p.order {
		if ct, ok := p.cts[name]; ok {
			fmt.Fprintf(&b, `<Override PartName="/%s" ContentType="%s"/>`, name, ct)
		}
	}
	b.WriteString(`</Types>`)
	return []byte(b.String())
}

// Archive renders the package.
func (p *Package) Archive() *archive.Archive {
	a := archive.New()
	a.Set(opc.ContentTypesPath, p.renderContentTypes())
	a.Set(opc.RootRelsPath, p.renderRels(""))
	for _, name := range p.order {
		a.Set(name, p.parts[name]())
		if len(p.rels[name]) > 0 {
			a.Set(opc.RelsPath(name), p.renderRels(name))
		}
	}
	names := make([]string, 0, len(p.extra))
	for name := range p.extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a.Set(name, p.extra[name])
	}
	return a
}

// Bytes renders the package as a ZIP.
func (p *Package) Bytes() []byte {
	data, err := p.Archive().Bytes()
	if err != nil {
		panic(err)
	}
	return data
}

// Basic returns a package with one master, one layout and n slides.
func Basic(n int) *Package {
	p := New()
	m := p.AddMaster()
	l := p.AddLayout(m)
	for i := 0; i < n; i++ {
		p.AddSlide(l)
	}
	return p
}

// PNG encodes an image of the given size whose pixels come from fill.
func PNG(w, h int, fill func(x, y int) color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Solid fills every pixel with c.
func Solid(c color.Color) func(x, y int) color.Color {
	return func(int, int) color.Color { return c }
}

// Noise produces a deterministic high-entropy opaque pattern that defeats
// both palette and lossless compression.
func Noise(seed uint32) func(x, y int) color.Color {
	return func(x, y int) color.Color {
		v := uint32(x)*73856093 ^ uint32(y)*19349663 ^ seed*83492791
		v ^= v >> 13
		v *= 0x5bd1e995
		v ^= v >> 15
		return color.NRGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 255}
	}
}

// Gradient produces a smooth photographic-looking ramp.
func Gradient(w, h int) func(x, y int) color.Color {
	return func(x, y int) color.Color {
		return color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x + y) * 127 / (w + h)), A: 255}
	}
}

// Photo overlays mild noise on a gradient: lossless encoders cannot shrink
// it much while lossy ones can.
func Photo(w, h int, seed uint32) func(x, y int) color.Color {
	grad, noise := Gradient(w, h), Noise(seed)
	return func(x, y int) color.Color {
		g := grad(x, y).(color.NRGBA)
		n := noise(x, y).(color.NRGBA)
		return color.NRGBA{R: g.R ^ n.R&0x0f, G: g.G ^ n.G&0x0f, B: g.B ^ n.B&0x0f, A: 255}
	}
}

// DanglingReferences lists, as "part#id", every attribute in the
// relationships namespace of an XML part in src that names no relationship
// of that part. A consistent package yields nothing.
func DanglingReferences(src archive.Reader) []string {
	var out []string
	for name := range src.List(archive.HasSuffix(".xml")) {
		if opc.IsRelsPath(name) || name == opc.ContentTypesPath {
			continue
		}
		doc, err := opc.LoadPart(src, name)
		if err != nil {
			out = append(out, name+"#unparseable")
			continue
		}
		rels, err := opc.LoadRelationships(src, name)
		if err != nil {
			out = append(out, name+"#rels-unparseable")
			continue
		}
		var walk func(el *ooxml.Element)
		walk = func(el *ooxml.Element) {
			for _, a := range el.Attrs {
				if a.Name.Space == "" || a.Name.Space == "xmlns" || a.Value == "" {
					continue
				}
				if el.NamespaceOf(a.Name.Space) != ooxml.NSRelationships {
					continue
				}
				if _, ok := rels.Get(a.Value); !ok {
					out = append(out, name+"#"+a.Value)
				}
			}
			for _, child := range el.Elements() {
				walk(child)
			}
		}
		if root := doc.Root(); root != nil {
			walk(root)
		}
	}
	return out
}
