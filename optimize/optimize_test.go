package optimize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"path"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/opc"
	"github.com/wudi/pptxkit/pptxtest"
)

const slide1 = "ppt/slides/slide1.xml"

func run(t *testing.T, a *archive.Archive, cfg Config, progress ProgressFunc) *Report {
	t.Helper()
	tx := a.Begin()
	report, err := New(cfg).Run(context.Background(), tx, progress)
	if err != nil {
		tx.Discard()
		t.Fatalf("run: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return report
}

func photoPNG(w, h int) []byte {
	return pptxtest.PNG(w, h, pptxtest.Photo(w, h, 42))
}

func photoJPEG(t *testing.T, w, h, quality int) []byte {
	return encodeJPEG(t, pptxtest.Photo(w, h, 42), w, h, quality)
}

func encodeJPEG(t *testing.T, fill func(x, y int) color.Color, w, h, quality int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRenamePolicy(t *testing.T) {
	p := pptxtest.Basic(1)
	part := p.AddMedia(slide1, "png", photoPNG(400, 300))
	a := p.Archive()

	report := run(t, a, Config{}, nil)

	if report.Compressed != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	f := report.Files[0]
	if f.Chosen == FormatPNG || f.Chosen == "" {
		t.Fatalf("expected a lossy format for a photo, got %q", f.Chosen)
	}
	if want := strings.TrimSuffix(part, ".png") + "." + extOf(f.Chosen); f.NewPart != want {
		t.Fatalf("new part %q, want %q", f.NewPart, want)
	}
	if a.Has(part) {
		t.Errorf("old part %s still present", part)
	}
	data, ok := a.Get(f.NewPart)
	if !ok || DetectFormat(data) != f.Chosen {
		t.Fatalf("new part missing or mislabeled")
	}

	rels, err := opc.LoadRelationships(a, slide1)
	if err != nil {
		t.Fatal(err)
	}
	var targets []string
	for _, rel := range rels.List() {
		if rel.Kind == opc.KindImage {
			targets = append(targets, rel.Target)
		}
	}
	if diff := cmp.Diff([]string{f.NewPart}, targets); diff != "" {
		t.Errorf("image relationships not retargeted (-want +got):\n%s", diff)
	}

	ct, err := opc.LoadContentTypes(a)
	if err != nil {
		t.Fatal(err)
	}
	ext := strings.TrimPrefix(path.Ext(f.NewPart), ".")
	if got := ct.ContentTypeOf(f.NewPart); got != opc.ImageContentTypes[ext] {
		t.Errorf("content type of %s = %q", f.NewPart, got)
	}
	if diff := cmp.Diff(map[string]string{part: f.NewPart}, report.Renamed()); diff != "" {
		t.Errorf("renamed mismatch (-want +got):\n%s", diff)
	}
}

func TestInPlacePolicy(t *testing.T) {
	p := pptxtest.Basic(1)
	part := p.AddMedia(slide1, "png", photoPNG(400, 300))
	a := p.Archive()

	report := run(t, a, Config{Policy: FormatInPlace}, nil)

	f := report.Files[0]
	if f.NewPart != part {
		t.Fatalf("in-place policy renamed %s to %s", part, f.NewPart)
	}
	data, _ := a.Get(part)
	if DetectFormat(data) != f.Chosen || len(data) != f.NewSize {
		t.Errorf("payload at %s is not the chosen %s candidate", part, f.Chosen)
	}
}

func TestKeepPolicy(t *testing.T) {
	p := pptxtest.Basic(1)
	part := p.AddMedia(slide1, "jpg", photoJPEG(t, 400, 300, 95))
	a := p.Archive()

	report := run(t, a, Config{Policy: FormatKeep}, nil)

	f := report.Files[0]
	data, ok := a.Get(part)
	if !ok {
		t.Fatalf("part renamed under keep policy")
	}
	if DetectFormat(data) != FormatJPEG {
		t.Errorf("keep policy changed the container format")
	}
	if f.Chosen != "" && f.Chosen != FormatJPEG {
		t.Errorf("chosen %q under keep policy", f.Chosen)
	}
}

func TestKeepPolicyLeavesPhotoPNG(t *testing.T) {
	p := pptxtest.Basic(1)
	photo := photoPNG(400, 300)
	part := p.AddMedia(slide1, "png", photo)
	a := p.Archive()

	report := run(t, a, Config{Policy: FormatKeep}, nil)

	f := report.Files[0]
	if f.Class != ClassPhoto || f.Replaced() || f.Skipped != "unsupported" {
		t.Fatalf("photo PNG under keep policy: %+v", f)
	}
	if got, _ := a.Get(part); !bytes.Equal(got, photo) {
		t.Errorf("payload changed")
	}
}

func TestCompressionNonRegression(t *testing.T) {
	p := pptxtest.Basic(1)
	inputs := map[string][]byte{}
	for _, data := range [][]byte{
		photoPNG(400, 300),
		pptxtest.PNG(300, 300, pptxtest.Noise(3)),
		pptxtest.PNG(200, 200, pptxtest.Solid(color.NRGBA{B: 200, A: 255})),
		pptxtest.PNG(64, 64, pptxtest.Noise(9)),
	} {
		inputs[p.AddMedia(slide1, "png", data)] = data
	}
	a := p.Archive()

	report := run(t, a, Config{}, nil)

	for _, f := range report.Files {
		in := inputs[f.Part]
		if !f.Replaced() {
			got, _ := a.Get(f.Part)
			if !bytes.Equal(got, in) {
				t.Errorf("%s changed without being replaced", f.Part)
			}
			continue
		}
		got, _ := a.Get(f.NewPart)
		if len(got) >= len(in) {
			t.Errorf("%s grew or kept size: %d -> %d", f.Part, len(in), len(got))
		}
		if float64(len(got)) >= DefaultMinSavingRatio*float64(len(in)) {
			t.Errorf("%s accepted below the saving threshold", f.Part)
		}
	}
	if report.OriginalBytes == 0 || report.SavedBytes < 0 {
		t.Errorf("bad totals %+v", report)
	}
}

func TestNoSavingKeepsOriginal(t *testing.T) {
	p := pptxtest.Basic(1)
	// Noise already at a low JPEG quality only grows when re-encoded higher.
	noise := encodeJPEG(t, pptxtest.Noise(11), 300, 300, 30)
	part := p.AddMedia(slide1, "jpg", noise)
	a := p.Archive()

	report := run(t, a, Config{Policy: FormatKeep}, nil)

	f := report.Files[0]
	if f.Replaced() || f.Skipped != "no-saving" {
		t.Fatalf("incompressible JPEG should be kept, got %+v", f)
	}
	if got, _ := a.Get(part); !bytes.Equal(got, noise) {
		t.Errorf("payload changed")
	}
}

func TestDownscale(t *testing.T) {
	p := pptxtest.Basic(1)
	p.AddMedia(slide1, "png", photoPNG(2000, 1000))
	a := p.Archive()

	report := run(t, a, Config{}, nil)

	f := report.Files[0]
	if !f.Replaced() {
		t.Fatalf("large gradient not replaced: %+v", f)
	}
	data, _ := a.Get(f.NewPart)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 1600 || cfg.Height != 800 {
		t.Errorf("output is %dx%d, want 1600x800", cfg.Width, cfg.Height)
	}
}

func TestIconResultClass(t *testing.T) {
	p := pptxtest.Basic(1)
	p.AddMedia(slide1, "png", pptxtest.PNG(64, 64, pptxtest.Noise(5)))
	a := p.Archive()

	report := run(t, a, Config{}, nil)
	if got := report.Files[0].Class; got != ClassIcon {
		t.Errorf("class = %v, want icon", got)
	}
}

func animatedGIF() []byte {
	pal := color.Palette{color.Black, color.White}
	frames := []*image.Paletted{
		image.NewPaletted(image.Rect(0, 0, 200, 200), pal),
		image.NewPaletted(image.Rect(0, 0, 200, 200), pal),
	}
	frames[1].SetColorIndex(10, 10, 1)
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, &gif.GIF{Image: frames, Delay: []int{10, 10}}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func TestAnimatedGIFIsSkipped(t *testing.T) {
	p := pptxtest.Basic(1)
	data := animatedGIF()
	part := p.AddMedia(slide1, "gif", data)
	a := p.Archive()

	report := run(t, a, Config{}, nil)

	if f := report.Files[0]; f.Skipped != "animated" || f.Replaced() {
		t.Fatalf("animated gif not skipped: %+v", f)
	}
	if got, _ := a.Get(part); !bytes.Equal(got, data) {
		t.Errorf("animated gif changed")
	}
}

func TestCodecErrorLeavesPartUnchanged(t *testing.T) {
	p := pptxtest.Basic(1)
	garbage := []byte("definitely not an image")
	truncated := photoPNG(300, 300)[:200]
	g := p.AddMedia(slide1, "png", garbage)
	tr := p.AddMedia(slide1, "jpg", truncated)
	a := p.Archive()

	report := run(t, a, Config{}, nil)

	if report.Failed != 2 {
		t.Fatalf("failed = %d, want 2", report.Failed)
	}
	ops := map[string]string{}
	for _, f := range report.Files {
		var ce *CodecError
		if !errors.As(f.Err, &ce) {
			t.Fatalf("%s: expected CodecError, got %v", f.Part, f.Err)
		}
		ops[f.Part] = ce.Op
	}
	if diff := cmp.Diff(map[string]string{g: "detect", tr: "decode"}, ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	if got, _ := a.Get(g); !bytes.Equal(got, garbage) {
		t.Errorf("garbage part changed")
	}
	if got, _ := a.Get(tr); !bytes.Equal(got, truncated) {
		t.Errorf("truncated part changed")
	}
}

func TestCacheDoesNotChangeOutput(t *testing.T) {
	build := func() *archive.Archive {
		p := pptxtest.Basic(1)
		p.AddMedia(slide1, "png", photoPNG(400, 300))
		p.AddMedia(slide1, "png", pptxtest.PNG(200, 200, pptxtest.Solid(color.NRGBA{G: 90, A: 255})))
		return p.Archive()
	}

	plain := build()
	run(t, plain, Config{}, nil)
	want, _ := plain.Bytes()

	cache := NewCache(0)
	first := build()
	run(t, first, Config{Cache: cache}, nil)
	second := build()
	report := run(t, second, Config{Cache: cache}, nil)

	if report.CacheHits != 2 {
		t.Errorf("cache hits = %d, want 2", report.CacheHits)
	}
	for _, a := range []*archive.Archive{first, second} {
		got, _ := a.Bytes()
		if !bytes.Equal(got, want) {
			t.Errorf("cached run produced different output")
		}
	}
}

func TestCacheHitKeepsFileDetails(t *testing.T) {
	twoTone := func(x, y int) color.Color {
		if x < 150 {
			return color.NRGBA{R: 200, A: 255}
		}
		return color.NRGBA{B: 200, A: 255}
	}
	p := pptxtest.Basic(1)
	p.AddMedia(slide1, "png", pptxtest.PNG(300, 300, twoTone))
	p.AddMedia(slide1, "png", pptxtest.PNG(300, 300, twoTone))
	a := p.Archive()

	report := run(t, a, Config{BatchSize: 1, Cache: NewCache(0)}, nil)

	if len(report.Files) != 2 {
		t.Fatalf("got %d results", len(report.Files))
	}
	first, second := report.Files[0], report.Files[1]
	if first.Cached || !second.Cached {
		t.Fatalf("expected only the second image to hit the cache: %+v / %+v", first, second)
	}
	if first.Class != ClassDiagram {
		t.Errorf("class %v, want diagram", first.Class)
	}
	if diff := cmp.Diff(
		[]any{first.Class, first.Width, first.Height, first.Skipped, first.Chosen, first.NewSize},
		[]any{second.Class, second.Width, second.Height, second.Skipped, second.Chosen, second.NewSize},
	); diff != "" {
		t.Errorf("cached result differs (-computed +cached):\n%s", diff)
	}
}

func TestProgressPerBatch(t *testing.T) {
	p := pptxtest.Basic(1)
	for i := 0; i < 5; i++ {
		p.AddMedia(slide1, "png", pptxtest.PNG(8, 8, pptxtest.Solid(color.NRGBA{R: uint8(i * 40), A: 255})))
	}
	a := p.Archive()

	var events []Progress
	run(t, a, Config{BatchSize: 2}, func(pr Progress) { events = append(events, pr) })

	var done []int
	for _, e := range events {
		if e.Total != 5 {
			t.Errorf("total = %d", e.Total)
		}
		done = append(done, e.Done)
	}
	if diff := cmp.Diff([]int{0, 2, 4, 5}, done); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
	if n := len(events[0].Files); n != 2 {
		t.Errorf("first batch has %d files", n)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	p := pptxtest.Basic(1)
	p.AddMedia(slide1, "png", photoPNG(50, 50))
	a := p.Archive()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tx := a.Begin()
	defer tx.Discard()
	if _, err := New(Config{}).Run(ctx, tx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseFormatPolicy(t *testing.T) {
	for _, pol := range []FormatPolicy{FormatRename, FormatKeep, FormatInPlace} {
		got, err := ParseFormatPolicy(pol.String())
		if err != nil || got != pol {
			t.Errorf("ParseFormatPolicy(%q) = %v, %v", pol.String(), got, err)
		}
	}
	if _, err := ParseFormatPolicy("bogus"); err == nil {
		t.Errorf("expected error for unknown policy")
	}
}
