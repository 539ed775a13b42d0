package optimize

import (
	"image"
	"math"
)

// Class is the content family an image falls into.
type Class int

const (
	ClassPhoto Class = iota
	ClassDiagram
	ClassIcon
)

func (c Class) String() string {
	switch c {
	case ClassIcon:
		return "icon"
	case ClassDiagram:
		return "diagram"
	}
	return "photo"
}

// Flat reports whether c holds flat-color content that lossy photographic
// compression damages.
func (c Class) Flat() bool { return c != ClassPhoto }

const (
	iconSize      = 128
	colorSamples  = 1000
	diagramColors = 50
)

// Classify sorts img into icon, diagram or photo. Icons are smaller than
// 128px on both sides; diagrams show fewer than 50 distinct colors over at
// most 1000 evenly spaced samples.
func Classify(img image.Image) Class {
	b := img.Bounds()
	if b.Dx() < iconSize && b.Dy() < iconSize {
		return ClassIcon
	}
	if distinctColors(img, colorSamples, diagramColors) < diagramColors {
		return ClassDiagram
	}
	return ClassPhoto
}

// distinctColors counts the distinct colors among up to samples pixels and
// stops once limit is reached.
func distinctColors(img image.Image, samples, limit int) int {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	total := w * h
	if total == 0 {
		return 0
	}
	if samples > total {
		samples = total
	}
	seen := make(map[uint64]struct{}, limit)
	for i := 0; i < samples; i++ {
		idx := i * total / samples
		r, g, bl, a := img.At(b.Min.X+idx%w, b.Min.Y+idx/w).RGBA()
		seen[uint64(r)<<48|uint64(g)<<32|uint64(bl)<<16|uint64(a)] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}

// TargetQuality returns the encoder quality for class: requested, capped at
// ceiling for flat content.
func TargetQuality(class Class, requested, ceiling int) int {
	if class.Flat() && requested > ceiling {
		return ceiling
	}
	return requested
}

// TargetSize scales w×h down so the longer side is at most bound, keeping
// the aspect ratio. Sizes already within bounds are returned unchanged.
func TargetSize(w, h, bound int) (int, int) {
	if bound <= 0 || (w <= bound && h <= bound) {
		return w, h
	}
	scale := float64(bound) / float64(w)
	if h > w {
		scale = float64(bound) / float64(h)
	}
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return max(nw, 1), max(nh, 1)
}

// HasAlpha reports whether any pixel of img is not fully opaque.
func HasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA:
		return alphaBelowMax(m.Pix, 4, 3)
	case *image.RGBA:
		return alphaBelowMax(m.Pix, 4, 3)
	case *image.Gray, *image.Gray16, *image.YCbCr, *image.CMYK:
		return false
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}

func alphaBelowMax(pix []byte, stride, offset int) bool {
	for i := offset; i < len(pix); i += stride {
		if pix[i] < 0xff {
			return true
		}
	}
	return false
}
