package optimize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/wudi/pptxkit/observability"
)

var errAnimated = errors.New("animated gif")

type encoder func(w io.Writer, img image.Image, quality int) error

var encoders = map[string]encoder{
	FormatWebP: func(w io.Writer, img image.Image, quality int) error {
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	},
	FormatJPEG: func(w io.Writer, img image.Image, quality int) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	},
	FormatPNG: func(w io.Writer, img image.Image, _ int) error {
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	},
	FormatBMP: func(w io.Writer, img image.Image, _ int) error {
		return bmp.Encode(w, img)
	},
}

// cacheKey combines the content fingerprint with every setting that
// influences the outcome.
func (o *Optimizer) cacheKey(part string, data []byte) string {
	c := o.config
	return fmt.Sprintf("%s|q%d|f%d|d%d|r%.4f|%s|%s",
		Fingerprint(data), c.Quality, c.FlatQuality, c.MaxDimension, c.MinSavingRatio, c.Policy, formatOfExt(part))
}

// process decides the replacement for one image. It never mutates shared
// state apart from the cache.
func (o *Optimizer) process(part string, data []byte) FileResult {
	r := FileResult{Part: part, OriginalSize: len(data), NewSize: len(data), Format: DetectFormat(data)}
	if r.Format == "" {
		r.Err = &CodecError{Part: part, Op: "detect", Err: errors.New("unknown image format")}
		o.logFailure(r)
		return r
	}

	key := o.cacheKey(part, data)
	if hit, ok := o.config.Cache.Get(key); ok {
		r.Cached = true
		r.Class, r.Width, r.Height, r.Skipped = hit.Class, hit.Width, hit.Height, hit.Skipped
		if len(hit.Data) > 0 {
			r.data, r.Chosen, r.NewSize = hit.Data, hit.Format, len(hit.Data)
		}
		return r
	}

	out, err := o.recompress(&r, data)
	switch {
	case errors.Is(err, errAnimated):
		r.Skipped = "animated"
	case err != nil:
		r.Err = err
		o.logFailure(r)
		return r
	}
	if out != nil {
		r.data, r.NewSize = out, len(out)
	}
	o.config.Cache.Put(key, Outcome{
		Data:    out,
		Format:  r.Chosen,
		Class:   r.Class,
		Width:   r.Width,
		Height:  r.Height,
		Skipped: r.Skipped,
	})
	return r
}

func (o *Optimizer) recompress(r *FileResult, data []byte) ([]byte, error) {
	cfg := o.config
	if r.Format == FormatGIF {
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, &CodecError{Part: r.Part, Op: "decode", Err: err}
		}
		if len(g.Image) > 1 {
			return nil, errAnimated
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &CodecError{Part: r.Part, Op: "decode", Err: err}
	}
	b := img.Bounds()
	r.Width, r.Height = b.Dx(), b.Dy()
	r.Class = Classify(img)
	quality := TargetQuality(r.Class, cfg.Quality, cfg.FlatQuality)

	if w, h := TargetSize(r.Width, r.Height, cfg.MaxDimension); w != r.Width || h != r.Height {
		img = resize(img, w, h)
	}
	alpha := HasAlpha(img)

	formats := o.candidates(r.Part, r.Class, alpha)
	if len(formats) == 0 {
		r.Skipped = "unsupported"
		return nil, nil
	}
	var best []byte
	var bestFormat string
	var lastErr error
	for _, format := range formats {
		var buf bytes.Buffer
		if err := encoders[format](&buf, img, quality); err != nil {
			lastErr = &CodecError{Part: r.Part, Op: "encode " + format, Err: err}
			continue
		}
		if best == nil || buf.Len() < len(best) {
			best, bestFormat = buf.Bytes(), format
		}
	}
	if best == nil {
		return nil, lastErr
	}
	if float64(len(best)) >= cfg.MinSavingRatio*float64(len(data)) {
		r.Skipped = "no-saving"
		return nil, nil
	}
	r.Chosen = bestFormat
	return best, nil
}

// candidates lists the formats to try for a part. WebP is always tried,
// JPEG only without transparency and lossless PNG only for flat content.
// FormatKeep restricts the list to the format the extension declares, under
// the same rules, so a photo stored as PNG gets no candidate at all.
func (o *Optimizer) candidates(part string, class Class, alpha bool) []string {
	if o.config.Policy == FormatKeep {
		format := formatOfExt(part)
		if _, ok := encoders[format]; !ok ||
			(format == FormatJPEG && alpha) ||
			(format == FormatPNG && !class.Flat()) {
			return nil
		}
		return []string{format}
	}
	out := []string{FormatWebP}
	if !alpha {
		out = append(out, FormatJPEG)
	}
	if class.Flat() {
		out = append(out, FormatPNG)
	}
	return out
}

func resize(img image.Image, w, h int) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func (o *Optimizer) logFailure(r FileResult) {
	o.config.Logger.Warn("leaving media unchanged",
		observability.String("part", r.Part),
		observability.Error("error", r.Err))
}
