// Package transform decodes, orients, resizes and re-encodes images.
package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Engine implements simplemedia.Transformer.
type Engine struct {
	maxPixels int
}

// Option configures an Engine
type Option func(*Engine)

// WithMaxPixels refuses sources whose decoded size exceeds n pixels.
func WithMaxPixels(n int) Option {
	return func(e *Engine) {
		e.maxPixels = n
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{maxPixels: 100_000_000}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transform decodes src, normalises EXIF orientation, resizes to opts and
// encodes to opts.Format. When only one dimension is set the other follows
// the source aspect ratio; when neither is set the size is kept.
func (e *Engine) Transform(ctx context.Context, src []byte, opts simplemedia.Options) ([]byte, string, error) {
	if len(src) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}
	if !opts.Format.IsValid() {
		return nil, "", fmt.Errorf("unsupported output format %q", opts.Format)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if e.maxPixels > 0 && cfg.Width*cfg.Height > e.maxPixels {
		return nil, "", fmt.Errorf("image of %dx%d exceeds pixel limit", cfg.Width, cfg.Height)
	}

	img, kind, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if kind == "jpeg" {
		img = applyOrientation(img, jpegOrientation(src))
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	if opts.Width > 0 || opts.Height > 0 {
		img = resize.Resize(uint(max(opts.Width, 0)), uint(max(opts.Height, 0)), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, opts); err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", opts.Format, err)
	}
	return buf.Bytes(), opts.Format.MimeType(), nil
}

func encode(buf *bytes.Buffer, img image.Image, opts simplemedia.Options) error {
	switch opts.Format {
	case simplemedia.FormatJPEG:
		quality := opts.Quality
		if quality < 1 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		return jpeg.Encode(buf, flatten(img), &jpeg.Options{Quality: quality})
	case simplemedia.FormatPNG:
		return png.Encode(buf, img)
	case simplemedia.FormatWEBP:
		// The encoder is lossless; quality does not apply.
		return nativewebp.Encode(buf, img, nil)
	}
	return fmt.Errorf("unsupported format %q", opts.Format)
}

// flatten composites img onto white, since JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
