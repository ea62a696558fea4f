// Package imaging normalises uploaded photos against a size budget before
// they are sent to the validator: downscale to fit a bounding box, then
// re-encode as JPEG at decreasing quality until the payload fits.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode is returned for payloads that are not a decodable image.
	ErrDecode = errors.New("imaging: decode failed")
	// ErrRenderSurface is returned when no drawing surface can be allocated
	// for the target dimensions.
	ErrRenderSurface = errors.New("imaging: render surface unavailable")
)

const (
	minQuality  = 0.3
	qualityStep = 0.1
	// Guards the float comparison so 0.4 -> 0.3 stops instead of taking
	// one more step.
	qualityEpsilon = 1e-9

	maxSurfacePixels = 1 << 26

	mimeJPEG = "image/jpeg"
)

// Options bounds the output. Zero fields take the defaults from
// DefaultOptions.
type Options struct {
	MaxWidth  int
	MaxHeight int
	// Quality is the starting JPEG quality in (0, 1].
	Quality   float64
	MaxSizeMB float64
}

func DefaultOptions() Options {
	return Options{
		MaxWidth:  1200,
		MaxHeight: 1200,
		Quality:   0.85,
		MaxSizeMB: 1.5,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxWidth <= 0 {
		o.MaxWidth = def.MaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = def.MaxHeight
	}
	if o.Quality <= 0 {
		o.Quality = def.Quality
	}
	if o.Quality > 1 {
		o.Quality = 1
	}
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = def.MaxSizeMB
	}
	return o
}

type Result struct {
	// Encoded is a data:image/jpeg;base64 URI.
	Encoded        string
	Width          int
	Height         int
	OriginalWidth  int
	OriginalHeight int
	// Quality is the JPEG quality of Encoded, in (0, 1].
	Quality float64
	// Passes counts the re-encodes after the first one.
	Passes int
}

func (r *Result) SizeMB() float64 {
	return EstimateSizeMB(r.Encoded)
}

// Compress decodes encoded, scales it into the MaxWidth x MaxHeight box and
// re-encodes it as JPEG. While the result is larger than MaxSizeMB the
// quality drops by 0.1, down to 0.3; the result may stay above the budget
// once that floor is reached.
func Compress(encoded string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	_, raw, err := ParseDataURI(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxSurfacePixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, maxSurfacePixels)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dstW, dstH := fitDimensions(w, h, opts.MaxWidth, opts.MaxHeight)

	canvas, err := newSurface(dstW, dstH)
	if err != nil {
		return nil, err
	}

	// JPEG has no alpha, so transparent areas land on white.
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	if dstW == w && dstH == h {
		draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(canvas, canvas.Bounds(), src, bounds, draw.Over, nil)
	}

	quality := opts.Quality
	out, err := encodeJPEG(canvas, quality)
	if err != nil {
		return nil, err
	}

	passes := 0
	for EstimateSizeMB(out) > opts.MaxSizeMB && quality > minQuality+qualityEpsilon {
		quality -= qualityStep
		out, err = encodeJPEG(canvas, quality)
		if err != nil {
			return nil, err
		}
		passes++
	}

	return &Result{
		Encoded:        out,
		Width:          dstW,
		Height:         dstH,
		OriginalWidth:  w,
		OriginalHeight: h,
		Quality:        quality,
		Passes:         passes,
	}, nil
}

// fitDimensions returns w x h unchanged when it fits, otherwise pins the
// larger side to its maximum and scales the other by the aspect ratio. Neither
// side drops below one pixel.
func fitDimensions(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}

	aspect := float64(w) / float64(h)
	if w > h {
		return maxW, max(1, int(math.Round(float64(maxW)/aspect)))
	}
	return max(1, int(math.Round(float64(maxH)*aspect))), maxH
}

func newSurface(w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrRenderSurface, w, h)
	}
	if w*h > maxSurfacePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrRenderSurface, w, h, maxSurfacePixels)
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func encodeJPEG(img image.Image, quality float64) (string, error) {
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return "", fmt.Errorf("imaging: jpeg encode: %w", err)
	}
	return ToDataURI(mimeJPEG, buf.Bytes()), nil
}
