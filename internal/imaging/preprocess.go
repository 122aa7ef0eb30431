package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/chatscan/internal/faults"
)

const (
	// MaxUpscaleFactor bounds Options.UpscaleFactor so a bad config cannot
	// allocate an unbounded raster.
	MaxUpscaleFactor = 8.0

	// MaxContrastBoost is the largest accepted Options.ContrastBoost (doubles
	// the distance of every level from mid-grey).
	MaxContrastBoost = 2.0

	// denoiseRadius gives a 3x3 median window.
	denoiseRadius = 1.0
)

// BT.601 luma weights, as used across the pipeline.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Options selects the passes Prepare applies. Passes always run in this
// order: grayscale, upscale, denoise, contrast, binarize. Denoising after the
// upscale keeps 1px strokes, which a 3x3 median would otherwise erase.
type Options struct {
	Grayscale bool `json:"grayscale" mapstructure:"grayscale"`
	Denoise   bool `json:"denoise" mapstructure:"denoise"`

	// ContrastBoost scales each level's distance from mid-grey. 0 and 1 leave
	// contrast unchanged; 1.5 pushes levels 50% further out.
	ContrastBoost float64 `json:"contrast_boost" mapstructure:"contrast_boost"`

	// Binarize reduces the output to pure black and white. BinarizeThreshold
	// fixes the cut (levels above it become white); when nil the level is
	// chosen with Otsu's method. A non-nil threshold implies Binarize.
	Binarize          bool     `json:"binarize" mapstructure:"binarize"`
	BinarizeThreshold *float64 `json:"binarize_threshold,omitempty" mapstructure:"binarize_threshold"`

	// UpscaleFactor must be at least 1. Values above 1 enlarge the raster
	// with bilinear interpolation, or nearest-neighbour when Nearest is set.
	UpscaleFactor float64 `json:"upscale_factor" mapstructure:"upscale_factor"`
	Nearest       bool    `json:"nearest,omitempty" mapstructure:"nearest"`
}

// OCROptions is the configuration applied to every region before recognition.
func OCROptions() Options {
	return Options{
		Grayscale:     true,
		Denoise:       true,
		Binarize:      true,
		UpscaleFactor: 2,
	}
}

// AnalysisOptions is the configuration the region detector binarizes with.
// It keeps the source resolution so region coordinates map 1:1, and skips
// the median pass because at 1x it would erase thin strokes.
func AnalysisOptions() Options {
	return Options{
		Grayscale:     true,
		UpscaleFactor: 1,
	}
}

// Threshold returns a BinarizeThreshold value.
func Threshold(level float64) *float64 {
	return &level
}

// Validate reports option values Prepare would reject.
func (o Options) Validate() error {
	if math.IsNaN(o.UpscaleFactor) || o.UpscaleFactor < 1 {
		return faults.InvalidConfiguration("upscale_factor must be >= 1.0, got %v", o.UpscaleFactor)
	}
	if o.UpscaleFactor > MaxUpscaleFactor {
		return faults.InvalidConfiguration("upscale_factor must be <= %v, got %v", MaxUpscaleFactor, o.UpscaleFactor)
	}
	if math.IsNaN(o.ContrastBoost) || o.ContrastBoost < 0 || o.ContrastBoost > MaxContrastBoost {
		return faults.InvalidConfiguration("contrast_boost must be within [0, %v], got %v", MaxContrastBoost, o.ContrastBoost)
	}
	if t := o.BinarizeThreshold; t != nil && (math.IsNaN(*t) || *t < 0 || *t > 255) {
		return faults.InvalidConfiguration("binarize_threshold must be within [0, 255], got %v", *t)
	}
	return nil
}

func (o Options) binarize() bool {
	return o.Binarize || o.BinarizeThreshold != nil
}

// Prepare returns a new raster derived from img by the passes opts selects.
//
// Options are validated before any pixel is touched; a rejected option fails
// with faults.ErrInvalidConfiguration and no work is done. img is never
// modified. Transparent pixels are composited onto white first.
//
// The result is an *image.Gray whenever Grayscale or binarization is
// requested, otherwise an *image.RGBA. Its origin is always (0, 0).
func Prepare(img image.Image, opts Options) (image.Image, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, faults.UnsupportedImage(fmt.Errorf("image has zero area"))
	}

	var out image.Image = flatten(img)

	if opts.Grayscale || opts.binarize() {
		out = effect.GrayscaleWithWeights(out, lumaR, lumaG, lumaB)
	}
	if opts.UpscaleFactor > 1 {
		out = upscale(out, opts.UpscaleFactor, opts.Nearest)
	}
	if opts.Denoise {
		out = effect.Median(out, denoiseRadius)
	}
	if opts.ContrastBoost > 0 && opts.ContrastBoost != 1 {
		out = adjust.Contrast(out, opts.ContrastBoost-1)
	}

	if !opts.Grayscale && !opts.binarize() {
		return toRGBA(out), nil
	}

	gray := toGray(out)
	if !opts.binarize() {
		return gray, nil
	}

	var cut uint8
	if opts.BinarizeThreshold != nil {
		cut = uint8(math.Floor(*opts.BinarizeThreshold))
	} else {
		level, separable := OtsuLevel(gray)
		if !separable {
			// One intensity only: nothing to separate, everything is background.
			return solid(gray.Bounds(), 0xFF), nil
		}
		cut = level
	}
	return binarize(gray, cut), nil
}

// flatten copies img onto an opaque white canvas at origin (0, 0).
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

func upscale(img image.Image, factor float64, nearest bool) image.Image {
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	filter := transform.Linear
	if nearest {
		filter = transform.NearestNeighbor
	}
	return transform.Resize(img, w, h, filter)
}

// binarize maps levels above cut to white and the rest to black.
func binarize(gray *image.Gray, cut uint8) *image.Gray {
	bw := adjust.Apply(gray, func(c color.RGBA) color.RGBA {
		if c.R > cut {
			return color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
		}
		return color.RGBA{0, 0, 0, 0xFF}
	})
	return toGray(bw)
}

// toGray packs img into a single-channel raster at origin (0, 0). Pixels whose
// channels are already equal keep their exact level.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func solid(rect image.Rectangle, level uint8) *image.Gray {
	g := image.NewGray(rect)
	for i := range g.Pix {
		g.Pix[i] = level
	}
	return g
}
