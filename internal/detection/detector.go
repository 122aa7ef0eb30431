package detection

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/chatscan/internal/faults"
	"github.com/ironsheep/chatscan/internal/imaging"
)

// Region is a rectangle of a source image believed to hold one block of text.
//
// X and Y are in the source image's coordinate space. Score is the ink
// density of the region's tight ink box (0 to 1).
type Region struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Score  float64 `json:"score"`
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Area returns Width*Height.
func (r Region) Area() int {
	return r.Width * r.Height
}

// Detector finds text regions in chat screenshots.
//
// A Detector is immutable after construction and safe for concurrent use.
type Detector struct {
	cfg Config
}

// NewDetector validates cfg and returns a Detector using it.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Config returns the detector's tuning.
func (d *Detector) Config() Config {
	return d.cfg
}

// DetectRegions runs a Detector with DefaultConfig.
func DetectRegions(img image.Image) ([]Region, error) {
	return (&Detector{cfg: DefaultConfig()}).Detect(img)
}

// Detect returns the text regions of img ordered top-to-bottom, then
// left-to-right by origin.
//
// The image is binarized at its Otsu level, split into horizontal bands on
// runs of at least MinRowGap empty rows, and each band is split again on
// runs of at least MinColumnGap empty columns. Each piece's tight ink box is
// filtered by size, aspect and share of the frame, grown by Margin and clamped to the image.
//
// An image with no distinguishable ink yields an empty, non-nil slice.
func (d *Detector) Detect(img image.Image) ([]Region, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, faults.UnsupportedImage(fmt.Errorf("image has zero area"))
	}

	prepared, err := imaging.Prepare(img, imaging.AnalysisOptions())
	if err != nil {
		return nil, err
	}
	gray := prepared.(*image.Gray)

	level, separable := imaging.OtsuLevel(gray)
	if !separable {
		return []Region{}, nil
	}
	bg := imaging.EstimateBackground(img)
	mask := newInkMask(gray, level, bg.Dark)

	regions := d.scan(mask)

	origin := img.Bounds().Min
	for i := range regions {
		regions[i].X += origin.X
		regions[i].Y += origin.Y
	}
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Y != regions[j].Y {
			return regions[i].Y < regions[j].Y
		}
		return regions[i].X < regions[j].X
	})
	return regions, nil
}

// scan finds regions in mask coordinates.
func (d *Detector) scan(mask *inkMask) []Region {
	full := image.Rect(0, 0, mask.width, mask.height)
	regions := make([]Region, 0)

	rows := mask.rowProfile(full)
	for _, band := range splitRuns(rows, noiseLimit(d.cfg.NoiseDensity, mask.width), d.cfg.MinRowGap) {
		bandRect := image.Rect(0, band.start, mask.width, band.end)
		cols := mask.columnProfile(bandRect)
		colLimit := noiseLimit(d.cfg.NoiseDensity, bandRect.Dy())

		var pieces []span
		if d.cfg.SplitColumns {
			pieces = splitRuns(cols, colLimit, d.cfg.MinColumnGap)
		} else {
			pieces = splitRuns(cols, colLimit, math.MaxInt)
		}

		for _, piece := range pieces {
			box, ok := d.tighten(mask, image.Rect(piece.start, band.start, piece.end, band.end))
			if !ok || !d.plausible(box, full) {
				continue
			}
			score := float64(mask.count(box)) / float64(box.Dx()*box.Dy())
			grown := box.Inset(-d.cfg.Margin).Intersect(full)
			regions = append(regions, Region{
				X:      grown.Min.X,
				Y:      grown.Min.Y,
				Width:  grown.Dx(),
				Height: grown.Dy(),
				Score:  math.Round(score*1000) / 1000,
			})
		}
	}
	return regions
}

// tighten shrinks r vertically to the rows that carry ink within its own
// columns; the band's height may come from a taller neighbouring column.
func (d *Detector) tighten(mask *inkMask, r image.Rectangle) (image.Rectangle, bool) {
	rows := mask.rowProfile(r)
	runs := splitRuns(rows, noiseLimit(d.cfg.NoiseDensity, r.Dx()), math.MaxInt)
	if len(runs) == 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(r.Min.X, r.Min.Y+runs[0].start, r.Max.X, r.Min.Y+runs[0].end), true
}

func (d *Detector) plausible(box, frame image.Rectangle) bool {
	w, h := box.Dx(), box.Dy()
	if w*h < d.cfg.MinArea || h < d.cfg.MinHeight {
		return false
	}
	if float64(w*h) > d.cfg.MaxAreaRatio*float64(frame.Dx()*frame.Dy()) {
		return false
	}
	aspect := float64(w) / float64(h)
	return aspect >= d.cfg.MinAspect && aspect <= d.cfg.MaxAspect
}
