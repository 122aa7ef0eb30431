package imaging

import (
	"image"
	"image/color"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// darkLightness is the CIE L* (0..1) below which a background counts as dark.
const darkLightness = 0.5

// ColorFrequency is a quantized colour and the share of sampled pixels it covers.
type ColorFrequency struct {
	Hex        string  `json:"hex"`
	Percentage float64 `json:"percentage"`
	Lightness  float64 `json:"lightness"`
}

// DominantColors returns up to count of the most common colours inside rect.
//
// Components are quantized to 16 levels so JPEG noise and anti-aliasing fold
// into the colour they surround. Ties are ordered by hex code so the result is
// deterministic.
func DominantColors(img image.Image, count int, rect image.Rectangle) []ColorFrequency {
	rect = rect.Intersect(img.Bounds())
	h := newColorHistogram()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			h.add(img.At(x, y))
		}
	}
	return h.top(count)
}

// Background describes the dominant colour along an image's border.
type Background struct {
	Hex       string  `json:"hex"`
	Lightness float64 `json:"lightness"`
	Dark      bool    `json:"dark"`
	// Share is the fraction of border pixels in the dominant colour.
	Share float64 `json:"share"`
}

// EstimateBackground samples the one-pixel ring around img and reports its
// dominant colour. Chat screenshots are framed by the conversation
// background, so the ring tells light-mode from dark-mode captures even when
// the status bar or a bubble touches one edge.
func EstimateBackground(img image.Image) Background {
	b := img.Bounds()
	h := newColorHistogram()
	if b.Empty() {
		return Background{Hex: "#ffffff", Lightness: 1}
	}

	for x := b.Min.X; x < b.Max.X; x++ {
		h.add(img.At(x, b.Min.Y))
		if b.Dy() > 1 {
			h.add(img.At(x, b.Max.Y-1))
		}
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		h.add(img.At(b.Min.X, y))
		if b.Dx() > 1 {
			h.add(img.At(b.Max.X-1, y))
		}
	}

	top := h.top(1)
	if len(top) == 0 {
		return Background{Hex: "#ffffff", Lightness: 1}
	}
	return Background{
		Hex:       top[0].Hex,
		Lightness: top[0].Lightness,
		Dark:      top[0].Lightness < darkLightness,
		Share:     top[0].Percentage / 100,
	}
}

type colorHistogram struct {
	counts map[uint32]int
	total  int
}

func newColorHistogram() *colorHistogram {
	return &colorHistogram{counts: make(map[uint32]int)}
}

// add records c after quantizing each channel to its 16-level bucket centre.
// Fully transparent pixels are skipped.
func (h *colorHistogram) add(c color.Color) {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return
	}
	key := quantize(r)<<16 | quantize(g)<<8 | quantize(b)
	h.counts[key]++
	h.total++
}

func quantize(v uint32) uint32 {
	return (v>>12)<<4 | 0x8
}

func (h *colorHistogram) top(count int) []ColorFrequency {
	if h.total == 0 || count <= 0 {
		return nil
	}

	keys := make([]uint32, 0, len(h.counts))
	for k := range h.counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := h.counts[keys[i]], h.counts[keys[j]]
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	if len(keys) > count {
		keys = keys[:count]
	}

	out := make([]ColorFrequency, 0, len(keys))
	for _, k := range keys {
		c := colorful.Color{
			R: float64(k>>16&0xff) / 255,
			G: float64(k>>8&0xff) / 255,
			B: float64(k&0xff) / 255,
		}
		l, _, _ := c.Lab()
		out = append(out, ColorFrequency{
			Hex:        c.Hex(),
			Percentage: float64(h.counts[k]) / float64(h.total) * 100,
			Lightness:  l,
		})
	}
	return out
}
