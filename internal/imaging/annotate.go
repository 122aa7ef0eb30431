package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultOutlineColor is the stroke Annotate uses when none is given.
const DefaultOutlineColor = "#FF0000"

// Annotate draws each box onto a copy of img with its 1-based reading-order
// number in the top-left corner. It is a debugging aid for tuning region
// detection: the numbers match the order fragments are concatenated in.
//
// outlineHex accepts "#RRGGBB" or "#RRGGBBAA"; an unparsable value falls back
// to DefaultOutlineColor. Boxes are interpreted in img's coordinate space.
func Annotate(img image.Image, boxes []image.Rectangle, outlineHex string) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	stroke, err := parseHexColor(outlineHex)
	if err != nil {
		stroke, _ = parseHexColor(DefaultOutlineColor)
	}

	for i, box := range boxes {
		box = box.Sub(bounds.Min).Intersect(result.Bounds())
		if box.Empty() {
			continue
		}
		drawOutline(result, box, stroke)
		drawLabel(result, box.Min, strconv.Itoa(i+1), color.RGBA{255, 255, 255, 255}, stroke)
	}
	return result
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	val, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, err
	}

	switch len(hex) {
	case 6:
		return color.RGBA{R: uint8(val >> 16), G: uint8(val >> 8), B: uint8(val), A: 255}, nil
	case 8:
		return color.RGBA{R: uint8(val >> 24), G: uint8(val >> 16), B: uint8(val >> 8), A: uint8(val)}, nil
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}
}

func drawOutline(img *image.RGBA, box image.Rectangle, c color.RGBA) {
	for x := box.Min.X; x < box.Max.X; x++ {
		img.SetRGBA(x, box.Min.Y, c)
		img.SetRGBA(x, box.Max.Y-1, c)
	}
	for y := box.Min.Y; y < box.Max.Y; y++ {
		img.SetRGBA(box.Min.X, y, c)
		img.SetRGBA(box.Max.X-1, y, c)
	}
}

// drawLabel renders text on a filled tab whose top-left corner is at.
func drawLabel(img *image.RGBA, at image.Point, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
	}

	width := d.MeasureString(text).Ceil() + 2
	tab := image.Rect(at.X, at.Y, at.X+width, at.Y+face.Height).Intersect(img.Bounds())
	draw.Draw(img, tab, image.NewUniform(bg), image.Point{}, draw.Src)

	d.Dot = fixed.P(at.X+1, at.Y+face.Ascent)
	d.DrawString(text)
}
