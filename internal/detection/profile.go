package detection

import "image"

// span is a half-open interval [start, end) along one axis.
type span struct {
	start, end int
}

// inkMask is a binarized raster: true marks an ink pixel.
type inkMask struct {
	width, height int
	ink           []bool
}

// newInkMask classifies every pixel of a grayscale raster against level.
// When inkIsBright is set (dark-mode captures) levels above the cut are ink,
// otherwise levels at or below it are.
func newInkMask(gray *image.Gray, level uint8, inkIsBright bool) *inkMask {
	b := gray.Bounds()
	m := &inkMask{
		width:  b.Dx(),
		height: b.Dy(),
		ink:    make([]bool, b.Dx()*b.Dy()),
	}
	for y := 0; y < m.height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+m.width]
		for x, v := range row {
			m.ink[y*m.width+x] = (v > level) == inkIsBright
		}
	}
	return m
}

func (m *inkMask) at(x, y int) bool {
	return m.ink[y*m.width+x]
}

// rowProfile counts ink pixels per row of r.
func (m *inkMask) rowProfile(r image.Rectangle) []int {
	profile := make([]int, r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		n := 0
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.at(x, y) {
				n++
			}
		}
		profile[y-r.Min.Y] = n
	}
	return profile
}

// columnProfile counts ink pixels per column of r.
func (m *inkMask) columnProfile(r image.Rectangle) []int {
	profile := make([]int, r.Dx())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.at(x, y) {
				profile[x-r.Min.X]++
			}
		}
	}
	return profile
}

// count returns the number of ink pixels inside r.
func (m *inkMask) count(r image.Rectangle) int {
	n := 0
	for _, v := range m.rowProfile(r) {
		n += v
	}
	return n
}

// splitRuns returns the maximal spans of profile whose entries exceed limit,
// merging spans separated by fewer than minGap empty entries. Leading and
// trailing empty entries are excluded.
func splitRuns(profile []int, limit, minGap int) []span {
	var spans []span
	start, last := -1, -1
	for i, v := range profile {
		if v <= limit {
			continue
		}
		if start >= 0 && i-last-1 >= minGap {
			spans = append(spans, span{start, last + 1})
			start = i
		}
		if start < 0 {
			start = i
		}
		last = i
	}
	if start >= 0 {
		spans = append(spans, span{start, last + 1})
	}
	return spans
}

// noiseLimit converts a density into the largest per-line count that is
// still treated as empty for lines of the given length.
func noiseLimit(density float64, length int) int {
	return int(density * float64(length))
}
