package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/histogram"
)

// OtsuLevel picks the binarization cut for a grayscale image with Otsu's
// method: the level t that maximizes the between-class variance of the
// classes [0, t] and (t, 255], which is the same t that minimizes the summed
// intra-class variance.
//
// separable is false when the image holds a single intensity; there is no
// cut that splits it and callers treat the whole image as background.
func OtsuLevel(gray *image.Gray) (level uint8, separable bool) {
	bins := histogram.NewRGBAHistogram(gray).R.Bins

	var total, sum float64
	occupied := 0
	for i, n := range bins {
		if n == 0 {
			continue
		}
		occupied++
		total += float64(n)
		sum += float64(i) * float64(n)
	}
	if occupied < 2 {
		return 0, false
	}

	var (
		weightB, sumB float64
		best          = -1.0
	)
	for i, n := range bins {
		weightB += float64(n)
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(i) * float64(n)

		meanB := sumB / weightB
		meanF := (sum - sumB) / weightF
		between := weightB * weightF * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			level = uint8(i)
		}
	}
	return level, true
}
