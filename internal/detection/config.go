package detection

import (
	"math"

	"github.com/ironsheep/chatscan/internal/faults"
)

// Default detector tuning. The values suit phone screenshots at native
// resolution (roughly 1080px wide, 14-17px body text).
const (
	DefaultMinRowGap    = 12
	DefaultMinColumnGap = 24
	DefaultMargin       = 4
	DefaultMinArea      = 120
	DefaultMinHeight    = 6
	DefaultMinAspect    = 0.08
	DefaultMaxAspect    = 60.0
	DefaultNoiseDensity = 0.002
	DefaultMaxAreaRatio = 0.9
)

// Config holds the region detector's tuning parameters.
type Config struct {
	// MinRowGap is the shortest run of empty rows that separates two bands.
	// Shorter runs are line spacing inside one block.
	MinRowGap int `json:"min_row_gap" mapstructure:"min_row_gap"`

	// MinColumnGap is the shortest run of empty columns that splits a band
	// into side-by-side regions. Only used when SplitColumns is set.
	MinColumnGap int  `json:"min_column_gap" mapstructure:"min_column_gap"`
	SplitColumns bool `json:"split_columns" mapstructure:"split_columns"`

	// Margin is added on every side of a region's ink box, then clamped to
	// the image.
	Margin int `json:"margin" mapstructure:"margin"`

	// MinArea and MinHeight discard specks; MinAspect and MaxAspect
	// (width/height) discard slivers such as divider lines. All four apply
	// to the ink box before Margin is added.
	MinArea   int     `json:"min_area" mapstructure:"min_area"`
	MinHeight int     `json:"min_height" mapstructure:"min_height"`
	MinAspect float64 `json:"min_aspect" mapstructure:"min_aspect"`
	MaxAspect float64 `json:"max_aspect" mapstructure:"max_aspect"`

	// MaxAreaRatio discards an ink box covering more than this fraction of
	// the image. Such a box is the whole frame, not a message.
	MaxAreaRatio float64 `json:"max_area_ratio" mapstructure:"max_area_ratio"`

	// NoiseDensity is the ink fraction at or below which a row or column
	// still counts as empty.
	NoiseDensity float64 `json:"noise_density" mapstructure:"noise_density"`
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		MinRowGap:    DefaultMinRowGap,
		MinColumnGap: DefaultMinColumnGap,
		SplitColumns: true,
		Margin:       DefaultMargin,
		MinArea:      DefaultMinArea,
		MinHeight:    DefaultMinHeight,
		MinAspect:    DefaultMinAspect,
		MaxAspect:    DefaultMaxAspect,
		NoiseDensity: DefaultNoiseDensity,
		MaxAreaRatio: DefaultMaxAreaRatio,
	}
}

// Validate rejects settings the detector cannot work with.
func (c Config) Validate() error {
	switch {
	case c.MinRowGap < 1:
		return faults.InvalidConfiguration("detection.min_row_gap must be >= 1, got %d", c.MinRowGap)
	case c.SplitColumns && c.MinColumnGap < 1:
		return faults.InvalidConfiguration("detection.min_column_gap must be >= 1, got %d", c.MinColumnGap)
	case c.Margin < 0:
		return faults.InvalidConfiguration("detection.margin must be >= 0, got %d", c.Margin)
	case c.MinArea < 0:
		return faults.InvalidConfiguration("detection.min_area must be >= 0, got %d", c.MinArea)
	case c.MinHeight < 1:
		return faults.InvalidConfiguration("detection.min_height must be >= 1, got %d", c.MinHeight)
	case math.IsNaN(c.MinAspect) || c.MinAspect <= 0:
		return faults.InvalidConfiguration("detection.min_aspect must be > 0, got %v", c.MinAspect)
	case math.IsNaN(c.MaxAspect) || c.MaxAspect < c.MinAspect:
		return faults.InvalidConfiguration("detection.max_aspect must be >= min_aspect (%v), got %v", c.MinAspect, c.MaxAspect)
	case math.IsNaN(c.MaxAreaRatio) || c.MaxAreaRatio <= 0 || c.MaxAreaRatio > 1:
		return faults.InvalidConfiguration("detection.max_area_ratio must be within (0, 1], got %v", c.MaxAreaRatio)
	case math.IsNaN(c.NoiseDensity) || c.NoiseDensity < 0 || c.NoiseDensity >= 1:
		return faults.InvalidConfiguration("detection.noise_density must be within [0, 1), got %v", c.NoiseDensity)
	}
	return nil
}
