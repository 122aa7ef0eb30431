package extract

import (
	"image"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/chatscan/internal/detection"
	"github.com/ironsheep/chatscan/internal/faults"
	"github.com/ironsheep/chatscan/internal/imaging"
	"github.com/ironsheep/chatscan/internal/observability"
)

// Defaults for Options.
const (
	DefaultTimeout = 15 * time.Second
	DefaultWorkers = 4
)

// DefaultLanguages are the recognition hints used when none are configured.
var DefaultLanguages = []string{"en", "ur"}

// RegionDetector finds text regions. *detection.Detector implements it.
type RegionDetector interface {
	Detect(img image.Image) ([]detection.Region, error)
}

// Options configures an Extractor.
type Options struct {
	// Languages are the hints passed to the engine for every region.
	Languages []string

	// Timeout bounds each engine call. A region that runs past it
	// contributes an empty fragment.
	Timeout time.Duration

	// Workers is the number of regions recognized concurrently.
	Workers int

	// MinWordConfidence, when above 0, rebuilds each fragment from the words
	// the engine scored at or above it.
	MinWordConfidence float64

	// Preprocess prepares every cropped region for the engine.
	Preprocess imaging.Options

	// Detector tunes region detection. Ignored when RegionDetector is set.
	Detector       detection.Config
	RegionDetector RegionDetector

	// Fields defaults to DefaultFields().
	Fields *FieldSet

	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger

	// Metrics may be nil.
	Metrics *observability.Metrics
}

// DefaultOptions returns the configuration tuned for chat screenshots:
// grayscale, denoise, Otsu binarization and 2x upscale per region.
func DefaultOptions() Options {
	return Options{
		Languages:  append([]string(nil), DefaultLanguages...),
		Timeout:    DefaultTimeout,
		Workers:    DefaultWorkers,
		Preprocess: imaging.OCROptions(),
		Detector:   detection.DefaultConfig(),
	}
}

// Validate reports options New would reject.
func (o Options) Validate() error {
	if o.Timeout <= 0 {
		return faults.InvalidConfiguration("timeout must be positive, got %v", o.Timeout)
	}
	if o.Workers < 1 {
		return faults.InvalidConfiguration("workers must be >= 1, got %d", o.Workers)
	}
	if math.IsNaN(o.MinWordConfidence) || o.MinWordConfidence < 0 || o.MinWordConfidence > 1 {
		return faults.InvalidConfiguration("min_word_confidence must be within [0, 1], got %v", o.MinWordConfidence)
	}
	if err := o.Preprocess.Validate(); err != nil {
		return err
	}
	if o.RegionDetector == nil {
		if err := o.Detector.Validate(); err != nil {
			return err
		}
	}
	return nil
}
