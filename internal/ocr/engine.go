package ocr

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/ironsheep/chatscan/internal/faults"
)

// Engine names accepted by New.
const (
	EngineTesseract = "tesseract"
	EngineNone      = "none"
)

// Engine recognizes text in a prepared image region.
//
// Implementations must be safe for concurrent use. Recognize should return
// promptly once ctx is done, but callers do not rely on it: a call that
// outlives its context is abandoned and its result discarded.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, languages []string) (Result, error)
}

// Word is one recognized token.
type Word struct {
	Text string `json:"text"`

	// Confidence is the engine's certainty, 0 to 1.
	Confidence float64 `json:"confidence"`

	// Bounds is in the coordinate space of the image passed to Recognize.
	Bounds image.Rectangle `json:"bounds"`
}

// Result is the output of one Recognize call.
type Result struct {
	Text  string `json:"text"`
	Words []Word `json:"words,omitempty"`
}

// Confident rebuilds the text from words whose confidence is at least min.
// A word that starts below the previous word's bottom edge opens a new line.
// When min <= 0, or the engine reported no words, Text is returned as is.
func (r Result) Confident(min float64) string {
	if min <= 0 || len(r.Words) == 0 {
		return r.Text
	}

	var (
		b        strings.Builder
		prev     image.Rectangle
		haveLine bool
	)
	for _, w := range r.Words {
		if w.Confidence < min || strings.TrimSpace(w.Text) == "" {
			continue
		}
		if haveLine {
			if w.Bounds.Min.Y >= prev.Max.Y {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.Text)
		prev = w.Bounds
		haveLine = true
	}
	return b.String()
}

// Func adapts a plain function to the Engine interface.
type Func func(ctx context.Context, img image.Image, languages []string) (Result, error)

// Name implements Engine.
func (f Func) Name() string {
	return "func"
}

// Recognize implements Engine.
func (f Func) Recognize(ctx context.Context, img image.Image, languages []string) (Result, error) {
	return f(ctx, img, languages)
}

// Config selects and tunes an engine.
type Config struct {
	// Engine is EngineTesseract or EngineNone.
	Engine string `mapstructure:"engine"`

	// TessdataPrefix overrides the directory Tesseract loads
	// <lang>.traineddata from. Empty uses TESSDATA_PREFIX or the system path.
	TessdataPrefix string `mapstructure:"tessdata_prefix"`
}

// New returns the engine named by cfg.Engine.
//
// EngineTesseract yields a working engine only in binaries built with cgo
// and the "ocr" build tag. Otherwise, and for EngineNone, the returned
// engine fails every call with faults.ErrEngineUnavailable so extraction
// still completes with empty fragments.
func New(cfg Config) (Engine, error) {
	switch cfg.Engine {
	case EngineTesseract, "":
		return newTesseract(cfg), nil
	case EngineNone:
		return Unavailable{Engine: EngineNone, Reason: "ocr is disabled by configuration"}, nil
	default:
		return nil, faults.InvalidConfiguration("unknown ocr engine %q (want %q or %q)", cfg.Engine, EngineTesseract, EngineNone)
	}
}

// Unavailable is an Engine that always fails with faults.ErrEngineUnavailable.
type Unavailable struct {
	Engine string
	Reason string
}

// Name implements Engine.
func (u Unavailable) Name() string {
	return u.Engine
}

// Recognize implements Engine.
func (u Unavailable) Recognize(ctx context.Context, _ image.Image, _ []string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{}, faults.EngineUnavailable(u.Engine, errors.New(u.Reason))
}
