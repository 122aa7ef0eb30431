package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/effect"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/chatscan/internal/detection"
	"github.com/ironsheep/chatscan/internal/faults"
	"github.com/ironsheep/chatscan/internal/imaging"
	"github.com/ironsheep/chatscan/internal/ocr"
	"github.com/ironsheep/chatscan/internal/observability"
	"github.com/ironsheep/chatscan/internal/script"
)

// Result is the record handed to downstream consumers. Its JSON shape is
// stable.
type Result struct {
	RawText         string              `json:"raw_text" yaml:"raw_text"`
	CleanText       string              `json:"clean_text" yaml:"clean_text"`
	ExtractedFields map[string][]string `json:"extracted_fields" yaml:"extracted_fields"`
}

// Fragment is the recognized text of one region.
type Fragment struct {
	Index      int              `json:"index" yaml:"index"`
	Region     detection.Region `json:"region" yaml:"region"`
	Text       string           `json:"text" yaml:"text"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`

	err error
}

// Failed reports whether the region's recognition failed.
func (f Fragment) Failed() bool {
	return f.Error != ""
}

// Report is a Result plus the intermediate state that produced it.
// FailedRegions counts fragments whose recognition failed; a Result with
// failures is partial.
type Report struct {
	Result        *Result            `json:"result" yaml:"result"`
	Regions       []detection.Region `json:"regions" yaml:"regions"`
	Fragments     []Fragment         `json:"fragments" yaml:"fragments"`
	FailedRegions int                `json:"failed_regions" yaml:"failed_regions"`
	Fallback      bool               `json:"fallback" yaml:"fallback"`
	Script        string             `json:"script" yaml:"script"`
	Background    imaging.Background `json:"background" yaml:"background"`
	Duration      time.Duration      `json:"duration_ns" yaml:"duration"`
}

// Extractor runs the detect, recognize, merge and normalize pipeline.
//
// An Extractor is immutable after New and safe for concurrent use.
type Extractor struct {
	engine      ocr.Engine
	opts        Options
	detector    RegionDetector
	fields      *FieldSet
	logger      zerolog.Logger
	metrics     *observability.Metrics
	fingerprint string
}

// New validates opts and returns an Extractor that recognizes with engine.
func New(engine ocr.Engine, opts Options) (*Extractor, error) {
	if engine == nil {
		return nil, faults.InvalidConfiguration("ocr engine must not be nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	detector := opts.RegionDetector
	if detector == nil {
		d, err := detection.NewDetector(opts.Detector)
		if err != nil {
			return nil, err
		}
		detector = d
	}

	fields := opts.Fields
	if fields == nil {
		fields = DefaultFields()
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	opts.Languages = append([]string(nil), opts.Languages...)

	e := &Extractor{
		engine:   engine,
		opts:     opts,
		detector: detector,
		fields:   fields,
		logger:   logger.With().Str("component", "extract").Str("engine", engine.Name()).Logger(),
		metrics:  opts.Metrics,
	}
	e.fingerprint = e.computeFingerprint()
	return e, nil
}

// Engine returns the recognition engine.
func (e *Extractor) Engine() ocr.Engine {
	return e.engine
}

// Languages returns a copy of the recognition hints.
func (e *Extractor) Languages() []string {
	return append([]string(nil), e.opts.Languages...)
}

// WithLanguages returns a copy of e that passes languages to the engine.
func (e *Extractor) WithLanguages(languages []string) (*Extractor, error) {
	if len(languages) == 0 {
		return nil, faults.InvalidConfiguration("languages must name at least one language")
	}
	clone := *e
	clone.opts.Languages = append([]string(nil), languages...)
	clone.fingerprint = clone.computeFingerprint()
	return &clone, nil
}

// Fingerprint identifies every setting besides the image that shapes a
// Result: engine, language hints, preprocessing, detection, the word
// confidence floor and the field patterns. Extractors with equal
// fingerprints produce equal Results for the same image.
func (e *Extractor) Fingerprint() string {
	return e.fingerprint
}

type fingerprintInput struct {
	Engine            string           `json:"engine"`
	Languages         []string         `json:"languages"`
	MinWordConfidence float64          `json:"min_word_confidence"`
	Preprocess        imaging.Options  `json:"preprocess"`
	Detector          detection.Config `json:"detector"`
	RegionDetector    string           `json:"region_detector,omitempty"`
	PatternVersion    string           `json:"pattern_version"`
	Fields            [][2]string      `json:"fields"`
}

func (e *Extractor) computeFingerprint() string {
	in := fingerprintInput{
		Engine:            e.engine.Name(),
		Languages:         e.opts.Languages,
		MinWordConfidence: e.opts.MinWordConfidence,
		Preprocess:        e.opts.Preprocess,
		Detector:          e.opts.Detector,
		PatternVersion:    PatternVersion,
	}
	if e.opts.RegionDetector != nil {
		in.RegionDetector = fmt.Sprintf("%T", e.opts.RegionDetector)
		in.Detector = detection.Config{}
	}
	for _, f := range e.fields.fields {
		in.Fields = append(in.Fields, [2]string{f.name, f.pattern.String()})
	}

	// Every member is a plain value, so Marshal cannot fail.
	data, _ := json.Marshal(in)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Extract returns the ExtractionResult for img.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (*Result, error) {
	report, err := e.Analyze(ctx, img)
	if err != nil {
		return nil, err
	}
	return report.Result, nil
}

// ExtractBytes decodes data and extracts from it. Undecodable data fails with
// faults.ErrUnsupportedImage.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte) (*Result, error) {
	report, err := e.AnalyzeBytes(ctx, data)
	if err != nil {
		return nil, err
	}
	return report.Result, nil
}

// AnalyzeBytes decodes data and analyzes it. Undecodable data fails with
// faults.ErrUnsupportedImage.
func (e *Extractor) AnalyzeBytes(ctx context.Context, data []byte) (*Report, error) {
	img, err := imaging.DecodeBytes(data)
	if err != nil {
		e.metrics.RecordExtraction(observability.OutcomeUnsupportedImage, 0)
		return nil, err
	}
	return e.Analyze(ctx, img)
}

// Analyze runs the pipeline and returns the Result along with the regions,
// fragments and background that produced it.
//
// Regions are recognized concurrently, up to Options.Workers at a time, and
// merged in detection order. A region whose engine call fails or times out
// contributes an empty fragment carrying the error. When no region is
// detected the whole image is recognized as one region and Fallback is set.
//
// Canceling ctx abandons in-flight engine calls; Analyze then returns
// ctx.Err() and no Report.
func (e *Extractor) Analyze(ctx context.Context, img image.Image) (*Report, error) {
	start := time.Now()
	report, err := e.analyze(ctx, img)
	e.metrics.RecordExtraction(outcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

func (e *Extractor) analyze(ctx context.Context, img image.Image) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, faults.UnsupportedImage(fmt.Errorf("image has zero area"))
	}

	regions, err := e.detector.Detect(img)
	if err != nil {
		return nil, err
	}
	regions = ordered(regions)
	e.metrics.RecordRegions(len(regions))

	background := imaging.EstimateBackground(img)

	targets := regions
	fallback := len(regions) == 0
	if fallback {
		b := img.Bounds()
		targets = []detection.Region{{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}}
		e.metrics.RecordFallback()
		e.logger.Debug().Msg("No text regions detected, recognizing the whole image")
	}

	// Dark-mode screenshots are inverted so the engine sees dark ink on a
	// light page.
	source := img
	if background.Dark {
		source = effect.Invert(img)
	}

	fragments := make([]Fragment, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(e.opts.Workers)
	for i, region := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fragments[i] = e.recognize(ctx, i, region, source)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, f := range fragments {
		if f.Failed() {
			failed++
		}
	}
	if failed == len(fragments) && engineUnavailable(fragments) {
		return nil, fmt.Errorf("all %d regions failed: %w", failed, fragments[0].err)
	}

	texts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f.Text != "" {
			texts = append(texts, f.Text)
		}
	}
	raw := strings.Join(texts, "\n")
	clean := script.Normalize(raw)

	e.logger.Debug().
		Int("regions", len(regions)).
		Int("failed_regions", failed).
		Bool("fallback", fallback).
		Int("raw_length", len(raw)).
		Msg("Extraction complete")

	return &Report{
		Result: &Result{
			RawText:         raw,
			CleanText:       clean,
			ExtractedFields: e.fields.Extract(clean),
		},
		Regions:       regions,
		Fragments:     fragments,
		FailedRegions: failed,
		Fallback:      fallback,
		Script:     script.Dominant(clean),
		Background: background,
	}, nil
}

// recognize crops, prepares and recognizes one region. Failures are recorded
// on the fragment, never returned.
func (e *Extractor) recognize(ctx context.Context, index int, region detection.Region, img image.Image) Fragment {
	frag := Fragment{Index: index, Region: region}

	result, err := e.recognizeRegion(ctx, region, img)
	if err != nil {
		if ctx.Err() != nil {
			// The whole extraction was canceled; the fragment is discarded.
			return frag
		}
		reason := observability.ReasonError
		if errors.Is(err, context.DeadlineExceeded) {
			reason = observability.ReasonTimeout
		}
		e.metrics.RecordRegionFailure(reason)

		failure := faults.RegionFailure(index, err)
		e.logger.Warn().
			Int("region_index", index).
			Int("x", region.X).
			Int("y", region.Y).
			Int("width", region.Width).
			Int("height", region.Height).
			Err(err).
			Msg("Region recognition failed")
		frag.Error = failure.Error()
		frag.err = err
		return frag
	}

	frag.Text = strings.TrimSpace(result.Confident(e.opts.MinWordConfidence))
	frag.Confidence = meanConfidence(result.Words)
	return frag
}

func (e *Extractor) recognizeRegion(ctx context.Context, region detection.Region, img image.Image) (ocr.Result, error) {
	crop, err := imaging.Crop(img, region.Rect())
	if err != nil {
		return ocr.Result{}, err
	}
	prepared, err := imaging.Prepare(crop, e.opts.Preprocess)
	if err != nil {
		return ocr.Result{}, err
	}

	rctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()
	return e.call(rctx, prepared)
}

type recognition struct {
	result ocr.Result
	err    error
}

// call runs the engine in its own goroutine so a call that ignores ctx is
// still abandoned when ctx ends. Engine panics become errors.
func (e *Extractor) call(ctx context.Context, img image.Image) (ocr.Result, error) {
	done := make(chan recognition, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- recognition{err: fmt.Errorf("ocr engine panic: %v", r)}
			}
		}()
		result, err := e.engine.Recognize(ctx, img, e.opts.Languages)
		done <- recognition{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return ocr.Result{}, ctx.Err()
	case r := <-done:
		return r.result, r.err
	}
}

// ordered returns a copy of regions sorted top-to-bottom, then
// left-to-right. Ties keep detection order.
func ordered(regions []detection.Region) []detection.Region {
	out := make([]detection.Region, len(regions))
	copy(out, regions)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func meanConfidence(words []ocr.Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

// engineUnavailable reports whether every fragment failed because the engine
// itself is unavailable, as opposed to a fault in one region.
func engineUnavailable(fragments []Fragment) bool {
	if len(fragments) == 0 {
		return false
	}
	for _, f := range fragments {
		if !errors.Is(f.err, faults.ErrEngineUnavailable) {
			return false
		}
	}
	return true
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return observability.OutcomeCanceled
	case errors.Is(err, faults.ErrInvalidConfiguration):
		return observability.OutcomeInvalidConfiguration
	case errors.Is(err, faults.ErrUnsupportedImage):
		return observability.OutcomeUnsupportedImage
	case errors.Is(err, faults.ErrEngineUnavailable):
		return observability.OutcomeEngineUnavailable
	default:
		return observability.OutcomeError
	}
}
