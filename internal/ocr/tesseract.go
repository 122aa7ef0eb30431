//go:build cgo && ocr

package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/chatscan/internal/faults"
	"github.com/ironsheep/chatscan/internal/imaging"
)

// Tesseract recognizes text with libtesseract through gosseract.
//
// gosseract clients are not safe for concurrent use, so every Recognize call
// creates and closes its own client.
type Tesseract struct {
	tessdataPrefix string
}

func newTesseract(cfg Config) Engine {
	return &Tesseract{tessdataPrefix: cfg.TessdataPrefix}
}

// Name implements Engine.
func (t *Tesseract) Name() string {
	return EngineTesseract
}

// Recognize runs Tesseract over img in single-block mode. languages are
// passed through TesseractLanguages first.
//
// The underlying C call cannot be interrupted; ctx is only checked before it
// starts.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, languages []string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return Result{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.tessdataPrefix); err != nil {
			return Result{}, faults.EngineUnavailable(EngineTesseract, err)
		}
	}
	if err := client.SetLanguage(TesseractLanguages(languages)...); err != nil {
		return Result{}, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return Result{}, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return Result{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("OCR failed: %w", err)
	}

	// Word boxes are optional; keep the text when they fail.
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{Text: text}, nil
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Confidence: box.Confidence / 100.0,
			Bounds:     box.Box,
		})
	}
	return Result{Text: text, Words: words}, nil
}
