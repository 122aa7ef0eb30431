// Package ocr is the boundary to the text recognition engine.
//
// The pipeline talks to recognition through the Engine interface only. Two
// implementations ship with the module:
//
//   - Tesseract, via gosseract/v2. It is compiled only with cgo and the "ocr"
//     build tag: go build -tags ocr ./...
//   - Unavailable, which fails every call with ENGINE_UNAVAILABLE. New returns
//     it for the "none" engine and for "tesseract" in builds without the tag.
//
// Func adapts a plain function into an Engine, which is how tests script
// recognition results.
//
// # Prerequisites
//
// The Tesseract build needs libtesseract and leptonica headers plus language
// data for every hint in use:
//   - Ubuntu/Debian: apt-get install libtesseract-dev tesseract-ocr-eng tesseract-ocr-urd
//   - macOS: brew install tesseract tesseract-lang
//
// # Languages
//
// Hints are ISO 639-1 codes ("en", "ur", "ar", "fa", "hi"); TesseractLanguages
// maps them to traineddata names ("eng", "urd", ...). Tesseract loads every
// requested model, so listing both "en" and "ur" lets one pass read
// mixed-script messages.
package ocr
