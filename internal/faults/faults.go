// Package faults defines the error taxonomy shared by the extraction pipeline.
//
// Every failure that crosses a package boundary carries a Code. Callers match
// categories with errors.Is against the exported sentinels:
//
//	if errors.Is(err, faults.ErrInvalidConfiguration) { ... }
//
// Only INVALID_CONFIGURATION and UNSUPPORTED_IMAGE ever reach the caller of an
// extraction. Region-level failures are absorbed and logged by the orchestrator.
package faults

import (
	"errors"
	"fmt"
)

// Code identifies an error category.
type Code string

const (
	CodeInvalidConfiguration Code = "INVALID_CONFIGURATION"
	CodeUnsupportedImage     Code = "UNSUPPORTED_IMAGE"
	CodeRegionFailed         Code = "REGION_RECOGNITION_FAILED"
	CodeEngineUnavailable    Code = "ENGINE_UNAVAILABLE"
)

// Sentinels for errors.Is matching. They carry no message or cause.
var (
	ErrInvalidConfiguration = &Error{Code: CodeInvalidConfiguration}
	ErrUnsupportedImage     = &Error{Code: CodeUnsupportedImage}
	ErrRegionFailed         = &Error{Code: CodeRegionFailed}
	ErrEngineUnavailable    = &Error{Code: CodeEngineUnavailable}
)

// Error is a categorized pipeline error.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// InvalidConfiguration reports options that were rejected before any processing.
func InvalidConfiguration(format string, args ...interface{}) *Error {
	return &Error{
		Code:    CodeInvalidConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// UnsupportedImage reports input that could not be decoded as a raster image.
func UnsupportedImage(cause error) *Error {
	return &Error{
		Code:    CodeUnsupportedImage,
		Message: "input is not a decodable raster image",
		Cause:   cause,
	}
}

// RegionFailure wraps an OCR failure for the region at index.
func RegionFailure(index int, cause error) *Error {
	return &Error{
		Code:    CodeRegionFailed,
		Message: fmt.Sprintf("recognition failed for region %d", index),
		Cause:   cause,
	}
}

// EngineUnavailable reports an OCR engine that cannot run in this build or host.
func EngineUnavailable(engine string, cause error) *Error {
	return &Error{
		Code:    CodeEngineUnavailable,
		Message: fmt.Sprintf("ocr engine %q is not available", engine),
		Cause:   cause,
	}
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
