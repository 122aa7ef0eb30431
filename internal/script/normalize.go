package script

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes OCR output for pattern matching.
//
// The passes run in this order:
//  1. Arabic presentation forms fold to base letters (static tables, NFKC
//     fallback inside the presentation-form blocks only).
//  2. Tatweel is dropped and Arabic-Indic digits become ASCII digits.
//  3. Whitespace runs, bidi controls and zero-width joiners collapse to a
//     single ASCII space and the ends are trimmed.
//  4. Runs of Arabic-block code points are composed to NFC, so alef plus
//     hamza above becomes U+0623. Text outside those blocks is not composed.
//
// Normalize is idempotent and never fails; code points it does not recognize
// pass through unchanged. Invalid UTF-8 bytes become U+FFFD.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	folded := foldPresentationForms(text)

	t := transform.Chain(
		runes.Remove(runes.Predicate(func(r rune) bool { return r == tatweel })),
		runes.Map(mapDigit),
	)
	mapped, _, err := transform.String(t, folded)
	if err != nil {
		// runes transformers only fail on short buffers, which transform.String handles.
		mapped = folded
	}

	return composeArabic(collapseSpace(mapped))
}

// composeArabic applies NFC to each maximal run of Arabic-block code points
// and copies everything else as is.
func composeArabic(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	start := -1
	for i, r := range text {
		in := unicode.Is(arabicBlocks, r)
		if in {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			b.WriteString(norm.NFC.String(text[start:i]))
			start = -1
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		b.WriteString(norm.NFC.String(text[start:]))
	}
	return b.String()
}

func foldPresentationForms(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if base, ok := presentationForms[r]; ok {
			b.WriteString(base)
			continue
		}
		if unicode.Is(presentationRanges, r) {
			b.WriteString(norm.NFKC.String(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func mapDigit(r rune) rune {
	if d, ok := digits[r]; ok {
		return d
	}
	return r
}

// IsSeparator reports whether r collapses to a space during normalization.
func IsSeparator(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(invisibleSeparators, r)
}

func collapseSpace(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pending := false
	for _, r := range text {
		if IsSeparator(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
