package ocr

import "strings"

// tesseractCodes maps ISO 639-1 hints to Tesseract traineddata names for the
// scripts chat screenshots usually mix.
var tesseractCodes = map[string]string{
	"en": "eng",
	"ur": "urd",
	"ar": "ara",
	"fa": "fas",
	"hi": "hin",
	"pa": "pan",
	"ps": "pus",
	"sd": "snd",
}

// TesseractLanguages converts language hints to Tesseract codes.
//
// Known two-letter codes are matched case-insensitively and mapped; anything
// else (already "eng", or a script model such as "script/Arabic") passes
// through unchanged. Blank hints are dropped and duplicates removed with the
// first occurrence kept. An empty result falls back to English.
func TesseractLanguages(hints []string) []string {
	out := make([]string, 0, len(hints))
	seen := make(map[string]bool, len(hints))
	for _, h := range hints {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		code := h
		if mapped, ok := tesseractCodes[strings.ToLower(h)]; ok {
			code = mapped
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	if len(out) == 0 {
		return []string{"eng"}
	}
	return out
}
