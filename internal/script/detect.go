package script

import "unicode"

// Script names reported by Dominant.
const (
	Arabic  = "arabic"
	Latin   = "latin"
	Mixed   = "mixed"
	Unknown = "unknown"
)

// dominantShare is the fraction of letters one script needs to be reported
// alone instead of Mixed.
const dominantShare = 0.8

// Dominant reports which script the letters of text are written in. Digits,
// punctuation and letters of other scripts are ignored.
func Dominant(text string) string {
	var arabic, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}

	total := arabic + latin
	switch {
	case total == 0:
		return Unknown
	case float64(arabic)/float64(total) >= dominantShare:
		return Arabic
	case float64(latin)/float64(total) >= dominantShare:
		return Latin
	default:
		return Mixed
	}
}
