package app

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

// UnknownLanguage is reported whenever detection is skipped or not confident.
const UnknownLanguage = "unknown"

// LanguageDetector maps review text to an ISO 639-1 code.
// The zero value is usable: minimum 3 letters, and only guesses whatlanggo
// itself rates reliable are kept.
type LanguageDetector struct {
	MinChars      int
	MinConfidence float64 // 0 means whatlanggo's reliability threshold
}

func NewLanguageDetector() LanguageDetector {
	return LanguageDetector{MinChars: 3}
}

func (d LanguageDetector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return UnknownLanguage
	}
	minChars := d.MinChars
	if minChars <= 0 {
		minChars = 3
	}
	if nonSpaceRunes(text) < minChars {
		return UnknownLanguage
	}

	info := whatlanggo.Detect(text)
	reliable := info.IsReliable()
	if d.MinConfidence > 0 {
		reliable = info.Confidence >= d.MinConfidence
	}
	if !reliable {
		return UnknownLanguage
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return UnknownLanguage
	}
	return code
}

func nonSpaceRunes(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
