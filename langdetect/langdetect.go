// Package langdetect tags conversation text with a best-effort language
// code, so the UI can render script-appropriate text without asking the
// remote service.
package langdetect

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Detector identifies the language of short conversational text. It is
// restricted to English plus the Indic languages the travel tables cover;
// a narrow candidate set keeps short-text detection reliable.
type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector. Construction is relatively expensive; share one
// instance per process.
func New() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English,
				lingua.Hindi,
				lingua.Bengali,
				lingua.Gujarati,
				lingua.Marathi,
				lingua.Punjabi,
				lingua.Tamil,
				lingua.Telugu,
			).
			Build(),
	}
}

// Detect returns the lowercase ISO 639-1 code for text, or ok=false when
// the text is too short or ambiguous to classify.
func (d *Detector) Detect(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}
