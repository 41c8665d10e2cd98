// Package ocr extracts text from images through a single recognition
// provider. It owns the mapping from UI language codes to the engine's
// three-letter codes and normalizes the image payload the provider receives.
package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/language"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/providers/ocrspace"
)

// DefaultEngineLanguage is used for UI codes missing from the table
const DefaultEngineLanguage = "eng"

var engineLanguages = map[string]string{
	"en":    "eng",
	"es":    "spa",
	"fr":    "fre",
	"de":    "ger",
	"it":    "ita",
	"pt":    "por",
	"ru":    "rus",
	"uk":    "ukr",
	"ja":    "jpn",
	"ko":    "kor",
	"zh":    "chs",
	"zh-TW": "cht",
	"ar":    "ara",
	"hi":    "hin",
	"th":    "tha",
	"vi":    "vnm",
	"tr":    "tur",
	"pl":    "pol",
	"nl":    "dut",
	"sv":    "swe",
	"da":    "dan",
	"fi":    "fin",
	"cs":    "cze",
	"hu":    "hun",
	"el":    "gre",
	"bg":    "bul",
	"hr":    "hrv",
	"sl":    "slv",
}

// EngineLanguage maps a UI code to the engine's code. Keys match without
// regard to case, region tags fall back to their base language, and
// three-letter codes already known to the engine pass through unchanged.
func EngineLanguage(code string) string {
	code = strings.TrimSpace(code)
	if lang, ok := engineLanguages[code]; ok {
		return lang
	}
	for key, lang := range engineLanguages {
		if strings.EqualFold(key, code) {
			return lang
		}
	}
	for _, lang := range engineLanguages {
		if lang == code {
			return code
		}
	}
	if tag, err := language.Parse(code); err == nil {
		base, _ := tag.Base()
		if base.String() == "zh" {
			if script, _ := tag.Script(); script.String() == "Hant" {
				return engineLanguages["zh-TW"]
			}
		}
		if lang, ok := engineLanguages[base.String()]; ok {
			return lang
		}
	}
	return DefaultEngineLanguage
}

// Languages returns the UI codes with a dedicated engine language, sorted
func Languages() []string {
	codes := make([]string, 0, len(engineLanguages))
	for code := range engineLanguages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Recognizer is the provider contract the adapter needs
type Recognizer interface {
	Recognize(ctx context.Context, dataURL, language string) (ocrspace.Page, error)
}

// Adapter validates requests and normalizes provider output
type Adapter struct {
	recognizer Recognizer
}

// New returns an adapter; a nil recognizer makes every call a configuration error
func New(recognizer Recognizer) *Adapter {
	return &Adapter{recognizer: recognizer}
}

// Configured reports whether a recognizer exists
func (a *Adapter) Configured() bool {
	return a.recognizer != nil
}

// Recognize extracts text from req.Image. Confidence is 1 when text was
// found and 0 otherwise; the provider reports no score of its own.
func (a *Adapter) Recognize(ctx context.Context, req assistant.OCRRequest) (assistant.OCRResult, error) {
	if !a.Configured() {
		return assistant.OCRResult{}, assistant.MissingCredential("OCR_SPACE_API_KEY")
	}
	if err := req.Validate(); err != nil {
		return assistant.OCRResult{}, err
	}

	dataURL, err := DataURL(req.Image)
	if err != nil {
		return assistant.OCRResult{}, err
	}

	page, err := a.recognizer.Recognize(ctx, dataURL, EngineLanguage(req.Language))
	if err != nil {
		return assistant.OCRResult{}, err
	}

	text := CleanText(page.Text)
	result := assistant.OCRResult{Text: text, Language: req.Language}
	if text != "" {
		result.Confidence = 1
	}
	return result, nil
}

// DataURL accepts a data URL or bare base64 and returns a data URL whose
// media type is sniffed from the decoded bytes when missing
func DataURL(image string) (string, error) {
	image = strings.TrimSpace(image)
	payload := image
	if strings.HasPrefix(image, "data:") {
		comma := strings.IndexByte(image, ',')
		if comma < 0 {
			return "", assistant.Invalid("image", "Missing image data")
		}
		header := image[len("data:"):comma]
		payload = image[comma+1:]
		if strings.HasSuffix(header, ";base64") && strings.HasPrefix(header, "image/") && payload != "" {
			return image, nil
		}
	}

	payload = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return "", assistant.Invalid("image", "Missing image data")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return "", assistant.Invalid("image", "Invalid image data")
	}

	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(raw)), nil
}

// CleanText drops control characters other than newlines and tabs, turns
// CRLF into LF, and trims surrounding space
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return '\n'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}
