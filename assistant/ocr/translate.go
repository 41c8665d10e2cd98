package ocr

import (
	"context"
	"strings"

	"golang.org/x/text/language"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/internal/logger"
)

// Translator renders recognized text in another language
type Translator interface {
	Translate(ctx context.Context, req assistant.TranslationRequest) (assistant.TranslationResponse, error)
}

// Reader is anything that turns an OCRRequest into text, such as *Adapter
type Reader interface {
	Recognize(ctx context.Context, req assistant.OCRRequest) (assistant.OCRResult, error)
}

// Extraction is recognized text plus its optional translation. A failed
// translation leaves Translation empty and records the cause in TranslateErr.
type Extraction struct {
	assistant.OCRResult
	Translation  string
	Provider     string
	TranslateErr error
}

// Translated reports whether a translation sits next to the text
func (e Extraction) Translated() bool {
	return e.Translation != ""
}

// SameLanguage reports whether two codes name the same language tag
func SameLanguage(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if strings.EqualFold(a, b) {
		return true
	}
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return ta == tb
}

// Extract runs recognition and, when target names a language other than
// req.Language, translates the text from req.Language into target.
// Recognition errors are returned; translation errors never are.
func Extract(ctx context.Context, rec Reader, tr Translator, req assistant.OCRRequest, target string) (Extraction, error) {
	res, err := rec.Recognize(ctx, req)
	if err != nil {
		return Extraction{}, err
	}
	out := Extraction{OCRResult: res}

	target = strings.TrimSpace(target)
	if target == "" || tr == nil || res.Text == "" || SameLanguage(target, req.Language) {
		return out, nil
	}

	tres, err := tr.Translate(ctx, assistant.TranslationRequest{
		Text:   res.Text,
		Source: req.Language,
		Target: target,
	})
	if err != nil {
		logger.Warnf("ocr: translating extracted text to %s failed: %v", target, err)
		out.TranslateErr = err
		return out, nil
	}
	out.Translation, out.Provider = tres.Translation, tres.Provider
	return out, nil
}
