package translate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/fallback"
	"golang.org/x/text/language"
)

// ErrFailed is the user-facing failure once every translation provider is exhausted
var ErrFailed = errors.New("Translation failed")

// Provider is one translation backend
type Provider = fallback.Provider[assistant.TranslationRequest, assistant.TranslationResponse]

// Orchestrator translates text through the provider chain. It holds no state
// between calls.
type Orchestrator struct {
	chain *fallback.Chain[assistant.TranslationRequest, assistant.TranslationResponse]
}

// New builds an orchestrator over providers, tried in the given order
func New(providers ...Provider) *Orchestrator {
	return &Orchestrator{chain: fallback.NewChain(assistant.CapabilityTranslate, providers...)}
}

// Translate validates req and returns the first non-empty translation
func (o *Orchestrator) Translate(ctx context.Context, req assistant.TranslationRequest) (assistant.TranslationResponse, error) {
	if err := req.Validate(); err != nil {
		return assistant.TranslationResponse{}, err
	}
	req.Target = NormalizeCode(req.Target)
	if !req.AutoSource() {
		req.Source = NormalizeCode(req.Source)
	}

	start := time.Now()
	res, err := o.chain.Run(ctx, req)
	if err != nil {
		if errors.Is(err, assistant.ErrExhausted) {
			return assistant.TranslationResponse{}, &FailedError{Err: err}
		}
		return assistant.TranslationResponse{}, err
	}

	resp := res.Value
	resp.Provider = res.Provider
	resp.Duration = time.Since(start)
	return resp, nil
}

// FailedError reports chain exhaustion; it matches both ErrFailed and assistant.ErrExhausted
type FailedError struct {
	Err error
}

func (e *FailedError) Error() string {
	return ErrFailed.Error()
}

func (e *FailedError) Is(target error) bool {
	return target == ErrFailed
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// NormalizeCode canonicalizes a BCP 47 tag ("PT-br" -> "pt-BR"). Codes the
// parser rejects are passed through trimmed so providers can judge them.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || code == assistant.AutoLanguage {
		return code
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}
