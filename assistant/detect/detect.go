// Package detect identifies the language of a text. Network providers are
// tried in order; the script-range guesser answers for very short input and
// whenever the providers come back empty-handed.
package detect

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/fallback"
	"github.com/ownlingo/unibot/internal/logger"
)

// GuesserName is reported as the provider of locally guessed results
const GuesserName = "script-guess"

// ShortText is the rune count below which a recognized script skips the network
const ShortText = 4

// Provider is one detection backend
type Provider = fallback.Provider[assistant.DetectionRequest, assistant.Detection]

// Orchestrator detects languages through the provider chain
type Orchestrator struct {
	chain *fallback.Chain[assistant.DetectionRequest, assistant.Detection]
}

// New builds an orchestrator over providers, tried in the given order
func New(providers ...Provider) *Orchestrator {
	chain := fallback.NewChain(assistant.CapabilityDetect, providers...).
		WithDegrade(func(req assistant.DetectionRequest, _ error) assistant.Detection {
			return guessed(req.Text)
		})
	return &Orchestrator{chain: chain}
}

// Detect never fails on provider errors: the guesser always has the last word
func (o *Orchestrator) Detect(ctx context.Context, req assistant.DetectionRequest) (assistant.Detection, error) {
	if err := req.Validate(); err != nil {
		return assistant.Detection{}, err
	}

	text := strings.TrimSpace(req.Text)
	if utf8.RuneCountInString(text) < ShortText {
		if g := guessed(text); g.Language != nil {
			logger.Debugf("detect: short input, using %s", GuesserName)
			return g, nil
		}
	}

	res, err := o.chain.Run(ctx, assistant.DetectionRequest{Text: text})
	if err != nil {
		return assistant.Detection{}, err
	}

	detection := res.Value
	if res.Degraded {
		return detection, nil
	}
	if detection.Language == nil {
		return guessed(text), nil
	}
	detection.Provider = res.Provider
	return detection, nil
}

func guessed(text string) assistant.Detection {
	return assistant.Detection{
		Language: Guess(text),
		Provider: GuesserName,
		Degraded: true,
	}
}
