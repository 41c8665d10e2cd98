// Package app builds every capability once from the process configuration
// and hands the result to the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/chat"
	"github.com/ownlingo/unibot/assistant/conversation"
	"github.com/ownlingo/unibot/assistant/detect"
	"github.com/ownlingo/unibot/assistant/httpcall"
	"github.com/ownlingo/unibot/assistant/ocr"
	"github.com/ownlingo/unibot/assistant/preferences"
	"github.com/ownlingo/unibot/assistant/providers/anthropic"
	"github.com/ownlingo/unibot/assistant/providers/gemini"
	"github.com/ownlingo/unibot/assistant/providers/google"
	"github.com/ownlingo/unibot/assistant/providers/googletts"
	"github.com/ownlingo/unibot/assistant/providers/libre"
	"github.com/ownlingo/unibot/assistant/providers/lingva"
	"github.com/ownlingo/unibot/assistant/providers/ocrspace"
	"github.com/ownlingo/unibot/assistant/providers/openai"
	"github.com/ownlingo/unibot/assistant/speech"
	"github.com/ownlingo/unibot/assistant/translate"
	"github.com/ownlingo/unibot/internal/config"
	"github.com/ownlingo/unibot/internal/logger"
)

// Assistant holds one orchestrator per capability
type Assistant struct {
	Config    *config.Config
	Chat      *chat.Orchestrator
	Translate *translate.Orchestrator
	Detect    *detect.Orchestrator
	TTS       *googletts.Client
	Speech    *speech.Narrator
	OCR       *ocr.Adapter

	// Providers lists provider names per capability in chain order
	Providers map[assistant.Capability][]string

	chatProviders []chat.Provider
}

// New constructs every orchestrator. Providers whose credential is absent are
// left out; a capability with no provider at all reports a configuration
// error when used.
func New(ctx context.Context, cfg *config.Config) (*Assistant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	client := httpcall.NewClient(httpcall.NewHTTPClient(cfg.Server.HTTPTimeout))
	a := &Assistant{
		Config:    cfg,
		Providers: make(map[assistant.Capability][]string),
	}

	chatProviders, err := buildChat(ctx, cfg, client)
	if err != nil {
		return nil, err
	}
	a.chatProviders = chatProviders
	a.Chat = chat.New(chatProviders...)
	a.Providers[assistant.CapabilityChat] = names(chatProviders)

	translators := buildTranslators(cfg, client)
	a.Translate = translate.New(translators...)
	a.Providers[assistant.CapabilityTranslate] = names(translators)

	detectors := buildDetectors(cfg, client)
	a.Detect = detect.New(detectors...)
	a.Providers[assistant.CapabilityDetect] = names(detectors)

	a.TTS = googletts.New(client, cfg.Providers.TTS.URL)
	a.Speech = speech.NewNarrator(a.TTS, nil, nil)
	a.Providers[assistant.CapabilityTTS] = []string{a.TTS.Name()}

	a.OCR = ocr.New(nil)
	if key := cfg.Providers.OCRSpace.APIKey; key != "" {
		ocrCfg := ocrspace.DefaultConfig(key)
		if cfg.Providers.OCRSpace.Endpoint != "" {
			ocrCfg.Endpoint = cfg.Providers.OCRSpace.Endpoint
		}
		if cfg.Providers.OCRSpace.Engine != 0 {
			ocrCfg.Engine = cfg.Providers.OCRSpace.Engine
		}
		recognizer, err := ocrspace.New(client, ocrCfg)
		if err != nil {
			return nil, err
		}
		a.OCR = ocr.New(recognizer)
		a.Providers[assistant.CapabilityOCR] = []string{recognizer.Name()}
	}

	for _, c := range a.Capabilities() {
		logger.Infof("app: %s providers: %s", c, strings.Join(a.Providers[c], ", "))
	}
	return a, nil
}

// Capabilities returns the capabilities that have at least one provider
func (a *Assistant) Capabilities() []assistant.Capability {
	caps := make([]assistant.Capability, 0, len(a.Providers))
	for c, ps := range a.Providers {
		if len(ps) > 0 {
			caps = append(caps, c)
		}
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// ApplyLimits pushes the per-minute caps from a reloaded config onto the
// running generation providers
func (a *Assistant) ApplyLimits(cfg *config.Config) {
	if cfg == nil {
		return
	}
	pc := cfg.Providers
	for _, p := range a.chatProviders {
		switch p := p.(type) {
		case *gemini.Provider:
			p.SetLimits(pc.Google.TPM, pc.Google.RPM)
		case *openai.Provider:
			p.SetLimits(pc.OpenAI.TPM, pc.OpenAI.RPM)
		case *anthropic.Provider:
			p.SetLimits(pc.Anthropic.TPM, pc.Anthropic.RPM)
		}
	}
	logger.Debugf("app: rate limits google=%d/%d openai=%d/%d anthropic=%d/%d",
		pc.Google.TPM, pc.Google.RPM, pc.OpenAI.TPM, pc.OpenAI.RPM, pc.Anthropic.TPM, pc.Anthropic.RPM)
}

// Session starts a conversation over the shared orchestrators
func (a *Assistant) Session(prefs preferences.Store) *conversation.Session {
	return conversation.NewSession(a.Chat, a.Translate, a.Detect, prefs)
}

func names[P interface{ Name() string }](providers []P) []string {
	out := make([]string, 0, len(providers))
	for _, p := range providers {
		out = append(out, p.Name())
	}
	return out
}

func buildChat(ctx context.Context, cfg *config.Config, client *httpcall.Client) ([]chat.Provider, error) {
	var providers []chat.Provider
	pc := cfg.Providers
	hc := client.HTTPClient()

	if pc.Google.APIKey != "" {
		models := []string{pc.Google.Model}
		if pc.Google.SecondaryModel != "" && pc.Google.SecondaryModel != pc.Google.Model {
			models = append(models, pc.Google.SecondaryModel)
		}
		for _, model := range models {
			gc := gemini.DefaultConfig(pc.Google.APIKey)
			gc.Model = model
			gc.BaseURL = pc.Google.BaseURL
			gc.HTTPClient = hc
			gc.TPM, gc.RPM = pc.Google.TPM, pc.Google.RPM
			p, err := gemini.NewProvider(ctx, gc)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		}
	}

	if pc.OpenAI.APIKey != "" {
		oc := openai.DefaultConfig(pc.OpenAI.APIKey)
		if pc.OpenAI.Model != "" {
			oc.Model = pc.OpenAI.Model
		}
		oc.BaseURL = pc.OpenAI.BaseURL
		oc.HTTPClient = hc
		oc.TPM, oc.RPM = pc.OpenAI.TPM, pc.OpenAI.RPM
		p, err := openai.NewProvider(oc)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	if pc.Anthropic.APIKey != "" {
		ac := anthropic.DefaultConfig(pc.Anthropic.APIKey)
		if pc.Anthropic.Model != "" {
			ac.Model = pc.Anthropic.Model
		}
		ac.BaseURL = pc.Anthropic.BaseURL
		ac.HTTPClient = hc
		ac.TPM, ac.RPM = pc.Anthropic.TPM, pc.Anthropic.RPM
		p, err := anthropic.NewProvider(ac)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	return providers, nil
}

// Translation uses the configured LibreTranslate host only; the public
// mirrors are reserved for detection.
func buildTranslators(cfg *config.Config, client *httpcall.Client) []translate.Provider {
	var providers []translate.Provider
	pc := cfg.Providers
	if pc.Google.APIKey != "" {
		providers = append(providers, google.NewTranslator(client, pc.Google.TranslateURL, pc.Google.APIKey))
	}
	hosts := cfg.LibreHosts()
	providers = append(providers,
		libre.NewTranslator(client, hosts[0], pc.Libre.APIKey),
		lingva.NewTranslator(client, pc.Lingva.URL),
	)
	return providers
}

func buildDetectors(cfg *config.Config, client *httpcall.Client) []detect.Provider {
	var providers []detect.Provider
	pc := cfg.Providers
	if pc.Google.APIKey != "" {
		providers = append(providers, google.NewDetector(client, pc.Google.TranslateURL, pc.Google.APIKey))
	}
	for _, host := range cfg.LibreHosts() {
		providers = append(providers, libre.NewDetector(client, host, pc.Libre.APIKey))
	}
	return append(providers, lingva.NewDetector(client, pc.Lingva.URL))
}
