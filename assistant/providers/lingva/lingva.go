// Package lingva uses the Lingva community front end. Every parameter travels
// in the URL path; detection translates to English from "auto" and reads back
// the source language the service reports.
package lingva

import (
	"context"
	"strings"
	"time"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/httpcall"
)

// DefaultBaseURL is the public Lingva instance
const DefaultBaseURL = "https://lingva.ml"

func endpoint(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/api/v1/{source}/{target}/{q}"
}

// Translator implements translation through Lingva
type Translator struct {
	client *httpcall.Client
	spec   httpcall.Spec
}

func NewTranslator(client *httpcall.Client, baseURL string) *Translator {
	return &Translator{
		client: client,
		spec: httpcall.Spec{
			Name:     "lingva-translate",
			Endpoint: endpoint(baseURL),
			Encoding: httpcall.EncodingPath,
			Extract:  []string{"translation", "translatedText"},
		},
	}
}

func (t *Translator) Name() string {
	return "lingva"
}

func (t *Translator) Call(ctx context.Context, req assistant.TranslationRequest) (assistant.TranslationResponse, error) {
	start := time.Now()

	source := req.Source
	if source == "" {
		source = assistant.AutoLanguage
	}
	resp, err := t.client.Call(ctx, t.spec, httpcall.Request{Path: map[string]string{
		"source": source,
		"target": req.Target,
		"q":      req.Text,
	}})
	if err != nil {
		return assistant.TranslationResponse{}, err
	}

	return assistant.TranslationResponse{
		Translation: resp.Text(),
		Provider:    t.Name(),
		Duration:    time.Since(start),
	}, nil
}

// Detector infers the source language from an auto->en translation
type Detector struct {
	client *httpcall.Client
	spec   httpcall.Spec
}

func NewDetector(client *httpcall.Client, baseURL string) *Detector {
	return &Detector{
		client: client,
		spec: httpcall.Spec{
			Name:     "lingva-detect",
			Endpoint: endpoint(baseURL),
			Encoding: httpcall.EncodingPath,
			Extract:  []string{"info.detectedSource", "info.from", "src", "source"},
		},
	}
}

func (d *Detector) Name() string {
	return "lingva"
}

// Call never reports a confidence
func (d *Detector) Call(ctx context.Context, req assistant.DetectionRequest) (assistant.Detection, error) {
	resp, err := d.client.Call(ctx, d.spec, httpcall.Request{Path: map[string]string{
		"source": assistant.AutoLanguage,
		"target": "en",
		"q":      req.Text,
	}})
	if err != nil {
		return assistant.Detection{}, err
	}
	return assistant.Detection{
		Language: assistant.StringPtr(resp.Text()),
		Provider: d.Name(),
	}, nil
}
