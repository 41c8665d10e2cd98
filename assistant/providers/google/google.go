// Package google calls the Cloud Translation v2 REST API for translation and
// language detection. Both endpoints take their parameters, API key included,
// in the query string of a POST.
package google

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/httpcall"
	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the Cloud Translation v2 endpoint
	DefaultBaseURL = "https://translation.googleapis.com/language/translate/v2"

	// CredentialGroup is shared with the Gemini providers
	CredentialGroup = "google"
)

// Translator implements translation over Cloud Translation v2
type Translator struct {
	client *httpcall.Client
	apiKey string
	spec   httpcall.Spec
}

// NewTranslator creates a translator; an empty baseURL selects DefaultBaseURL
func NewTranslator(client *httpcall.Client, baseURL, apiKey string) *Translator {
	return &Translator{
		client: client,
		apiKey: apiKey,
		spec: httpcall.Spec{
			Name:     "google-translate",
			Method:   http.MethodPost,
			Endpoint: base(baseURL),
			Encoding: httpcall.EncodingQuery,
			Extract:  []string{"data.translations.0.translatedText"},
			Classify: httpcall.QuotaAware(CredentialGroup),
		},
	}
}

// Name returns the provider name
func (t *Translator) Name() string {
	return "google"
}

// CredentialGroup reports the key this provider bills against
func (t *Translator) CredentialGroup() string {
	return CredentialGroup
}

// Call translates req.Text. The source parameter is omitted for auto detection.
func (t *Translator) Call(ctx context.Context, req assistant.TranslationRequest) (assistant.TranslationResponse, error) {
	start := time.Now()

	fields := []httpcall.Field{
		{Key: "key", Value: t.apiKey},
		{Key: "q", Value: req.Text},
		{Key: "target", Value: req.Target},
		{Key: "format", Value: "text"},
	}
	if !req.AutoSource() {
		fields = append(fields, httpcall.Field{Key: "source", Value: req.Source})
	}

	resp, err := t.client.Call(ctx, t.spec, httpcall.Request{Fields: fields})
	if err != nil {
		return assistant.TranslationResponse{}, err
	}

	return assistant.TranslationResponse{
		Translation: resp.Text(),
		Provider:    t.Name(),
		Duration:    time.Since(start),
	}, nil
}

// Detector implements language detection over Cloud Translation v2
type Detector struct {
	client *httpcall.Client
	apiKey string
	spec   httpcall.Spec
}

// NewDetector creates a detector; an empty baseURL selects DefaultBaseURL
func NewDetector(client *httpcall.Client, baseURL, apiKey string) *Detector {
	return &Detector{
		client: client,
		apiKey: apiKey,
		spec: httpcall.Spec{
			Name:     "google-detect",
			Method:   http.MethodPost,
			Endpoint: base(baseURL) + "/detect",
			Encoding: httpcall.EncodingQuery,
			Extract:  []string{"data.detections.0.0.language"},
			Classify: httpcall.QuotaAware(CredentialGroup),
		},
	}
}

// Name returns the provider name
func (d *Detector) Name() string {
	return "google"
}

// CredentialGroup reports the key this provider bills against
func (d *Detector) CredentialGroup() string {
	return CredentialGroup
}

// Call detects the language of req.Text. A zero confidence is reported as unknown.
func (d *Detector) Call(ctx context.Context, req assistant.DetectionRequest) (assistant.Detection, error) {
	resp, err := d.client.Call(ctx, d.spec, httpcall.Request{Fields: []httpcall.Field{
		{Key: "key", Value: d.apiKey},
		{Key: "q", Value: req.Text},
	}})
	if err != nil {
		return assistant.Detection{}, err
	}

	detection := assistant.Detection{
		Language: assistant.StringPtr(resp.Text()),
		Provider: d.Name(),
	}
	if c := gjson.GetBytes(resp.Body, "data.detections.0.0.confidence").Float(); c > 0 {
		detection.Confidence = &c
	}
	return detection, nil
}

func base(baseURL string) string {
	if baseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}
