// Package libre talks to LibreTranslate instances. Public instances differ in
// which request encodings and response shapes they accept, so detection tries
// a form post before a JSON post and reads both list shapes.
package libre

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/httpcall"
	"github.com/ownlingo/unibot/assistant/retry"
	"github.com/tidwall/gjson"
)

// DefaultHost is used when no instance is configured
const DefaultHost = "https://libretranslate.de"

// PublicHosts are the community instances tried for detection after the configured one
var PublicHosts = []string{
	"https://libretranslate.com",
	"https://translate.argosopentech.com",
}

// Translator implements translation against one LibreTranslate host
type Translator struct {
	client *httpcall.Client
	host   string
	apiKey string
	spec   httpcall.Spec
}

// NewTranslator creates a translator for host; apiKey may be empty
func NewTranslator(client *httpcall.Client, host, apiKey string) *Translator {
	host = normalize(host)
	return &Translator{
		client: client,
		host:   host,
		apiKey: apiKey,
		spec: httpcall.Spec{
			Name:     "libre-translate",
			Endpoint: host + "/translate",
			Encoding: httpcall.EncodingJSON,
			Extract:  []string{"translatedText", "translation"},
		},
	}
}

// Name returns the provider name, qualified by host
func (t *Translator) Name() string {
	return "libretranslate(" + hostname(t.host) + ")"
}

// Call translates req.Text; the source is always sent, "auto" included
func (t *Translator) Call(ctx context.Context, req assistant.TranslationRequest) (assistant.TranslationResponse, error) {
	start := time.Now()

	source := req.Source
	if source == "" {
		source = assistant.AutoLanguage
	}
	fields := []httpcall.Field{
		{Key: "q", Value: req.Text},
		{Key: "source", Value: source},
		{Key: "target", Value: req.Target},
		{Key: "format", Value: "text"},
	}
	if t.apiKey != "" {
		fields = append(fields, httpcall.Field{Key: "api_key", Value: t.apiKey})
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

// Detector implements language detection against one LibreTranslate host
type Detector struct {
	client *httpcall.Client
	host   string
	apiKey string
	form   httpcall.Spec
	json   httpcall.Spec
}

// NewDetector creates a detector for host; apiKey may be empty
func NewDetector(client *httpcall.Client, host, apiKey string) *Detector {
	host = normalize(host)
	return &Detector{
		client: client,
		host:   host,
		apiKey: apiKey,
		form:   httpcall.Spec{Name: "libre-detect-form", Endpoint: host + "/detect", Encoding: httpcall.EncodingForm},
		json:   httpcall.Spec{Name: "libre-detect-json", Endpoint: host + "/detect", Encoding: httpcall.EncodingJSON},
	}
}

// Name returns the provider name, qualified by host
func (d *Detector) Name() string {
	return "libretranslate(" + hostname(d.host) + ")"
}

// Call tries the form encoding, then JSON, and returns the first usable detection
func (d *Detector) Call(ctx context.Context, req assistant.DetectionRequest) (assistant.Detection, error) {
	fields := []httpcall.Field{{Key: "q", Value: req.Text}}
	if d.apiKey != "" {
		fields = append(fields, httpcall.Field{Key: "api_key", Value: d.apiKey})
	}

	var lastErr error
	for _, spec := range []httpcall.Spec{d.form, d.json} {
		resp, err := d.client.Call(ctx, spec, httpcall.Request{Fields: fields})
		if err != nil {
			if ctx.Err() != nil {
				return assistant.Detection{}, ctx.Err()
			}
			lastErr = err
			continue
		}
		if detection, ok := Best(resp.Body); ok {
			detection.Provider = d.Name()
			return detection, nil
		}
		lastErr = &retry.RetryableError{
			Err:        fmt.Errorf("%s: %w", spec.Name, httpcall.ErrExtraction),
			StatusCode: resp.StatusCode,
		}
	}
	return assistant.Detection{}, lastErr
}

// Best picks the highest-confidence detection from either a bare array or a
// {"detections": [...]} object. Percent confidences are scaled to [0,1].
func Best(body []byte) (assistant.Detection, bool) {
	list := gjson.ParseBytes(body)
	if !list.IsArray() {
		list = list.Get("detections")
	}
	if !list.IsArray() {
		return assistant.Detection{}, false
	}

	var (
		best     gjson.Result
		bestConf = -1.0
	)
	list.ForEach(func(_, item gjson.Result) bool {
		if item.Get("language").String() == "" {
			return true
		}
		if c := item.Get("confidence").Float(); c > bestConf {
			best, bestConf = item, c
		}
		return true
	})
	if !best.Exists() {
		return assistant.Detection{}, false
	}

	detection := assistant.Detection{Language: assistant.StringPtr(best.Get("language").String())}
	if conf := best.Get("confidence"); conf.Exists() && conf.Type == gjson.Number {
		c := conf.Float()
		if c > 1 {
			c /= 100
		}
		detection.Confidence = &c
	}
	return detection, true
}

func normalize(host string) string {
	if strings.TrimSpace(host) == "" {
		host = DefaultHost
	}
	return strings.TrimRight(strings.TrimSpace(host), "/")
}

func hostname(host string) string {
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		return u.Host
	}
	return host
}
