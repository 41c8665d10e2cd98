// Package ocrspace submits images to the OCR.space forms API
package ocrspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/httpcall"
	"github.com/ownlingo/unibot/assistant/retry"
	"github.com/tidwall/gjson"
)

// DefaultEndpoint is the free-tier parse endpoint
const DefaultEndpoint = "https://api.ocr.space/parse/image"

// ErrProcessing is returned when OCR.space accepted the upload but could not read it
var ErrProcessing = errors.New("ocr processing failed")

// Config holds OCR.space settings
type Config struct {
	APIKey            string
	Endpoint          string
	Engine            int // 1, 2 or 3
	Scale             bool
	DetectOrientation bool
}

// DefaultConfig returns engine 2 with upscaling and orientation detection on
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:            apiKey,
		Endpoint:          DefaultEndpoint,
		Engine:            2,
		Scale:             true,
		DetectOrientation: true,
	}
}

// Page is the text OCR.space read from an image
type Page struct {
	Text     string
	ExitCode int
}

// Client calls the parse endpoint
type Client struct {
	client *httpcall.Client
	config Config
	spec   httpcall.Spec
}

// New validates the key and builds a client
func New(client *httpcall.Client, config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, assistant.MissingCredential("OCR_SPACE_API_KEY")
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Engine < 1 || config.Engine > 3 {
		config.Engine = 2
	}
	return &Client{
		client: client,
		config: config,
		spec: httpcall.Spec{
			Name:     "ocr.space",
			Endpoint: config.Endpoint,
			Encoding: httpcall.EncodingForm,
			Classify: classify,
		},
	}, nil
}

func (c *Client) Name() string {
	return "ocr.space"
}

// Recognize reads text from dataURL (data:<mime>;base64,<payload>) using an
// OCR.space three-letter language code
func (c *Client) Recognize(ctx context.Context, dataURL, language string) (Page, error) {
	resp, err := c.client.Call(ctx, c.spec, httpcall.Request{Fields: []httpcall.Field{
		{Key: "apikey", Value: c.config.APIKey},
		{Key: "language", Value: language},
		{Key: "OCREngine", Value: strconv.Itoa(c.config.Engine)},
		{Key: "scale", Value: strconv.FormatBool(c.config.Scale)},
		{Key: "detectOrientation", Value: strconv.FormatBool(c.config.DetectOrientation)},
		{Key: "base64Image", Value: dataURL},
	}})
	if err != nil {
		return Page{}, err
	}
	return parse(resp.Body)
}

func parse(body []byte) (Page, error) {
	result := gjson.ParseBytes(body)
	if result.Get("IsErroredOnProcessing").Bool() {
		return Page{}, fmt.Errorf("%w: %s", ErrProcessing, errorMessage(result))
	}

	results := result.Get("ParsedResults")
	if !results.IsArray() || len(results.Array()) == 0 {
		return Page{}, fmt.Errorf("%w: no parsed results", ErrProcessing)
	}

	var (
		texts []string
		exit  int
	)
	for _, page := range results.Array() {
		exit = int(page.Get("FileParseExitCode").Int())
		if t := page.Get("ParsedText").String(); t != "" {
			texts = append(texts, t)
		}
	}
	return Page{Text: strings.Join(texts, "\n"), ExitCode: exit}, nil
}

// ErrorMessage is a string or an array of strings depending on the failure
func errorMessage(result gjson.Result) string {
	msg := result.Get("ErrorMessage")
	if msg.IsArray() {
		parts := make([]string, 0, len(msg.Array()))
		for _, m := range msg.Array() {
			parts = append(parts, m.String())
		}
		return strings.Join(parts, "; ")
	}
	if s := msg.String(); s != "" {
		return s
	}
	return "unknown error"
}

func classify(statusCode int, body []byte) error {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return retry.Permanent(&assistant.ConfigurationError{
			Setting: "OCR_SPACE_API_KEY",
			Err:     fmt.Errorf("ocr.space status %d: %s", statusCode, strings.TrimSpace(string(body))),
		})
	}
	return nil
}
