// Package googletts fetches spoken audio from the keyless translate_tts endpoint
package googletts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/httpcall"
	"github.com/ownlingo/unibot/assistant/retry"
)

// DefaultEndpoint is the public translate_tts endpoint
const DefaultEndpoint = "https://translate.google.com/translate_tts"

// MaxChunk is the longest text the endpoint accepts in one request
const MaxChunk = 180

// Client fetches one MP3 clip per call
type Client struct {
	client *httpcall.Client
	spec   httpcall.Spec
}

func New(client *httpcall.Client, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		client: client,
		spec: httpcall.Spec{
			Name:     "google-tts",
			Method:   http.MethodGet,
			Endpoint: endpoint,
			Encoding: httpcall.EncodingQuery,
			Header: map[string]string{
				"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
				"Referer":    "https://translate.google.com/",
				"Accept":     "audio/mpeg,audio/*;q=0.9,*/*;q=0.8",
			},
		},
	}
}

func (c *Client) Name() string {
	return "google-tts"
}

// Call returns the audio/mpeg bytes for req.Text, which must fit in MaxChunk
func (c *Client) Call(ctx context.Context, req assistant.SpeechRequest) ([]byte, error) {
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	resp, err := c.client.Call(ctx, c.spec, httpcall.Request{Fields: []httpcall.Field{
		{Key: "ie", Value: "UTF-8"},
		{Key: "q", Value: req.Text},
		{Key: "tl", Value: lang},
		{Key: "client", Value: "tw-ob"},
	}})
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, &retry.RetryableError{Err: fmt.Errorf("google-tts: empty audio"), StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
