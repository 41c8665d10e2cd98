package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/ratelimit"
	"github.com/ownlingo/unibot/assistant/retry"
	"github.com/sashabaranov/go-openai"
)

// CredentialGroup names the OpenAI key
const CredentialGroup = "openai"

// Provider implements chat generation for OpenAI
type Provider struct {
	client      *openai.Client
	model       string
	rateLimiter *ratelimit.Limiter
}

// Config holds OpenAI provider configuration
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	TPM        int // Tokens per minute
	RPM        int // Requests per minute
}

// DefaultConfig returns default OpenAI configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey: apiKey,
		Model:  openai.GPT4oMini,
		TPM:    200000,
		RPM:    500,
	}
}

// NewProvider creates a new OpenAI provider
func NewProvider(config *Config) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.APIKey == "" {
		return nil, assistant.MissingCredential("OPENAI_API_KEY")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	return &Provider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       config.Model,
		rateLimiter: ratelimit.NewLimiter(config.TPM, config.RPM),
	}, nil
}

// SetLimits replaces the per-minute token and request caps; 0 or less lifts a cap
func (p *Provider) SetLimits(tpm, rpm int) {
	p.rateLimiter.SetTPM(tpm)
	p.rateLimiter.SetRPM(rpm)
}

// Limits reports the per-minute token and request caps in force
func (p *Provider) Limits() (tpm, rpm int) {
	return p.rateLimiter.Limits()
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// CredentialGroup reports the key this provider bills against
func (p *Provider) CredentialGroup() string {
	return CredentialGroup
}

// Call generates a reply for the chat request
func (p *Provider) Call(ctx context.Context, req assistant.ChatRequest) (assistant.ChatReply, error) {
	start := time.Now()

	if err := p.rateLimiter.Wait(ctx, ratelimit.EstimateTokens(req.FullPrompt())); err != nil {
		return assistant.ChatReply{}, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if c := strings.TrimSpace(req.Context); c != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	gen := req.Generation()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   gen.MaxOutputTokens,
		Temperature: gen.Temperature,
		TopP:        gen.TopP,
	})
	if err != nil {
		return assistant.ChatReply{}, classify(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return assistant.ChatReply{}, &retry.RetryableError{Err: fmt.Errorf("no choices returned from OpenAI")}
	}

	return assistant.ChatReply{
		Reply:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Provider: p.Name(),
		TokensUsed: assistant.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	message := ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		message = apiErr.Message + " " + apiErr.Type
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		message = string(reqErr.Body)
	default:
		return &retry.RetryableError{Err: err}
	}

	switch {
	case status == http.StatusTooManyRequests && strings.Contains(message, "quota"):
		return &retry.QuotaError{Err: err, StatusCode: status, Group: CredentialGroup}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return retry.Permanent(&assistant.ConfigurationError{Setting: "OPENAI_API_KEY", Err: err})
	default:
		return &retry.RetryableError{Err: err, StatusCode: status, Body: message}
	}
}
