package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/ratelimit"
	"github.com/ownlingo/unibot/assistant/retry"
)

// CredentialGroup names the Anthropic key
const CredentialGroup = "anthropic"

// Provider implements chat generation for Anthropic
type Provider struct {
	client      anthropic.Client
	model       string
	rateLimiter *ratelimit.Limiter
}

// Config holds Anthropic provider configuration
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	TPM        int // Tokens per minute
	RPM        int // Requests per minute
}

// DefaultConfig returns default Anthropic configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey: apiKey,
		Model:  "claude-3-5-haiku-latest",
		TPM:    50000,
		RPM:    50,
	}
}

// NewProvider creates a new Anthropic provider
func NewProvider(config *Config) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.APIKey == "" {
		return nil, assistant.MissingCredential("ANTHROPIC_API_KEY")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}

	return &Provider{
		client:      anthropic.NewClient(opts...),
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
	return "anthropic"
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

	gen := req.Generation()
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(gen.MaxOutputTokens),
		Temperature: anthropic.Float(float64(gen.Temperature)),
		TopK:        anthropic.Int(int64(gen.TopK)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if c := strings.TrimSpace(req.Context); c != "" {
		params.System = []anthropic.TextBlockParam{{Text: c}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return assistant.ChatReply{}, classify(err)
	}

	var reply strings.Builder
	for _, block := range message.Content {
		reply.WriteString(block.Text)
	}
	text := strings.TrimSpace(reply.String())
	if text == "" {
		return assistant.ChatReply{}, &retry.RetryableError{Err: fmt.Errorf("no content returned from Anthropic")}
	}

	return assistant.ChatReply{
		Reply:    text,
		Provider: p.Name(),
		TokensUsed: assistant.TokenUsage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
		Duration: time.Since(start),
	}, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return &retry.RetryableError{Err: err}
	}

	body := apiErr.Error()
	switch {
	case isQuota(apiErr.StatusCode, body):
		return &retry.QuotaError{Err: err, StatusCode: apiErr.StatusCode, Group: CredentialGroup}
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return retry.Permanent(&assistant.ConfigurationError{Setting: "ANTHROPIC_API_KEY", Err: err})
	default:
		return &retry.RetryableError{Err: err, StatusCode: apiErr.StatusCode}
	}
}

// Anthropic reports an exhausted prepaid balance as a 400, not a 429
func isQuota(status int, body string) bool {
	switch status {
	case http.StatusTooManyRequests:
		return strings.Contains(body, "quota")
	case http.StatusBadRequest:
		return strings.Contains(body, "credit balance")
	}
	return false
}
