package gemini

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
	"google.golang.org/genai"
)

// CredentialGroup is shared by every Google-key provider
const CredentialGroup = "google"

// ErrEmptyReply is returned when the model produced no text
var ErrEmptyReply = errors.New("no content returned from Gemini")

// Provider implements chat generation for Google Gemini
type Provider struct {
	client      *genai.Client
	modelName   string
	rateLimiter *ratelimit.Limiter
}

// Config holds Gemini provider configuration
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string // optional; overrides the Gemini API endpoint
	HTTPClient *http.Client
	TPM        int // Tokens per minute
	RPM        int // Requests per minute
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey: apiKey,
		Model:  "gemini-1.5-flash-latest",
		TPM:    1000000, // free tier TPM
		RPM:    15,      // free tier RPM
	}
}

// NewProvider creates a new Gemini provider
func NewProvider(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.APIKey == "" {
		return nil, assistant.MissingCredential("GOOGLE_API_KEY")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: config.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: config.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Provider{
		client:      client,
		modelName:   config.Model,
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
	return "gemini/" + p.modelName
}

// CredentialGroup reports that this provider bills against the Google key
func (p *Provider) CredentialGroup() string {
	return CredentialGroup
}

// Call generates a reply for the chat request
func (p *Provider) Call(ctx context.Context, req assistant.ChatRequest) (assistant.ChatReply, error) {
	start := time.Now()
	prompt := req.FullPrompt()

	if err := p.rateLimiter.Wait(ctx, ratelimit.EstimateTokens(prompt)); err != nil {
		return assistant.ChatReply{}, err
	}

	gen := req.Generation()
	resp, err := p.client.Models.GenerateContent(ctx, p.modelName, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(gen.MaxOutputTokens),
		Temperature:     genai.Ptr(gen.Temperature),
		TopP:            genai.Ptr(gen.TopP),
		TopK:            genai.Ptr(float32(gen.TopK)),
	})
	if err != nil {
		return assistant.ChatReply{}, classify(err)
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return assistant.ChatReply{}, &retry.RetryableError{Err: ErrEmptyReply}
	}

	var usage assistant.TokenUsage
	if resp.UsageMetadata != nil {
		usage = assistant.TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return assistant.ChatReply{
		Reply:      reply,
		Provider:   p.Name(),
		TokensUsed: usage,
		Duration:   time.Since(start),
	}, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return &retry.RetryableError{Err: err}
	}

	switch {
	case isQuota(apiErr):
		return &retry.QuotaError{Err: err, StatusCode: apiErr.Code, Group: CredentialGroup}
	case isInvalidKey(apiErr):
		return retry.Permanent(&assistant.ConfigurationError{Setting: "GOOGLE_API_KEY", Err: err})
	default:
		return &retry.RetryableError{Err: err, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
}

func isQuota(apiErr genai.APIError) bool {
	if apiErr.Code != http.StatusTooManyRequests {
		return false
	}
	return apiErr.Status == "RESOURCE_EXHAUSTED" ||
		strings.Contains(strings.ToLower(apiErr.Message), "quota")
}

func isInvalidKey(apiErr genai.APIError) bool {
	if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
		return true
	}
	return apiErr.Code == http.StatusBadRequest &&
		(strings.Contains(apiErr.Message, "API key not valid") || strings.Contains(fmt.Sprint(apiErr.Details), "API_KEY_INVALID"))
}
