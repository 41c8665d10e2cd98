// Package assistant defines the capability contract shared by the multilingual
// assistant: request and response shapes for chat, translation, language
// detection, speech synthesis and text recognition, plus the error taxonomy
// every orchestrator reports through.
package assistant

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Capability names one of the assistant features backed by external providers
type Capability string

const (
	CapabilityChat      Capability = "chat"
	CapabilityTranslate Capability = "translate"
	CapabilityDetect    Capability = "detect"
	CapabilityTTS       Capability = "tts"
	CapabilityOCR       Capability = "ocr"
)

// AutoLanguage asks the provider to detect the source language itself
const AutoLanguage = "auto"

var (
	// ErrValidation marks a request rejected before any provider was contacted
	ErrValidation = errors.New("validation error")

	// ErrConfiguration marks a missing or rejected provider credential
	ErrConfiguration = errors.New("configuration error")

	// ErrExhausted marks a capability whose every provider failed and which has no local substitute
	ErrExhausted = errors.New("all providers exhausted")

	// ErrUnsupported marks a capability that has no usable backend in this environment
	ErrUnsupported = errors.New("unsupported")
)

// ValidationError describes an invalid or missing request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid returns a ValidationError for field with a user-facing message
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ConfigurationError reports a credential that is absent or refused by the provider
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid credential %s: %v", e.Setting, e.Err)
	}
	return "Server is missing " + e.Setting
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// MissingCredential returns a ConfigurationError for an unset credential
func MissingCredential(setting string) error {
	return &ConfigurationError{Setting: setting}
}

// GenerationConfig controls the length and creativity of a generated reply
type GenerationConfig struct {
	MaxOutputTokens int
	Temperature     float32
	TopP            float32
	TopK            int
}

// GenerationFor returns the canonical generation parameters for the fast flag.
// Fast mode trades reply length and creativity for lower cost and latency.
func GenerationFor(fast bool) GenerationConfig {
	if fast {
		return GenerationConfig{MaxOutputTokens: 50, Temperature: 0.3, TopP: 0.8, TopK: 20}
	}
	return GenerationConfig{MaxOutputTokens: 200, Temperature: 0.7, TopP: 0.95, TopK: 40}
}

// ChatRequest represents one user message sent to the generation providers
type ChatRequest struct {
	Prompt  string
	Context string
	Fast    bool
}

// Validate rejects empty or whitespace-only prompts
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return Invalid("prompt", "Invalid prompt")
	}
	return nil
}

// FullPrompt prepends the optional context to the user message
func (r *ChatRequest) FullPrompt() string {
	ctx := strings.TrimSpace(r.Context)
	if ctx == "" {
		return r.Prompt
	}
	return fmt.Sprintf("%s\n\nUser: %s", ctx, r.Prompt)
}

// Generation returns the parameters selected by the fast flag
func (r *ChatRequest) Generation() GenerationConfig {
	return GenerationFor(r.Fast)
}

// ChatReply is the normalized outcome of a chat request
type ChatReply struct {
	Reply      string
	Provider   string
	Degraded   bool
	Reason     string
	TokensUsed TokenUsage
	Duration   time.Duration
}

// TokenUsage tracks token consumption reported by a generation provider
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// TranslationRequest represents a translation request
type TranslationRequest struct {
	Text   string
	Source string
	Target string
}

// Validate checks the text and target and defaults an empty source to auto
func (r *TranslationRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return Invalid("text", "Invalid text")
	}
	if strings.TrimSpace(r.Target) == "" {
		return Invalid("target", "Invalid target language")
	}
	if strings.TrimSpace(r.Source) == "" {
		r.Source = AutoLanguage
	}
	return nil
}

// AutoSource reports whether the provider must detect the source language
func (r *TranslationRequest) AutoSource() bool {
	return r.Source == "" || r.Source == AutoLanguage
}

// TranslationResponse represents a translation response
type TranslationResponse struct {
	Translation string
	Provider    string
	Duration    time.Duration
}

// DetectionRequest asks which language a text is written in
type DetectionRequest struct {
	Text string
}

// Validate rejects empty text
func (r *DetectionRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return Invalid("text", "Invalid text")
	}
	return nil
}

// Detection is the outcome of language detection. Language is nil when
// unknown; Confidence is nil whenever the local guesser produced the answer.
type Detection struct {
	Language   *string
	Confidence *float64
	Provider   string
	Degraded   bool
}

// LanguageCode returns the detected language or an empty string
func (d *Detection) LanguageCode() string {
	if d == nil || d.Language == nil {
		return ""
	}
	return *d.Language
}

// SpeechRequest asks for spoken audio of a text
type SpeechRequest struct {
	Text     string
	Language string
}

// Validate rejects empty text and defaults the language to English
func (r *SpeechRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return Invalid("text", "Invalid text")
	}
	if strings.TrimSpace(r.Language) == "" {
		r.Language = "en"
	}
	return nil
}

// OCRRequest carries an image as a data URL or bare base64 payload
type OCRRequest struct {
	Image    string
	Language string
}

// Validate rejects a missing image
func (r *OCRRequest) Validate() error {
	if strings.TrimSpace(r.Image) == "" {
		return Invalid("image", "Missing image data")
	}
	return nil
}

// OCRResult is the text extracted from an image
type OCRResult struct {
	Text       string
	Confidence float64
	Language   string
}

// StringPtr returns a pointer to s, or nil for an empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
