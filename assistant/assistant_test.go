package assistant_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ownlingo/unibot/assistant"
)

func TestGenerationFor(t *testing.T) {
	tests := []struct {
		name string
		fast bool
		want assistant.GenerationConfig
	}{
		{
			name: "fast mode",
			fast: true,
			want: assistant.GenerationConfig{MaxOutputTokens: 50, Temperature: 0.3, TopP: 0.8, TopK: 20},
		},
		{
			name: "normal mode",
			fast: false,
			want: assistant.GenerationConfig{MaxOutputTokens: 200, Temperature: 0.7, TopP: 0.95, TopK: 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assistant.GenerationFor(tt.fast)
			if got != tt.want {
				t.Errorf("GenerationFor(%v) = %+v, want %+v", tt.fast, got, tt.want)
			}
		})
	}
}

func TestChatRequestFullPrompt(t *testing.T) {
	tests := []struct {
		name    string
		context string
		want    string
	}{
		{name: "no context", context: "", want: "How are you?"},
		{name: "blank context", context: "   ", want: "How are you?"},
		{name: "with context", context: "  You are a tutor. ", want: "You are a tutor.\n\nUser: How are you?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &assistant.ChatRequest{Prompt: "How are you?", Context: tt.context}
			if got := req.FullPrompt(); got != tt.want {
				t.Errorf("FullPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChatRequestValidate(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\n\t"} {
		req := &assistant.ChatRequest{Prompt: prompt}
		err := req.Validate()
		if !errors.Is(err, assistant.ErrValidation) {
			t.Errorf("prompt %q: expected validation error, got %v", prompt, err)
		}
	}

	req := &assistant.ChatRequest{Prompt: "hi"}
	if err := req.Validate(); err != nil {
		t.Errorf("expected valid prompt, got %v", err)
	}
}

func TestTranslationRequestValidate(t *testing.T) {
	req := &assistant.TranslationRequest{Text: "Hello", Target: "es"}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.Source != assistant.AutoLanguage {
		t.Errorf("expected source to default to auto, got %q", req.Source)
	}
	if !req.AutoSource() {
		t.Error("expected AutoSource to be true")
	}

	missingTarget := &assistant.TranslationRequest{Text: "Hello"}
	err := missingTarget.Validate()
	if !errors.Is(err, assistant.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.Error() != "Invalid target language" {
		t.Errorf("unexpected message %q", err.Error())
	}

	missingText := &assistant.TranslationRequest{Text: " ", Target: "es"}
	if err := missingText.Validate(); err == nil || err.Error() != "Invalid text" {
		t.Errorf("expected 'Invalid text', got %v", err)
	}
}

func TestSpeechRequestDefaultsLanguage(t *testing.T) {
	req := &assistant.SpeechRequest{Text: "Hello"}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.Language != "en" {
		t.Errorf("expected default language en, got %q", req.Language)
	}
}

func TestConfigurationError(t *testing.T) {
	err := assistant.MissingCredential("GOOGLE_API_KEY")
	if !errors.Is(err, assistant.ErrConfiguration) {
		t.Error("expected missing credential to match ErrConfiguration")
	}
	if !strings.Contains(err.Error(), "GOOGLE_API_KEY") {
		t.Errorf("expected setting name in message, got %q", err.Error())
	}

	cause := errors.New("API key not valid")
	rejected := &assistant.ConfigurationError{Setting: "GOOGLE_API_KEY", Err: cause}
	if !errors.Is(rejected, cause) {
		t.Error("expected rejected credential to wrap the provider error")
	}
}

func TestDetectionLanguageCode(t *testing.T) {
	var nilDetection *assistant.Detection
	if nilDetection.LanguageCode() != "" {
		t.Error("expected empty code for nil detection")
	}

	d := &assistant.Detection{Language: assistant.StringPtr("ru")}
	if d.LanguageCode() != "ru" {
		t.Errorf("expected ru, got %q", d.LanguageCode())
	}

	if assistant.StringPtr("") != nil {
		t.Error("expected nil pointer for empty string")
	}
}
