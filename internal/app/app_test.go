package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: ":0", BodyLimit: 1 << 20, HTTPTimeout: 5 * time.Second},
		Log:    config.LogConfig{Level: "info"},
		Providers: config.ProviderConfigs{
			Google: config.GoogleConfig{Model: "gemini-1.5-flash-latest", SecondaryModel: "gemini-1.5-flash-8b"},
			Lingva: config.EndpointConfig{URL: "https://lingva.example"},
		},
	}
}

func TestNewWithoutCredentials(t *testing.T) {
	a, err := New(context.Background(), baseConfig())
	require.NoError(t, err)

	assert.False(t, a.Chat.Configured())
	assert.False(t, a.OCR.Configured())
	assert.Empty(t, a.Providers[assistant.CapabilityChat])
	assert.Equal(t, []string{"libretranslate(libretranslate.de)", "lingva"}, a.Providers[assistant.CapabilityTranslate])
	assert.Len(t, a.Providers[assistant.CapabilityDetect], 4)
	assert.Equal(t, []assistant.Capability{
		assistant.CapabilityDetect,
		assistant.CapabilityTranslate,
		assistant.CapabilityTTS,
	}, a.Capabilities())

	_, err = a.Chat.Send(context.Background(), assistant.ChatRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, assistant.ErrConfiguration)

	_, err = a.OCR.Recognize(context.Background(), assistant.OCRRequest{Image: "aGVsbG8="})
	assert.ErrorIs(t, err, assistant.ErrConfiguration)
}

func TestNewWithCredentials(t *testing.T) {
	cfg := baseConfig()
	cfg.Providers.Google.APIKey = "g-key"
	cfg.Providers.OpenAI.APIKey = "o-key"
	cfg.Providers.Anthropic.APIKey = "a-key"
	cfg.Providers.OCRSpace.APIKey = "ocr-key"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	chatNames := a.Providers[assistant.CapabilityChat]
	require.Len(t, chatNames, 4)
	assert.Equal(t, "gemini/gemini-1.5-flash-latest", chatNames[0])
	assert.Equal(t, "gemini/gemini-1.5-flash-8b", chatNames[1])
	assert.Equal(t, "google", a.Providers[assistant.CapabilityTranslate][0])
	assert.Equal(t, "google", a.Providers[assistant.CapabilityDetect][0])
	assert.True(t, a.Chat.Configured())
	assert.True(t, a.OCR.Configured())
}

func TestApplyLimits(t *testing.T) {
	cfg := baseConfig()
	cfg.Providers.Google.APIKey = "g-key"
	cfg.Providers.Google.RateLimits = config.RateLimits{TPM: 1000, RPM: 15}
	cfg.Providers.OpenAI.APIKey = "o-key"
	cfg.Providers.OpenAI.RateLimits = config.RateLimits{TPM: 2000, RPM: 50}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, a.chatProviders, 3)

	type limited interface{ Limits() (int, int) }
	limitsOf := func(i int) [2]int {
		tpm, rpm := a.chatProviders[i].(limited).Limits()
		return [2]int{tpm, rpm}
	}
	assert.Equal(t, [2]int{1000, 15}, limitsOf(0))
	assert.Equal(t, [2]int{2000, 50}, limitsOf(2))

	reloaded := baseConfig()
	reloaded.Providers.Google.RateLimits = config.RateLimits{TPM: 5000, RPM: 30}
	reloaded.Providers.OpenAI.RateLimits = config.RateLimits{TPM: 0, RPM: 10}
	a.ApplyLimits(reloaded)

	assert.Equal(t, [2]int{5000, 30}, limitsOf(0))
	assert.Equal(t, [2]int{5000, 30}, limitsOf(1))
	assert.Equal(t, [2]int{0, 10}, limitsOf(2))
}

func TestTranslatePrefersGoogleWhenKeyed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		assert.Equal(t, "es", r.URL.Query().Get("target"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"translations":[{"translatedText":"hola"}]}}`))
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.Providers.Google.APIKey = "g-key"
	cfg.Providers.Google.TranslateURL = srv.URL

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	res, err := a.Translate.Translate(context.Background(), assistant.TranslationRequest{Text: "hello", Target: "es"})
	require.NoError(t, err)
	assert.Equal(t, "hola", res.Translation)
	assert.Equal(t, "google", res.Provider)
}

func TestNewNilConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}
