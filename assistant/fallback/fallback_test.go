package fallback_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/fallback"
	"github.com/ownlingo/unibot/assistant/retry"
)

// Mock provider for testing
type mockProvider struct {
	name  string
	group string
	err   error
	calls *[]string
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) CredentialGroup() string {
	return m.group
}

func (m *mockProvider) Call(ctx context.Context, req string) (string, error) {
	if m.calls != nil {
		*m.calls = append(*m.calls, m.name)
	}
	if m.err != nil {
		return "", m.err
	}
	return "translated: " + req, nil
}

func TestNewChain(t *testing.T) {
	provider1 := &mockProvider{name: "provider1"}
	provider2 := &mockProvider{name: "provider2"}

	chain := fallback.NewChain[string, string](assistant.CapabilityTranslate, provider1, provider2)
	if chain == nil {
		t.Fatal("expected chain to be created")
	}

	if !strings.Contains(chain.Name(), "provider1") {
		t.Errorf("expected chain name to contain 'provider1', got %q", chain.Name())
	}

	if chain.Len() != 2 {
		t.Errorf("expected 2 providers, got %d", chain.Len())
	}
}

func TestChainRunSuccess(t *testing.T) {
	provider := &mockProvider{name: "test-provider"}
	chain := fallback.NewChain[string, string](assistant.CapabilityTranslate, provider)

	resp, err := chain.Run(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if resp.Provider != "test-provider" {
		t.Errorf("expected provider 'test-provider', got %q", resp.Provider)
	}

	if resp.Value != "translated: Hello" {
		t.Errorf("unexpected value: %q", resp.Value)
	}

	if resp.Degraded {
		t.Error("expected non-degraded result")
	}
}

func TestChainRunFallback(t *testing.T) {
	var calls []string
	provider1 := &mockProvider{name: "provider1", err: errors.New("provider1 error"), calls: &calls}
	provider2 := &mockProvider{name: "provider2", calls: &calls}
	provider3 := &mockProvider{name: "provider3", calls: &calls}

	chain := fallback.NewChain[string, string](assistant.CapabilityTranslate, provider1, provider2, provider3)

	resp, err := chain.Run(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("expected no error after fallback, got %v", err)
	}

	// Should use provider2 since provider1 failed
	if resp.Provider != "provider2" {
		t.Errorf("expected provider 'provider2', got %q", resp.Provider)
	}

	if strings.Join(calls, ",") != "provider1,provider2" {
		t.Errorf("expected provider3 never to be called, got %v", calls)
	}

	if resp.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", resp.Attempts)
	}
}

func TestChainRunAllFail(t *testing.T) {
	provider1 := &mockProvider{name: "provider1", err: errors.New("error1")}
	provider2 := &mockProvider{name: "provider2", err: &retry.RetryableError{Err: errors.New("error2"), StatusCode: 503}}

	chain := fallback.NewChain[string, string](assistant.CapabilityTranslate, provider1, provider2)

	_, err := chain.Run(context.Background(), "Hello")
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}

	if !strings.Contains(err.Error(), "all providers failed") {
		t.Errorf("expected 'all providers failed' in error, got: %v", err)
	}

	if !errors.Is(err, assistant.ErrExhausted) {
		t.Error("expected error to match ErrExhausted")
	}

	var exhausted *fallback.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatal("expected *ExhaustedError")
	}
	if exhausted.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", exhausted.Attempts)
	}
	if !retry.IsRetryable(err) {
		t.Error("expected last provider error to remain reachable")
	}
}

func TestChainRunEmpty(t *testing.T) {
	chain := fallback.NewChain[string, string](assistant.CapabilityTranslate)

	_, err := chain.Run(context.Background(), "Hello")
	if !errors.Is(err, assistant.ErrExhausted) {
		t.Fatalf("expected exhausted error from empty chain, got %v", err)
	}
}

func TestChainRunPermanentStops(t *testing.T) {
	var calls []string
	cfgErr := assistant.MissingCredential("GOOGLE_API_KEY")
	provider1 := &mockProvider{name: "provider1", err: retry.Permanent(cfgErr), calls: &calls}
	provider2 := &mockProvider{name: "provider2", calls: &calls}

	chain := fallback.NewChain[string, string](assistant.CapabilityChat, provider1, provider2).
		WithDegrade(func(req string, cause error) string { return "canned" })

	_, err := chain.Run(context.Background(), "Hello")
	if !errors.Is(err, assistant.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(calls) != 1 {
		t.Errorf("expected chain to stop after the permanent failure, got %v", calls)
	}
}

func TestChainRunDegrade(t *testing.T) {
	provider := &mockProvider{name: "provider1", err: errors.New("down")}

	var cause error
	chain := fallback.NewChain[string, string](assistant.CapabilityDetect, provider).
		WithDegrade(func(req string, err error) string {
			cause = err
			return "local: " + req
		})

	resp, err := chain.Run(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if !resp.Degraded || resp.Reason != fallback.ReasonUnavailable {
		t.Errorf("expected degraded result with reason %q, got %+v", fallback.ReasonUnavailable, resp)
	}
	if resp.Value != "local: Hello" {
		t.Errorf("unexpected degraded value %q", resp.Value)
	}
	if cause == nil || !strings.Contains(cause.Error(), "down") {
		t.Errorf("expected degrade to receive last error, got %v", cause)
	}
}

func TestChainRunQuotaSkipsSharedCredential(t *testing.T) {
	var calls []string
	quota := &retry.QuotaError{Err: errors.New("RESOURCE_EXHAUSTED"), StatusCode: 429, Group: "google"}
	primary := &mockProvider{name: "gemini-flash", group: "google", err: quota, calls: &calls}
	secondary := &mockProvider{name: "gemini-flash-8b", group: "google", calls: &calls}

	chain := fallback.NewChain[string, string](assistant.CapabilityChat, primary, secondary).
		WithDegrade(func(req string, err error) string { return "canned" })

	resp, err := chain.Run(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("expected degraded result, got %v", err)
	}
	if !resp.Degraded || resp.Reason != fallback.ReasonQuotaExhausted {
		t.Errorf("expected quota degrade, got %+v", resp)
	}
	if strings.Join(calls, ",") != "gemini-flash" {
		t.Errorf("expected provider sharing the exhausted key to be skipped, got %v", calls)
	}
}

func TestChainRunQuotaKeepsOtherCredentials(t *testing.T) {
	var calls []string
	quota := &retry.QuotaError{Err: errors.New("quota"), StatusCode: 429, Group: "google"}
	primary := &mockProvider{name: "gemini", group: "google", err: quota, calls: &calls}
	other := &mockProvider{name: "openai", group: "openai", calls: &calls}

	chain := fallback.NewChain[string, string](assistant.CapabilityChat, primary, other)

	resp, err := chain.Run(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("expected success from independent credential, got %v", err)
	}
	if resp.Provider != "openai" {
		t.Errorf("expected openai to serve, got %q", resp.Provider)
	}
}

func TestChainRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []string
	chain := fallback.NewChain[string, string](assistant.CapabilityTranslate, &mockProvider{name: "p", calls: &calls})

	_, err := chain.Run(ctx, "Hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("expected no provider call on canceled context, got %v", calls)
	}
}

func TestFunc(t *testing.T) {
	p := fallback.Func("upper", func(ctx context.Context, req string) (string, error) {
		return strings.ToUpper(req), nil
	})

	if p.Name() != "upper" {
		t.Errorf("expected name 'upper', got %q", p.Name())
	}

	chain := fallback.NewChain(assistant.CapabilityTranslate, p)
	resp, err := chain.Run(context.Background(), "hola")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Value != "HOLA" {
		t.Errorf("expected HOLA, got %q", resp.Value)
	}
}
