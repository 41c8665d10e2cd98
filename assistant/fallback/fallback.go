package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/retry"
	"github.com/ownlingo/unibot/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ownlingo/unibot/assistant/fallback"

// Degrade reasons reported on a Result
const (
	ReasonQuotaExhausted = "quota_exhausted"
	ReasonUnavailable    = "providers_unavailable"
)

var (
	tracer   = otel.Tracer(instrumentationName)
	attempts metric.Int64Counter
)

func init() {
	var err error
	attempts, err = otel.Meter(instrumentationName).Int64Counter(
		"unibot.provider.attempts",
		metric.WithDescription("Provider calls made by fallback chains, by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

// Provider is one network service able to serve a capability
type Provider[Req, Res any] interface {
	Name() string
	Call(ctx context.Context, req Req) (Res, error)
}

// CredentialScoped is implemented by providers billed against a credential
// shared with other providers. Once one of them reports quota exhaustion the
// rest of the group is skipped for the remainder of the run.
type CredentialScoped interface {
	CredentialGroup() string
}

// DegradeFunc computes a local, lower-quality substitute once every provider failed
type DegradeFunc[Req, Res any] func(req Req, cause error) Res

// Result is the outcome of a chain run: either a provider's value or a degraded substitute
type Result[Res any] struct {
	Value    Res
	Provider string
	Degraded bool
	Reason   string
	Attempts int
}

// ExhaustedError is returned when every provider failed and no degrade function exists
type ExhaustedError struct {
	Capability assistant.Capability
	Attempts   int
	Last       error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("all providers failed for %s: no provider configured", e.Capability)
	}
	return fmt.Sprintf("all providers failed for %s, last error: %v", e.Capability, e.Last)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == assistant.ErrExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Chain tries providers strictly in order and stops at the first success.
// Providers are never called concurrently and never called twice per run.
type Chain[Req, Res any] struct {
	capability assistant.Capability
	providers  []Provider[Req, Res]
	degrade    DegradeFunc[Req, Res]
}

// NewChain creates a new fallback chain with the given providers
// Providers are tried in order: primary → secondary → tertiary → ...
func NewChain[Req, Res any](capability assistant.Capability, providers ...Provider[Req, Res]) *Chain[Req, Res] {
	return &Chain[Req, Res]{
		capability: capability,
		providers:  providers,
	}
}

// WithDegrade installs the local substitute used when the chain is exhausted
func (c *Chain[Req, Res]) WithDegrade(fn DegradeFunc[Req, Res]) *Chain[Req, Res] {
	c.degrade = fn
	return c
}

// Name returns the name of the chain (primary provider name)
func (c *Chain[Req, Res]) Name() string {
	if len(c.providers) == 0 {
		return "fallback-chain()"
	}
	return fmt.Sprintf("fallback-chain(%s)", c.providers[0].Name())
}

// Len reports how many providers the chain holds
func (c *Chain[Req, Res]) Len() int {
	return len(c.providers)
}

// Run attempts the request with each provider in priority order
func (c *Chain[Req, Res]) Run(ctx context.Context, req Req) (*Result[Res], error) {
	ctx, span := tracer.Start(ctx, "fallback."+string(c.capability))
	defer span.End()

	var (
		lastErr   error
		quotaHit  bool
		tried     int
		exhausted = make(map[string]struct{})
	)

	for i, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		group := credentialGroup(provider)
		if _, gone := exhausted[group]; gone && group != "" {
			logger.Debugf("%s: skipping %s, credential group %q exhausted", c.capability, provider.Name(), group)
			c.record(ctx, provider.Name(), "skipped")
			continue
		}

		tried++
		value, err := c.call(ctx, provider, req)
		if err == nil {
			logger.Debugf("%s: served by %s (%d/%d)", c.capability, provider.Name(), i+1, len(c.providers))
			span.SetAttributes(attribute.String("unibot.provider", provider.Name()))
			return &Result[Res]{Value: value, Provider: provider.Name(), Attempts: tried}, nil
		}

		lastErr = fmt.Errorf("provider %s (%d/%d) failed: %w",
			provider.Name(), i+1, len(c.providers), err)

		if retry.IsPermanent(err) || errors.Is(err, context.Canceled) {
			span.RecordError(lastErr)
			span.SetStatus(codes.Error, "permanent provider failure")
			return nil, lastErr
		}

		if g, ok := retry.IsQuota(err); ok {
			quotaHit = true
			if g != "" {
				exhausted[g] = struct{}{}
			}
		}

		logger.Warnf("%s: %v", c.capability, lastErr)
	}

	if c.degrade != nil {
		reason := ReasonUnavailable
		if quotaHit {
			reason = ReasonQuotaExhausted
		}
		logger.Warnf("%s: all %d providers failed, degrading locally (%s)", c.capability, len(c.providers), reason)
		span.SetAttributes(attribute.String("unibot.degraded", reason))
		return &Result[Res]{
			Value:    c.degrade(req, lastErr),
			Degraded: true,
			Reason:   reason,
			Attempts: tried,
		}, nil
	}

	exhaustedErr := &ExhaustedError{Capability: c.capability, Attempts: tried, Last: lastErr}
	span.RecordError(exhaustedErr)
	span.SetStatus(codes.Error, "chain exhausted")
	return nil, exhaustedErr
}

func (c *Chain[Req, Res]) call(ctx context.Context, provider Provider[Req, Res], req Req) (Res, error) {
	ctx, span := tracer.Start(ctx, "provider."+provider.Name(),
		trace.WithAttributes(attribute.String("unibot.capability", string(c.capability))))
	defer span.End()

	start := time.Now()
	value, err := provider.Call(ctx, req)
	span.SetAttributes(attribute.Int64("unibot.duration_ms", time.Since(start).Milliseconds()))

	outcome := "success"
	switch {
	case err == nil:
	case retry.IsPermanent(err):
		outcome = "fatal"
	default:
		if _, ok := retry.IsQuota(err); ok {
			outcome = "quota"
		} else {
			outcome = "retryable"
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	c.record(ctx, provider.Name(), outcome)
	return value, err
}

func (c *Chain[Req, Res]) record(ctx context.Context, provider, outcome string) {
	if attempts == nil {
		return
	}
	attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("capability", string(c.capability)),
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

func credentialGroup(p any) string {
	if scoped, ok := p.(CredentialScoped); ok {
		return scoped.CredentialGroup()
	}
	return ""
}

// Func adapts a plain function into a Provider
func Func[Req, Res any](name string, fn func(ctx context.Context, req Req) (Res, error)) Provider[Req, Res] {
	return &funcProvider[Req, Res]{name: name, fn: fn}
}

type funcProvider[Req, Res any] struct {
	name string
	fn   func(ctx context.Context, req Req) (Res, error)
}

func (p *funcProvider[Req, Res]) Name() string {
	return p.name
}

func (p *funcProvider[Req, Res]) Call(ctx context.Context, req Req) (Res, error) {
	return p.fn(ctx, req)
}
