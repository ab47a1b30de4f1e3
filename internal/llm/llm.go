// Package llm wraps the language-model backend that drones call once per task.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/KramerO/ollama-flow-sub002/internal/config"
	"golang.org/x/time/rate"
)

// ErrNoBackend is returned when no backend is configured.
var ErrNoBackend = errors.New("llm: no backend configured")

// Backend turns a prompt into free text. Timeout and retry policy belong to
// the caller.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to Backend.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Limited throttles calls to an underlying Backend.
type Limited struct {
	next    Backend
	limiter *rate.Limiter
}

// NewLimited wraps next with a token-bucket limiter. A non-positive rate
// returns next unchanged.
func NewLimited(next Backend, perSecond float64, burst int) Backend {
	if perSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Complete waits for a token, then forwards the call.
func (l *Limited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm: rate limit: %w", err)
	}
	return l.next.Complete(ctx, prompt)
}

// FromConfig builds the backend described by cfg. It returns (nil, nil) for
// provider "none": drones then produce neutral results.
func FromConfig(cfg config.BackendConfig) (Backend, error) {
	var b Backend
	switch cfg.Provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderOpenAI:
		b = NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	return NewLimited(b, cfg.RequestsPerSecond, cfg.Burst), nil
}
