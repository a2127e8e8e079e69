package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"cardsync/internal/config"
	"cardsync/internal/logging"
	"cardsync/internal/port"
)

// circuitState tracks rate-limit backoff for a single model.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackModel tries models in order, skipping those whose circuit is open
// after a rate limit. Only the first model receives the requested model
// name; the others use their provider default.
type FallbackModel struct {
	models   []port.ChatModel
	circuits []*circuitState
	names    []string
	logger   *zap.Logger
}

// NewFallbackModel creates a FallbackModel from an ordered list of models and their names.
func NewFallbackModel(models []port.ChatModel, names []string, logger *zap.Logger) *FallbackModel {
	circuits := make([]*circuitState, len(models))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackModel{
		models:   models,
		circuits: circuits,
		names:    names,
		logger:   logging.OrNop(logger),
	}
}

func (f *FallbackModel) Complete(ctx context.Context, input port.ChatInput) (*port.ChatOutput, error) {
	now := time.Now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, m := range f.models {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			f.logger.Debug("llm.FallbackModel: skipping model",
				zap.String("provider", f.names[i]), zap.Time("circuit_open_until", resetAt))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		in := input
		if i > 0 {
			in.Model = ""
		}
		out, err := m.Complete(ctx, in)
		if err == nil {
			return out, nil
		}

		f.logger.Warn("llm.FallbackModel: provider failed", zap.String("provider", f.names[i]), zap.Error(err))
		lastErr = err

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := time.Until(earliestReset)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all", fmt.Errorf("all providers rate limited"), int(retryAfter.Seconds()))
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// NewChatModelWithFallback builds the configured model, chained with the
// fallback provider when one is configured.
func NewChatModelWithFallback(cfg *config.LLMConfig, logger *zap.Logger) (port.ChatModel, error) {
	primary, err := NewChatModel(cfg)
	if err != nil {
		return nil, err
	}
	fb := cfg.FallbackConfig()
	if fb == nil {
		return primary, nil
	}
	secondary, err := NewChatModel(fb)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return NewFallbackModel(
		[]port.ChatModel{primary, secondary},
		[]string{cfg.Provider, fb.Provider},
		logger,
	), nil
}
