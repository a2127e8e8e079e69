package llm_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cardsync/internal/llm"
)

func TestRateLimitError_ErrorString(t *testing.T) {
	rlErr := llm.NewRateLimitError("claude", fmt.Errorf("rate limited"), 30)

	assert.Contains(t, rlErr.Error(), "claude")
	assert.Contains(t, rlErr.Error(), "rate limited")
	assert.Contains(t, rlErr.Error(), "30s")
}

func TestRateLimitError_ErrorsAs(t *testing.T) {
	underlying := fmt.Errorf("rate limited")
	wrapped := fmt.Errorf("structuring failed: %w", llm.NewRateLimitError("gemini", underlying, 30))

	var target *llm.RateLimitError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "gemini", target.Provider)
	assert.Equal(t, 30*time.Second, target.RetryAfter)
	assert.Equal(t, underlying, errors.Unwrap(target))
}

func TestNewRateLimitError_DefaultRetryAfter(t *testing.T) {
	rlErr := llm.NewRateLimitError("openai", fmt.Errorf("err"), 0)

	assert.Equal(t, 60*time.Second, rlErr.RetryAfter)
}

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 0, llm.ParseRetryAfterHeader(""))
	assert.Equal(t, 30, llm.ParseRetryAfterHeader("30"))
	assert.Equal(t, 0, llm.ParseRetryAfterHeader("invalid"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", llm.Truncate("abc", 5))
	assert.Equal(t, "ab...", llm.Truncate("abcdef", 2))
}
