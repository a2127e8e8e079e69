package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cardsync/internal/config"
	"cardsync/internal/llm"
	"cardsync/internal/port"
	"cardsync/mocks"
)

func TestFallbackModel_FirstSucceeds(t *testing.T) {
	m1 := new(mocks.MockChatModel)
	m2 := new(mocks.MockChatModel)
	input := port.ChatInput{Model: "gpt-4o-mini", Prompt: "card text"}
	m1.On("Complete", mock.Anything, input).Return(&port.ChatOutput{Text: "{}", ModelUsed: "gpt-4o-mini"}, nil)

	fm := llm.NewFallbackModel([]port.ChatModel{m1, m2}, []string{"openai", "gemini"}, nil)
	out, err := fm.Complete(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", out.ModelUsed)
	m2.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestFallbackModel_SecondGetsProviderDefault(t *testing.T) {
	m1 := new(mocks.MockChatModel)
	m2 := new(mocks.MockChatModel)
	input := port.ChatInput{Model: "gpt-4o-mini", Prompt: "card text"}
	m1.On("Complete", mock.Anything, input).Return(nil, errors.New("boom"))
	m2.On("Complete", mock.Anything, mock.MatchedBy(func(in port.ChatInput) bool {
		return in.Model == "" && in.Prompt == "card text"
	})).Return(&port.ChatOutput{Text: "{}", ModelUsed: "gemini-2.0-flash"}, nil)

	fm := llm.NewFallbackModel([]port.ChatModel{m1, m2}, []string{"openai", "gemini"}, nil)
	out, err := fm.Complete(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", out.ModelUsed)
}

func TestFallbackModel_RateLimitOpensCircuit(t *testing.T) {
	m1 := new(mocks.MockChatModel)
	m2 := new(mocks.MockChatModel)
	m1.On("Complete", mock.Anything, mock.Anything).
		Return(nil, llm.NewRateLimitError("openai", errors.New("429"), 60)).Once()
	m2.On("Complete", mock.Anything, mock.Anything).Return(&port.ChatOutput{Text: "{}"}, nil)

	fm := llm.NewFallbackModel([]port.ChatModel{m1, m2}, []string{"openai", "gemini"}, nil)
	_, err := fm.Complete(context.Background(), port.ChatInput{Prompt: "a"})
	require.NoError(t, err)
	_, err = fm.Complete(context.Background(), port.ChatInput{Prompt: "b"})
	require.NoError(t, err)

	m1.AssertNumberOfCalls(t, "Complete", 1)
	m2.AssertNumberOfCalls(t, "Complete", 2)
}

func TestFallbackModel_AllRateLimited(t *testing.T) {
	m1 := new(mocks.MockChatModel)
	m2 := new(mocks.MockChatModel)
	m1.On("Complete", mock.Anything, mock.Anything).Return(nil, llm.NewRateLimitError("openai", errors.New("429"), 60))
	m2.On("Complete", mock.Anything, mock.Anything).Return(nil, llm.NewRateLimitError("gemini", errors.New("429"), 30))

	fm := llm.NewFallbackModel([]port.ChatModel{m1, m2}, []string{"openai", "gemini"}, nil)
	_, err := fm.Complete(context.Background(), port.ChatInput{Prompt: "a"})

	var rlErr *llm.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "all", rlErr.Provider)
	assert.InDelta(t, 30, rlErr.RetryAfter.Seconds(), 2)

	// Both circuits are open now; nothing is called.
	_, err = fm.Complete(context.Background(), port.ChatInput{Prompt: "b"})
	require.ErrorAs(t, err, &rlErr)
	m1.AssertNumberOfCalls(t, "Complete", 1)
	m2.AssertNumberOfCalls(t, "Complete", 1)
}

func TestFallbackModel_AllFailed(t *testing.T) {
	m1 := new(mocks.MockChatModel)
	m2 := new(mocks.MockChatModel)
	m1.On("Complete", mock.Anything, mock.Anything).Return(nil, llm.NewRateLimitError("openai", errors.New("429"), 60))
	m2.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("status 500"))

	fm := llm.NewFallbackModel([]port.ChatModel{m1, m2}, []string{"openai", "gemini"}, nil)
	_, err := fm.Complete(context.Background(), port.ChatInput{Prompt: "a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
	assert.Contains(t, err.Error(), "status 500")
}

func TestNewChatModelWithFallback(t *testing.T) {
	llm.RegisterProvider("stub-a", func(cfg *config.LLMConfig) (port.ChatModel, error) {
		return new(mocks.MockChatModel), nil
	})

	single, err := llm.NewChatModelWithFallback(&config.LLMConfig{Provider: "stub-a"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &mocks.MockChatModel{}, single)

	chained, err := llm.NewChatModelWithFallback(&config.LLMConfig{
		Provider: "stub-a", FallbackProvider: "stub-a", FallbackAPIKey: "k",
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &llm.FallbackModel{}, chained)

	_, err = llm.NewChatModelWithFallback(&config.LLMConfig{
		Provider: "stub-a", FallbackProvider: "missing", FallbackAPIKey: "k",
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback")
}
