package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsync/internal/config"
	"cardsync/internal/llm"
	"cardsync/internal/llm/openai"
	"cardsync/internal/port"
)

func newTestChatModel(serverURL string) *openai.ChatModel {
	cfg := &config.LLMConfig{
		Provider:    "openai",
		APIKey:      "test-openai-key",
		TimeoutSecs: 30,
	}
	return openai.NewChatModelWithEndpoint(cfg, serverURL+"/")
}

func successResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
}

func TestChatModel_Complete_Text(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-openai-key", r.Header.Get("Authorization"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "gpt-4o-mini", reqBody["model"])
		assert.InDelta(t, 0.3, reqBody["temperature"], 0.0001)

		messages := reqBody["messages"].([]interface{})
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
		user := messages[1].(map[string]interface{})
		assert.Equal(t, "user", user["role"])
		assert.Equal(t, "structure this", user["content"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse(`{"Name":"Jane"}`))
	}))
	defer server.Close()

	out, err := newTestChatModel(server.URL).Complete(context.Background(), port.ChatInput{
		System:      "You will return only valid JSON.",
		Prompt:      "structure this",
		Temperature: 0.3,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"Name":"Jane"}`, out.Text)
	assert.Equal(t, "gpt-4o-mini", out.ModelUsed)
}

func TestChatModel_Complete_ImageUsesVisionModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "gpt-4o", reqBody["model"])

		messages := reqBody["messages"].([]interface{})
		user := messages[len(messages)-1].(map[string]interface{})
		parts := user["content"].([]interface{})
		require.Len(t, parts, 2)
		assert.Equal(t, "text", parts[0].(map[string]interface{})["type"])
		img := parts[1].(map[string]interface{})
		assert.Equal(t, "image_url", img["type"])
		url := img["image_url"].(map[string]interface{})["url"].(string)
		assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse(`{}`))
	}))
	defer server.Close()

	out, err := newTestChatModel(server.URL).Complete(context.Background(), port.ChatInput{
		Prompt: "read the card",
		Image:  &port.ImageInput{Data: []byte{0x89, 0x50, 0x4E, 0x47}, ContentType: "image/png"},
	})

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", out.ModelUsed)
}

func TestChatModel_Complete_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := newTestChatModel(server.URL).Complete(context.Background(), port.ChatInput{Prompt: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestChatModel_Complete_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer server.Close()

	_, err := newTestChatModel(server.URL).Complete(context.Background(), port.ChatInput{Prompt: "x"})

	var rlErr *llm.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "openai", rlErr.Provider)
	assert.Equal(t, 12*time.Second, rlErr.RetryAfter)
}

func TestProviderRegistered(t *testing.T) {
	assert.Contains(t, llm.Providers(), "openai")
}
