package claude

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cardsync/internal/config"
	"cardsync/internal/llm"
	"cardsync/internal/port"
)

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	defaultModel = "claude-sonnet-4-20250514"
	maxTokens    = 4096
)

func init() {
	llm.RegisterProvider("claude", func(cfg *config.LLMConfig) (port.ChatModel, error) {
		return NewChatModel(cfg), nil
	})
}

// ChatModel implements port.ChatModel using the Anthropic Messages API.
type ChatModel struct {
	apiKey      string
	textModel   string
	visionModel string
	endpoint    string
	client      *http.Client
}

// NewChatModel creates a Claude chat model from the LLM config.
func NewChatModel(cfg *config.LLMConfig) *ChatModel {
	endpoint := apiURL
	if cfg.BaseURL != "" {
		endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/v1/messages"
	}
	return newChatModel(cfg, endpoint)
}

// NewChatModelWithEndpoint creates a chat model pointing at a custom API endpoint (for testing).
func NewChatModelWithEndpoint(cfg *config.LLMConfig, endpoint string) *ChatModel {
	return newChatModel(cfg, endpoint)
}

func newChatModel(cfg *config.LLMConfig, endpoint string) *ChatModel {
	textModel := cfg.TextModel
	if textModel == "" {
		textModel = defaultModel
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &ChatModel{
		apiKey:      cfg.APIKey,
		textModel:   textModel,
		visionModel: visionModel,
		endpoint:    endpoint,
		client:      &http.Client{Timeout: timeout},
	}
}

func (m *ChatModel) Complete(ctx context.Context, input port.ChatInput) (*port.ChatOutput, error) {
	model := input.Model
	if model == "" {
		model = m.textModel
		if input.Image != nil {
			model = m.visionModel
		}
	}

	tokens := maxTokens
	if input.MaxTokens > 0 {
		tokens = input.MaxTokens
	}

	reqBody := map[string]interface{}{
		"model":      model,
		"max_tokens": tokens,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": buildContentBlocks(input),
			},
		},
	}
	if input.System != "" {
		reqBody["system"] = input.System
	}
	if input.Temperature > 0 {
		reqBody["temperature"] = input.Temperature
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling anthropic API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, llm.Truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, llm.NewRateLimitError("claude", baseErr, retryAfter)
		}
		return nil, baseErr
	}

	text, err := parseResponse(respBody)
	if err != nil {
		return nil, err
	}
	return &port.ChatOutput{Text: text, ModelUsed: model}, nil
}

func buildContentBlocks(input port.ChatInput) []map[string]interface{} {
	var blocks []map[string]interface{}
	if input.Image != nil {
		blocks = append(blocks, map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": input.Image.ContentType,
				"data":       base64.StdEncoding.EncodeToString(input.Image.Data),
			},
		})
	}
	return append(blocks, map[string]interface{}{
		"type": "text",
		"text": input.Prompt,
	})
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func parseResponse(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from API")
}
