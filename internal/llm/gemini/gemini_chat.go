package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cardsync/internal/config"
	"cardsync/internal/llm"
	"cardsync/internal/port"
)

const (
	apiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel = "gemini-2.0-flash"
)

func init() {
	llm.RegisterProvider("gemini", func(cfg *config.LLMConfig) (port.ChatModel, error) {
		return NewChatModel(cfg), nil
	})
}

// ChatModel implements port.ChatModel using Google's Gemini API.
type ChatModel struct {
	apiKey      string
	textModel   string
	visionModel string
	endpoint    string
	client      *http.Client
}

// NewChatModel creates a Gemini chat model.
func NewChatModel(cfg *config.LLMConfig) *ChatModel {
	return newChatModel(cfg, "")
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
	endpoint := m.endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
	}

	var parts []map[string]interface{}
	if input.Image != nil {
		parts = append(parts, map[string]interface{}{
			"inline_data": map[string]interface{}{
				"mime_type": input.Image.ContentType,
				"data":      base64.StdEncoding.EncodeToString(input.Image.Data),
			},
		})
	}
	parts = append(parts, map[string]interface{}{"text": input.Prompt})

	generationConfig := map[string]interface{}{}
	if input.Temperature > 0 {
		generationConfig["temperature"] = input.Temperature
	}
	if input.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = input.MaxTokens
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": parts,
			},
		},
		"generationConfig": generationConfig,
	}
	if input.System != "" {
		reqBody["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": input.System}},
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling gemini API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, llm.Truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, llm.NewRateLimitError("gemini", baseErr, retryAfter)
		}
		return nil, baseErr
	}

	text, err := parseResponse(respBody)
	if err != nil {
		return nil, err
	}
	return &port.ChatOutput{Text: text, ModelUsed: model}, nil
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func parseResponse(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from API: no candidates")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from API: no parts")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
