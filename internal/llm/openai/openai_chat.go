package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"cardsync/internal/config"
	"cardsync/internal/llm"
	"cardsync/internal/port"
)

const (
	defaultTextModel   = "gpt-4o-mini"
	defaultVisionModel = "gpt-4o"
)

func init() {
	llm.RegisterProvider("openai", func(cfg *config.LLMConfig) (port.ChatModel, error) {
		return NewChatModel(cfg), nil
	})
}

// ChatModel implements port.ChatModel using the OpenAI Chat Completions API.
type ChatModel struct {
	client      oai.Client
	textModel   string
	visionModel string
}

// NewChatModel creates an OpenAI chat model from the LLM config.
func NewChatModel(cfg *config.LLMConfig) *ChatModel {
	return newChatModel(cfg, cfg.BaseURL)
}

// NewChatModelWithEndpoint creates a chat model pointing at a custom base URL (for testing).
func NewChatModelWithEndpoint(cfg *config.LLMConfig, baseURL string) *ChatModel {
	return newChatModel(cfg, baseURL)
}

func newChatModel(cfg *config.LLMConfig, baseURL string) *ChatModel {
	textModel := cfg.TextModel
	if textModel == "" {
		textModel = defaultTextModel
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = defaultVisionModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &ChatModel{
		client:      oai.NewClient(opts...),
		textModel:   textModel,
		visionModel: visionModel,
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

	var messages []oai.ChatCompletionMessageParamUnion
	if input.System != "" {
		messages = append(messages, oai.SystemMessage(input.System))
	}
	if input.Image != nil {
		dataURI := fmt.Sprintf("data:%s;base64,%s",
			input.Image.ContentType, base64.StdEncoding.EncodeToString(input.Image.Data))
		messages = append(messages, oai.UserMessage([]oai.ChatCompletionContentPartUnionParam{
			oai.TextContentPart(input.Prompt),
			oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{URL: dataURI}),
		}))
	} else {
		messages = append(messages, oai.UserMessage(input.Prompt))
	}

	params := oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(model),
		Messages: messages,
	}
	if input.Temperature > 0 {
		params.Temperature = oai.Float(input.Temperature)
	}
	if input.MaxTokens > 0 {
		params.MaxTokens = oai.Int(int64(input.MaxTokens))
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API: no choices")
	}

	return &port.ChatOutput{
		Text:      completion.Choices[0].Message.Content,
		ModelUsed: model,
	}, nil
}

func mapError(err error) error {
	var apiErr *oai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("calling openai API: %w", err)
	}
	baseErr := fmt.Errorf("openai API error (status %d): %s", apiErr.StatusCode, llm.Truncate(apiErr.Message, 500))
	if apiErr.StatusCode == http.StatusTooManyRequests {
		retryAfter := 0
		if apiErr.Response != nil {
			retryAfter = llm.ParseRetryAfterHeader(apiErr.Response.Header.Get("Retry-After"))
		}
		return llm.NewRateLimitError("openai", baseErr, retryAfter)
	}
	return baseErr
}
