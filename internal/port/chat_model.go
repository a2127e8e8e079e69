package port

import "context"

// ImageInput is an inline image attached to a chat request.
type ImageInput struct {
	Data        []byte
	ContentType string
}

// ChatInput carries one single-turn chat request.
type ChatInput struct {
	Model       string
	System      string
	Prompt      string
	Image       *ImageInput
	Temperature float64
	MaxTokens   int
}

// ChatOutput is the model's text reply.
type ChatOutput struct {
	Text      string
	ModelUsed string
}

// ChatModel abstracts an LLM chat completion endpoint.
type ChatModel interface {
	Complete(ctx context.Context, input ChatInput) (*ChatOutput, error)
}
