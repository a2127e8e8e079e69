package structurer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cardsync/internal/domain"
	"cardsync/internal/logging"
	"cardsync/internal/port"
)

// Structurer turns OCR text or a raw image into a record by asking a chat model.
type Structurer struct {
	model       port.ChatModel
	textModel   string
	visionModel string
	temperature float64
	logger      *zap.Logger
}

// Options configures a Structurer. Empty model names defer to the provider default.
type Options struct {
	TextModel   string
	VisionModel string
	Temperature float64
}

// New creates a Structurer.
func New(model port.ChatModel, opts Options, logger *zap.Logger) *Structurer {
	return &Structurer{
		model:       model,
		textModel:   opts.TextModel,
		visionModel: opts.VisionModel,
		temperature: opts.Temperature,
		logger:      logging.OrNop(logger),
	}
}

// FromText structures OCR output. Failures are returned as an error record
// carrying the text.
func (s *Structurer) FromText(ctx context.Context, text string) domain.Record {
	fields, err := s.complete(ctx, port.ChatInput{
		Model:       s.textModel,
		System:      SystemMessage,
		Prompt:      BuildTextPrompt(text),
		Temperature: s.temperature,
	})
	if err != nil {
		s.logger.Warn("structurer.FromText: structuring failed", zap.Error(err))
		return domain.NewErrorRecord(fmt.Sprintf("Error processing with GPT: %v", err), domain.ContextExtractedText, text)
	}
	return domain.NewRecord(fields)
}

// FromImage structures an image by attaching it to the request. Failures
// are returned as an error record carrying the image path.
func (s *Structurer) FromImage(ctx context.Context, image domain.Image, data []byte) domain.Record {
	fields, err := s.complete(ctx, port.ChatInput{
		Model:       s.visionModel,
		System:      SystemMessage,
		Prompt:      BuildImagePrompt(),
		Image:       &port.ImageInput{Data: data, ContentType: image.ContentType},
		Temperature: s.temperature,
	})
	if err != nil {
		s.logger.Warn("structurer.FromImage: structuring failed",
			zap.String("image", image.Name), zap.Error(err))
		return domain.NewErrorRecord(fmt.Sprintf("Error processing with GPT: %v", err), domain.ContextImagePath, image.Path)
	}
	return domain.NewRecord(fields)
}

func (s *Structurer) complete(ctx context.Context, input port.ChatInput) (map[string]any, error) {
	out, err := s.model.Complete(ctx, input)
	if err != nil {
		return nil, err
	}
	fields, err := DecodeReply(out.Text)
	if err != nil {
		return nil, err
	}
	if err := CheckSchema(fields); err != nil {
		s.logger.Debug("structurer: reply outside card schema",
			zap.String("model", out.ModelUsed), zap.Error(err))
	}
	return fields, nil
}
