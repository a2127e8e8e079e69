// Package extract turns uploaded images into records using one of two
// strategies: local OCR followed by text structuring, or sending the image
// straight to a vision model.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"cardsync/internal/domain"
	"cardsync/internal/logging"
	"cardsync/internal/ocr"
	"cardsync/internal/port"
)

// NoTextMessage is the error reported for images OCR found no text in.
const NoTextMessage = "No text extracted from this image"

// TextStructurer structures OCR text.
type TextStructurer interface {
	FromText(ctx context.Context, text string) domain.Record
}

// ImageStructurer structures a raw image.
type ImageStructurer interface {
	FromImage(ctx context.Context, image domain.Image, data []byte) domain.Record
}

// OCRExtractor reads text locally, then asks the model to structure it.
type OCRExtractor struct {
	recognizer port.TextRecognizer
	structurer TextStructurer
	logger     *zap.Logger
}

// NewOCRExtractor creates the ocr strategy.
func NewOCRExtractor(recognizer port.TextRecognizer, structurer TextStructurer, logger *zap.Logger) *OCRExtractor {
	return &OCRExtractor{recognizer: recognizer, structurer: structurer, logger: logging.OrNop(logger)}
}

func (e *OCRExtractor) Extract(ctx context.Context, image domain.Image) domain.Record {
	paragraphs, err := e.recognizer.Recognize(ctx, image.Path)
	if err != nil {
		e.logger.Warn("extract.OCRExtractor: text recognition failed",
			zap.String("image", image.Name), zap.Error(err))
		return domain.NewErrorRecord(fmt.Sprintf("Error extracting text: %v", err), domain.ContextImagePath, image.Path)
	}

	text := ocr.JoinParagraphs(paragraphs)
	if strings.TrimSpace(text) == "" {
		e.logger.Info("extract.OCRExtractor: no text found", zap.String("image", image.Name))
		return domain.NewErrorRecord(NoTextMessage, "", "")
	}
	return e.structurer.FromText(ctx, text)
}

// VisionExtractor sends the image bytes to a vision model.
type VisionExtractor struct {
	structurer ImageStructurer
	logger     *zap.Logger
}

// NewVisionExtractor creates the vision strategy.
func NewVisionExtractor(structurer ImageStructurer, logger *zap.Logger) *VisionExtractor {
	return &VisionExtractor{structurer: structurer, logger: logging.OrNop(logger)}
}

func (e *VisionExtractor) Extract(ctx context.Context, image domain.Image) domain.Record {
	data, err := os.ReadFile(image.Path)
	if err != nil {
		e.logger.Warn("extract.VisionExtractor: reading image failed",
			zap.String("image", image.Name), zap.Error(err))
		return domain.NewErrorRecord(fmt.Sprintf("Error processing with GPT: %v", err), domain.ContextImagePath, image.Path)
	}
	return e.structurer.FromImage(ctx, image, data)
}

// Structurer is satisfied by *structurer.Structurer.
type Structurer interface {
	TextStructurer
	ImageStructurer
}

// New returns the extractor for a strategy.
func New(strategy domain.Strategy, recognizer port.TextRecognizer, s Structurer, logger *zap.Logger) (port.Extractor, error) {
	switch strategy {
	case domain.StrategyOCR:
		if recognizer == nil {
			return nil, fmt.Errorf("extract.New: ocr strategy needs a text recognizer")
		}
		return NewOCRExtractor(recognizer, s, logger), nil
	case domain.StrategyVision:
		return NewVisionExtractor(s, logger), nil
	default:
		return nil, fmt.Errorf("extract.New: %w: %q", domain.ErrInvalidStrategy, strategy)
	}
}

// ExtractAll runs the extractor over every image in order, one at a time.
// The result has exactly one record per image. A cancelled context turns
// the remaining images into error records.
func ExtractAll(ctx context.Context, extractor port.Extractor, images []domain.Image, logger *zap.Logger) []domain.Record {
	logger = logging.OrNop(logger)
	records := make([]domain.Record, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			records = append(records, domain.NewErrorRecord(fmt.Sprintf("Error extracting text: %v", err), domain.ContextImagePath, img.Path))
			continue
		}
		logger.Debug("extract.ExtractAll: processing image",
			zap.Int("position", i+1), zap.Int("total", len(images)), zap.String("image", img.Name))
		records = append(records, extractor.Extract(ctx, img))
	}
	return records
}
