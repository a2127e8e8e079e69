package port

import "context"

// TextRecognizer abstracts a local OCR engine. It returns recognized
// paragraphs in reading order.
type TextRecognizer interface {
	Recognize(ctx context.Context, imagePath string) ([]string, error)
}
