package ocr

import (
	"fmt"
	"os"

	"github.com/disintegration/imaging"
)

// Preprocess writes an OCR-friendly copy of the image to a temporary PNG
// and returns its path. The caller removes the file.
func Preprocess(imagePath string, maxDimension int) (string, error) {
	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxDimension > 0 && (width > maxDimension || height > maxDimension) {
		if width > height {
			img = imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
		}
	}

	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustContrast(img, 25)
	img = imaging.Grayscale(img)

	f, err := os.CreateTemp("", "cardsync-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer f.Close()

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to encode processed image: %w", err)
	}
	return f.Name(), nil
}
