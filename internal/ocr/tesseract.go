package ocr

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cardsync/internal/config"
	"cardsync/internal/logging"
)

// Tesseract implements port.TextRecognizer by shelling out to the tesseract CLI.
type Tesseract struct {
	cfg    config.ExtractionConfig
	runner Runner
	logger *zap.Logger
}

// NewTesseract creates a recognizer. A nil runner uses os/exec.
func NewTesseract(cfg config.ExtractionConfig, runner Runner, logger *zap.Logger) *Tesseract {
	logger = logging.OrNop(logger)
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.TesseractPath == "" {
		cfg.TesseractPath = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

// Recognize returns the paragraphs tesseract reads from the image.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) ([]string, error) {
	input := imagePath
	if t.cfg.Preprocess {
		processed, err := Preprocess(imagePath, t.cfg.MaxDimension)
		if err != nil {
			// tesseract may still read formats imaging cannot decode
			t.logger.Warn("ocr.Recognize: preprocessing skipped",
				zap.String("image", imagePath), zap.Error(err))
		} else {
			defer os.Remove(processed)
			input = processed
		}
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.TesseractPath, t.args(input)...)
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(msg, 500))
		}
		return nil, fmt.Errorf("tesseract: %w", err)
	}
	return Paragraphs(string(out)), nil
}

func (t *Tesseract) args(path string) []string {
	// tesseract <file> stdout -l <lang>
	args := []string{path, "stdout", "-l", t.cfg.Language}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}
