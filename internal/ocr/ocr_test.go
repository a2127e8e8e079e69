package ocr_test

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsync/internal/config"
	"cardsync/internal/ocr"
)

type fakeRunner struct {
	name   string
	args   []string
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func TestParagraphs(t *testing.T) {
	raw := "Jane  Doe\nChief Officer\n\n\nACME Corp\n  \njane@acme.io\n\f"
	assert.Equal(t, []string{"Jane Doe Chief Officer", "ACME Corp", "jane@acme.io"}, ocr.Paragraphs(raw))
	assert.Empty(t, ocr.Paragraphs(" \n\n \f"))
}

func TestJoinParagraphs(t *testing.T) {
	assert.Equal(t, "a b\nc", ocr.JoinParagraphs([]string{"a b", "c"}))
	assert.Equal(t, "", ocr.JoinParagraphs(nil))
}

func TestTesseract_Recognize_Args(t *testing.T) {
	runner := &fakeRunner{stdout: "Jane Doe\nACME\n\njane@acme.io\n"}
	tess := ocr.NewTesseract(config.ExtractionConfig{
		TesseractPath: "/usr/bin/tesseract",
		Language:      "eng",
		PSM:           6,
		TessdataDir:   "/data/tess",
	}, runner, nil)

	paragraphs, err := tess.Recognize(context.Background(), "/tmp/card.png")

	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe ACME", "jane@acme.io"}, paragraphs)
	assert.Equal(t, "/usr/bin/tesseract", runner.name)
	assert.Equal(t, []string{"/tmp/card.png", "stdout", "-l", "eng", "--psm", "6", "--tessdata-dir", "/data/tess"}, runner.args)
}

func TestTesseract_Recognize_Defaults(t *testing.T) {
	runner := &fakeRunner{}
	tess := ocr.NewTesseract(config.ExtractionConfig{}, runner, nil)

	paragraphs, err := tess.Recognize(context.Background(), "card.jpg")

	require.NoError(t, err)
	assert.Empty(t, paragraphs)
	assert.Equal(t, "tesseract", runner.name)
	assert.Equal(t, []string{"card.jpg", "stdout", "-l", "eng"}, runner.args)
}

func TestTesseract_Recognize_Error(t *testing.T) {
	runner := &fakeRunner{stderr: "Error opening data file", err: errors.New("exit status 1")}
	tess := ocr.NewTesseract(config.ExtractionConfig{}, runner, nil)

	_, err := tess.Recognize(context.Background(), "card.jpg")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
	assert.Contains(t, err.Error(), "Error opening data file")
}

func TestTesseract_Recognize_PreprocessFallsBack(t *testing.T) {
	runner := &fakeRunner{stdout: "text"}
	tess := ocr.NewTesseract(config.ExtractionConfig{Preprocess: true, MaxDimension: 100}, runner, nil)

	_, err := tess.Recognize(context.Background(), filepath.Join(t.TempDir(), "missing.png"))

	require.NoError(t, err)
	assert.Equal(t, "missing.png", filepath.Base(runner.args[0]))
}

func TestPreprocess_Resizes(t *testing.T) {
	src := filepath.Join(t.TempDir(), "card.png")
	require.NoError(t, imaging.Save(imaging.New(400, 200, color.White), src))

	out, err := ocr.Preprocess(src, 100)
	require.NoError(t, err)
	defer os.Remove(out)

	img, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestPreprocess_MissingFile(t *testing.T) {
	_, err := ocr.Preprocess(filepath.Join(t.TempDir(), "nope.png"), 100)
	assert.Error(t, err)
}
