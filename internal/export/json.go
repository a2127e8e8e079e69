// Package export renders extracted records as the downloadable JSON
// artifact, CSV, or an Excel workbook, and reads the JSON and Excel forms
// back for offline sync.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"cardsync/internal/domain"
)

// ArtifactName is the file name of the downloadable JSON artifact.
const ArtifactName = "extracted_data.json"

// ArchiveKey returns the object key a run's artifact is archived under.
func ArchiveKey(runID uuid.UUID) string {
	return path.Join("runs", runID.String(), ArtifactName)
}

// WriteJSON writes records as an indented JSON array, errors included, in order.
func WriteJSON(w io.Writer, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("export.WriteJSON: %w", err)
	}
	return nil
}

// JSON returns the artifact bytes.
func JSON(records []domain.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadJSON reads an artifact back.
func ReadJSON(r io.Reader) ([]domain.Record, error) {
	var records []domain.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("export.ReadJSON: %w", err)
	}
	return records, nil
}
