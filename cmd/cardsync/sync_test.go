package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsync/internal/domain"
	"cardsync/internal/export"
)

func TestReadRecords_JSONArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extracted_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"Name": "Ada", "Primary Email": "ada@example.com"},
  {"error": "No text extracted from this image"}
]`), 0o600))

	records, err := readRecords(path)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Ada", records[0].Fields["Name"])
	assert.True(t, records[1].IsError())
}

func TestReadRecords_XLSX(t *testing.T) {
	data, err := export.XLSX([]domain.Record{
		domain.NewRecord(map[string]any{"Name": "Ada", "Primary Email": "ada@example.com"}),
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	records, err := readRecords(path)

	require.NoError(t, err)
	require.Len(t, records, 1)
	email, ok := records[0].PrimaryEmail()
	assert.True(t, ok)
	assert.Equal(t, "ada@example.com", email)
}

func TestReadRecords_Missing(t *testing.T) {
	_, err := readRecords(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &domain.SyncReport{
		ReadFailed: true,
		Results: []domain.ReconciliationResult{
			{Index: 0, Status: domain.ResultNew, Email: "ada@example.com", Message: "Added new contact"},
			{Index: -1, Status: domain.ResultError, Message: "Airtable credentials not configured"},
		},
		ChunkFailures: []domain.ChunkFailure{{Operation: domain.OperationCreate, Chunk: 1, Size: 1, Error: "status 422"}},
	})

	s := out.String()
	assert.Contains(t, s, "ada@example.com")
	assert.Contains(t, s, "new: 1  updated: 0  skipped: 0  errors: 1  failed: 0")
	assert.Contains(t, s, "warning: existing rows could not be read")
	assert.Contains(t, s, "failed create chunk 1 (1 records): status 422")
}
