package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Business card fields read by reconciliation. Any other key a model
// returns is kept on the record but never sent to the store.
const (
	FieldName            = "Name"
	FieldCompany         = "Company"
	FieldPrimaryEmail    = "Primary Email"
	FieldSecondaryEmail  = "Secondary Email"
	FieldPrimaryNumber   = "Primary Number"
	FieldSecondaryNumber = "Secondary Number"
)

// KnownFields lists the business card fields in column order.
var KnownFields = []string{
	FieldName,
	FieldCompany,
	FieldPrimaryEmail,
	FieldSecondaryEmail,
	FieldPrimaryNumber,
	FieldSecondaryNumber,
}

// Context keys carried by an error record.
const (
	ContextExtractedText = "extracted_text"
	ContextImagePath     = "image_path"
)

// ErrorRecord describes an image that could not be turned into a record.
// ContextKey is empty when there is nothing useful to attach.
type ErrorRecord struct {
	Message    string
	ContextKey string
	Context    string
}

// Record is the output of extraction for one image: either the key/value
// mapping the model produced, or an error record.
type Record struct {
	Fields map[string]any
	Error  *ErrorRecord
}

// NewRecord wraps a decoded model reply.
func NewRecord(fields map[string]any) Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return Record{Fields: fields}
}

// NewErrorRecord builds an error record. contextKey may be empty.
func NewErrorRecord(message, contextKey, context string) Record {
	return Record{Error: &ErrorRecord{Message: message, ContextKey: contextKey, Context: context}}
}

// IsError reports whether the record is an error record.
func (r Record) IsError() bool {
	return r.Error != nil
}

// PrimaryEmail returns the trimmed, lowercased Primary Email. ok is false
// when the field is absent, null, not a string, or blank.
func (r Record) PrimaryEmail() (email string, ok bool) {
	if r.IsError() {
		return "", false
	}
	s, isString := r.Fields[FieldPrimaryEmail].(string)
	if !isString {
		return "", false
	}
	email = strings.ToLower(strings.TrimSpace(s))
	return email, email != ""
}

// Text returns a field rendered as a string for tabular exports.
func (r Record) Text(field string) string {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// MarshalJSON writes the record in artifact form: the raw mapping, or
// {"error": ..., "<context key>": ...}.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		m := map[string]string{"error": r.Error.Message}
		if r.Error.ContextKey != "" {
			m[r.Error.ContextKey] = r.Error.Context
		}
		return marshalRaw(m)
	}
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return marshalRaw(r.Fields)
}

// marshalRaw encodes v without HTML escaping.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON reads an artifact entry back. An object with a string
// "error" key is an error record.
func (r *Record) UnmarshalJSON(b []byte) error {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&m); err != nil {
		return err
	}
	if msg, ok := m["error"].(string); ok {
		rec := ErrorRecord{Message: msg}
		for _, key := range []string{ContextExtractedText, ContextImagePath} {
			if v, ok := m[key].(string); ok {
				rec.ContextKey, rec.Context = key, v
				break
			}
		}
		*r = Record{Error: &rec}
		return nil
	}
	*r = NewRecord(m)
	return nil
}

// ExistingRow is a row already present in the remote store.
type ExistingRow struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// CreatePayload is one entry of a create batch.
type CreatePayload struct {
	Fields map[string]any `json:"fields"`
}

// UpdatePayload is one entry of an update batch.
type UpdatePayload struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// ReconciliationResult is the outcome for the record at Index.
type ReconciliationResult struct {
	Index   int          `json:"index"`
	Status  ResultStatus `json:"status"`
	Message string       `json:"message"`
	Email   string       `json:"email,omitempty"`
}

// ChunkFailure records a create or update call the store rejected.
type ChunkFailure struct {
	Operation  string `json:"operation"`
	Chunk      int    `json:"chunk"`
	Size       int    `json:"size"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error"`
}

// SyncCounts tallies results by status.
type SyncCounts struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
	Failed  int `json:"failed"`
}

// SyncReport is everything a reconciliation run produced. Results reflect
// the intended classification; ChunkFailures lists writes that did not land.
type SyncReport struct {
	Results       []ReconciliationResult `json:"results"`
	ExistingRows  int                    `json:"existing_rows"`
	ReadFailed    bool                   `json:"read_failed"`
	CreateChunks  int                    `json:"create_chunks"`
	UpdateChunks  int                    `json:"update_chunks"`
	ChunkFailures []ChunkFailure         `json:"chunk_failures,omitempty"`
}

// Counts tallies the report's results.
func (r *SyncReport) Counts() SyncCounts {
	var c SyncCounts
	if r == nil {
		return c
	}
	for _, res := range r.Results {
		switch res.Status {
		case ResultNew:
			c.New++
		case ResultUpdated:
			c.Updated++
		case ResultSkipped:
			c.Skipped++
		case ResultError:
			c.Errors++
		case ResultFailed:
			c.Failed++
		}
	}
	return c
}

// Image is an uploaded image held on local disk for the duration of a run.
type Image struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Path        string `json:"-"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Run is the explicit state of one upload → process → sync cycle.
type Run struct {
	ID          uuid.UUID   `json:"id"`
	Strategy    Strategy    `json:"strategy"`
	Status      RunStatus   `json:"status"`
	Images      []Image     `json:"images"`
	Records     []Record    `json:"records,omitempty"`
	Report      *SyncReport `json:"report,omitempty"`
	ArtifactKey string      `json:"artifact_key,omitempty"`
	WorkDir     string      `json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Summary flattens the run for the history table.
func (r *Run) Summary() RunSummary {
	counts := r.Report.Counts()
	s := RunSummary{
		ID:           r.ID,
		Strategy:     r.Strategy,
		Status:       r.Status,
		ImageCount:   len(r.Images),
		NewCount:     counts.New,
		UpdatedCount: counts.Updated,
		SkippedCount: counts.Skipped,
		ErrorCount:   counts.Errors,
		FailedCount:  counts.Failed,
		ArtifactKey:  r.ArtifactKey,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Report != nil && len(r.Report.ChunkFailures) > 0 {
		s.ChunkFailures, _ = json.Marshal(r.Report.ChunkFailures)
	}
	return s
}

// RunSummary is a persisted run in the history table.
type RunSummary struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Strategy      Strategy        `db:"strategy" json:"strategy"`
	Status        RunStatus       `db:"status" json:"status"`
	ImageCount    int             `db:"image_count" json:"image_count"`
	NewCount      int             `db:"new_count" json:"new_count"`
	UpdatedCount  int             `db:"updated_count" json:"updated_count"`
	SkippedCount  int             `db:"skipped_count" json:"skipped_count"`
	ErrorCount    int             `db:"error_count" json:"error_count"`
	FailedCount   int             `db:"failed_count" json:"failed_count"`
	ChunkFailures json.RawMessage `db:"chunk_failures" json:"chunk_failures,omitempty"`
	ArtifactKey   string          `db:"artifact_key" json:"artifact_key,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// RunResult is one persisted per-record outcome.
type RunResult struct {
	RunID    uuid.UUID       `db:"run_id" json:"run_id"`
	Position int             `db:"position" json:"position"`
	Source   string          `db:"source" json:"source"`
	Status   ResultStatus    `db:"status" json:"status"`
	Message  string          `db:"message" json:"message"`
	Record   json.RawMessage `db:"record" json:"record"`
}

// RunSummaryMail is what the run summary mail reports.
type RunSummaryMail struct {
	RunID         uuid.UUID
	Images        int
	Counts        SyncCounts
	ReadFailed    bool
	ChunkFailures []ChunkFailure
	ArtifactURL   string
}
