package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrRunNotFound         = errors.New("run not found")
	ErrRunBusy             = errors.New("run is already being processed")
	ErrNoImages            = errors.New("no images uploaded")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrTooManyFiles        = errors.New("too many files in one upload")
	ErrNotExtracted        = errors.New("run has no extracted records yet")
	ErrInvalidFormat       = errors.New("unsupported export format")
	ErrInvalidStrategy     = errors.New("unknown extraction strategy")
)

// Credential errors.
var (
	ErrMissingModelKey    = errors.New("model API key is not configured")
	ErrInvalidModelKey    = errors.New("invalid API key or API request failed")
	ErrStoreNotConfigured = errors.New("Airtable credentials not configured")
)

// StoreError is a non-success response from the remote store.
type StoreError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}
