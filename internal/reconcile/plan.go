// Package reconcile matches extracted records against the rows already in
// the remote store by Primary Email and decides what to create or update.
package reconcile

import (
	"fmt"
	"reflect"
	"strings"

	"cardsync/internal/domain"
)

// MissingEmailMessage is reported for records that cannot be matched.
const MissingEmailMessage = "Missing Primary Email; record cannot be matched"

// Index maps a lowercased Primary Email to its existing row.
type Index map[string]domain.ExistingRow

// BuildIndex indexes rows by lowercased Primary Email. Rows without a string
// email are left out. When two rows share an email the later one wins.
func BuildIndex(rows []domain.ExistingRow) Index {
	idx := make(Index, len(rows))
	for _, row := range rows {
		s, ok := row.Fields[domain.FieldPrimaryEmail].(string)
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			continue
		}
		idx[key] = row
	}
	return idx
}

// Candidate builds the field mapping sent to the store: the known fields
// that are present and non-null, with the normalized email.
func Candidate(rec domain.Record, email string) map[string]any {
	fields := make(map[string]any, len(domain.KnownFields))
	for _, f := range domain.KnownFields {
		v, ok := rec.Fields[f]
		if !ok || v == nil {
			continue
		}
		fields[f] = v
	}
	fields[domain.FieldPrimaryEmail] = email
	return fields
}

// NeedsUpdate reports whether any candidate value differs from the stored
// one. Keys the candidate lacks are not compared.
func NeedsUpdate(candidate, existing map[string]any) bool {
	for k, v := range candidate {
		if !reflect.DeepEqual(existing[k], v) {
			return true
		}
	}
	return false
}

// Plan classifies every record in input order and collects the writes.
func Plan(records []domain.Record, index Index) ([]domain.ReconciliationResult, []domain.CreatePayload, []domain.UpdatePayload) {
	var (
		results = make([]domain.ReconciliationResult, 0, len(records))
		creates []domain.CreatePayload
		updates []domain.UpdatePayload
	)

	for i, rec := range records {
		if rec.IsError() {
			results = append(results, domain.ReconciliationResult{
				Index:   i,
				Status:  domain.ResultError,
				Message: rec.Error.Message,
			})
			continue
		}

		email, ok := rec.PrimaryEmail()
		if !ok {
			results = append(results, domain.ReconciliationResult{
				Index:   i,
				Status:  domain.ResultFailed,
				Message: MissingEmailMessage,
			})
			continue
		}

		candidate := Candidate(rec, email)
		existing, found := index[email]
		switch {
		case !found:
			creates = append(creates, domain.CreatePayload{Fields: candidate})
			results = append(results, domain.ReconciliationResult{
				Index: i, Status: domain.ResultNew, Email: email,
				Message: fmt.Sprintf("Added new record for %s", email),
			})
		case NeedsUpdate(candidate, existing.Fields):
			updates = append(updates, domain.UpdatePayload{ID: existing.ID, Fields: candidate})
			results = append(results, domain.ReconciliationResult{
				Index: i, Status: domain.ResultUpdated, Email: email,
				Message: fmt.Sprintf("Updated record for %s", email),
			})
		default:
			results = append(results, domain.ReconciliationResult{
				Index: i, Status: domain.ResultSkipped, Email: email,
				Message: fmt.Sprintf("No changes needed for %s", email),
			})
		}
	}
	return results, creates, updates
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
