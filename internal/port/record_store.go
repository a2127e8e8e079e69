package port

import (
	"context"

	"cardsync/internal/domain"
)

// RecordReader fetches every row of the remote table.
type RecordReader interface {
	FetchAll(ctx context.Context) ([]domain.ExistingRow, error)
}

// RecordWriter issues one create or update call per chunk.
type RecordWriter interface {
	Create(ctx context.Context, chunk []domain.CreatePayload) error
	Update(ctx context.Context, chunk []domain.UpdatePayload) error
}

// RecordStore is the remote tabular store.
type RecordStore interface {
	RecordReader
	RecordWriter
}
