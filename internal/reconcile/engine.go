package reconcile

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"cardsync/internal/config"
	"cardsync/internal/domain"
	"cardsync/internal/logging"
	"cardsync/internal/port"
)

// MaxBatchSize is the most records the store accepts per write call.
const MaxBatchSize = 10

// Engine reconciles records against a remote store.
type Engine struct {
	store      port.RecordStore
	configured bool
	batchSize  int
	logger     *zap.Logger
}

// NewEngine creates an engine. When cfg lacks any store credential the
// engine never calls store.
func NewEngine(store port.RecordStore, cfg *config.AirtableConfig, logger *zap.Logger) *Engine {
	batch := cfg.BatchSize
	if batch <= 0 || batch > MaxBatchSize {
		batch = MaxBatchSize
	}
	return &Engine{
		store:      store,
		configured: cfg.Configured() && store != nil,
		batchSize:  batch,
		logger:     logging.OrNop(logger),
	}
}

// Configured reports whether the engine will talk to the store.
func (e *Engine) Configured() bool {
	return e.configured
}

// Reconcile reads the store, classifies records and writes the changes:
// every create chunk first, then every update chunk. Write failures are
// recorded on the report and never change the per-record results.
func (e *Engine) Reconcile(ctx context.Context, records []domain.Record) *domain.SyncReport {
	if !e.configured {
		e.logger.Warn("reconcile.Reconcile: store not configured")
		return &domain.SyncReport{
			Results: []domain.ReconciliationResult{{
				Index:   -1,
				Status:  domain.ResultError,
				Message: domain.ErrStoreNotConfigured.Error(),
			}},
		}
	}

	report := &domain.SyncReport{}

	rows, err := e.store.FetchAll(ctx)
	if err != nil {
		e.logger.Error("reconcile.Reconcile: failed to fetch existing rows, treating all records as new", zap.Error(err))
		report.ReadFailed = true
		rows = nil
	}
	report.ExistingRows = len(rows)

	results, creates, updates := Plan(records, BuildIndex(rows))
	report.Results = results

	createChunks := Chunk(creates, e.batchSize)
	updateChunks := Chunk(updates, e.batchSize)
	report.CreateChunks = len(createChunks)
	report.UpdateChunks = len(updateChunks)

	for i, chunk := range createChunks {
		if err := e.store.Create(ctx, chunk); err != nil {
			report.ChunkFailures = append(report.ChunkFailures, e.chunkFailure(domain.OperationCreate, i, len(chunk), err))
		}
	}
	for i, chunk := range updateChunks {
		if err := e.store.Update(ctx, chunk); err != nil {
			report.ChunkFailures = append(report.ChunkFailures, e.chunkFailure(domain.OperationUpdate, i, len(chunk), err))
		}
	}

	counts := report.Counts()
	e.logger.Info("reconcile.Reconcile: done",
		zap.Int("records", len(records)),
		zap.Int("existing_rows", report.ExistingRows),
		zap.Int("new", counts.New),
		zap.Int("updated", counts.Updated),
		zap.Int("skipped", counts.Skipped),
		zap.Int("errors", counts.Errors),
		zap.Int("failed", counts.Failed),
		zap.Int("chunk_failures", len(report.ChunkFailures)),
	)
	return report
}

func (e *Engine) chunkFailure(op string, chunk, size int, err error) domain.ChunkFailure {
	e.logger.Error("reconcile.Reconcile: chunk write failed",
		zap.String("operation", op), zap.Int("chunk", chunk), zap.Int("size", size), zap.Error(err))
	f := domain.ChunkFailure{Operation: op, Chunk: chunk, Size: size, Error: err.Error()}
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		f.StatusCode = storeErr.StatusCode
	}
	return f
}
