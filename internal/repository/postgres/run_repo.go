package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"cardsync/internal/domain"
	"cardsync/internal/port"
)

type runRepo struct {
	db *sqlx.DB
}

// NewRunRepo creates a new PostgreSQL-backed RunRepository.
func NewRunRepo(db *sqlx.DB) port.RunRepository {
	return &runRepo{db: db}
}

func jsonOrDefault(b json.RawMessage, def string) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage(def)
	}
	return b
}

func (r *runRepo) Create(ctx context.Context, run *domain.RunSummary) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	run.ChunkFailures = jsonOrDefault(run.ChunkFailures, "[]")

	query := `INSERT INTO runs (id, strategy, status, image_count, new_count, updated_count,
		skipped_count, error_count, failed_count, chunk_failures, artifact_key, created_at, updated_at)
		VALUES (:id, :strategy, :status, :image_count, :new_count, :updated_count,
		:skipped_count, :error_count, :failed_count, :chunk_failures, :artifact_key, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("runRepo.Create: %w", err)
	}
	return nil
}

func (r *runRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3",
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("runRepo.UpdateStatus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveReport overwrites the run's counters and replaces its per-record
// results in one transaction.
func (r *runRepo) SaveReport(ctx context.Context, run *domain.RunSummary, results []domain.RunResult) error {
	run.UpdatedAt = time.Now().UTC()
	run.ChunkFailures = jsonOrDefault(run.ChunkFailures, "[]")

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("runRepo.SaveReport begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `UPDATE runs SET status = :status, image_count = :image_count, new_count = :new_count,
		updated_count = :updated_count, skipped_count = :skipped_count, error_count = :error_count,
		failed_count = :failed_count, chunk_failures = :chunk_failures, artifact_key = :artifact_key,
		updated_at = :updated_at
		WHERE id = :id`
	result, err := tx.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("runRepo.SaveReport update: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_results WHERE run_id = $1", run.ID); err != nil {
		return fmt.Errorf("runRepo.SaveReport clear results: %w", err)
	}
	for i := range results {
		res := results[i]
		res.RunID = run.ID
		res.Record = jsonOrDefault(res.Record, "{}")
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO run_results (run_id, position, source, status, message, record)
			VALUES (:run_id, :position, :source, :status, :message, :record)`, res)
		if err != nil {
			return fmt.Errorf("runRepo.SaveReport insert result %d: %w", res.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("runRepo.SaveReport commit: %w", err)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RunSummary, error) {
	var run domain.RunSummary
	err := r.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("runRepo.GetByID: %w", err)
	}
	return &run, nil
}

func (r *runRepo) List(ctx context.Context, offset, limit int) ([]domain.RunSummary, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM runs"); err != nil {
		return nil, 0, fmt.Errorf("runRepo.List count: %w", err)
	}

	var runs []domain.RunSummary
	err := r.db.SelectContext(ctx, &runs,
		"SELECT * FROM runs ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("runRepo.List: %w", err)
	}
	return runs, total, nil
}

func (r *runRepo) ListResults(ctx context.Context, id uuid.UUID) ([]domain.RunResult, error) {
	var results []domain.RunResult
	err := r.db.SelectContext(ctx, &results,
		"SELECT run_id, position, source, status, message, record FROM run_results WHERE run_id = $1 ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("runRepo.ListResults: %w", err)
	}
	return results, nil
}
