package port

import (
	"context"

	"github.com/google/uuid"

	"cardsync/internal/domain"
)

// RunRepository persists run history.
type RunRepository interface {
	Create(ctx context.Context, run *domain.RunSummary) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error
	SaveReport(ctx context.Context, run *domain.RunSummary, results []domain.RunResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RunSummary, error)
	List(ctx context.Context, offset, limit int) ([]domain.RunSummary, int, error)
	ListResults(ctx context.Context, id uuid.UUID) ([]domain.RunResult, error)
}
