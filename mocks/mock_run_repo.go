package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"cardsync/internal/domain"
)

// MockRunRepo is a mock implementation of port.RunRepository.
type MockRunRepo struct {
	mock.Mock
}

func (m *MockRunRepo) Create(ctx context.Context, run *domain.RunSummary) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockRunRepo) SaveReport(ctx context.Context, run *domain.RunSummary, results []domain.RunResult) error {
	args := m.Called(ctx, run, results)
	return args.Error(0)
}

func (m *MockRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RunSummary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RunSummary), args.Error(1)
}

func (m *MockRunRepo) List(ctx context.Context, offset, limit int) ([]domain.RunSummary, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.RunSummary), args.Int(1), args.Error(2)
}

func (m *MockRunRepo) ListResults(ctx context.Context, id uuid.UUID) ([]domain.RunResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RunResult), args.Error(1)
}
