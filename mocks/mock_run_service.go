package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"cardsync/internal/domain"
	"cardsync/internal/service"
)

// MockRunService is a mock implementation of service.RunService.
type MockRunService struct {
	mock.Mock
}

func (m *MockRunService) CreateRun(ctx context.Context, input service.CreateRunInput) (*domain.Run, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockRunService) ReplaceImages(ctx context.Context, id uuid.UUID, uploads []service.ImageUpload) (*domain.Run, error) {
	args := m.Called(ctx, id, uploads)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockRunService) Process(ctx context.Context, id uuid.UUID) ([]domain.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Record), args.Error(1)
}

func (m *MockRunService) Sync(ctx context.Context, id uuid.UUID) (*domain.SyncReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncReport), args.Error(1)
}

func (m *MockRunService) Get(ctx context.Context, id uuid.UUID) (*service.RunDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RunDetail), args.Error(1)
}

func (m *MockRunService) List(ctx context.Context, offset, limit int) ([]domain.RunSummary, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.RunSummary), args.Int(1), args.Error(2)
}

func (m *MockRunService) Artifact(ctx context.Context, id uuid.UUID, format domain.ExportFormat) (*service.Artifact, error) {
	args := m.Called(ctx, id, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Artifact), args.Error(1)
}

func (m *MockRunService) Clear(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
