package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"cardsync/internal/domain"
)

// MockRecordStore is a mock implementation of port.RecordStore.
type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) FetchAll(ctx context.Context) ([]domain.ExistingRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExistingRow), args.Error(1)
}

func (m *MockRecordStore) Create(ctx context.Context, chunk []domain.CreatePayload) error {
	args := m.Called(ctx, chunk)
	return args.Error(0)
}

func (m *MockRecordStore) Update(ctx context.Context, chunk []domain.UpdatePayload) error {
	args := m.Called(ctx, chunk)
	return args.Error(0)
}
