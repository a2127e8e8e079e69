package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockKeyService is a mock implementation of service.KeyService.
type MockKeyService struct {
	mock.Mock
}

func (m *MockKeyService) Check(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
