package mocks

import (
	"context"

	"github.com/pageza/chopchop/backend/internal/models"
	"github.com/pageza/chopchop/backend/internal/service"
	"github.com/stretchr/testify/mock"
)

// MockEmailService is a mock implementation of the email service
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendGroceryList(ctx context.Context, email string, grocery []models.GroceryItem, recipes []models.Recipe) error {
	args := m.Called(ctx, email, grocery, recipes)
	return args.Error(0)
}

var _ service.IEmailService = (*MockEmailService)(nil)
