package http

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/app"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockIngester is a mock implementation of Ingester
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, evt domain.InboundEvent) (app.IngestOutcome, error) {
	args := m.Called(ctx, evt)
	return args.Get(0).(app.IngestOutcome), args.Error(1)
}

// MockConversationService is a mock implementation of ConversationService
type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) AuthorizeSession(ctx context.Context, sessionID, vendorID uuid.UUID) (*domain.Session, error) {
	args := m.Called(ctx, sessionID, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockConversationService) AuthorizeBusiness(ctx context.Context, businessID, vendorID uuid.UUID) error {
	args := m.Called(ctx, businessID, vendorID)
	return args.Error(0)
}

func (m *MockConversationService) SendReply(ctx context.Context, sessionID uuid.UUID, text string) (domain.MessageRef, error) {
	args := m.Called(ctx, sessionID, text)
	return args.Get(0).(domain.MessageRef), args.Error(1)
}

func (m *MockConversationService) MarkHandled(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockConversationService) RegisterDeviceToken(ctx context.Context, vendorID uuid.UUID, token string) error {
	args := m.Called(ctx, vendorID, token)
	return args.Error(0)
}

func (m *MockConversationService) CreateOrder(ctx context.Context, req app.CreateOrderRequest) (uuid.UUID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(uuid.UUID), args.Error(1)
}
