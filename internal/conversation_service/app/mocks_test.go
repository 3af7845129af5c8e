package app

import (
	"context"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockBusinessRepository struct {
	mock.Mock
}

func (m *MockBusinessRepository) FindByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.Business, error) {
	args := m.Called(ctx, phoneNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Business), args.Error(1)
}

func (m *MockBusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Business), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByContactNumber(ctx context.Context, contactNumber string) (*domain.Customer, error) {
	args := m.Called(ctx, contactNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

type MockVendorRepository struct {
	mock.Mock
}

func (m *MockVendorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vendor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vendor), args.Error(1)
}

func (m *MockVendorRepository) UpdateDeviceToken(ctx context.Context, vendorID uuid.UUID, token string, at time.Time) error {
	args := m.Called(ctx, vendorID, token, at)
	return args.Error(0)
}

type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) Send(ctx context.Context, n domain.PushNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
