package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type dispatcherMocks struct {
	businesses *MockBusinessRepository
	vendors    *MockVendorRepository
	customers  *MockCustomerRepository
	push       *MockPushSender
}

func newDispatcherWithMocks() (*NotificationDispatcher, dispatcherMocks) {
	m := dispatcherMocks{
		businesses: new(MockBusinessRepository),
		vendors:    new(MockVendorRepository),
		customers:  new(MockCustomerRepository),
		push:       new(MockPushSender),
	}
	return NewNotificationDispatcher(m.businesses, m.vendors, m.customers, m.push, testLogger()), m
}

func TestNotificationDispatcher_NotifyNewMessage(t *testing.T) {
	ctx := context.Background()
	d, m := newDispatcherWithMocks()
	vendor := &domain.Vendor{ID: uuid.New(), DeviceToken: "tok"}
	business := &domain.Business{ID: uuid.New(), VendorID: vendor.ID}
	sessionID := uuid.New()

	m.businesses.On("GetByID", ctx, business.ID).Return(business, nil).Once()
	m.vendors.On("GetByID", ctx, vendor.ID).Return(vendor, nil).Once()
	m.push.On("Send", ctx, domain.PushNotification{
		Token: "tok",
		Title: "Amina",
		Body:  "Hi",
		Data: map[string]string{
			"type":            "chat",
			"sessionId":       sessionID.String(),
			"customerContact": testCustomerNumber,
		},
	}).Return(nil).Once()

	d.NotifyNewMessage(ctx, NewMessageNotice{
		SessionID:       sessionID,
		BusinessID:      business.ID,
		CustomerName:    "Amina",
		CustomerContact: testCustomerNumber,
		Text:            "Hi",
	})

	m.push.AssertExpectations(t)
}

func TestNotificationDispatcher_NoTokenSendsNothing(t *testing.T) {
	ctx := context.Background()
	d, m := newDispatcherWithMocks()
	vendor := &domain.Vendor{ID: uuid.New()}
	business := &domain.Business{ID: uuid.New(), VendorID: vendor.ID}

	m.businesses.On("GetByID", ctx, business.ID).Return(business, nil).Once()
	m.vendors.On("GetByID", ctx, vendor.ID).Return(vendor, nil).Once()

	d.NotifyNewMessage(ctx, NewMessageNotice{BusinessID: business.ID, CustomerName: "Amina", Text: "Hi"})

	m.push.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNotificationDispatcher_FailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	d, m := newDispatcherWithMocks()
	vendor := &domain.Vendor{ID: uuid.New(), DeviceToken: "tok"}
	business := &domain.Business{ID: uuid.New(), VendorID: vendor.ID}

	m.businesses.On("GetByID", ctx, business.ID).Return(business, nil).Once()
	m.vendors.On("GetByID", ctx, vendor.ID).Return(vendor, nil).Once()
	m.push.On("Send", ctx, mock.Anything).Return(errors.New("fcm unavailable")).Once()

	assert.NotPanics(t, func() {
		d.NotifyNewMessage(ctx, NewMessageNotice{BusinessID: business.ID, CustomerName: "Amina", Text: "Hi"})
	})

	missing := uuid.New()
	m.businesses.On("GetByID", ctx, missing).Return(nil, domain.ErrNotFound).Once()
	d.NotifyNewMessage(ctx, NewMessageNotice{BusinessID: missing})

	m.push.AssertNumberOfCalls(t, "Send", 1)
}

func TestNotificationDispatcher_NotifyNewOrder(t *testing.T) {
	ctx := context.Background()
	d, m := newDispatcherWithMocks()
	vendor := &domain.Vendor{ID: uuid.New(), DeviceToken: "tok"}
	order := &domain.Order{ID: uuid.New()}

	m.vendors.On("GetByID", ctx, vendor.ID).Return(vendor, nil).Once()
	m.push.On("Send", ctx, domain.PushNotification{
		Token: "tok",
		Title: "New Order Received",
		Body:  "Amina placed a new order",
		Data: map[string]string{
			"type":            "order",
			"orderId":         order.ID.String(),
			"customerContact": testCustomerNumber,
		},
	}).Return(nil).Once()

	d.NotifyNewOrder(ctx, order, vendor.ID, "Amina", testCustomerNumber)

	m.push.AssertExpectations(t)
}

func TestNotificationDispatcher_HandleMessageCommittedFilters(t *testing.T) {
	ctx := context.Background()
	d, m := newDispatcherWithMocks()

	d.HandleMessageCommitted(ctx, domain.MessageCommittedEvent{SenderType: domain.SenderVendor, NotificationsEnabled: true})
	d.HandleMessageCommitted(ctx, domain.MessageCommittedEvent{SenderType: domain.SenderCustomer, NotificationsEnabled: false})

	m.businesses.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	m.push.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNotificationDispatcher_HandleMessageCommitted(t *testing.T) {
	ctx := context.Background()
	d, m := newDispatcherWithMocks()
	vendor := &domain.Vendor{ID: uuid.New(), DeviceToken: "tok"}
	business := &domain.Business{ID: uuid.New(), VendorID: vendor.ID}
	customer := &domain.Customer{ID: uuid.New(), ContactNumber: testCustomerNumber}

	m.customers.On("GetByID", ctx, customer.ID).Return(customer, nil).Once()
	m.businesses.On("GetByID", ctx, business.ID).Return(business, nil).Once()
	m.vendors.On("GetByID", ctx, vendor.ID).Return(vendor, nil).Once()
	m.push.On("Send", ctx, mock.MatchedBy(func(n domain.PushNotification) bool {
		return n.Title == "Amina" && n.Data["customerContact"] == testCustomerNumber
	})).Return(nil).Once()

	d.HandleMessageCommitted(ctx, domain.MessageCommittedEvent{
		SessionID:            uuid.New(),
		BusinessID:           business.ID,
		CustomerID:           customer.ID,
		CustomerName:         "Amina",
		SenderType:           domain.SenderCustomer,
		Text:                 "Hi",
		Timestamp:            time.Unix(1700000000, 0),
		NotificationsEnabled: true,
	})

	m.push.AssertExpectations(t)
}
