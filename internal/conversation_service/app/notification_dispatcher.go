package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
)

// NewMessageNotice is what a chat notification is built from.
type NewMessageNotice struct {
	SessionID       uuid.UUID
	BusinessID      uuid.UUID
	CustomerName    string
	CustomerContact string
	Text            string
}

// NotificationDispatcher turns engine facts into push notifications for the
// owning vendor. Delivery is best effort: every failure is logged and
// swallowed.
type NotificationDispatcher struct {
	businesses domain.BusinessRepository
	vendors    domain.VendorRepository
	customers  domain.CustomerRepository
	push       PushSender
	logger     *slog.Logger
}

// NewNotificationDispatcher creates a new NotificationDispatcher.
func NewNotificationDispatcher(
	businesses domain.BusinessRepository,
	vendors domain.VendorRepository,
	customers domain.CustomerRepository,
	push PushSender,
	logger *slog.Logger,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		businesses: businesses,
		vendors:    vendors,
		customers:  customers,
		push:       push,
		logger:     logger.With("component", "notification_dispatcher"),
	}
}

// NotifyNewMessage pushes a chat notification to the vendor of the session's
// business, if the vendor registered a device.
func (d *NotificationDispatcher) NotifyNewMessage(ctx context.Context, n NewMessageNotice) {
	business, err := d.businesses.GetByID(ctx, n.BusinessID)
	if err != nil {
		notificationsCounter.WithLabelValues(domain.PushTypeChat, "failed").Inc()
		d.logger.WarnContext(ctx, "Cannot notify: business lookup failed", "business_id", n.BusinessID, "error", err)
		return
	}
	d.sendToVendor(ctx, domain.PushTypeChat, business.VendorID, domain.PushNotification{
		Title: n.CustomerName,
		Body:  n.Text,
		Data: map[string]string{
			"type":            domain.PushTypeChat,
			"sessionId":       n.SessionID.String(),
			"customerContact": n.CustomerContact,
		},
	})
}

// NotifyNewOrder pushes an order notification to vendorID.
func (d *NotificationDispatcher) NotifyNewOrder(ctx context.Context, order *domain.Order, vendorID uuid.UUID, customerName, customerContact string) {
	d.sendToVendor(ctx, domain.PushTypeOrder, vendorID, domain.PushNotification{
		Title: domain.NewOrderTitle,
		Body:  fmt.Sprintf("%s placed a new order", customerName),
		Data: map[string]string{
			"type":            domain.PushTypeOrder,
			"orderId":         order.ID.String(),
			"customerContact": customerContact,
		},
	})
}

func (d *NotificationDispatcher) sendToVendor(ctx context.Context, kind string, vendorID uuid.UUID, n domain.PushNotification) {
	vendor, err := d.vendors.GetByID(ctx, vendorID)
	if err != nil {
		notificationsCounter.WithLabelValues(kind, "failed").Inc()
		d.logger.WarnContext(ctx, "Cannot notify: vendor lookup failed", "vendor_id", vendorID, "error", err)
		return
	}
	if !vendor.HasDeviceToken() {
		notificationsCounter.WithLabelValues(kind, "no_token").Inc()
		d.logger.DebugContext(ctx, "Vendor has no device token", "vendor_id", vendorID)
		return
	}

	n.Token = vendor.DeviceToken
	if err := d.push.Send(ctx, n); err != nil {
		notificationsCounter.WithLabelValues(kind, "failed").Inc()
		d.logger.WarnContext(ctx, "Push notification not delivered",
			"vendor_id", vendorID,
			"type", kind,
			"error", fmt.Errorf("%w: %v", domain.ErrNotificationDeliveryFailed, err),
		)
		return
	}
	notificationsCounter.WithLabelValues(kind, "sent").Inc()
	d.logger.InfoContext(ctx, "Push notification sent", "vendor_id", vendorID, "type", kind)
}

// HandleMessageCommitted notifies about new customer messages on sessions
// that have notifications enabled.
func (d *NotificationDispatcher) HandleMessageCommitted(ctx context.Context, evt domain.MessageCommittedEvent) {
	if evt.SenderType != domain.SenderCustomer {
		return
	}
	if !evt.NotificationsEnabled {
		notificationsCounter.WithLabelValues(domain.PushTypeChat, "skipped").Inc()
		return
	}

	contact := ""
	if customer, err := d.customers.GetByID(ctx, evt.CustomerID); err == nil {
		contact = customer.ContactNumber
	} else {
		d.logger.WarnContext(ctx, "Customer lookup failed, notifying without contact", "customer_id", evt.CustomerID, "error", err)
	}

	d.NotifyNewMessage(ctx, NewMessageNotice{
		SessionID:       evt.SessionID,
		BusinessID:      evt.BusinessID,
		CustomerName:    evt.CustomerName,
		CustomerContact: contact,
		Text:            evt.Text,
	})
}

// HandleOrderCreated notifies the vendor about a new order.
func (d *NotificationDispatcher) HandleOrderCreated(ctx context.Context, evt domain.OrderCreatedEvent) {
	order := &domain.Order{ID: evt.OrderID, BusinessID: evt.BusinessID, CreatedAt: evt.CreatedAt}
	d.NotifyNewOrder(ctx, order, evt.VendorID, evt.CustomerName, evt.CustomerContact)
}
