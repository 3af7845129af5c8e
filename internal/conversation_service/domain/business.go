package domain

import (
	"time"

	"github.com/google/uuid"
)

// Business is a provider-facing number owned by a vendor.
type Business struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	VendorID    uuid.UUID `json:"vendor_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultCustomerName is used when the provider sends no profile name.
const DefaultCustomerName = "Unknown"

// Customer is an external contact, created on first inbound message.
type Customer struct {
	ID            uuid.UUID `json:"id"`
	ContactNumber string    `json:"contact_number"`
	DisplayName   string    `json:"display_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// Vendor is the operator behind one or more businesses.
type Vendor struct {
	ID                   uuid.UUID  `json:"id"`
	Name                 string     `json:"name"`
	DeviceToken          string     `json:"device_token,omitempty"`
	DeviceTokenUpdatedAt *time.Time `json:"device_token_updated_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// HasDeviceToken reports whether push notifications can be sent to the vendor.
func (v *Vendor) HasDeviceToken() bool {
	return v != nil && v.DeviceToken != ""
}
