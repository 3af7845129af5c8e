package domain

import "errors"

var (
	// Store level.
	ErrNotFound       = errors.New("resource not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrMalformedEvent marks a webhook body without the expected shape. The
	// transport answers it with 2xx so the provider does not redeliver.
	ErrMalformedEvent = errors.New("malformed provider event")

	ErrBusinessNotFound     = errors.New("business not found")
	ErrCustomerLookupFailed = errors.New("customer lookup failed")
	ErrSessionNotFound      = errors.New("session not found")
	ErrVendorNotFound       = errors.New("vendor not found")
	ErrAccessDenied         = errors.New("access denied")
	ErrInvalidInput         = errors.New("invalid input")

	ErrSendFailed = errors.New("provider send failed")

	// Never returned to callers of the ingestion path; used for logging and
	// pending-buffer bookkeeping.
	ErrStatusTargetNotFound       = errors.New("status target message not found")
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")
)
