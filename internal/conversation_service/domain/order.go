package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Order is only tracked as a notification trigger; Details is stored as given.
type Order struct {
	ID         uuid.UUID       `json:"id"`
	BusinessID uuid.UUID       `json:"business_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
