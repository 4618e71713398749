package model

import "time"

// OrderConfirmation is the current call-center state of one external order.
// It is overwritten in place on every update; the webhook_events table keeps
// the raw payload history.
type OrderConfirmation struct {
	ExternalOrderID   string     `json:"external_order_id"`
	OrderID           *string    `json:"order_id,omitempty"`
	ConfirmerID       *string    `json:"confirmer_id,omitempty"`
	ConfirmerName     *string    `json:"confirmer_name,omitempty"`
	ConfirmationState string     `json:"confirmation_state"`
	OrderState        string     `json:"order_state"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
