package model

import "time"

const (
	SourceEcoManager = "ecomanager"
	SourceShipping   = "shipping"
)

// Order lifecycle statuses. cancelled and returned are terminal alternates.
const (
	OrderStatusPending    = "pending"
	OrderStatusAssigned   = "assigned"
	OrderStatusInProgress = "in_progress"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusReturned   = "returned"
)

type Order struct {
	ID              string    `json:"id"`
	ExternalID      *string   `json:"external_id,omitempty"`
	Reference       string    `json:"reference"`
	Source          string    `json:"source"`
	StoreIdentifier string    `json:"store_identifier"`
	Status          string    `json:"status"`
	ShippingStatus  *string   `json:"shipping_status,omitempty"`
	Total           float64   `json:"total"`
	Items           []byte    `json:"-"`
	CustomerID      *string   `json:"customer_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
