package model

import (
	"encoding/json"
	"time"
)

// Event types pushed by the EcoManager back-office.
const (
	EventOrderCreated       = "OrderCreated"
	EventConfirmationChange = "OrderConfirmationStatusChanged"
)

// WebhookConfiguration maps an EcoManager webhook id to its shared secret
// and owning store. Managed by an external admin workflow; read-only here
// apart from the last-triggered timestamp.
type WebhookConfiguration struct {
	ID                  string     `json:"id"`
	EcoManagerWebhookID string     `json:"ecomanager_webhook_id"`
	WebhookSecret       string     `json:"-"`
	StoreIdentifier     string     `json:"store_identifier"`
	LastTriggeredAt     *time.Time `json:"last_triggered_at,omitempty"`
}

// WebhookEvent is one audit entry per inbound webhook attempt.
type WebhookEvent struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	EventType   string     `json:"event_type"`
	Payload     []byte     `json:"-"`
	Processed   bool       `json:"processed"`
	Error       *string    `json:"error,omitempty"`
	OrderID     *string    `json:"order_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// WebhookStats aggregates audit entries over a time window.
type WebhookStats struct {
	Since       time.Time      `json:"since"`
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Failed      int            `json:"failed"`
	SuccessRate float64        `json:"success_rate"`
	ByEventType map[string]int `json:"by_event_type"`
}

// Confirmator identifies the call-center agent who handled an order.
type Confirmator struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

// OrderEventPayload is the JSON body of an EcoManager order event.
type OrderEventPayload struct {
	ID                    json.Number  `json:"id"`
	Reference             string       `json:"reference"`
	OrderStateName        string       `json:"order_state_name"`
	ConfirmationStateName string       `json:"confirmation_state_name"`
	Confirmator           *Confirmator `json:"confirmator"`
	CreatedAt             string       `json:"created_at"`
	ConfirmedAt           string       `json:"confirmed_at"`
}
