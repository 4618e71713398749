package model

import "time"

// APIConfiguration holds per-store EcoManager API credentials and
// eventually-consistent usage counters.
type APIConfiguration struct {
	ID                string     `json:"id"`
	StoreName         string     `json:"store_name"`
	StoreIdentifier   string     `json:"store_identifier"`
	APIToken          string     `json:"-"`
	BaseURL           string     `json:"base_url"`
	IsActive          bool       `json:"is_active"`
	RequestCount      int        `json:"request_count"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty"`
	LastSyncedOrderID *string    `json:"last_synced_order_id,omitempty"`
	SyncedCount       int        `json:"synced_count"`
}
