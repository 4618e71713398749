package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ordersync/internal/model"
)

var ErrStoreNotConfigured = errors.New("store has no active API configuration")

// APIConfigService reads per-store EcoManager credentials and tracks
// eventually-consistent usage counters. The increments are atomic in SQL
// but unguarded against concurrent syncs of the same store, so the counts
// are telemetry, not billing data.
type APIConfigService struct {
	db *sql.DB
}

func NewAPIConfigService(db *sql.DB) *APIConfigService {
	return &APIConfigService{db: db}
}

func (s *APIConfigService) FindActive(ctx context.Context, storeIdentifier string) (*model.APIConfiguration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, store_name, store_identifier, api_token, base_url, is_active, request_count, last_used_at, last_synced_order_id, synced_count
		FROM api_configurations
		WHERE store_identifier = $1 AND is_active
	`, storeIdentifier)

	cfg, err := scanAPIConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStoreNotConfigured
		}
		return nil, fmt.Errorf("get api configuration: %w", err)
	}
	return cfg, nil
}

func (s *APIConfigService) ListActive(ctx context.Context) ([]model.APIConfiguration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_name, store_identifier, api_token, base_url, is_active, request_count, last_used_at, last_synced_order_id, synced_count
		FROM api_configurations
		WHERE is_active
		ORDER BY store_name
	`)
	if err != nil {
		return nil, fmt.Errorf("query api configurations: %w", err)
	}
	defer rows.Close()

	var configs []model.APIConfiguration
	for rows.Next() {
		cfg, err := scanAPIConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api configuration: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return configs, nil
}

// RecordUsage bumps the request counter by the estimated number of API
// calls and remembers the highest external id seen for future incremental
// cursors.
func (s *APIConfigService) RecordUsage(ctx context.Context, storeIdentifier string, requests int, lastOrderID string, synced int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE api_configurations
		SET request_count = request_count + $2,
		    last_used_at = NOW(),
		    last_synced_order_id = COALESCE(NULLIF($3, ''), last_synced_order_id),
		    synced_count = synced_count + $4
		WHERE store_identifier = $1
	`, storeIdentifier, requests, lastOrderID, synced)
	if err != nil {
		return fmt.Errorf("record api usage: %w", err)
	}
	return nil
}

func scanAPIConfig(row rowScanner) (*model.APIConfiguration, error) {
	var cfg model.APIConfiguration
	var lastUsed sql.NullTime
	var lastSynced sql.NullString
	if err := row.Scan(&cfg.ID, &cfg.StoreName, &cfg.StoreIdentifier, &cfg.APIToken, &cfg.BaseURL,
		&cfg.IsActive, &cfg.RequestCount, &lastUsed, &lastSynced, &cfg.SyncedCount); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		cfg.LastUsedAt = &lastUsed.Time
	}
	if lastSynced.Valid {
		cfg.LastSyncedOrderID = &lastSynced.String
	}
	return &cfg, nil
}
