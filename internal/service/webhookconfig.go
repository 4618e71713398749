package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ordersync/internal/model"
)

var ErrWebhookConfigNotFound = errors.New("webhook configuration not found")

// WebhookConfigService reads per-integration webhook secrets. The records
// themselves are managed by an external admin workflow; this core only
// reads them and touches the last-triggered timestamp.
type WebhookConfigService struct {
	db *sql.DB
}

func NewWebhookConfigService(db *sql.DB) *WebhookConfigService {
	return &WebhookConfigService{db: db}
}

func (s *WebhookConfigService) FindByWebhookID(ctx context.Context, webhookID string) (*model.WebhookConfiguration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ecomanager_webhook_id, webhook_secret, store_identifier, last_triggered_at
		FROM webhook_configurations
		WHERE ecomanager_webhook_id = $1
	`, webhookID)

	var cfg model.WebhookConfiguration
	var lastTriggered sql.NullTime
	err := row.Scan(&cfg.ID, &cfg.EcoManagerWebhookID, &cfg.WebhookSecret, &cfg.StoreIdentifier, &lastTriggered)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWebhookConfigNotFound
		}
		return nil, fmt.Errorf("get webhook configuration: %w", err)
	}
	if lastTriggered.Valid {
		cfg.LastTriggeredAt = &lastTriggered.Time
	}
	return &cfg, nil
}

func (s *WebhookConfigService) TouchLastTriggered(ctx context.Context, webhookID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE webhook_configurations
		SET last_triggered_at = NOW()
		WHERE ecomanager_webhook_id = $1
	`, webhookID)
	if err != nil {
		return fmt.Errorf("touch webhook configuration: %w", err)
	}
	return nil
}
