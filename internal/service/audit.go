package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ordersync/internal/model"
)

var ErrEventNotFound = errors.New("webhook event not found")

// AuditService is the append-only record of every inbound webhook attempt.
// Rows are created for success and failure alike, updated on retry, and
// never deleted.
type AuditService struct {
	db *sql.DB
}

func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

func (s *AuditService) Record(ctx context.Context, source, eventType string, payload []byte, orderID *string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO webhook_events (source, event_type, payload, order_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, source, eventType, payload, orderID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert webhook event: %w", err)
	}
	return id, nil
}

func (s *AuditService) MarkProcessed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET processed = TRUE, error = NULL, processed_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (s *AuditService) MarkFailed(ctx context.Context, id, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET processed = FALSE, error = $2
		WHERE id = $1
	`, id, errMsg)
	if err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	return nil
}

func (s *AuditService) Get(ctx context.Context, id string) (*model.WebhookEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, event_type, payload, processed, error, order_id, created_at, processed_at
		FROM webhook_events
		WHERE id = $1
	`, id)

	var ev model.WebhookEvent
	var errMsg, orderID sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(&ev.ID, &ev.Source, &ev.EventType, &ev.Payload, &ev.Processed,
		&errMsg, &orderID, &ev.CreatedAt, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	if errMsg.Valid {
		ev.Error = &errMsg.String
	}
	if orderID.Valid {
		ev.OrderID = &orderID.String
	}
	if processedAt.Valid {
		ev.ProcessedAt = &processedAt.Time
	}
	return &ev, nil
}

// Stats aggregates audit entries recorded since the given time.
func (s *AuditService) Stats(ctx context.Context, since time.Time) (*model.WebhookStats, error) {
	stats := &model.WebhookStats{
		Since:       since,
		ByEventType: make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE processed),
		       COUNT(*) FILTER (WHERE NOT processed AND error IS NOT NULL)
		FROM webhook_events
		WHERE created_at >= $1
	`, since).Scan(&stats.Total, &stats.Processed, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("count webhook events: %w", err)
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Processed) / float64(stats.Total)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*)
		FROM webhook_events
		WHERE created_at >= $1
		GROUP BY event_type
	`, since)
	if err != nil {
		return nil, fmt.Errorf("group webhook events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scan event type count: %w", err)
		}
		stats.ByEventType[eventType] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return stats, nil
}
