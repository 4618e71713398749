package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ordersync/internal/model"
)

var ErrConfirmationNotFound = errors.New("confirmation not found")

// ConfirmationService is the idempotent upsert layer for call-center
// confirmation state. There is no history table: every transition
// overwrites the current row, and the webhook_events audit log keeps the
// raw payloads.
type ConfirmationService struct {
	db *sql.DB
}

func NewConfirmationService(db *sql.DB) *ConfirmationService {
	return &ConfirmationService{db: db}
}

func (s *ConfirmationService) FindByExternalID(ctx context.Context, externalID string) (*model.OrderConfirmation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT external_order_id, order_id, confirmer_id, confirmer_name, confirmation_state, order_state, confirmed_at, created_at, updated_at
		FROM order_confirmations
		WHERE external_order_id = $1
	`, externalID)

	var c model.OrderConfirmation
	var orderID, confirmerID, confirmerName sql.NullString
	var confirmedAt sql.NullTime
	err := row.Scan(&c.ExternalOrderID, &orderID, &confirmerID, &confirmerName,
		&c.ConfirmationState, &c.OrderState, &confirmedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConfirmationNotFound
		}
		return nil, fmt.Errorf("get confirmation: %w", err)
	}
	if orderID.Valid {
		c.OrderID = &orderID.String
	}
	if confirmerID.Valid {
		c.ConfirmerID = &confirmerID.String
	}
	if confirmerName.Valid {
		c.ConfirmerName = &confirmerName.String
	}
	if confirmedAt.Valid {
		c.ConfirmedAt = &confirmedAt.Time
	}
	return &c, nil
}

// ApplyOrderCreated creates the confirmation for a new external order. A
// replayed event is a no-op: the insert is keyed on the external order id
// and never clobbers state written by a later status change. When the
// order has already been synced locally the confirmation is linked
// immediately; otherwise the puller links it later.
func (s *ConfirmationService) ApplyOrderCreated(ctx context.Context, ev model.OrderEventPayload, storeIdentifier string) error {
	externalID := ev.ID.String()
	if externalID == "" {
		return errors.New("event has no order id")
	}

	row := confirmationFromCreate(ev)
	row.OrderID = s.lookupOrderID(ctx, externalID, storeIdentifier)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_confirmations (external_order_id, order_id, confirmation_state, order_state, confirmed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_order_id) DO NOTHING
	`, externalID, row.OrderID, row.ConfirmationState, row.OrderState, row.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("insert confirmation: %w", err)
	}
	return nil
}

// ApplyStatusChanged overwrites the confirmation state in place. When no
// confirmation exists yet (the change event won the race against
// OrderCreated) the row is synthesized first, so both arrival orders
// converge to the same final state. The merge happens in Go under a row
// lock: state and confirmer follow the event, the order link sticks once
// set, and an absent confirmed_at keeps the prior timestamp.
func (s *ConfirmationService) ApplyStatusChanged(ctx context.Context, ev model.OrderEventPayload, storeIdentifier string) error {
	externalID := ev.ID.String()
	if externalID == "" {
		return errors.New("event has no order id")
	}

	incoming := confirmationFromStatusChange(ev)
	incoming.OrderID = s.lookupOrderID(ctx, externalID, storeIdentifier)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := lockConfirmation(ctx, tx, externalID)
	if err != nil {
		return err
	}
	if existing == nil {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO order_confirmations (external_order_id, order_id, confirmer_id, confirmer_name, confirmation_state, order_state, confirmed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (external_order_id) DO NOTHING
		`, externalID, incoming.OrderID, incoming.ConfirmerID, incoming.ConfirmerName,
			incoming.ConfirmationState, incoming.OrderState, incoming.ConfirmedAt)
		if err != nil {
			return fmt.Errorf("insert confirmation: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit tx: %w", err)
			}
			return nil
		}
		// Lost the insert race; merge into the row that won.
		existing, err = lockConfirmation(ctx, tx, externalID)
		if err != nil {
			return err
		}
		if existing == nil {
			return errors.New("confirmation row not visible after insert conflict")
		}
	}

	merged := mergeStatusChange(*existing, incoming)
	_, err = tx.ExecContext(ctx, `
		UPDATE order_confirmations
		SET order_id = $2, confirmer_id = $3, confirmer_name = $4, confirmation_state = $5, order_state = $6, confirmed_at = $7, updated_at = NOW()
		WHERE external_order_id = $1
	`, externalID, merged.OrderID, merged.ConfirmerID, merged.ConfirmerName,
		merged.ConfirmationState, merged.OrderState, merged.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("update confirmation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LinkToOrder retroactively connects a confirmation that arrived before the
// order was synced locally. No-op when the confirmation is already linked
// or does not exist.
func (s *ConfirmationService) LinkToOrder(ctx context.Context, externalID, orderID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE order_confirmations
		SET order_id = $2, updated_at = NOW()
		WHERE external_order_id = $1 AND order_id IS NULL
	`, externalID, orderID)
	if err != nil {
		return fmt.Errorf("link confirmation: %w", err)
	}
	return nil
}

// confirmationFromCreate is the row an OrderCreated event establishes.
func confirmationFromCreate(ev model.OrderEventPayload) model.OrderConfirmation {
	return model.OrderConfirmation{
		ExternalOrderID:   ev.ID.String(),
		ConfirmationState: ev.ConfirmationStateName,
		OrderState:        ev.OrderStateName,
		ConfirmedAt:       parseEventTime(ev.CreatedAt),
	}
}

// confirmationFromStatusChange is the row a status-change event carries.
func confirmationFromStatusChange(ev model.OrderEventPayload) model.OrderConfirmation {
	c := model.OrderConfirmation{
		ExternalOrderID:   ev.ID.String(),
		ConfirmationState: ev.ConfirmationStateName,
		OrderState:        ev.OrderStateName,
		ConfirmedAt:       parseEventTime(ev.ConfirmedAt),
	}
	if ev.Confirmator != nil {
		if id := ev.Confirmator.ID.String(); id != "" {
			c.ConfirmerID = &id
		}
		if ev.Confirmator.Name != "" {
			name := ev.Confirmator.Name
			c.ConfirmerName = &name
		}
	}
	return c
}

// mergeStatusChange folds an incoming status change into the stored row.
// The event is authoritative for confirmer and state; the order link is
// kept once set, and a missing confirmed_at keeps the prior timestamp.
func mergeStatusChange(existing, incoming model.OrderConfirmation) model.OrderConfirmation {
	merged := existing
	merged.ConfirmerID = incoming.ConfirmerID
	merged.ConfirmerName = incoming.ConfirmerName
	merged.ConfirmationState = incoming.ConfirmationState
	merged.OrderState = incoming.OrderState
	if merged.OrderID == nil {
		merged.OrderID = incoming.OrderID
	}
	if incoming.ConfirmedAt != nil {
		merged.ConfirmedAt = incoming.ConfirmedAt
	}
	return merged
}

// lockConfirmation reads the current row under FOR UPDATE, or nil when it
// does not exist yet.
func lockConfirmation(ctx context.Context, tx *sql.Tx, externalID string) (*model.OrderConfirmation, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT external_order_id, order_id, confirmer_id, confirmer_name, confirmation_state, order_state, confirmed_at
		FROM order_confirmations
		WHERE external_order_id = $1
		FOR UPDATE
	`, externalID)

	var c model.OrderConfirmation
	var orderID, confirmerID, confirmerName sql.NullString
	var confirmedAt sql.NullTime
	err := row.Scan(&c.ExternalOrderID, &orderID, &confirmerID, &confirmerName,
		&c.ConfirmationState, &c.OrderState, &confirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock confirmation: %w", err)
	}
	if orderID.Valid {
		c.OrderID = &orderID.String
	}
	if confirmerID.Valid {
		c.ConfirmerID = &confirmerID.String
	}
	if confirmerName.Valid {
		c.ConfirmerName = &confirmerName.String
	}
	if confirmedAt.Valid {
		c.ConfirmedAt = &confirmedAt.Time
	}
	return &c, nil
}

// lookupOrderID finds the already-synced local order, if any. An empty
// storeIdentifier (audit-log replays don't know the store) skips linking;
// the puller closes the gap later.
func (s *ConfirmationService) lookupOrderID(ctx context.Context, externalID, storeIdentifier string) *string {
	if storeIdentifier == "" {
		return nil
	}
	var orderID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM orders
		WHERE external_id = $1 AND store_identifier = $2 AND source = $3
	`, externalID, storeIdentifier, model.SourceEcoManager).Scan(&orderID)
	if err != nil {
		return nil
	}
	return &orderID
}

var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseEventTime tolerates the timestamp formats the sender has been seen
// using; anything else is treated as absent.
func parseEventTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
