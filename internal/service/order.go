package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ordersync/internal/model"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidPhone      = errors.New("invalid phone number")
	ErrAmbiguousOrderRef = errors.New("order reference is ambiguous")
)

type OrderService struct {
	db *sql.DB
}

func NewOrderService(db *sql.DB) *OrderService {
	return &OrderService{db: db}
}

func (s *OrderService) ExistsByExternalID(ctx context.Context, externalID, storeIdentifier string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE external_id = $1 AND store_identifier = $2 AND source = $3
		)
	`, externalID, storeIdentifier, model.SourceEcoManager).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order: %w", err)
	}
	return exists, nil
}

func (s *OrderService) FindByExternalID(ctx context.Context, externalID, storeIdentifier string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, reference, source, store_identifier, status, shipping_status, total, customer_id, created_at, updated_at
		FROM orders
		WHERE external_id = $1 AND store_identifier = $2 AND source = $3
	`, externalID, storeIdentifier, model.SourceEcoManager)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// HighestExternalID returns the numerically largest external order id
// already persisted for the store, or "" when none exist. External ids are
// digit strings, so the comparison has to happen on the cast value.
func (s *OrderService) HighestExternalID(ctx context.Context, storeIdentifier, source string) (string, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(external_id::BIGINT)
		FROM orders
		WHERE store_identifier = $1 AND source = $2 AND external_id IS NOT NULL
	`, storeIdentifier, source).Scan(&max)
	if err != nil {
		return "", fmt.Errorf("query highest external id: %w", err)
	}
	if !max.Valid {
		return "", nil
	}
	return strconv.FormatInt(max.Int64, 10), nil
}

// Materialize creates the local order for one fetched EcoManager order,
// resolving the customer by phone number inside the same transaction.
func (s *OrderService) Materialize(ctx context.Context, in EcoOrder, storeIdentifier string) (string, error) {
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return "", fmt.Errorf("order %s: %w", in.ID.String(), err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var customerID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM customers WHERE phone = $1`, phone).Scan(&customerID)
	switch {
	case err == nil:
		if _, err = tx.ExecContext(ctx, `UPDATE customers SET order_count = order_count + 1 WHERE id = $1`, customerID); err != nil {
			return "", fmt.Errorf("increment customer orders: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		err = tx.QueryRowContext(ctx, `
			INSERT INTO customers (name, phone, wilaya, commune, order_count)
			VALUES ($1, $2, $3, $4, 1)
			RETURNING id
		`, in.FullName, phone, in.Wilaya, in.Commune).Scan(&customerID)
		if err != nil {
			return "", fmt.Errorf("create customer: %w", err)
		}
	default:
		return "", fmt.Errorf("find customer: %w", err)
	}

	items, err := json.Marshal(in.Items)
	if err != nil {
		return "", fmt.Errorf("marshal items: %w", err)
	}

	var orderID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (external_id, reference, source, store_identifier, status, total, items, customer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, in.ID.String(), in.Reference, model.SourceEcoManager, storeIdentifier,
		mapOrderStatus(in.OrderStateName), in.Total, items, customerID).Scan(&orderID)
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}
	return orderID, nil
}

// UpdateShippingStatus sets the provider-supplied shipping status on the
// order matching ref, resolved by reference first and external id second.
// External ids are unique per store only, so the update is applied only
// when ref resolves to exactly one local order; an ambiguous match is
// refused rather than stamping another store's order.
func (s *OrderService) UpdateShippingStatus(ctx context.Context, ref, status string) (string, error) {
	ids, err := s.resolveOrderIDs(ctx, `SELECT id FROM orders WHERE reference = $1`, ref)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		ids, err = s.resolveOrderIDs(ctx, `SELECT id FROM orders WHERE external_id = $1`, ref)
		if err != nil {
			return "", err
		}
	}

	switch {
	case len(ids) == 0:
		return "", ErrOrderNotFound
	case len(ids) > 1:
		return "", fmt.Errorf("ref %q matches %d orders: %w", ref, len(ids), ErrAmbiguousOrderRef)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE orders SET shipping_status = $2, updated_at = NOW()
		WHERE id = $1
	`, ids[0], status); err != nil {
		return "", fmt.Errorf("update shipping status: %w", err)
	}
	return ids[0], nil
}

func (s *OrderService) resolveOrderIDs(ctx context.Context, query, ref string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve order ref: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve order ref: %w", err)
	}
	return ids, nil
}

func (s *OrderService) List(ctx context.Context, storeIdentifier, status string, limit, offset int) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, external_id, reference, source, store_identifier, status, shipping_status, total, customer_id, created_at, updated_at
		FROM orders
		WHERE ($1 = '' OR store_identifier = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, storeIdentifier, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var o model.Order
	var externalID, shippingStatus, customerID sql.NullString
	var total sql.NullFloat64
	if err := row.Scan(&o.ID, &externalID, &o.Reference, &o.Source, &o.StoreIdentifier,
		&o.Status, &shippingStatus, &total, &customerID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if externalID.Valid {
		o.ExternalID = &externalID.String
	}
	if shippingStatus.Valid {
		o.ShippingStatus = &shippingStatus.String
	}
	if customerID.Valid {
		o.CustomerID = &customerID.String
	}
	if total.Valid {
		o.Total = total.Float64
	}
	return &o, nil
}

// normalizePhone strips separators and validates that what remains is a
// plausible subscriber number.
func normalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	digits := strings.TrimPrefix(cleaned, "+")
	if len(digits) < 8 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhone
		}
	}
	return cleaned, nil
}

// mapOrderStatus translates the EcoManager order state label into the local
// lifecycle status. Unknown labels land in pending and get corrected by
// later confirmation events.
func mapOrderStatus(stateName string) string {
	switch strings.ToLower(strings.TrimSpace(stateName)) {
	case "assigned", "assignée":
		return model.OrderStatusAssigned
	case "in progress", "in_progress", "en cours":
		return model.OrderStatusInProgress
	case "confirmed", "confirmée":
		return model.OrderStatusConfirmed
	case "shipped", "expédiée":
		return model.OrderStatusShipped
	case "delivered", "livrée":
		return model.OrderStatusDelivered
	case "cancelled", "canceled", "annulée":
		return model.OrderStatusCancelled
	case "returned", "retournée":
		return model.OrderStatusReturned
	default:
		return model.OrderStatusPending
	}
}
