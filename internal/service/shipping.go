package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

var ErrMissingShippingFields = errors.New("payload has no order reference or status")

// ShippingOrderUpdater is the slice of order persistence the reconciler
// needs.
type ShippingOrderUpdater interface {
	UpdateShippingStatus(ctx context.Context, ref, status string) (string, error)
}

// ShippingService maps a decoded logistics payload onto the local order's
// shipping status.
type ShippingService struct {
	orders ShippingOrderUpdater
}

func NewShippingService(orders ShippingOrderUpdater) *ShippingService {
	return &ShippingService{orders: orders}
}

// Reconcile applies one shipping event and returns the local order id it
// touched.
func (s *ShippingService) Reconcile(ctx context.Context, payload map[string]any) (string, error) {
	ref := firstString(payload, "order_id", "id", "reference", "shipping_guide")
	status := firstString(payload, "status", "shipping_status")
	if ref == "" || status == "" {
		return "", ErrMissingShippingFields
	}

	orderID, err := s.orders.UpdateShippingStatus(ctx, ref, status)
	if err != nil {
		return "", fmt.Errorf("reconcile order %s: %w", ref, err)
	}

	slog.Info("shipping status updated", "order_id", orderID, "reference", ref, "status", status)
	return orderID, nil
}

// firstString returns the first of the named fields present in the payload,
// stringifying numeric ids the provider sometimes sends unquoted.
func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
