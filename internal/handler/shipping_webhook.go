package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ordersync/internal/envelope"
	"ordersync/internal/metrics"
	"ordersync/internal/model"
)

// ShippingReconciler applies a decoded logistics payload to local order
// state.
type ShippingReconciler interface {
	Reconcile(ctx context.Context, payload map[string]any) (string, error)
}

// ShippingWebhookHandler accepts shipping-status events from the logistics
// provider. Logical failures are still acknowledged with 200 — a non-200
// here triggers the provider's retry storm — and land in the audit log
// instead.
func ShippingWebhookHandler(reconciler ShippingReconciler, audit AuditLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		payload, err := envelope.Decode(body)
		if err != nil {
			metrics.WebhookEvents.WithLabelValues(model.SourceShipping, "malformed").Inc()
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "malformed payload",
			})
			return
		}

		eventType := shippingEventType(payload)
		orderID, recErr := reconciler.Reconcile(ctx, payload)

		var orderRef *string
		if orderID != "" {
			orderRef = &orderID
		}
		auditID, auditErr := audit.Record(ctx, model.SourceShipping, eventType, body, orderRef)
		if auditErr != nil {
			// The audit write must never surface as a non-200.
			slog.Error("failed to record shipping event", "error", auditErr)
		} else if recErr != nil {
			if err := audit.MarkFailed(ctx, auditID, recErr.Error()); err != nil {
				slog.Error("failed to mark shipping event", "event_id", auditID, "error", err)
			}
		} else if err := audit.MarkProcessed(ctx, auditID); err != nil {
			slog.Error("failed to mark shipping event", "event_id", auditID, "error", err)
		}

		metrics.WebhookProcessing.WithLabelValues(model.SourceShipping).Observe(time.Since(start).Seconds())

		if recErr != nil {
			metrics.WebhookEvents.WithLabelValues(model.SourceShipping, "failed").Inc()
			slog.Error("shipping reconciliation failed", "event", eventType, "error", recErr)
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   recErr.Error(),
			})
			return
		}

		metrics.WebhookEvents.WithLabelValues(model.SourceShipping, "processed").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "shipping status updated",
		})
	}
}

func shippingEventType(payload map[string]any) string {
	for _, key := range []string{"type", "event"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return "shipping_update"
}
