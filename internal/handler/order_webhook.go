package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ordersync/internal/metrics"
	"ordersync/internal/model"
	"ordersync/internal/service"
	"ordersync/internal/signature"
)

// Headers required on every EcoManager event delivery.
const (
	HeaderSignature = "x-ecomanager-signature"
	HeaderSource    = "x-ecomanager-source"
	HeaderEvent     = "x-ecomanager-event"
	HeaderWebhookID = "x-ecomanager-webhook-id"
)

// WebhookConfigStore resolves the shared secret for an inbound delivery.
type WebhookConfigStore interface {
	FindByWebhookID(ctx context.Context, webhookID string) (*model.WebhookConfiguration, error)
	TouchLastTriggered(ctx context.Context, webhookID string) error
}

// ConfirmationProcessor applies order-lifecycle events to confirmation
// state.
type ConfirmationProcessor interface {
	ApplyOrderCreated(ctx context.Context, ev model.OrderEventPayload, storeIdentifier string) error
	ApplyStatusChanged(ctx context.Context, ev model.OrderEventPayload, storeIdentifier string) error
}

// AuditLog records every inbound webhook attempt and its outcome.
type AuditLog interface {
	Record(ctx context.Context, source, eventType string, payload []byte, orderID *string) (string, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
}

// OrderWebhookValidationHandler answers the sender's reachability check.
func OrderWebhookValidationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// OrderWebhookHandler accepts order-lifecycle push events from EcoManager.
// The sender expects a response within 5 seconds; processing time is
// measured and returned but not hard-cancelled.
func OrderWebhookHandler(configs WebhookConfigStore, confirmations ConfirmationProcessor, audit AuditLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		sig := r.Header.Get(HeaderSignature)
		source := r.Header.Get(HeaderSource)
		eventType := r.Header.Get(HeaderEvent)
		webhookID := r.Header.Get(HeaderWebhookID)
		if sig == "" || source == "" || eventType == "" || webhookID == "" {
			http.Error(w, "missing required headers", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		cfg, err := configs.FindByWebhookID(ctx, webhookID)
		if err != nil {
			if errors.Is(err, service.ErrWebhookConfigNotFound) {
				http.Error(w, "unknown webhook id", http.StatusNotFound)
				return
			}
			slog.Error("webhook configuration lookup failed", "webhook_id", webhookID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if !signature.Verify(cfg.WebhookSecret, body, sig) {
			metrics.WebhookEvents.WithLabelValues(model.SourceEcoManager, "unauthorized").Inc()
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		auditID, auditErr := audit.Record(ctx, model.SourceEcoManager, eventType, body, nil)
		if auditErr != nil {
			slog.Error("failed to record webhook event", "error", auditErr)
		}

		procErr := dispatchOrderEvent(ctx, confirmations, eventType, body, cfg.StoreIdentifier)

		if auditErr == nil {
			if procErr != nil {
				if err := audit.MarkFailed(ctx, auditID, procErr.Error()); err != nil {
					slog.Error("failed to mark webhook event", "event_id", auditID, "error", err)
				}
			} else if err := audit.MarkProcessed(ctx, auditID); err != nil {
				slog.Error("failed to mark webhook event", "event_id", auditID, "error", err)
			}
		}

		if err := configs.TouchLastTriggered(ctx, webhookID); err != nil {
			slog.Error("failed to touch webhook configuration", "webhook_id", webhookID, "error", err)
		}

		elapsed := time.Since(start)
		metrics.WebhookProcessing.WithLabelValues(model.SourceEcoManager).Observe(elapsed.Seconds())

		if procErr != nil {
			metrics.WebhookEvents.WithLabelValues(model.SourceEcoManager, "failed").Inc()
			slog.Error("webhook event processing failed", "event", eventType, "error", procErr)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "event processing failed",
			})
			return
		}

		metrics.WebhookEvents.WithLabelValues(model.SourceEcoManager, "processed").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"processingTime": elapsed.Milliseconds(),
		})
	}
}

// dispatchOrderEvent routes one EcoManager event to confirmation state.
// Unknown event types are acknowledged, not failed: the sender keeps adding
// types and expects 200 for all of them.
func dispatchOrderEvent(ctx context.Context, confirmations ConfirmationProcessor, eventType string, body []byte, storeIdentifier string) error {
	switch eventType {
	case model.EventOrderCreated, model.EventConfirmationChange:
	default:
		slog.Info("ignoring unknown webhook event type", "event", eventType)
		return nil
	}

	var ev model.OrderEventPayload
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.New("undecodable event payload")
	}

	if eventType == model.EventOrderCreated {
		return confirmations.ApplyOrderCreated(ctx, ev, storeIdentifier)
	}
	return confirmations.ApplyStatusChanged(ctx, ev, storeIdentifier)
}
