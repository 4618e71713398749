package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ordersync/internal/envelope"
	"ordersync/internal/model"
	"ordersync/internal/service"
)

// RetryAuditLog is the audit surface the retry and stats endpoints need.
type RetryAuditLog interface {
	AuditLog
	Get(ctx context.Context, id string) (*model.WebhookEvent, error)
	Stats(ctx context.Context, since time.Time) (*model.WebhookStats, error)
}

// RetryWebhookEventHandler re-runs processing for an unprocessed audit
// entry against its stored payload.
func RetryWebhookEventHandler(audit RetryAuditLog, reconciler ShippingReconciler, confirmations ConfirmationProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		ev, err := audit.Get(ctx, id)
		if err != nil {
			if errors.Is(err, service.ErrEventNotFound) {
				http.Error(w, "event not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if ev.Processed {
			http.Error(w, "event already processed", http.StatusBadRequest)
			return
		}

		var procErr error
		switch ev.Source {
		case model.SourceShipping:
			payload, decErr := envelope.Decode(ev.Payload)
			if decErr != nil {
				procErr = decErr
			} else {
				_, procErr = reconciler.Reconcile(ctx, payload)
			}
		default:
			// The store identifier is not recorded on the event, so a
			// replay cannot link the confirmation; the puller closes that
			// gap on its next run.
			procErr = dispatchOrderEvent(ctx, confirmations, ev.EventType, ev.Payload, "")
		}

		if procErr != nil {
			if err := audit.MarkFailed(ctx, id, procErr.Error()); err != nil {
				slog.Error("failed to mark webhook event", "event_id", id, "error", err)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   procErr.Error(),
			})
			return
		}

		if err := audit.MarkProcessed(ctx, id); err != nil {
			slog.Error("failed to mark webhook event", "event_id", id, "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// WebhookStatsHandler reports aggregate audit statistics over a trailing
// window (default 24 hours).
func WebhookStatsHandler(audit RetryAuditLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours := 24
		if raw := r.URL.Query().Get("hours"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid hours parameter", http.StatusBadRequest)
				return
			}
			hours = n
		}

		stats, err := audit.Stats(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
		if err != nil {
			slog.Error("stats query failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
