package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"ordersync/internal/service"
)

// SyncRunner triggers pull-and-materialize runs.
type SyncRunner interface {
	SyncStore(ctx context.Context, storeIdentifier string, mode service.SyncMode) (*service.StoreSyncResult, error)
	SyncAllStores(ctx context.Context, mode service.SyncMode) (*service.SyncSummary, error)
}

type syncRequest struct {
	StoreIdentifier string `json:"store_identifier"`
	Mode            string `json:"mode"`
}

// TriggerSyncHandler starts a sync run for one store or all active stores.
func TriggerSyncHandler(syncSvc SyncRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// An empty body means "sync everything incrementally".
		var req syncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		mode := service.SyncMode(req.Mode)
		if mode == "" {
			mode = service.SyncModeIncremental
		}
		if mode != service.SyncModeFull && mode != service.SyncModeIncremental {
			http.Error(w, "mode must be full or incremental", http.StatusBadRequest)
			return
		}

		if req.StoreIdentifier != "" {
			result, err := syncSvc.SyncStore(r.Context(), req.StoreIdentifier, mode)
			if err != nil {
				if errors.Is(err, service.ErrStoreNotConfigured) {
					http.Error(w, "store not configured", http.StatusNotFound)
					return
				}
				slog.Error("store sync failed", "store", req.StoreIdentifier, "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, result)
			return
		}

		summary, err := syncSvc.SyncAllStores(r.Context(), mode)
		if err != nil {
			slog.Error("sync run failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}
