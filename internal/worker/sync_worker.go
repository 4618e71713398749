package worker

import (
	"context"
	"log/slog"
	"time"

	"ordersync/internal/service"
)

// SyncWorker periodically runs an incremental sync for all active stores.
// External schedulers can drive the management API instead; setting the
// interval to zero disables the worker. Concurrent syncs of the same store
// are not guarded here — an external scheduler lock should serialize them.
type SyncWorker struct {
	syncSvc  *service.SyncService
	interval time.Duration
}

func NewSyncWorker(syncSvc *service.SyncService, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		syncSvc:  syncSvc,
		interval: interval,
	}
}

func (w *SyncWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		slog.Info("sync worker disabled")
		return
	}

	slog.Info("starting sync worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync worker stopped")
			return
		case <-ticker.C:
			summary, err := w.syncSvc.SyncAllStores(ctx, service.SyncModeIncremental)
			if err != nil {
				slog.Error("scheduled sync failed", "error", err)
				continue
			}
			slog.Info("scheduled sync finished",
				"run_id", summary.RunID, "fetched", summary.TotalFetched, "synced", summary.SyncedCount)
		}
	}
}
