package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ordersync/internal/metrics"
	"ordersync/internal/model"
)

type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

const (
	// syncBatchSize bounds memory per materialization batch and isolates a
	// corrupt order from its neighbours.
	syncBatchSize = 10
	syncPageSize  = 100
)

// OrdersFetcher pulls order pages for one store.
type OrdersFetcher interface {
	TestConnection(ctx context.Context) error
	FetchPage(ctx context.Context, page, perPage int, sinceID string) ([]EcoOrder, error)
}

// SyncOrderStore is the order persistence the orchestrator relies on.
type SyncOrderStore interface {
	ExistsByExternalID(ctx context.Context, externalID, storeIdentifier string) (bool, error)
	HighestExternalID(ctx context.Context, storeIdentifier, source string) (string, error)
	Materialize(ctx context.Context, in EcoOrder, storeIdentifier string) (string, error)
}

// SyncConfigStore reads store credentials and records usage counters.
type SyncConfigStore interface {
	FindActive(ctx context.Context, storeIdentifier string) (*model.APIConfiguration, error)
	ListActive(ctx context.Context) ([]model.APIConfiguration, error)
	RecordUsage(ctx context.Context, storeIdentifier string, requests int, lastOrderID string, synced int) error
}

// ConfirmationLinker retroactively attaches confirmations that arrived
// before the order existed locally.
type ConfirmationLinker interface {
	LinkToOrder(ctx context.Context, externalID, orderID string) error
}

// ClientFactory builds the per-store pull client from its configuration.
type ClientFactory func(cfg model.APIConfiguration) OrdersFetcher

// StoreSyncResult summarizes one store's pull-and-materialize run.
type StoreSyncResult struct {
	StoreIdentifier string   `json:"store_identifier"`
	Mode            SyncMode `json:"mode"`
	Cursor          string   `json:"cursor,omitempty"`
	TotalFetched    int      `json:"total_fetched"`
	SyncedCount     int      `json:"synced_count"`
	SkippedCount    int      `json:"skipped_count"`
	FailedCount     int      `json:"failed_count"`
	LastOrderID     string   `json:"last_order_id,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// SyncSummary aggregates a multi-store run.
type SyncSummary struct {
	RunID        string            `json:"run_id"`
	Mode         SyncMode          `json:"mode"`
	StartedAt    time.Time         `json:"started_at"`
	DurationMS   int64             `json:"duration_ms"`
	TotalFetched int               `json:"total_fetched"`
	SyncedCount  int               `json:"synced_count"`
	Results      []StoreSyncResult `json:"results"`
}

// SyncService coordinates full and incremental pulls from the EcoManager
// API and materializes not-yet-seen orders locally.
type SyncService struct {
	configs       SyncConfigStore
	orders        SyncOrderStore
	confirmations ConfirmationLinker
	newClient     ClientFactory
}

func NewSyncService(configs SyncConfigStore, orders SyncOrderStore, confirmations ConfirmationLinker, factory ClientFactory) *SyncService {
	return &SyncService{
		configs:       configs,
		orders:        orders,
		confirmations: confirmations,
		newClient:     factory,
	}
}

// SyncStore runs a pull for a single store.
func (s *SyncService) SyncStore(ctx context.Context, storeIdentifier string, mode SyncMode) (*StoreSyncResult, error) {
	cfg, err := s.configs.FindActive(ctx, storeIdentifier)
	if err != nil {
		return nil, err
	}
	res := s.syncOne(ctx, *cfg, mode)
	return &res, nil
}

// SyncAllStores pulls every active store sequentially. Per-store failures
// are captured in the result slice and never abort the remaining stores.
func (s *SyncService) SyncAllStores(ctx context.Context, mode SyncMode) (*SyncSummary, error) {
	configs, err := s.configs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active stores: %w", err)
	}

	summary := &SyncSummary{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
	}
	for _, cfg := range configs {
		res := s.syncOne(ctx, cfg, mode)
		summary.Results = append(summary.Results, res)
		summary.TotalFetched += res.TotalFetched
		summary.SyncedCount += res.SyncedCount
	}
	summary.DurationMS = time.Since(summary.StartedAt).Milliseconds()

	slog.Info("sync run finished",
		"run_id", summary.RunID, "mode", mode,
		"stores", len(summary.Results), "fetched", summary.TotalFetched, "synced", summary.SyncedCount)
	return summary, nil
}

func (s *SyncService) syncOne(ctx context.Context, cfg model.APIConfiguration, mode SyncMode) StoreSyncResult {
	res := StoreSyncResult{StoreIdentifier: cfg.StoreIdentifier, Mode: mode}

	client := s.newClient(cfg)
	if err := client.TestConnection(ctx); err != nil {
		res.Error = err.Error()
		metrics.SyncRuns.WithLabelValues(string(mode), "failed").Inc()
		slog.Error("store sync aborted", "store", cfg.StoreIdentifier, "error", err)
		return res
	}

	cursor := ""
	if mode == SyncModeIncremental {
		var err error
		cursor, err = s.orders.HighestExternalID(ctx, cfg.StoreIdentifier, model.SourceEcoManager)
		if err != nil {
			res.Error = err.Error()
			metrics.SyncRuns.WithLabelValues(string(mode), "failed").Inc()
			return res
		}
	}
	res.Cursor = cursor

	fetched, fetchErr := s.fetchAll(ctx, client, cursor)
	res.TotalFetched = len(fetched)
	if fetchErr != nil {
		// Keep whatever pages arrived before the failure.
		res.Error = fetchErr.Error()
		slog.Error("fetch interrupted", "store", cfg.StoreIdentifier, "fetched", len(fetched), "error", fetchErr)
	}

	highest := cursor
	for start := 0; start < len(fetched); start += syncBatchSize {
		end := start + syncBatchSize
		if end > len(fetched) {
			end = len(fetched)
		}
		for _, order := range fetched[start:end] {
			externalID := order.ID.String()
			if externalID == "" {
				res.FailedCount++
				slog.Error("fetched order has no id", "store", cfg.StoreIdentifier, "reference", order.Reference)
				continue
			}
			if cursor != "" && !numericGreater(externalID, cursor) {
				res.SkippedCount++
				continue
			}

			exists, err := s.orders.ExistsByExternalID(ctx, externalID, cfg.StoreIdentifier)
			if err != nil {
				res.FailedCount++
				slog.Error("order lookup failed", "store", cfg.StoreIdentifier, "external_id", externalID, "error", err)
				continue
			}
			if exists {
				res.SkippedCount++
				highest = maxNumericID(highest, externalID)
				continue
			}

			orderID, err := s.orders.Materialize(ctx, order, cfg.StoreIdentifier)
			if err != nil {
				res.FailedCount++
				slog.Error("order materialization failed", "store", cfg.StoreIdentifier, "external_id", externalID, "error", err)
				continue
			}
			if err := s.confirmations.LinkToOrder(ctx, externalID, orderID); err != nil {
				slog.Error("confirmation link failed", "external_id", externalID, "error", err)
			}

			res.SyncedCount++
			highest = maxNumericID(highest, externalID)
			metrics.SyncedOrders.WithLabelValues(cfg.StoreIdentifier).Inc()
		}
	}
	res.LastOrderID = highest

	requests := (res.TotalFetched + syncPageSize - 1) / syncPageSize
	if requests == 0 {
		requests = 1
	}
	if err := s.configs.RecordUsage(ctx, cfg.StoreIdentifier, requests, highest, res.SyncedCount); err != nil {
		slog.Error("usage accounting failed", "store", cfg.StoreIdentifier, "error", err)
	}

	outcome := "ok"
	if res.Error != "" {
		outcome = "failed"
	}
	metrics.SyncRuns.WithLabelValues(string(mode), outcome).Inc()
	return res
}

func (s *SyncService) fetchAll(ctx context.Context, client OrdersFetcher, cursor string) ([]EcoOrder, error) {
	var all []EcoOrder
	for page := 1; ; page++ {
		orders, err := client.FetchPage(ctx, page, syncPageSize, cursor)
		if err != nil {
			return all, fmt.Errorf("fetch page %d: %w", page, err)
		}
		all = append(all, orders...)
		if len(orders) < syncPageSize {
			return all, nil
		}
	}
}

// numericGreater compares two digit strings by value, not lexically, so
// "100" beats "9".
func numericGreater(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA != nil {
		return false
	}
	if errB != nil {
		return true
	}
	return na > nb
}

// maxNumericID returns the numerically larger of two digit strings. A
// non-numeric value loses to a numeric one.
func maxNumericID(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if numericGreater(b, a) {
		return b
	}
	return a
}
