package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ordersync/internal/model"
	"ordersync/internal/service"
)

// OrderLister is the queryable order surface.
type OrderLister interface {
	List(ctx context.Context, storeIdentifier, status string, limit, offset int) ([]model.Order, error)
}

// OrderFinder resolves one order by its source-system id.
type OrderFinder interface {
	FindByExternalID(ctx context.Context, externalID, storeIdentifier string) (*model.Order, error)
}

// ConfirmationFinder reads the confirmation state of one external order.
type ConfirmationFinder interface {
	FindByExternalID(ctx context.Context, externalID string) (*model.OrderConfirmation, error)
}

// ListOrdersHandler returns the local order records, filterable by store
// and lifecycle status.
func ListOrdersHandler(orders OrderLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit := 50
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			if n > 200 {
				n = 200
			}
			limit = n
		}
		offset := 0
		if raw := q.Get("offset"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "invalid offset", http.StatusBadRequest)
				return
			}
			offset = n
		}

		list, err := orders.List(r.Context(), q.Get("store"), q.Get("status"), limit, offset)
		if err != nil {
			slog.Error("order list failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []model.Order{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type orderDetail struct {
	Order        model.Order              `json:"order"`
	Confirmation *model.OrderConfirmation `json:"confirmation,omitempty"`
}

// GetOrderHandler returns one order with its confirmation state, looked up
// by the source-system order id within a store.
func GetOrderHandler(orders OrderFinder, confirmations ConfirmationFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID := chi.URLParam(r, "externalID")
		store := r.URL.Query().Get("store")
		if store == "" {
			http.Error(w, "store query parameter is required", http.StatusBadRequest)
			return
		}

		order, err := orders.FindByExternalID(r.Context(), externalID, store)
		if err != nil {
			if errors.Is(err, service.ErrOrderNotFound) {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			slog.Error("order lookup failed", "external_id", externalID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		detail := orderDetail{Order: *order}
		conf, err := confirmations.FindByExternalID(r.Context(), externalID)
		switch {
		case err == nil:
			detail.Confirmation = conf
		case !errors.Is(err, service.ErrConfirmationNotFound):
			slog.Error("confirmation lookup failed", "external_id", externalID, "error", err)
		}
		writeJSON(w, http.StatusOK, detail)
	}
}
