package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersync/internal/model"
	"ordersync/internal/service"
)

type fakeOrderFinder struct {
	order *model.Order
	err   error
	store string
}

func (f *fakeOrderFinder) FindByExternalID(ctx context.Context, externalID, storeIdentifier string) (*model.Order, error) {
	f.store = storeIdentifier
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

type fakeConfirmationFinder struct {
	confirmation *model.OrderConfirmation
	err          error
}

func (f *fakeConfirmationFinder) FindByExternalID(ctx context.Context, externalID string) (*model.OrderConfirmation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.confirmation, nil
}

func getOrderRouter(orders OrderFinder, confirmations ConfirmationFinder) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/orders/{externalID}", GetOrderHandler(orders, confirmations))
	return r
}

func TestGetOrderWithConfirmation(t *testing.T) {
	confirmedAt := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	finder := &fakeOrderFinder{order: &model.Order{ID: "o-1", Reference: "CMD-4521", Status: model.OrderStatusConfirmed}}
	confirmations := &fakeConfirmationFinder{confirmation: &model.OrderConfirmation{
		ExternalOrderID:   "4521",
		ConfirmationState: "Confirmed",
		ConfirmedAt:       &confirmedAt,
	}}

	rec := httptest.NewRecorder()
	getOrderRouter(finder, confirmations).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/orders/4521?store=store-a", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "store-a", finder.store)
	assert.Contains(t, rec.Body.String(), "CMD-4521")
	assert.Contains(t, rec.Body.String(), `"confirmation_state":"Confirmed"`)
}

func TestGetOrderWithoutConfirmation(t *testing.T) {
	finder := &fakeOrderFinder{order: &model.Order{ID: "o-1", Reference: "CMD-4521", Status: model.OrderStatusPending}}
	confirmations := &fakeConfirmationFinder{err: service.ErrConfirmationNotFound}

	rec := httptest.NewRecorder()
	getOrderRouter(finder, confirmations).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/orders/4521?store=store-a", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "confirmation_state")
}

func TestGetOrderRequiresStore(t *testing.T) {
	rec := httptest.NewRecorder()
	getOrderRouter(&fakeOrderFinder{}, &fakeConfirmationFinder{}).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/orders/4521", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderNotFound(t *testing.T) {
	finder := &fakeOrderFinder{err: service.ErrOrderNotFound}

	rec := httptest.NewRecorder()
	getOrderRouter(finder, &fakeConfirmationFinder{}).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/orders/4521?store=store-a", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
