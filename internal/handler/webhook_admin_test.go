package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersync/internal/model"
)

func retryRouter(audit RetryAuditLog, rec ShippingReconciler, proc ConfirmationProcessor) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/webhook-events/{id}/retry", RetryWebhookEventHandler(audit, rec, proc))
	r.Get("/api/webhook-events/stats", WebhookStatsHandler(audit))
	return r
}

func TestRetryUnknownEvent(t *testing.T) {
	r := retryRouter(newFakeAudit(), &fakeReconciler{}, &fakeProcessor{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/webhook-events/evt-missing/retry", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRetryAlreadyProcessedRejected(t *testing.T) {
	audit := newFakeAudit()
	id, err := audit.Record(context.Background(), model.SourceShipping, "shipping_update", []byte(`{}`), nil)
	require.NoError(t, err)
	require.NoError(t, audit.MarkProcessed(context.Background(), id))

	r := retryRouter(audit, &fakeReconciler{}, &fakeProcessor{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/webhook-events/"+id+"/retry", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetryShippingEventSucceeds(t *testing.T) {
	audit := newFakeAudit()
	payload := []byte(`{"order_id":"4521","status":"ENTREGADO"}`)
	id, err := audit.Record(context.Background(), model.SourceShipping, "shipping_update", payload, nil)
	require.NoError(t, err)
	require.NoError(t, audit.MarkFailed(context.Background(), id, "order not yet synced"))

	rec := &fakeReconciler{orderID: "local-1"}
	r := retryRouter(audit, rec, &fakeProcessor{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/webhook-events/"+id+"/retry", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	require.Len(t, rec.payloads, 1)
	assert.True(t, audit.entries[id].Processed)
	assert.Nil(t, audit.entries[id].Error)
}

func TestRetryOrderEventRedispatches(t *testing.T) {
	audit := newFakeAudit()
	payload := []byte(`{"id":99,"order_state_name":"confirmed","confirmation_state_name":"confirmed"}`)
	id, err := audit.Record(context.Background(), model.SourceEcoManager, model.EventConfirmationChange, payload, nil)
	require.NoError(t, err)

	proc := &fakeProcessor{}
	r := retryRouter(audit, &fakeReconciler{}, proc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/webhook-events/"+id+"/retry", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, proc.applied, 1)
	assert.Equal(t, model.EventConfirmationChange, proc.applied[0].kind)
	assert.Equal(t, "99", proc.applied[0].ev.ID.String())
	assert.True(t, audit.entries[id].Processed)
}

func TestWebhookStats(t *testing.T) {
	audit := newFakeAudit()
	ctx := context.Background()
	a, _ := audit.Record(ctx, model.SourceShipping, "shipping_update", []byte(`{}`), nil)
	_ = audit.MarkProcessed(ctx, a)
	b, _ := audit.Record(ctx, model.SourceEcoManager, model.EventOrderCreated, []byte(`{}`), nil)
	_ = audit.MarkFailed(ctx, b, "boom")

	r := retryRouter(audit, &fakeReconciler{}, &fakeProcessor{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/webhook-events/stats?hours=48", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var stats model.WebhookStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 0.5, stats.SuccessRate, 0.001)
	assert.Equal(t, 1, stats.ByEventType["shipping_update"])
	assert.Equal(t, 1, stats.ByEventType[model.EventOrderCreated])
}

func TestWebhookStatsInvalidHours(t *testing.T) {
	r := retryRouter(newFakeAudit(), &fakeReconciler{}, &fakeProcessor{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/webhook-events/stats?hours=zero", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
