package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		assert.Equal(t, "100", r.URL.Query().Get("from_id"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":101,"reference":"CMD-101","full_name":"A B","phone":"0550123456","total":1200,"order_state_name":"pending"}]}`))
	}))
	defer srv.Close()

	client := NewEcoManagerClient(srv.URL, "tok-1")
	orders, err := client.FetchPage(context.Background(), 2, 100, "100")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "101", orders[0].ID.String())
	assert.Equal(t, "CMD-101", orders[0].Reference)
}

func TestFetchPageRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewEcoManagerClient(srv.URL, "tok-1")
	_, err := client.FetchPage(context.Background(), 1, 100, "")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestTestConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewEcoManagerClient(srv.URL, "tok-bad")
	err := client.TestConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection test")
}
