package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"ordersync/internal/model"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// EcoOrder is one order as returned by the EcoManager pull API.
type EcoOrder struct {
	ID             json.Number    `json:"id"`
	Reference      string         `json:"reference"`
	FullName       string         `json:"full_name"`
	Phone          string         `json:"phone"`
	Wilaya         string         `json:"wilaya"`
	Commune        string         `json:"commune"`
	Total          float64        `json:"total"`
	Items          []EcoOrderItem `json:"items"`
	OrderStateName string         `json:"order_state_name"`
}

type EcoOrderItem struct {
	Title    string  `json:"title"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// EcoManagerClient pulls order pages for one store. Outbound calls are
// throttled so a full sync cannot hammer the upstream API.
type EcoManagerClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

func NewEcoManagerClient(baseURL, token string) *EcoManagerClient {
	return &EcoManagerClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(4), 8),
	}
}

// TestConnection fetches a minimal page to prove the credentials and base
// URL are usable before a sync run starts.
func (c *EcoManagerClient) TestConnection(ctx context.Context) error {
	_, err := c.FetchPage(ctx, 1, 1, "")
	if err != nil {
		return fmt.Errorf("connection test: %w", err)
	}
	return nil
}

// FetchPage requests one page of orders. A non-empty sinceID asks the API
// for orders with id strictly greater than the cursor.
func (c *EcoManagerClient) FetchPage(ctx context.Context, page, perPage int, sinceID string) ([]EcoOrder, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("limiter wait: %w", err)
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if sinceID != "" {
		q.Set("from_id", sinceID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var res struct {
			Data []EcoOrder `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return res.Data, nil
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, string(body))
	}
}

// NewFetcherForStore builds a client from a store's API configuration.
func NewFetcherForStore(cfg model.APIConfiguration) OrdersFetcher {
	return NewEcoManagerClient(cfg.BaseURL, cfg.APIToken)
}
