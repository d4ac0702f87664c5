// Package clob is the client for the target order-book venue: a REST trading
// API for placing, querying, and cancelling limit orders, and a WebSocket
// market data stream for top-of-book updates.
package clob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/deluthium/bridgebot/internal/crypto"
	"github.com/deluthium/bridgebot/internal/domain"
)

const (
	ordersPath = "/v1/orders"
)

// Client is the REST trading client for the target book. It implements
// domain.TradingClient and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *crypto.HMACAuth
}

// NewClient creates a trading client.
//
// baseURL is the exchange API root, e.g. "https://clob.deluthium.ai".
func NewClient(baseURL string, auth *crypto.HMACAuth) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		auth: auth,
	}
}

// PlaceOrder submits a limit order and returns the venue order reference.
func (c *Client) PlaceOrder(ctx context.Context, params domain.OrderParams) (string, error) {
	if params.Price <= 0 || params.Size <= 0 {
		return "", fmt.Errorf("clob: place order: %w", domain.ErrInvalidOrder)
	}

	body := orderRequest{
		Ticker:   params.Ticker,
		Side:     string(params.Side),
		Type:     "limit",
		Price:    strconv.FormatFloat(params.Price, 'f', -1, 64),
		Size:     strconv.FormatFloat(params.Size, 'f', -1, 64),
		ClientID: params.ClientID,
	}

	respBody, err := c.doSignedRequest(ctx, http.MethodPost, ordersPath, body)
	if err != nil {
		return "", fmt.Errorf("clob: place order %s %s: %w", params.Side, params.Ticker, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("clob: decode order response: %w", err)
	}
	if resp.OrderID == "" {
		return "", fmt.Errorf("clob: order rejected: %s", resp.ErrorMsg)
	}
	return resp.OrderID, nil
}

// GetOrder retrieves the venue's view of one order. It returns
// domain.ErrNotFound when the venue no longer knows the order.
func (c *Client) GetOrder(ctx context.Context, orderID, ticker string) (domain.VenueOrder, error) {
	path := fmt.Sprintf("%s/%s?ticker=%s", ordersPath, orderID, ticker)

	respBody, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.VenueOrder{}, fmt.Errorf("clob: get order %s: %w", orderID, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.VenueOrder{}, fmt.Errorf("clob: decode order: %w", err)
	}
	return resp.toDomain(), nil
}

// CancelOrder cancels a resting order by its venue reference.
func (c *Client) CancelOrder(ctx context.Context, orderID, ticker, clientID string) error {
	body := map[string]string{
		"orderId":  orderID,
		"ticker":   ticker,
		"clientId": clientID,
	}

	respBody, err := c.doSignedRequest(ctx, http.MethodDelete, ordersPath, body)
	if err != nil {
		return fmt.Errorf("clob: cancel order %s: %w", orderID, err)
	}

	var resp cancelResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("clob: decode cancel response: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("clob: cancel failed: %s", resp.ErrorMsg)
	}
	return nil
}

// doSignedRequest performs one HMAC-signed request and returns the raw
// response body. 404 maps to domain.ErrNotFound, 429 to domain.ErrRateLimited.
func (c *Client) doSignedRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyStr string
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyStr = string(data)
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.auth.Headers(method, path, bodyStr) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, domain.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
