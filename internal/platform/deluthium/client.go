// Package deluthium is the REST client for the Deluthium RFQ API, the
// off-chain quote source mirrored onto the target book. All requests carry a
// Bearer JWT; transient failures (rate limits, server errors, timeouts) are
// retried with bounded exponential backoff.
package deluthium

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/deluthium/bridgebot/internal/domain"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBaseWait = 250 * time.Millisecond
)

// Client is the Deluthium RFQ REST client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	retryAttempts int
	retryBaseWait time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry bounds the transport-level retry policy for transient failures.
// Non-positive values leave the corresponding default untouched.
func WithRetry(attempts int, baseWait time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
		if baseWait > 0 {
			c.retryBaseWait = baseWait
		}
	}
}

// NewClient creates a Deluthium RFQ client.
//
// baseURL is the API root, e.g. "https://rfq-api.deluthium.ai"; apiKey is the
// JWT bearer token.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		retryAttempts: defaultRetryAttempts,
		retryBaseWait: defaultRetryBaseWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IndicativeQuote requests a non-binding price for swapping req.AmountIn of
// TokenIn into TokenOut. It implements domain.QuoteClient.
func (c *Client) IndicativeQuote(ctx context.Context, req domain.QuoteRequest) (domain.IndicativeQuote, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return domain.IndicativeQuote{}, fmt.Errorf("deluthium: indicative quote: %w", domain.ErrInvalidAmount)
	}
	if !SupportedChain(req.ChainID) {
		return domain.IndicativeQuote{}, fmt.Errorf("deluthium: chain %d: %w", req.ChainID, domain.ErrChainNotSupported)
	}

	params := url.Values{}
	params.Set("tokenIn", req.TokenIn.Hex())
	params.Set("tokenOut", req.TokenOut.Hex())
	params.Set("chainId", strconv.Itoa(req.ChainID))
	params.Set("amountIn", req.AmountIn.String())

	body, err := c.doRequest(ctx, http.MethodGet, quoteIndicativePath+"?"+params.Encode(), nil)
	if err != nil {
		return domain.IndicativeQuote{}, fmt.Errorf("deluthium: indicative quote: %w", err)
	}

	var resp indicativeQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.IndicativeQuote{}, fmt.Errorf("deluthium: decode indicative quote: %w", err)
	}
	if err := apiErrorFrom(resp.errorEnvelope); err != nil {
		return domain.IndicativeQuote{}, err
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return domain.IndicativeQuote{}, fmt.Errorf("deluthium: parse price %q: %w", resp.Price, err)
	}
	amountOut, ok := new(big.Int).SetString(resp.AmountOut, 10)
	if !ok {
		return domain.IndicativeQuote{}, fmt.Errorf("deluthium: parse amountOut %q: %w", resp.AmountOut, domain.ErrInvalidAmount)
	}

	ts := time.Now().UTC()
	if resp.Timestamp > 0 {
		ts = time.UnixMilli(resp.Timestamp).UTC()
	}

	return domain.IndicativeQuote{
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		ChainID:   req.ChainID,
		AmountIn:  new(big.Int).Set(req.AmountIn),
		AmountOut: amountOut,
		Price:     price,
		Timestamp: ts,
	}, nil
}

// FirmQuote requests a binding quote with settlement calldata.
func (c *Client) FirmQuote(ctx context.Context, req domain.QuoteRequest, wallet common.Address) (domain.FirmQuote, error) {
	payload := map[string]any{
		"tokenIn":  req.TokenIn.Hex(),
		"tokenOut": req.TokenOut.Hex(),
		"chainId":  req.ChainID,
		"amountIn": req.AmountIn.String(),
	}
	if wallet != (common.Address{}) {
		payload["walletAddress"] = wallet.Hex()
	}

	body, err := c.doRequest(ctx, http.MethodPost, quoteFirmPath, payload)
	if err != nil {
		return domain.FirmQuote{}, fmt.Errorf("deluthium: firm quote: %w", err)
	}

	var resp firmQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.FirmQuote{}, fmt.Errorf("deluthium: decode firm quote: %w", err)
	}
	if err := apiErrorFrom(resp.errorEnvelope); err != nil {
		return domain.FirmQuote{}, err
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return domain.FirmQuote{}, fmt.Errorf("deluthium: parse price %q: %w", resp.Price, err)
	}
	amountOut, ok := new(big.Int).SetString(resp.AmountOut, 10)
	if !ok {
		return domain.FirmQuote{}, fmt.Errorf("deluthium: parse amountOut %q: %w", resp.AmountOut, domain.ErrInvalidAmount)
	}

	return domain.FirmQuote{
		QuoteID:   resp.QuoteID,
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		ChainID:   req.ChainID,
		AmountIn:  new(big.Int).Set(req.AmountIn),
		AmountOut: amountOut,
		Price:     price,
		To:        common.HexToAddress(resp.To),
		Calldata:  resp.Calldata,
		ExpiresAt: time.UnixMilli(resp.ExpiresAt).UTC(),
	}, nil
}

// ListPairs returns the venue's tradeable pair catalog.
func (c *Client) ListPairs(ctx context.Context) ([]domain.ListingPair, error) {
	body, err := c.doRequest(ctx, http.MethodGet, listingPairsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("deluthium: list pairs: %w", err)
	}

	var resp listingPairsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("deluthium: decode pairs: %w", err)
	}
	if err := apiErrorFrom(resp.errorEnvelope); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pairs := make([]domain.ListingPair, 0, len(resp.Pairs))
	for _, p := range resp.Pairs {
		pairs = append(pairs, domain.ListingPair{
			ChainID:       p.ChainID,
			Symbol:        p.Symbol,
			BaseToken:     common.HexToAddress(p.BaseToken),
			QuoteToken:    common.HexToAddress(p.QuoteToken),
			BaseDecimals:  p.BaseDecimals,
			QuoteDecimals: p.QuoteDecimals,
			UpdatedAt:     now,
		})
	}
	return pairs, nil
}

// OrderStatus returns the RFQ-side settlement status for an order reference.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (string, error) {
	params := url.Values{}
	params.Set("orderId", orderID)

	body, err := c.doRequest(ctx, http.MethodGet, orderStatusPath+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("deluthium: order status %s: %w", orderID, err)
	}

	var resp orderStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("deluthium: decode order status: %w", err)
	}
	if err := apiErrorFrom(resp.errorEnvelope); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Balances returns the wallet's token balances (smallest units) per token.
func (c *Client) Balances(ctx context.Context, wallet common.Address, chainID int) (map[common.Address]*big.Int, error) {
	params := url.Values{}
	params.Set("wallet", wallet.Hex())
	params.Set("chainId", strconv.Itoa(chainID))

	body, err := c.doRequest(ctx, http.MethodGet, balancesPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("deluthium: balances: %w", err)
	}

	var resp balancesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("deluthium: decode balances: %w", err)
	}
	if err := apiErrorFrom(resp.errorEnvelope); err != nil {
		return nil, err
	}

	out := make(map[common.Address]*big.Int, len(resp.Balances))
	for _, b := range resp.Balances {
		v, ok := new(big.Int).SetString(b.Balance, 10)
		if !ok {
			continue
		}
		out[common.HexToAddress(b.Token)] = v
	}
	return out, nil
}

// doRequest performs one authenticated request with bounded retry on
// transient failures and returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var lastErr error
	wait := c.retryBaseWait

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		body, err := c.doOnce(ctx, method, path, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isTransient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("status 429: %w", domain.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("status 401: %w", domain.ErrUnauthorized)
	case resp.StatusCode >= 500:
		return nil, &APIError{NumericCode: 5000, Description: fmt.Sprintf("status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// apiErrorFrom normalizes the dual string/numeric error codes on a response
// body into an *APIError, or nil when the response carries no error.
func apiErrorFrom(env errorEnvelope) error {
	if env.ErrorCode != "" {
		desc, ok := stringErrorCodes[env.ErrorCode]
		if !ok {
			desc = "unknown error"
		}
		return &APIError{Code: env.ErrorCode, Description: desc}
	}
	if env.NumericCode != 0 {
		desc, ok := numericErrorCodes[env.NumericCode]
		if !ok {
			desc = "unknown error"
		}
		return &APIError{NumericCode: env.NumericCode, Description: desc}
	}
	return nil
}

// isTransient classifies errors worth retrying: rate limits, server errors,
// and network timeouts.
func isTransient(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
