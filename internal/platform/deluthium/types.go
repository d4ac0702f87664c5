package deluthium

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// API endpoint paths.
const (
	listingPairsPath    = "/v1/listing/pairs"
	quoteIndicativePath = "/v1/quote/indicative"
	quoteFirmPath       = "/v1/quote/firm"
	orderStatusPath     = "/v1/order/status"
	balancesPath        = "/v1/balances"
)

// DefaultBaseURL is the production RFQ API root.
const DefaultBaseURL = "https://rfq-api.deluthium.ai"

// DefaultChainID is BSC, the primary Deluthium deployment.
const DefaultChainID = 56

// SupportedChains maps chain IDs to display names.
var SupportedChains = map[int]string{
	56:   "BSC",
	8453: "Base",
	1:    "Ethereum",
}

// WrappedTokens maps chain IDs to the wrapped native token contract.
var WrappedTokens = map[int]common.Address{
	56:   common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"),
	8453: common.HexToAddress("0x4200000000000000000000000000000000000006"),
	1:    common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
}

// NativeTokenAddress is the zero-address placeholder for the chain's gas token.
var NativeTokenAddress = common.Address{}

// stringErrorCodes are the string-form API error codes and their descriptions.
var stringErrorCodes = map[string]string{
	"INVALID_API_KEY":        "the API key provided is invalid or expired",
	"INSUFFICIENT_LIQUIDITY": "not enough liquidity to fill the requested amount",
	"PAIR_NOT_SUPPORTED":     "the requested trading pair is not supported",
	"QUOTE_EXPIRED":          "the firm quote has expired",
	"RATE_LIMIT_EXCEEDED":    "too many requests",
	"CHAIN_NOT_SUPPORTED":    "the specified chain ID is not supported",
	"INVALID_AMOUNT":         "the amount provided is invalid",
	"INTERNAL_ERROR":         "an unexpected server-side error occurred",
}

// numericErrorCodes are the numeric-form API error codes.
var numericErrorCodes = map[int]string{
	1001: "invalid API key",
	1002: "insufficient liquidity",
	1003: "pair not supported",
	1004: "quote expired",
	1005: "rate limit exceeded",
	1006: "chain not supported",
	1007: "invalid amount",
	5000: "internal server error",
}

// APIError is a structured error returned by the Deluthium API. The API may
// report errors through a string errorCode or a numeric code; both forms are
// normalized here.
type APIError struct {
	Code        string
	NumericCode int
	Description string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("deluthium: api error [%s]: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("deluthium: api error [code %d]: %s", e.NumericCode, e.Description)
}

// Retryable reports whether the error is transient (rate limit or server-side)
// and worth retrying with backoff.
func (e *APIError) Retryable() bool {
	return e.Code == "RATE_LIMIT_EXCEEDED" || e.NumericCode == 1005 ||
		e.Code == "INTERNAL_ERROR" || e.NumericCode == 5000
}

// errorEnvelope is the error portion present on any API response body.
type errorEnvelope struct {
	ErrorCode   string `json:"errorCode"`
	NumericCode int    `json:"code"`
}

// indicativeQuoteResponse is the wire shape of GET /v1/quote/indicative.
type indicativeQuoteResponse struct {
	errorEnvelope
	Price     string `json:"price"`
	AmountOut string `json:"amountOut"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// firmQuoteResponse is the wire shape of POST /v1/quote/firm.
type firmQuoteResponse struct {
	errorEnvelope
	QuoteID   string `json:"quoteId"`
	Price     string `json:"price"`
	AmountOut string `json:"amountOut"`
	To        string `json:"to"`
	Calldata  string `json:"calldata"`
	ExpiresAt int64  `json:"expiresAt"` // unix milliseconds
}

// listingPairsResponse is the wire shape of GET /v1/listing/pairs.
type listingPairsResponse struct {
	errorEnvelope
	Pairs []listingPairInfo `json:"pairs"`
}

type listingPairInfo struct {
	Symbol        string `json:"symbol"`
	BaseToken     string `json:"baseToken"`
	QuoteToken    string `json:"quoteToken"`
	BaseDecimals  int    `json:"baseDecimals"`
	QuoteDecimals int    `json:"quoteDecimals"`
	ChainID       int    `json:"chainId"`
}

// orderStatusResponse is the wire shape of GET /v1/order/status.
type orderStatusResponse struct {
	errorEnvelope
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	TxHash  string `json:"txHash"`
}

// balancesResponse is the wire shape of GET /v1/balances.
type balancesResponse struct {
	errorEnvelope
	Balances []tokenBalance `json:"balances"`
}

type tokenBalance struct {
	Token   string `json:"token"`
	Symbol  string `json:"symbol"`
	Balance string `json:"balance"` // smallest units
}
