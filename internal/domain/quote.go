package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// QuoteRequest asks the RFQ venue for an indicative price: how much TokenOut
// would AmountIn of TokenIn buy on the given chain. AmountIn is expressed in
// the token's smallest unit (wei).
type QuoteRequest struct {
	TokenIn  common.Address
	TokenOut common.Address
	ChainID  int
	AmountIn *big.Int
}

// IndicativeQuote is a non-binding price snapshot returned by the RFQ venue.
type IndicativeQuote struct {
	TokenIn   common.Address
	TokenOut  common.Address
	ChainID   int
	AmountIn  *big.Int
	AmountOut *big.Int // smallest units of TokenOut
	Price     float64  // TokenOut per TokenIn, human units
	Timestamp time.Time
}

// FirmQuote is a binding quote with execution calldata. The bridge never
// executes firm quotes itself; they are exposed for embedding systems.
type FirmQuote struct {
	QuoteID   string
	TokenIn   common.Address
	TokenOut  common.Address
	ChainID   int
	AmountIn  *big.Int
	AmountOut *big.Int
	Price     float64
	To        common.Address // settlement contract
	Calldata  string         // hex-encoded
	ExpiresAt time.Time
}

// ListingPair is one tradeable pair advertised by the RFQ venue's listing
// endpoint, persisted to the pair catalog.
type ListingPair struct {
	ChainID       int
	Symbol        string // venue format, e.g. "WBNB/USDT"
	BaseToken     common.Address
	QuoteToken    common.Address
	BaseDecimals  int
	QuoteDecimals int
	UpdatedAt     time.Time
}
