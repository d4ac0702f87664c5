package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PairMapping links one RFQ token pair to one target-book instrument. Side is
// the target-book side implied by buying TokenOut on the RFQ venue.
// ProbeAmount is the fixed TokenIn amount (smallest units) used for every
// indicative quote request. Mappings are immutable once added.
type PairMapping struct {
	TokenIn      common.Address
	TokenOut     common.Address
	Ticker       string
	ChainID      int
	Side         OrderSide
	BaseDecimals int
	ProbeAmount  *big.Int
}

// ArbPair is one pair scanned for cross-venue spread.
type ArbPair struct {
	Ticker       string
	TokenIn      common.Address
	TokenOut     common.Address
	ChainID      int
	BaseDecimals int
	ProbeAmount  *big.Int
}
