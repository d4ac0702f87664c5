package deluthium

import (
	"math/big"
	"strings"
)

// ToWei converts a human-readable token amount to its smallest unit.
func ToWei(amount float64, decimals int) *big.Int {
	f := new(big.Float).SetFloat64(amount)
	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	f.Mul(f, new(big.Float).SetInt(exp))
	wei, _ := f.Int(nil)
	return wei
}

// FromWei converts a smallest-unit value back to a human-readable amount.
func FromWei(wei *big.Int, decimals int) float64 {
	if wei == nil {
		return 0
	}
	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	f := new(big.Float).SetInt(wei)
	f.Quo(f, new(big.Float).SetInt(exp))
	out, _ := f.Float64()
	return out
}

// VenueSymbol converts a dash-separated instrument ticker (WBNB-USDT) to the
// Deluthium slash format (WBNB/USDT).
func VenueSymbol(ticker string) string {
	return strings.ReplaceAll(ticker, "-", "/")
}

// TickerSymbol converts a Deluthium slash symbol (WBNB/USDT) to the
// dash-separated instrument ticker format (WBNB-USDT).
func TickerSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}

// SupportedChain reports whether the chain ID is served by the RFQ API.
func SupportedChain(chainID int) bool {
	_, ok := SupportedChains[chainID]
	return ok
}
