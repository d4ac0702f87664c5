package deluthium

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWei(t *testing.T) {
	assert.Equal(t, "1000000000000000000", ToWei(1, 18).String())
	assert.Equal(t, "1500000", ToWei(1.5, 6).String())
	assert.Equal(t, "0", ToWei(0, 18).String())
}

func TestFromWei(t *testing.T) {
	wei, ok := new(big.Int).SetString("2500000000000000000", 10)
	require.True(t, ok)

	assert.Equal(t, 2.5, FromWei(wei, 18))
	assert.Equal(t, 1.5, FromWei(big.NewInt(1_500_000), 6))
	assert.Equal(t, 0.0, FromWei(nil, 18))
}

func TestToWeiFromWeiRoundTrip(t *testing.T) {
	for _, amount := range []float64{0.001, 1, 850.25, 123456.789} {
		assert.InDelta(t, amount, FromWei(ToWei(amount, 18), 18), 1e-9)
	}
}

func TestSymbolConversion(t *testing.T) {
	assert.Equal(t, "WBNB/USDT", VenueSymbol("WBNB-USDT"))
	assert.Equal(t, "WBNB-USDT", TickerSymbol("WBNB/USDT"))
	assert.Equal(t, "WBNB-USDT", TickerSymbol(VenueSymbol("WBNB-USDT")))
}

func TestSupportedChain(t *testing.T) {
	assert.True(t, SupportedChain(56))
	assert.True(t, SupportedChain(8453))
	assert.True(t, SupportedChain(1))
	assert.False(t, SupportedChain(137))
	assert.False(t, SupportedChain(0))
}
