package pricefeed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
)

func TestConvertSpotPrice(t *testing.T) {
	base := chain.Currency{Ticker: "NLS", DexSymbol: "nls", DecimalDigits: 6}
	quote := chain.Currency{Ticker: "USDC", DexSymbol: "uusdc", DecimalDigits: 6}

	entry, err := ConvertSpotPrice("1811002280600015000000000000000000", base, quote)
	require.NoError(t, err)

	require.Equal(t, chain.PriceEntry{
		Amount:      chain.CoinAmount{Amount: "1000000", Ticker: "NLS"},
		AmountQuote: chain.CoinAmount{Amount: "1811002280600015", Ticker: "USDC"},
	}, entry)
}

func TestConvertSpotPriceMalformed(t *testing.T) {
	_, err := ConvertSpotPrice("not-a-number", chain.Currency{}, chain.Currency{})
	require.Error(t, err)
}
