package pricefeed

import (
	"fmt"
	"math/big"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
)

// decPrecision is the number of fractional decimal digits a DEX spot-price
// query returns its result scaled by — the same fixed-point convention
// cosmos-sdk's own sdk.Dec uses internally. A pool's spot_price answer is
// this many digits wider than its plain decimal value.
const decPrecision = 18

// ConvertSpotPrice turns a DEX pool's raw spot-price string (base quoted in
// quote, scaled by 10^decPrecision) into the {amount, amount_quote} entry
// feed_prices expects: one whole unit of base (10^base.DecimalDigits in its
// smallest denomination) against however much of quote that unit is worth.
func ConvertSpotPrice(raw string, base, quote chain.Currency) (chain.PriceEntry, error) {
	rawInt, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return chain.PriceEntry{}, fmt.Errorf("pricefeed: malformed spot price %q", raw)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(decPrecision), nil)
	quoteAmount := new(big.Int).Quo(rawInt, scale)

	baseAmount := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(base.DecimalDigits)), nil)

	return chain.PriceEntry{
		Amount:      chain.CoinAmount{Amount: baseAmount.String(), Ticker: base.Ticker},
		AmountQuote: chain.CoinAmount{Amount: quoteAmount.String(), Ticker: quote.Ticker},
	}, nil
}
