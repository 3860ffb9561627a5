// Package chain builds the exact on-chain query/execute JSON payloads
// spec.md §6 enumerates, and decodes the application payload out of a
// successful tx response.
package chain

import "encoding/json"

// Query payload constructors. Each returns the exact byte-for-byte JSON
// spec.md §6 specifies; field order matters for some contract ABI
// validators, so these are built with struct marshaling rather than
// string concatenation to keep them correct as the types evolve.

type emptyPayload struct{}

type platformQuery struct {
	Platform emptyPayload `json:"platform"`
}

type protocolsQuery struct {
	Protocols emptyPayload `json:"protocols"`
}

type protocolQuery struct {
	Protocol string `json:"protocol"`
}

type alarmsStatusQuery struct {
	AlarmsStatus emptyPayload `json:"alarms_status"`
}

type contractVersionQuery struct {
	ContractVersion emptyPayload `json:"contract_version"`
}

type platformPackageReleaseQuery struct {
	PlatformPackageRelease emptyPayload `json:"platform_package_release"`
}

type protocolPackageReleaseQuery struct {
	ProtocolPackageRelease emptyPayload `json:"protocol_package_release"`
}

type currenciesQuery struct {
	Currencies emptyPayload `json:"currencies"`
}

type supportedCurrencyPairsQuery struct {
	SupportedCurrencyPairs emptyPayload `json:"supported_currency_pairs"`
}

func PlatformQuery() []byte                { return mustJSON(platformQuery{}) }
func ProtocolsQuery() []byte               { return mustJSON(protocolsQuery{}) }
func ContractVersionQuery() []byte         { return mustJSON(contractVersionQuery{}) }
func PlatformPackageReleaseQuery() []byte  { return mustJSON(platformPackageReleaseQuery{}) }
func ProtocolPackageReleaseQuery() []byte  { return mustJSON(protocolPackageReleaseQuery{}) }
func CurrenciesQuery() []byte              { return mustJSON(currenciesQuery{}) }
func SupportedCurrencyPairsQuery() []byte  { return mustJSON(supportedCurrencyPairsQuery{}) }
func AlarmsStatusQuery() []byte            { return mustJSON(alarmsStatusQuery{}) }

// ProtocolQuery builds {"protocol":"<name>"}.
func ProtocolQuery(name string) []byte {
	return mustJSON(protocolQuery{Protocol: name})
}

// Execute payload constructors.

type dispatchAlarmsBody struct {
	MaxCount uint32 `json:"max_count"`
}

type dispatchAlarmsExecute struct {
	DispatchAlarms dispatchAlarmsBody `json:"dispatch_alarms"`
}

// DispatchAlarmsExecute builds {"dispatch_alarms":{"max_count":N}}.
func DispatchAlarmsExecute(maxCount uint32) []byte {
	return mustJSON(dispatchAlarmsExecute{DispatchAlarms: dispatchAlarmsBody{MaxCount: maxCount}})
}

// CoinAmount is the {amount, ticker} shape used in feed_prices.
type CoinAmount struct {
	Amount string `json:"amount"`
	Ticker string `json:"ticker"`
}

// PriceEntry is one element of feed_prices' "prices" array.
type PriceEntry struct {
	Amount      CoinAmount `json:"amount"`
	AmountQuote CoinAmount `json:"amount_quote"`
}

type feedPricesBody struct {
	Prices []PriceEntry `json:"prices"`
}

type feedPricesExecute struct {
	FeedPrices feedPricesBody `json:"feed_prices"`
}

// FeedPricesExecute builds {"feed_prices":{"prices":[...]}}.
func FeedPricesExecute(prices []PriceEntry) []byte {
	return mustJSON(feedPricesExecute{FeedPrices: feedPricesBody{Prices: prices}})
}

// spotPriceQuery is the reference DEX-side query this service speaks: an
// Osmosis-style CosmWasm pool contract exposing {"spot_price":{}} over the
// same smart-query path as the oracle/admin contracts. Other DEX schemas
// are the external collaborator spec.md §1 carves out; this is the one
// concrete binding SPEC_FULL.md commits to.
type spotPriceQuery struct {
	SpotPrice emptyPayload `json:"spot_price"`
}

// SpotPriceQuery builds {"spot_price":{}}.
func SpotPriceQuery() []byte { return mustJSON(spotPriceQuery{}) }

// SpotPriceResponse decodes a pool contract's spot-price query result.
type SpotPriceResponse struct {
	Price string `json:"price"`
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every payload here is built from literal types the caller
		// controls; a marshal failure means a programming error.
		panic("chain: payload marshal: " + err.Error())
	}
	return b
}

// Response shapes for the query payloads above.

type AlarmsStatusResponse struct {
	RemainingAlarms bool `json:"remaining_alarms"`
}

type PackageRelease struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Currency struct {
	Ticker        string `json:"ticker"`
	DexSymbol     string `json:"dex_symbol"`
	DecimalDigits uint32 `json:"decimal_digits"`
}

// CurrencyPair decodes a [from, [pool_id, to]] tuple.
type CurrencyPair struct {
	From   string
	PoolID string
	To     string
}

func (p *CurrencyPair) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &p.From); err != nil {
		return err
	}
	var inner [2]json.RawMessage
	if err := json.Unmarshal(tuple[1], &inner); err != nil {
		return err
	}
	if err := json.Unmarshal(inner[0], &p.PoolID); err != nil {
		return err
	}
	return json.Unmarshal(inner[1], &p.To)
}
