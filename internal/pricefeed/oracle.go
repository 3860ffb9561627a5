// Package pricefeed implements the application-defined price-feeder
// workers: one per (protocol, DEX network) pair. Each feeder tracks the
// protocol's oracle contract's currency/pair set, fans out one spot-price
// query per known pair to the configured DEX, and assembles a single
// feed_prices execute package once a batch of queries settles.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
)

// ContractQuerier is the subset of wasm query functionality the oracle view
// and feeder need; satisfied by *nodeclient.Client.
type ContractQuerier interface {
	SmartQuery(ctx context.Context, contract string, payload []byte) (json.RawMessage, error)
}

// Pair is one supported currency pair, as reported by the oracle contract's
// {"supported_currency_pairs":{}} query: a base/quote ticker pair quoted
// against a DEX pool.
type Pair struct {
	Base, Quote string
	PoolID      string
}

// OracleView is the feeder's cached picture of one protocol's oracle
// contract: its currency registry and supported pairs, refreshed no more
// often than refreshInterval. Safe for concurrent use; the feeder's
// per-pair query fan-out reads a snapshot while a refresh may be running
// concurrently on the next tick.
type OracleView struct {
	contract string
	querier  ContractQuerier

	refreshInterval time.Duration

	mu          sync.RWMutex
	currencies  map[string]chain.Currency
	pairs       []Pair
	lastRefresh time.Time
}

// NewOracleView constructs an OracleView that queries contract through
// querier, refreshing at most once per refreshInterval.
func NewOracleView(contract string, querier ContractQuerier, refreshInterval time.Duration) *OracleView {
	return &OracleView{
		contract:        contract,
		querier:         querier,
		refreshInterval: refreshInterval,
		currencies:      make(map[string]chain.Currency),
	}
}

// MaybeRefresh reloads the currency and pair sets from the contract if
// refreshInterval has elapsed since the last successful refresh; otherwise
// it is a no-op. The very first call always refreshes.
func (v *OracleView) MaybeRefresh(ctx context.Context) error {
	v.mu.RLock()
	due := v.lastRefresh.IsZero() || time.Since(v.lastRefresh) >= v.refreshInterval
	v.mu.RUnlock()
	if !due {
		return nil
	}
	return v.refresh(ctx)
}

func (v *OracleView) refresh(ctx context.Context) error {
	rawCurrencies, err := v.querier.SmartQuery(ctx, v.contract, chain.CurrenciesQuery())
	if err != nil {
		return fmt.Errorf("pricefeed: query currencies: %w", err)
	}
	var currencies []chain.Currency
	if err := json.Unmarshal(rawCurrencies, &currencies); err != nil {
		return fmt.Errorf("pricefeed: decode currencies: %w", err)
	}

	rawPairs, err := v.querier.SmartQuery(ctx, v.contract, chain.SupportedCurrencyPairsQuery())
	if err != nil {
		return fmt.Errorf("pricefeed: query supported_currency_pairs: %w", err)
	}
	var tuples []chain.CurrencyPair
	if err := json.Unmarshal(rawPairs, &tuples); err != nil {
		return fmt.Errorf("pricefeed: decode supported_currency_pairs: %w", err)
	}

	byTicker := make(map[string]chain.Currency, len(currencies))
	for _, c := range currencies {
		byTicker[c.Ticker] = c
	}
	pairs := make([]Pair, 0, len(tuples))
	for _, t := range tuples {
		pairs = append(pairs, Pair{Base: t.From, Quote: t.To, PoolID: t.PoolID})
	}

	v.mu.Lock()
	v.currencies = byTicker
	v.pairs = pairs
	v.lastRefresh = time.Now()
	v.mu.Unlock()
	return nil
}

// Snapshot returns the currency registry and pair list as of the last
// refresh.
func (v *OracleView) Snapshot() (map[string]chain.Currency, []Pair) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	currencies := make(map[string]chain.Currency, len(v.currencies))
	for k, c := range v.currencies {
		currencies[k] = c
	}
	pairs := make([]Pair, len(v.pairs))
	copy(pairs, v.pairs)
	return currencies, pairs
}
