package pricefeed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	sdktx "github.com/cosmos/cosmos-sdk/types/tx"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/txpkg"
)

// fakeTicker implements the ticker.Ticker interface (the feeder itself only
// calls Resume, Stop and Ticks), letting tests drive ticks deterministically
// instead of waiting on a real timer.
type fakeTicker struct {
	ticks chan time.Time
}

func newFakeTicker() *fakeTicker { return &fakeTicker{ticks: make(chan time.Time, 1)} }
func (f *fakeTicker) Resume()                 {}
func (f *fakeTicker) Pause()                  {}
func (f *fakeTicker) Stop()                   {}
func (f *fakeTicker) Ticks() <-chan time.Time { return f.ticks }
func (f *fakeTicker) tick()                   { f.ticks <- time.Now() }

type fakeQuerier struct {
	currencies []chain.Currency
	pairs      json.RawMessage
}

func (q *fakeQuerier) SmartQuery(_ context.Context, _ string, payload []byte) (json.RawMessage, error) {
	switch string(payload) {
	case string(chain.CurrenciesQuery()):
		b, _ := json.Marshal(q.currencies)
		return b, nil
	case string(chain.SupportedCurrencyPairsQuery()):
		return q.pairs, nil
	}
	return nil, nil
}

type fakeDex struct {
	height int64
	prices map[string]string
}

func (d *fakeDex) BlockHeight(context.Context) (int64, error) { return d.height, nil }
func (d *fakeDex) SpotPrice(_ context.Context, poolID string) (string, error) {
	return d.prices[poolID], nil
}

type captureSubmitter struct {
	submitted []txpkg.Package
}

func (s *captureSubmitter) Submit(pkg txpkg.Package) {
	s.submitted = append(s.submitted, pkg)
	pkg.FeedbackSender <- txpkg.Response{Code: chain.CodeOK, GasUsed: 500}
}

type noopTxClient struct{}

func (noopTxClient) Tx() (sdktx.ServiceClient, error) { return nil, nil }

func TestFeederTickSubmitsFeedPrices(t *testing.T) {
	querier := &fakeQuerier{
		currencies: []chain.Currency{
			{Ticker: "NLS", DexSymbol: "nls", DecimalDigits: 6},
			{Ticker: "USDC", DexSymbol: "uusdc", DecimalDigits: 6},
		},
		pairs: json.RawMessage(`[["NLS",["1","USDC"]]]`),
	}
	dex := &fakeDex{height: 100, prices: map[string]string{"1": "1811002280600015000000000000000000"}}
	submitter := &captureSubmitter{}
	view := NewOracleView("oracle-contract", querier, time.Hour)

	f := New(ID{ProtocolName: "proto", Network: "osmosis"}, sdk.AccAddress{}, "oracle-contract",
		dex, noopTxClient{}, submitter, view, newFakeTicker(), time.Second)

	require.NoError(t, f.tick(context.Background()))
	require.Len(t, submitter.submitted, 1)

	// Repeating the same block height must not resubmit.
	require.NoError(t, f.tick(context.Background()))
	require.Len(t, submitter.submitted, 1)

	dex.height = 101
	require.NoError(t, f.tick(context.Background()))
	require.Len(t, submitter.submitted, 2)
}
