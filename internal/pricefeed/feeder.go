package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/gas"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/logs"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/taskset"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/txpkg"
)

// defaultHardGasLimit bounds every feed_prices package's gas; it is not
// configurable. spec.md §6 enumerates a gas ceiling for alarm
// dispatch but not for price feeding; this constant is the feeder's own
// equivalent, set generously since a feed_prices batch carries no per-item
// multiplier the way dispatch_alarms does.
const defaultHardGasLimit = 1_000_000

// Submitter is satisfied by *broadcast.Worker.
type Submitter interface {
	Submit(pkg txpkg.Package)
}

// Feeder is one price-feeder task: it tracks a protocol's oracle contract
// and, on every idle tick whose DEX block height has advanced, queries
// every known pair's spot price and submits a single feed_prices package.
type Feeder struct {
	id       ID
	sender   sdk.AccAddress
	contract string
	dex      DexClient
	node     txClient
	worker   Submitter
	view     *OracleView

	idle    ticker.Ticker
	timeout time.Duration

	hardGasLimit   uint64
	lastSeenHeight int64

	gasMu       sync.Mutex
	fallbackGas uint64
}

// New constructs a Feeder. idle fires the interval tick; timeout bounds
// each per-pair spot-price query.
func New(id ID, sender sdk.AccAddress, contract string, dex DexClient, node txClient, worker Submitter, view *OracleView, idle ticker.Ticker, timeout time.Duration) *Feeder {
	return &Feeder{
		id:             id,
		sender:         sender,
		contract:       contract,
		dex:            dex,
		node:           node,
		worker:         worker,
		view:           view,
		idle:           idle,
		timeout:        timeout,
		hardGasLimit:   defaultHardGasLimit,
		fallbackGas:    defaultHardGasLimit / 2,
		lastSeenHeight: -1,
	}
}

// Run implements task.Runnable.
func (f *Feeder) Run(ctx context.Context, mode task.RunMode) error {
	logs.PriceFeed.Infof("%s feeder starting (mode=%v)", f.id, mode)

	f.idle.Resume()
	defer f.idle.Stop()

	for {
		select {
		case <-f.idle.Ticks():
			if err := f.tick(ctx); err != nil {
				logs.PriceFeed.Errorf("%s: tick: %v", f.id, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tick runs one interval: a block-height check (skips the whole batch if
// the DEX hasn't produced a new block), a bounded currency-view refresh,
// a fan-out of per-pair spot-price queries, and — if anything came back —
// a single feed_prices submission.
func (f *Feeder) tick(ctx context.Context) error {
	height, err := f.dex.BlockHeight(ctx)
	if err != nil {
		return fmt.Errorf("pricefeed: block height: %w", err)
	}
	if height == f.lastSeenHeight {
		return nil
	}
	f.lastSeenHeight = height

	if err := f.view.MaybeRefresh(ctx); err != nil {
		logs.PriceFeed.Warnf("%s: refresh oracle view: %v", f.id, err)
	}

	currencies, pairs := f.view.Snapshot()
	if len(pairs) == 0 {
		return nil
	}

	results := f.queryAllPairs(ctx, pairs)
	entries := buildEntries(results, currencies)
	if len(entries) == 0 {
		return nil
	}

	return f.submitFeed(ctx, entries)
}

type pairResult struct {
	pair  Pair
	price string
	err   error
}

// queryAllPairs spawns one per-pair query task, each bounded by f.timeout,
// and collects every result regardless of order.
func (f *Feeder) queryAllPairs(parent context.Context, pairs []Pair) []pairResult {
	set := taskset.New[string, pairResult]()
	for _, p := range pairs {
		p := p
		set.Spawn(func() (pairResult, error) {
			ctx, cancel := context.WithTimeout(parent, f.timeout)
			defer cancel()
			price, err := f.dex.SpotPrice(ctx, p.PoolID)
			return pairResult{pair: p, price: price, err: err}, nil
		}, p.Base+"/"+p.Quote)
	}

	results := make([]pairResult, 0, len(pairs))
	for set.Len() > 0 {
		_, res, _, ok := set.JoinNext(parent)
		if !ok {
			break
		}
		results = append(results, res)
	}
	return results
}

// buildEntries converts every successfully-priced pair into a feed_prices
// entry, skipping pairs whose query failed or whose tickers aren't in the
// current currency registry.
func buildEntries(results []pairResult, currencies map[string]chain.Currency) []chain.PriceEntry {
	entries := make([]chain.PriceEntry, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			logs.PriceFeed.Warnf("spot price for %s/%s: %v", r.pair.Base, r.pair.Quote, r.err)
			continue
		}
		base, ok := currencies[r.pair.Base]
		if !ok {
			continue
		}
		quote, ok := currencies[r.pair.Quote]
		if !ok {
			continue
		}
		entry, err := ConvertSpotPrice(r.price, base, quote)
		if err != nil {
			logs.PriceFeed.Warnf("convert spot price for %s/%s: %v", r.pair.Base, r.pair.Quote, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func (f *Feeder) submitFeed(ctx context.Context, entries []chain.PriceEntry) error {
	txBody, err := chain.BuildExecuteTxBody(f.sender, f.contract, chain.FeedPricesExecute(entries))
	if err != nil {
		return fmt.Errorf("pricefeed: build tx body: %w", err)
	}

	f.gasMu.Lock()
	fallback := f.fallbackGas
	f.gasMu.Unlock()

	pkg, feedback, err := txpkg.New(f.id.String(), txBody, f.hardGasLimit, fallback, txpkg.NoExpiration())
	if err != nil {
		return fmt.Errorf("pricefeed: build package: %w", err)
	}

	f.worker.Submit(pkg)

	// The next interval tick must not wait on this tx's commit, so the
	// delivered-gas lookup runs in its own goroutine (spec.md §4.3's
	// deferred "fetch-delivered" task).
	go f.awaitAndAdjustGas(feedback)
	return nil
}

func (f *Feeder) awaitAndAdjustGas(feedback <-chan txpkg.Response) {
	resp, ok := <-feedback
	if !ok {
		return
	}

	gasUsed := resp.GasUsed
	if gasUsed == 0 && resp.TxHash != "" {
		var err error
		gasUsed, err = fetchDelivered(context.Background(), f.node, f.id.String(), resp.TxHash, f.timeout)
		if err != nil {
			logs.PriceFeed.Warnf("%s: fetch delivered: %v", f.id, err)
			return
		}
	}
	if gasUsed > 0 {
		f.gasMu.Lock()
		f.fallbackGas = gas.Adjust(f.fallbackGas, gasUsed, f.hardGasLimit)
		f.gasMu.Unlock()
	}
}
