package pricefeed

import (
	"context"
	"fmt"
	"time"

	sdktx "github.com/cosmos/cosmos-sdk/types/tx"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/logs"
)

// txClient is the subset of the node client the delivered-tx fetch needs.
type txClient interface {
	Tx() (sdktx.ServiceClient, error)
}

// pollInterval, together with fetchDelivered's deadline, implements spec.md §4.3/§5's deferred
// "fetch-delivered" task: unlike the broadcast worker's own retry cadence,
// this poll always runs at a fixed 2s interval, logging a "not included"
// warning every fifth attempt, bounded by timeout*5.
const pollInterval = 2 * time.Second

// fetchDelivered polls for hash's mined result up to timeout*5, returning
// the gas actually used once the tx lands. Used as a fallback when a
// package's feedback response didn't already carry GasUsed (e.g. an
// asynchronous broadcast variant that acks before commit).
func fetchDelivered(ctx context.Context, node txClient, source, hash string, timeout time.Duration) (uint64, error) {
	deadline := time.Now().Add(timeout * 5)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ticker.C:
			txc, err := node.Tx()
			if err != nil {
				return 0, fmt.Errorf("pricefeed: tx client: %w", err)
			}
			resp, err := txc.GetTx(ctx, &sdktx.GetTxRequest{Hash: hash})
			if err == nil {
				return uint64(resp.TxResponse.GasUsed), nil
			}

			if attempt%5 == 0 {
				logs.PriceFeed.Warnf("%s: tx %s not included after %d polls", source, hash, attempt)
			}
			if time.Now().After(deadline) {
				return 0, fmt.Errorf("pricefeed: %s: tx %s not included within %s", source, hash, timeout*5)
			}

		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
