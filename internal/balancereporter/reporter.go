// Package balancereporter implements the Balance Reporter built-in task:
// on every idle tick it queries the signing account's balance in the
// configured fee token and logs it, so operators can see funding drain
// over time without a separate monitoring system.
package balancereporter

import (
	"context"
	"fmt"

	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/amount"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/logs"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/metrics"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/nodeclient"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/signer"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
)

// Reporter is the Balance Reporter task.
type Reporter struct {
	node  *nodeclient.Client
	state *signer.State
	idle  ticker.Ticker
}

// New constructs a Reporter.
func New(node *nodeclient.Client, state *signer.State, idle ticker.Ticker) *Reporter {
	return &Reporter{node: node, state: state, idle: idle}
}

// Run implements task.Runnable.
func (r *Reporter) Run(ctx context.Context, mode task.RunMode) error {
	logs.BalanceReporter.Infof("balance reporter starting (mode=%v)", mode)

	r.idle.Resume()
	defer r.idle.Stop()

	for {
		select {
		case <-r.idle.Ticks():
			if err := r.report(ctx); err != nil {
				logs.BalanceReporter.Errorf("report failed: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reporter) report(ctx context.Context) error {
	bank, err := r.node.Bank()
	if err != nil {
		return fmt.Errorf("balancereporter: bank client: %w", err)
	}

	resp, err := bank.Balance(ctx, &banktypes.QueryBalanceRequest{
		Address: r.state.Address().String(),
		Denom:   r.state.FeeDenom(),
	})
	if err != nil {
		return fmt.Errorf("balancereporter: query balance: %w", err)
	}

	raw := resp.Balance.Amount.String()
	logs.BalanceReporter.Infof("signer balance: %s %s", amount.Format(raw), r.state.FeeDenom())
	metrics.SetSignerBalance(r.state.FeeDenom(), resp.Balance.Amount.BigInt())
	return nil
}
