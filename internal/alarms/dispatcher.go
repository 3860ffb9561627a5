// Package alarms implements the application-defined alarm dispatcher
// tasks: one per (protocol, time|price) pair. Each dispatcher polls its
// contract's {"alarms_status":{}} query, and while remaining_alarms is
// true, keeps submitting {"dispatch_alarms":{"max_count":N}} execute
// packages to the Broadcast Worker back to back; once the contract
// reports no alarms left, it falls back to idle polling.
package alarms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/config"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/gas"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/logs"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/txpkg"
)

// ContractQuerier is the subset of wasm query functionality a dispatcher
// needs.
type ContractQuerier interface {
	SmartQuery(ctx context.Context, contract string, payload []byte) (json.RawMessage, error)
}

// Submitter is satisfied by *broadcast.Worker; kept as an interface here
// so dispatcher tests can substitute a fake.
type Submitter interface {
	Submit(pkg txpkg.Package)
}

// Dispatcher is one alarm dispatcher task.
type Dispatcher struct {
	id       ID
	sender   sdk.AccAddress
	contract string
	querier  ContractQuerier
	worker   Submitter
	cfg      config.AlarmsConfig
	idle     time.Duration

	// currentFallbackGas self-adjusts per spec.md §4.3's 2:1 weighted
	// average rule, converging toward whatever gas each dispatch_alarms
	// batch actually consumes.
	currentFallbackGas uint64
}

// New constructs a Dispatcher for protocol/kind, querying and executing
// against contract. sender is the signing account's address, used only to
// populate MsgExecuteContract.Sender — the dispatcher never touches key
// material itself.
func New(id ID, sender sdk.AccAddress, contract string, querier ContractQuerier, worker Submitter, cfg config.AlarmsConfig, idle time.Duration) *Dispatcher {
	return &Dispatcher{
		id:                 id,
		sender:             sender,
		contract:           contract,
		querier:            querier,
		worker:             worker,
		cfg:                cfg,
		idle:               idle,
		currentFallbackGas: cfg.GasLimitPerAlarm * uint64(cfg.MaxAlarmsGroup),
	}
}

// Run implements task.Runnable.
func (d *Dispatcher) Run(ctx context.Context, mode task.RunMode) error {
	logs.Alarms.Infof("%s dispatcher starting (mode=%v)", d.id, mode)

	for {
		remaining, err := d.poll(ctx)
		if err != nil {
			logs.Alarms.Errorf("%s: poll alarms_status: %v", d.id, err)
			remaining = false
		}

		if !remaining {
			select {
			case <-time.After(d.idle):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if err := d.dispatchOnce(ctx); err != nil {
			logs.Alarms.Errorf("%s: dispatch: %v", d.id, err)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) (bool, error) {
	raw, err := d.querier.SmartQuery(ctx, d.contract, chain.AlarmsStatusQuery())
	if err != nil {
		return false, err
	}
	var status chain.AlarmsStatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return false, fmt.Errorf("alarms: decode alarms_status: %w", err)
	}
	return status.RemainingAlarms, nil
}

// dispatchOnce builds and submits exactly one dispatch_alarms package,
// then waits for its feedback to adjust currentFallbackGas for next time.
func (d *Dispatcher) dispatchOnce(ctx context.Context) error {
	hardGasLimit := d.cfg.GasLimitPerAlarm * uint64(d.cfg.MaxAlarmsGroup)

	txBody, err := chain.BuildExecuteTxBody(d.sender, d.contract, chain.DispatchAlarmsExecute(d.cfg.MaxAlarmsGroup))
	if err != nil {
		return fmt.Errorf("alarms: build tx body: %w", err)
	}

	pkg, feedback, err := txpkg.New(d.id.String(), txBody, hardGasLimit, d.currentFallbackGas, txpkg.NoExpiration())
	if err != nil {
		return fmt.Errorf("alarms: build package: %w", err)
	}

	d.worker.Submit(pkg)

	select {
	case resp := <-feedback:
		if resp.GasUsed > 0 {
			d.currentFallbackGas = gas.Adjust(d.currentFallbackGas, resp.GasUsed, hardGasLimit)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
