// Package pricefeedapp wires the market-data-feeder binary's
// application-defined tasks: one Feeder per (protocol, configured DEX
// network) pair, implementing task.Spawner per spec.md §9.
package pricefeedapp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tmservice "github.com/cosmos/cosmos-sdk/client/grpc/tmservice"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdktx "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/config"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/pricefeed"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
)

// ContractQuerier is the subset of wasm query functionality the spawner
// needs to resolve a protocol name to its own contract address.
type ContractQuerier interface {
	SmartQuery(ctx context.Context, contract string, payload []byte) (json.RawMessage, error)
}

// DexNode is what a dialed DEX network connection must offer: the pieces
// pricefeed.NodeDexClient needs (block height, pool smart-queries) plus the
// tx sub-client used for the deferred delivered-gas lookup. *nodeclient.Client
// satisfies this already.
type DexNode interface {
	pricefeed.ContractQuerier
	Tendermint() (tmservice.ServiceClient, error)
	Tx() (sdktx.ServiceClient, error)
}

// DexDialer opens (or returns an already-open) connection to a configured
// DEX network — one per <NETWORK>__NODE_GRPC entry in spec.md §6.
type DexDialer interface {
	Dial(cfg config.DexConfig) (DexNode, error)
}

// Spawner implements task.Spawner for the market-data-feeder binary.
type Spawner struct {
	admin           string
	querier         ContractQuerier
	sender          sdk.AccAddress
	worker          pricefeed.Submitter
	dexes           []config.DexConfig
	dial            DexDialer
	idleDuration    time.Duration
	timeout         time.Duration
	refreshInterval time.Duration
	newTicker       func(time.Duration) ticker.Ticker
}

// New constructs a Spawner. admin resolves protocol names to their own
// contract addresses the same way alarmsapp.Spawner does.
func New(
	admin string,
	querier ContractQuerier,
	sender sdk.AccAddress,
	worker pricefeed.Submitter,
	dexes []config.DexConfig,
	dial DexDialer,
	idleDuration, timeout, refreshInterval time.Duration,
	newTicker func(time.Duration) ticker.Ticker,
) *Spawner {
	return &Spawner{
		admin:           admin,
		querier:         querier,
		sender:          sender,
		worker:          worker,
		dexes:           dexes,
		dial:            dial,
		idleDuration:    idleDuration,
		timeout:         timeout,
		refreshInterval: refreshInterval,
		newTicker:       newTicker,
	}
}

// ProtocolTaskSetIDs implements task.Spawner: every protocol runs one
// feeder per configured DEX network.
func (s *Spawner) ProtocolTaskSetIDs(name string) []task.AppID {
	ids := make([]task.AppID, 0, len(s.dexes))
	for _, d := range s.dexes {
		ids = append(ids, pricefeed.ID{ProtocolName: name, Network: d.Network})
	}
	return ids
}

// Spawn implements task.Spawner.
func (s *Spawner) Spawn(ctx context.Context, id task.Id, _ task.RunMode) (task.Runnable, error) {
	feedID, ok := id.AppID.(pricefeed.ID)
	if !ok {
		return nil, fmt.Errorf("pricefeedapp: unexpected app id %T", id.AppID)
	}

	var dexCfg config.DexConfig
	found := false
	for _, d := range s.dexes {
		if d.Network == feedID.Network {
			dexCfg, found = d, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("pricefeedapp: unknown DEX network %s", feedID.Network)
	}

	contract, err := s.resolveProtocolContract(ctx, feedID.ProtocolName)
	if err != nil {
		return nil, err
	}

	node, err := s.dial.Dial(dexCfg)
	if err != nil {
		return nil, fmt.Errorf("pricefeedapp: dial %s: %w", feedID.Network, err)
	}
	dex := pricefeed.NewNodeDexClient(node, node)

	view := pricefeed.NewOracleView(contract, s.querier, s.refreshInterval)
	idle := s.newTicker(s.idleDuration)

	return pricefeed.New(feedID, s.sender, contract, dex, node, s.worker, view, idle, s.timeout), nil
}

func (s *Spawner) resolveProtocolContract(ctx context.Context, name string) (string, error) {
	raw, err := s.querier.SmartQuery(ctx, s.admin, chain.ProtocolQuery(name))
	if err != nil {
		return "", fmt.Errorf("pricefeedapp: query protocol %s: %w", name, err)
	}
	var contract string
	if err := json.Unmarshal(raw, &contract); err != nil {
		return "", fmt.Errorf("pricefeedapp: decode protocol %s contract address: %w", name, err)
	}
	return contract, nil
}
