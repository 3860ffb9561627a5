package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"

	tmservice "github.com/cosmos/cosmos-sdk/client/grpc/tmservice"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
)

// DexClient is the per-DEX-network collaborator a feeder queries: the
// node's current block height (used to skip re-querying a stale block) and
// a pool's spot price. spec.md §1 carves the concrete DEX REST/gRPC
// bindings out as an external collaborator; NodeDexClient below is the one
// reference implementation SPEC_FULL.md commits to (an Osmosis-style
// CosmWasm pool contract queried the same way as the oracle contracts),
// and any other DEX schema implements this same interface.
type DexClient interface {
	BlockHeight(ctx context.Context) (int64, error)
	SpotPrice(ctx context.Context, poolID string) (string, error)
}

// tendermintClient is the subset of the node client's Tendermint sub-client
// NodeDexClient needs.
type tendermintClient interface {
	Tendermint() (tmservice.ServiceClient, error)
}

// NodeDexClient implements DexClient against a DEX node reachable through
// the same gRPC multiplexing internal/nodeclient provides: block height via
// the tendermint service, spot price via a wasm smart query against the
// pool contract address (poolID).
type NodeDexClient struct {
	node    tendermintClient
	querier ContractQuerier
}

// NewNodeDexClient constructs a NodeDexClient. node and querier are
// typically the same *nodeclient.Client dialed against the DEX's own
// <NETWORK>__NODE_GRPC endpoint.
func NewNodeDexClient(node tendermintClient, querier ContractQuerier) *NodeDexClient {
	return &NodeDexClient{node: node, querier: querier}
}

func (c *NodeDexClient) BlockHeight(ctx context.Context) (int64, error) {
	tm, err := c.node.Tendermint()
	if err != nil {
		return 0, fmt.Errorf("pricefeed: tendermint client: %w", err)
	}
	resp, err := tm.GetLatestBlock(ctx, &tmservice.GetLatestBlockRequest{})
	if err != nil {
		return 0, fmt.Errorf("pricefeed: get latest block: %w", err)
	}
	return resp.Block.Header.Height, nil
}

func (c *NodeDexClient) SpotPrice(ctx context.Context, poolID string) (string, error) {
	raw, err := c.querier.SmartQuery(ctx, poolID, chain.SpotPriceQuery())
	if err != nil {
		return "", fmt.Errorf("pricefeed: query spot price on %s: %w", poolID, err)
	}
	var resp chain.SpotPriceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("pricefeed: decode spot price on %s: %w", poolID, err)
	}
	return resp.Price, nil
}
