package signer

import (
	"context"
	"fmt"

	tmservice "github.com/cosmos/cosmos-sdk/client/grpc/tmservice"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	gogoproto "github.com/cosmos/gogoproto/proto"
)

// AuthQuerier is the subset of the node client a cold-start bootstrap needs
// to resolve an address's on-chain account number and sequence; satisfied
// by *nodeclient.Client.
type AuthQuerier interface {
	Auth() (authtypes.QueryClient, error)
}

// TendermintQuerier is the subset of the node client needed to resolve the
// connected chain's id at startup; satisfied by *nodeclient.Client.
type TendermintQuerier interface {
	Tendermint() (tmservice.ServiceClient, error)
}

// FetchChainID resolves the connected node's chain id, so the operator
// never has to configure it by hand (spec.md §6 does not enumerate a
// CHAIN_ID variable; the node itself is authoritative).
func FetchChainID(ctx context.Context, node TendermintQuerier) (string, error) {
	tm, err := node.Tendermint()
	if err != nil {
		return "", fmt.Errorf("signer: tendermint client: %w", err)
	}
	resp, err := tm.GetNodeInfo(ctx, &tmservice.GetNodeInfoRequest{})
	if err != nil {
		return "", fmt.Errorf("signer: get node info: %w", err)
	}
	return resp.DefaultNodeInfo.Network, nil
}

// FetchAccount resolves address's current account number and sequence from
// the chain, for use as the initial values passed to New before the
// Broadcast Worker takes over sequence bookkeeping.
func FetchAccount(ctx context.Context, node AuthQuerier, address string) (accountNumber, sequence uint64, err error) {
	authClient, err := node.Auth()
	if err != nil {
		return 0, 0, fmt.Errorf("signer: auth client: %w", err)
	}

	resp, err := authClient.Account(ctx, &authtypes.QueryAccountRequest{Address: address})
	if err != nil {
		return 0, 0, fmt.Errorf("signer: query account %s: %w", address, err)
	}

	var account authtypes.BaseAccount
	if err := gogoproto.Unmarshal(resp.Account.Value, &account); err != nil {
		return 0, 0, fmt.Errorf("signer: unmarshal account %s: %w", address, err)
	}

	return account.AccountNumber, account.Sequence, nil
}
