// Package nodeclient multiplexes the gRPC sub-clients the rest of the
// service needs (auth, bank, tx, tendermint, wasm query, raw, reflection)
// over one reconnectable channel, following the teacher daemon's pattern
// of a single shared connection guarded by a reconnect flag rather than a
// pool of independent dials.
package nodeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	tmservice "github.com/cosmos/cosmos-sdk/client/grpc/tmservice"
	sdktx "github.com/cosmos/cosmos-sdk/types/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/status"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/logs"
)

// Client owns the reconnectable gRPC channel and hands out sub-clients
// that all share it. Every sub-client call passes through classifyUnary,
// which is what actually flips shouldReconnect — individual sub-client
// wrappers are plain generated types, not hand-written shims.
type Client struct {
	target   string
	dialOpts []grpc.DialOption

	mu              sync.RWMutex
	conn            *grpc.ClientConn
	shouldReconnect atomic.Bool
}

// Dial opens the initial connection to target. dialOpts are the caller's
// transport credentials, keepalive params, etc.; classifyUnary is always
// chained in front of them so reconnect detection can't be bypassed.
func Dial(target string, dialOpts ...grpc.DialOption) (*Client, error) {
	c := &Client{target: target, dialOpts: dialOpts}

	conn, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("nodeclient: initial dial: %w", err)
	}
	c.conn = conn
	return c, nil
}

func (c *Client) dial() (*grpc.ClientConn, error) {
	opts := append([]grpc.DialOption{grpc.WithChainUnaryInterceptor(c.classifyUnary)}, c.dialOpts...)
	return grpc.Dial(c.target, opts...)
}

// classifyUnary is installed as a gRPC unary client interceptor so every
// sub-client call, regardless of which generated wrapper issued it, is
// inspected for the reconnect condition spec.md §4.6 describes: any
// status code outside {OK, NotFound} flips shouldReconnect.
func (c *Client) classifyUnary(
	ctx context.Context,
	method string,
	req, reply any,
	conn *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	err := invoker(ctx, method, req, reply, conn, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || (st.Code() != codes.OK && st.Code() != codes.NotFound) {
		c.MarkReconnect()
	}
	return err
}

// MarkReconnect flags the channel for replacement on the next sub-client
// acquisition.
func (c *Client) MarkReconnect() {
	c.shouldReconnect.Store(true)
}

// connection returns the live *grpc.ClientConn, rebuilding it first if
// MarkReconnect has been called since the last acquisition. The rebuild
// itself is guarded by the write half of mu; every sub-client getter only
// ever needs the read half, except the one that actually performs the
// swap.
func (c *Client) connection() (*grpc.ClientConn, error) {
	c.mu.RLock()
	if !c.shouldReconnect.Load() {
		conn := c.conn
		c.mu.RUnlock()
		return conn, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.shouldReconnect.Load() {
		return c.conn, nil
	}

	logs.NodeClient.Warnf("reconnecting to %s", c.target)
	_ = c.conn.Close()

	conn, err := c.dial()
	if err != nil {
		// Leave the flag set; the next acquisition retries the rebuild.
		return nil, fmt.Errorf("nodeclient: reconnect: %w", err)
	}
	c.conn = conn
	c.shouldReconnect.Store(false)
	return conn, nil
}

// Auth returns the auth query sub-client.
func (c *Client) Auth() (authtypes.QueryClient, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return authtypes.NewQueryClient(conn), nil
}

// Bank returns the bank query sub-client.
func (c *Client) Bank() (banktypes.QueryClient, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return banktypes.NewQueryClient(conn), nil
}

// Tx returns the tx service sub-client (simulate, broadcast, get-tx).
func (c *Client) Tx() (sdktx.ServiceClient, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return sdktx.NewServiceClient(conn), nil
}

// Tendermint returns the tendermint (cometbft) service sub-client, used
// for block-height/status queries.
func (c *Client) Tendermint() (tmservice.ServiceClient, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return tmservice.NewServiceClient(conn), nil
}

// Wasm returns the wasm query sub-client (smart-contract queries).
func (c *Client) Wasm() (wasmtypes.QueryClient, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return wasmtypes.NewQueryClient(conn), nil
}

// SmartQuery runs a smart-contract query against contract and returns its
// raw JSON result, satisfying the ContractQuerier interface that
// internal/alarms and internal/protocolwatcher depend on.
func (c *Client) SmartQuery(ctx context.Context, contract string, payload []byte) (json.RawMessage, error) {
	wasm, err := c.Wasm()
	if err != nil {
		return nil, fmt.Errorf("nodeclient: wasm client: %w", err)
	}

	resp, err := wasm.SmartContractState(ctx, &wasmtypes.QuerySmartContractStateRequest{
		Address:   contract,
		QueryData: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("nodeclient: smart query %s: %w", contract, err)
	}
	return json.RawMessage(resp.Data), nil
}

// Raw returns the underlying *grpc.ClientConn for one-off calls (e.g. a
// DEX's own gRPC query service) that don't warrant a dedicated wrapper.
func (c *Client) Raw() (*grpc.ClientConn, error) {
	return c.connection()
}

// Reflection returns the server-reflection sub-client, used at startup to
// sanity-check the node exposes the services this client expects.
func (c *Client) Reflection() (grpc_reflection_v1alpha.ServerReflectionClient, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return grpc_reflection_v1alpha.NewServerReflectionClient(conn), nil
}

// Close tears down the underlying channel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
