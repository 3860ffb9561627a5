// Command market-data-feeder runs the DEX price-feeding service: one
// Feeder per (protocol, DEX network) pair, driven by the shared
// Supervisor/Broadcast Worker core.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	flags "github.com/jessevdk/go-flags"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/balancereporter"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/broadcast"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/config"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/logs"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/metrics"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/nodeclient"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/pricefeedapp"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/protocolwatcher"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/semver"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/signer"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/supervisor"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"

	"github.com/lightningnetwork/lnd/ticker"
)

var binaryVersion = semver.Version{Major: 1, Minor: 0, Patch: 0}

type cliOptions struct {
	LogLevel    string `long:"log-level" description:"Logging level for all subsystems" default:"info"`
	MetricsAddr string `long:"metrics-addr" description:"Address to serve Prometheus metrics on" default:":9102"`
	DexNetworks string `long:"dex-networks" description:"Comma-separated list of DEX network names; each NAME's node is read from NAME__NODE_GRPC" required:"true"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "market-data-feeder:", err)
		os.Exit(1)
	}
}

func run() error {
	var opts cliOptions
	if _, err := flags.Parse(&opts); err != nil {
		return err
	}

	logs.SetLevel(logs.Supervisor, opts.LogLevel)
	logs.SetLevel(logs.Broadcast, opts.LogLevel)
	logs.SetLevel(logs.NodeClient, opts.LogLevel)
	logs.SetLevel(logs.Signer, opts.LogLevel)
	logs.SetLevel(logs.BalanceReporter, opts.LogLevel)
	logs.SetLevel(logs.ProtocolWatcher, opts.LogLevel)
	logs.SetLevel(logs.PriceFeed, opts.LogLevel)

	networks := splitNetworks(opts.DexNetworks)
	cfg, err := config.Load(networks)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	metricsSrv := metrics.Serve(opts.MetricsAddr)
	defer metricsSrv.Close()

	node, err := nodeclient.Dial(cfg.NodeGRPCURI, grpc.WithInsecure())
	if err != nil {
		return fmt.Errorf("dial node: %w", err)
	}
	defer node.Close()

	monitor := node.StartHealthCheck(cfg.IdleDuration, cfg.TimeoutDuration)
	defer monitor.Stop()

	privKey, err := signer.DeriveKey(cfg.SigningKeyMnemonic, "")
	if err != nil {
		return fmt.Errorf("derive signing key: %w", err)
	}

	chainID, err := signer.FetchChainID(context.Background(), node)
	if err != nil {
		return fmt.Errorf("fetch chain id: %w", err)
	}

	bootstrapAddr := deriveBootstrapAddress(privKey)
	accountNumber, sequence, err := signer.FetchAccount(context.Background(), node, bootstrapAddr)
	if err != nil {
		return fmt.Errorf("fetch initial account state: %w", err)
	}

	signerState, err := signer.New(privKey, chainID, cfg.FeeTokenDenom, accountNumber, sequence, cfg.GasFee)
	if err != nil {
		return fmt.Errorf("construct signer: %w", err)
	}

	broadcastWorker := broadcast.New(broadcast.Config{
		Node:                 node,
		Signer:               signerState,
		BroadcastDelay:       cfg.BroadcastDelay,
		RetryDelay:           cfg.BroadcastRetryDelay,
		SequenceRefetchEvery: 10,
	})

	dial := newDexDialer(cfg.Dexes)
	defer dial.closeAll()

	protoCh := make(chan task.ProtocolCommand, 32)
	spawner := pricefeedapp.New(
		cfg.AdminContractAddress,
		node,
		signerState.Address(),
		broadcastWorker,
		cfg.Dexes,
		dial,
		cfg.IdleDuration,
		cfg.TimeoutDuration,
		cfg.IdleDuration,
		func(d time.Duration) ticker.Ticker { return ticker.New(d) },
	)

	builtins := supervisor.BuiltinFactory{
		BalanceReporter: func(ctx context.Context, mode task.RunMode) (task.Runnable, error) {
			return balancereporter.New(node, signerState, ticker.New(cfg.BalanceReporterIdle)), nil
		},
		Broadcast: func(ctx context.Context, mode task.RunMode) (task.Runnable, error) {
			return broadcastWorker, nil
		},
		ProtocolWatcher: func(ctx context.Context, mode task.RunMode) (task.Runnable, error) {
			return protocolwatcher.New(cfg.AdminContractAddress, node, ticker.New(cfg.IdleDuration), binaryVersion, protoCh), nil
		},
	}

	sup := supervisor.New(spawner, builtins, protoCh)
	if err := sup.Start(); err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case sig := <-sigCh:
		logs.Supervisor.Infof("received %s, shutting down", sig)
		return sup.Stop()
	case err := <-waitCh(sup):
		return err
	}
}

func waitCh(sup *supervisor.Supervisor) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- sup.Wait() }()
	return ch
}

func splitNetworks(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func deriveBootstrapAddress(privKeyBytes []byte) string {
	tmp, err := signer.New(privKeyBytes, "", "", 0, 0, config.GasFeeConfig{})
	if err != nil {
		return ""
	}
	return tmp.Address().String()
}

// dexDialer lazily dials and caches one *nodeclient.Client per configured
// DEX network, satisfying pricefeedapp.DexDialer.
type dexDialer struct {
	mu      sync.Mutex
	clients map[string]*nodeclient.Client
}

func newDexDialer(dexes []config.DexConfig) *dexDialer {
	return &dexDialer{clients: make(map[string]*nodeclient.Client, len(dexes))}
}

func (d *dexDialer) Dial(cfg config.DexConfig) (pricefeedapp.DexNode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[cfg.Network]; ok {
		return c, nil
	}
	c, err := nodeclient.Dial(cfg.NodeGRPC, grpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("dial dex network %s: %w", cfg.Network, err)
	}
	d.clients[cfg.Network] = c
	return c, nil
}

func (d *dexDialer) closeAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.clients {
		_ = c.Close()
	}
}
