// Command alarms-dispatcher runs the time- and price-alarm dispatch
// service: one Dispatcher per (protocol, alarm kind) pair, driven by the
// shared Supervisor/Broadcast Worker core.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	flags "github.com/jessevdk/go-flags"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/alarmsapp"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/balancereporter"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/broadcast"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/config"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/logs"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/metrics"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/nodeclient"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/protocolwatcher"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/semver"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/signer"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/supervisor"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"

	"github.com/lightningnetwork/lnd/ticker"
)

// binaryVersion is the package-release compatibility baseline the protocol
// watcher compares every registered protocol's on-chain version against.
var binaryVersion = semver.Version{Major: 1, Minor: 0, Patch: 0}

type cliOptions struct {
	LogLevel    string `long:"log-level" description:"Logging level for all subsystems" default:"info"`
	MetricsAddr string `long:"metrics-addr" description:"Address to serve Prometheus metrics on" default:":9101"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "alarms-dispatcher:", err)
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
	logs.SetLevel(logs.Alarms, opts.LogLevel)

	cfg, err := config.Load(nil)
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

	protoCh := make(chan task.ProtocolCommand, 32)
	spawner := alarmsapp.New(
		cfg.AdminContractAddress,
		node,
		signerState.Address(),
		broadcastWorker,
		cfg.TimeAlarms,
		cfg.PriceAlarms,
		cfg.IdleDuration,
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

// deriveBootstrapAddress derives the bech32 address from privKey the same
// way signer.New does internally, so the initial account lookup can happen
// before the signer.State exists.
func deriveBootstrapAddress(privKeyBytes []byte) string {
	tmp, err := signer.New(privKeyBytes, "", "", 0, 0, config.GasFeeConfig{})
	if err != nil {
		return ""
	}
	return tmp.Address().String()
}
