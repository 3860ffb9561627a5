// Package protocolwatcher implements the Protocol Watcher built-in task:
// it polls the admin contract's {"protocols":{}} query on every idle tick,
// diffs the returned set against what it last saw, and emits an
// add/remove task.ProtocolCommand for every change. It also checks each
// newly-seen protocol's package release against the binary's own expected
// version, logging a compatibility warning without ever gating the
// add/remove decision itself.
package protocolwatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lightningnetwork/lnd/ticker"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/logs"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/semver"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
)

// ContractQuerier is the subset of wasm query functionality the watcher
// needs; satisfied directly by *nodeclient.Client's SmartQuery method, and
// trivially fakeable in tests.
type ContractQuerier interface {
	SmartQuery(ctx context.Context, contract string, payload []byte) (json.RawMessage, error)
}

// Watcher is the Protocol Watcher task.
type Watcher struct {
	admin            string
	querier          ContractQuerier
	idle             ticker.Ticker
	expectedVersion  semver.Version
	commandCh        chan<- task.ProtocolCommand
	known            map[string]struct{}
}

// New constructs a Watcher. commandCh is the channel the supervisor reads
// task.ProtocolCommand values from; idle fires once per poll interval.
func New(admin string, querier ContractQuerier, idle ticker.Ticker, expectedVersion semver.Version, commandCh chan<- task.ProtocolCommand) *Watcher {
	return &Watcher{
		admin:           admin,
		querier:         querier,
		idle:            idle,
		expectedVersion: expectedVersion,
		commandCh:       commandCh,
		known:           make(map[string]struct{}),
	}
}

// Run implements task.Runnable.
func (w *Watcher) Run(ctx context.Context, mode task.RunMode) error {
	logs.ProtocolWatcher.Infof("protocol watcher starting (mode=%v)", mode)

	w.idle.Resume()
	defer w.idle.Stop()

	for {
		select {
		case <-w.idle.Ticks():
			if err := w.poll(ctx); err != nil {
				logs.ProtocolWatcher.Errorf("poll failed: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) poll(ctx context.Context) error {
	raw, err := w.querier.SmartQuery(ctx, w.admin, chain.ProtocolsQuery())
	if err != nil {
		return fmt.Errorf("protocolwatcher: query protocols: %w", err)
	}

	var current []string
	if err := json.Unmarshal(raw, &current); err != nil {
		return fmt.Errorf("protocolwatcher: decode protocols: %w", err)
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, name := range current {
		currentSet[name] = struct{}{}
		if _, seen := w.known[name]; !seen {
			w.onAdded(ctx, name)
		}
	}
	for name := range w.known {
		if _, still := currentSet[name]; !still {
			w.onRemoved(name)
		}
	}
	w.known = currentSet
	return nil
}

func (w *Watcher) onAdded(ctx context.Context, name string) {
	logs.ProtocolWatcher.Infof("protocol %s added", name)
	w.checkCompatibility(ctx, name)
	w.commandCh <- task.ProtocolCommand{Kind: task.ProtocolAdded, Name: name}
}

func (w *Watcher) onRemoved(name string) {
	logs.ProtocolWatcher.Infof("protocol %s removed", name)
	w.commandCh <- task.ProtocolCommand{Kind: task.ProtocolRemoved, Name: name}
}

// checkCompatibility logs, but never acts on, a semver mismatch between
// this protocol's reported package release and the binary's own expected
// version — purely informational, per spec.md §8 property 5.
func (w *Watcher) checkCompatibility(ctx context.Context, name string) {
	raw, err := w.querier.SmartQuery(ctx, w.admin, chain.ProtocolQuery(name))
	if err != nil {
		logs.ProtocolWatcher.Warnf("protocol %s: query protocol contract: %v", name, err)
		return
	}
	var contractAddr string
	if err := json.Unmarshal(raw, &contractAddr); err != nil {
		logs.ProtocolWatcher.Warnf("protocol %s: decode protocol contract address: %v", name, err)
		return
	}

	raw, err = w.querier.SmartQuery(ctx, contractAddr, chain.ProtocolPackageReleaseQuery())
	if err != nil {
		logs.ProtocolWatcher.Warnf("protocol %s: query package release: %v", name, err)
		return
	}
	var release chain.PackageRelease
	if err := json.Unmarshal(raw, &release); err != nil {
		logs.ProtocolWatcher.Warnf("protocol %s: decode package release: %v", name, err)
		return
	}

	actual, err := semver.Parse(release.Version)
	if err != nil {
		logs.ProtocolWatcher.Warnf("protocol %s: parse package release version %q: %v", name, release.Version, err)
		return
	}
	if !semver.Compatible(w.expectedVersion, actual) {
		logs.ProtocolWatcher.Warnf("protocol %s: package release %s is incompatible with expected %s",
			name, release.Version, w.expectedVersion)
	}
}
