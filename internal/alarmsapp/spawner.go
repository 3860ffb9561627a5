// Package alarmsapp wires the alarms-dispatcher binary's application-defined
// tasks: one time-alarm and one price-alarm Dispatcher per registered
// protocol, implementing task.Spawner per spec.md §9's "per-application id
// set" contract.
package alarmsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/alarms"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/config"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
)

// ContractQuerier is the subset of wasm query functionality the spawner
// needs to resolve a protocol name to its contract address.
type ContractQuerier interface {
	SmartQuery(ctx context.Context, contract string, payload []byte) (json.RawMessage, error)
}

// Spawner implements task.Spawner for the alarms-dispatcher binary.
type Spawner struct {
	admin    string
	querier  ContractQuerier
	sender   sdk.AccAddress
	worker   alarms.Submitter
	timeCfg  config.AlarmsConfig
	priceCfg config.AlarmsConfig
	idle     time.Duration
}

// New constructs a Spawner. admin is the admin contract address used to
// resolve a protocol name to its own contract address.
func New(admin string, querier ContractQuerier, sender sdk.AccAddress, worker alarms.Submitter, timeCfg, priceCfg config.AlarmsConfig, idle time.Duration) *Spawner {
	return &Spawner{
		admin:    admin,
		querier:  querier,
		sender:   sender,
		worker:   worker,
		timeCfg:  timeCfg,
		priceCfg: priceCfg,
		idle:     idle,
	}
}

// ProtocolTaskSetIDs implements task.Spawner: every protocol runs both a
// time-alarm and a price-alarm dispatcher.
func (s *Spawner) ProtocolTaskSetIDs(name string) []task.AppID {
	return []task.AppID{
		alarms.ID{ProtocolName: name, Kind: alarms.KindTime},
		alarms.ID{ProtocolName: name, Kind: alarms.KindPrice},
	}
}

// Spawn implements task.Spawner.
func (s *Spawner) Spawn(ctx context.Context, id task.Id, _ task.RunMode) (task.Runnable, error) {
	alarmID, ok := id.AppID.(alarms.ID)
	if !ok {
		return nil, fmt.Errorf("alarmsapp: unexpected app id %T", id.AppID)
	}

	contract, err := s.resolveProtocolContract(ctx, alarmID.ProtocolName)
	if err != nil {
		return nil, err
	}

	cfg := s.timeCfg
	if alarmID.Kind == alarms.KindPrice {
		cfg = s.priceCfg
	}

	return alarms.New(alarmID, s.sender, contract, s.querier, s.worker, cfg, s.idle), nil
}

func (s *Spawner) resolveProtocolContract(ctx context.Context, name string) (string, error) {
	raw, err := s.querier.SmartQuery(ctx, s.admin, chain.ProtocolQuery(name))
	if err != nil {
		return "", fmt.Errorf("alarmsapp: query protocol %s: %w", name, err)
	}
	var contract string
	if err := json.Unmarshal(raw, &contract); err != nil {
		return "", fmt.Errorf("alarmsapp: decode protocol %s contract address: %w", name, err)
	}
	return contract, nil
}
