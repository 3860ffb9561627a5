// Package config loads the service's configuration from environment
// variables, per spec.md §6. Loading and validation live here; deriving a
// signing key from the configured mnemonic is an external collaborator's
// job (see internal/signer.DeriveKey's doc comment) and is out of scope.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Ratio is a numerator/denominator pair, used for the gas/fee configuration
// matrix which is specified as separate NUMERATOR/DENOMINATOR env vars
// rather than a decimal.
type Ratio struct {
	Numerator, Denominator uint64
}

// GasFeeConfig mirrors the GAS_FEE_CONF__* env var matrix.
type GasFeeConfig struct {
	GasAdjustment Ratio
	GasPrice      Ratio
	FeeAdjustment Ratio
}

// DexConfig is one entry of the per-DEX <NETWORK>__NODE_GRPC map.
type DexConfig struct {
	Network  string
	NodeGRPC string
}

// AlarmsConfig mirrors the {TIME,PRICE}_ALARMS_* env vars.
type AlarmsConfig struct {
	GasLimitPerAlarm uint64
	MaxAlarmsGroup   uint32
}

// Config is the fully parsed environment for either binary. Both binaries
// share this type; a given binary only reads the fields it needs.
type Config struct {
	NodeGRPCURI           string
	SigningKeyMnemonic    string
	FeeTokenDenom         string
	AdminContractAddress  string
	IdleDuration          time.Duration
	TimeoutDuration       time.Duration
	BalanceReporterIdle   time.Duration
	BroadcastDelay        time.Duration
	BroadcastRetryDelay   time.Duration
	GasFee                GasFeeConfig
	Dexes                 []DexConfig
	TimeAlarms            AlarmsConfig
	PriceAlarms           AlarmsConfig
}

// Load reads and validates every variable spec.md §6 enumerates. dexNetworks
// names which <NETWORK>__NODE_GRPC variables to look for; the set of
// networks a given deployment feeds is itself deployment configuration,
// passed in by the caller (cmd/market-data-feeder) rather than discovered.
func Load(dexNetworks []string) (Config, error) {
	var (
		cfg Config
		err error
	)

	cfg.NodeGRPCURI, err = requireString("NODE_GRPC_URI")
	if err != nil {
		return Config{}, err
	}
	cfg.SigningKeyMnemonic, err = requireString("SIGNING_KEY_MNEMONIC")
	if err != nil {
		return Config{}, err
	}
	cfg.FeeTokenDenom, err = requireString("FEE_TOKEN_DENOM")
	if err != nil {
		return Config{}, err
	}
	cfg.AdminContractAddress, err = requireString("ADMIN_CONTRACT_ADDRESS")
	if err != nil {
		return Config{}, err
	}

	if cfg.IdleDuration, err = requireSeconds("IDLE_DURATION_SECONDS"); err != nil {
		return Config{}, err
	}
	if cfg.TimeoutDuration, err = requireSeconds("TIMEOUT_DURATION_SECONDS"); err != nil {
		return Config{}, err
	}
	if cfg.BalanceReporterIdle, err = requireSeconds("BALANCE_REPORTER_IDLE_DURATION_SECONDS"); err != nil {
		return Config{}, err
	}
	if cfg.BroadcastDelay, err = requireSeconds("BROADCAST_DELAY_DURATION_SECONDS"); err != nil {
		return Config{}, err
	}
	if cfg.BroadcastRetryDelay, err = requireMillis("BROADCAST_RETRY_DELAY_DURATION_MILLISECONDS"); err != nil {
		return Config{}, err
	}

	if cfg.GasFee, err = loadGasFeeConfig(); err != nil {
		return Config{}, err
	}

	for _, network := range dexNetworks {
		grpcURI, err := requireString(network + "__NODE_GRPC")
		if err != nil {
			return Config{}, err
		}
		cfg.Dexes = append(cfg.Dexes, DexConfig{Network: network, NodeGRPC: grpcURI})
	}

	if cfg.TimeAlarms, err = loadAlarmsConfig("TIME"); err != nil {
		return Config{}, err
	}
	if cfg.PriceAlarms, err = loadAlarmsConfig("PRICE"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadGasFeeConfig() (GasFeeConfig, error) {
	var (
		cfg GasFeeConfig
		err error
	)
	if cfg.GasAdjustment, err = requireRatio("GAS_FEE_CONF__GAS_ADJUSTMENT"); err != nil {
		return GasFeeConfig{}, err
	}
	if cfg.GasPrice, err = requireRatio("GAS_FEE_CONF__GAS_PRICE"); err != nil {
		return GasFeeConfig{}, err
	}
	if cfg.FeeAdjustment, err = requireRatio("GAS_FEE_CONF__FEE_ADJUSTMENT"); err != nil {
		return GasFeeConfig{}, err
	}
	return cfg, nil
}

func loadAlarmsConfig(prefix string) (AlarmsConfig, error) {
	var (
		cfg AlarmsConfig
		err error
	)
	if cfg.GasLimitPerAlarm, err = requireUint64(prefix + "_ALARMS_GAS_LIMIT_PER_ALARM"); err != nil {
		return AlarmsConfig{}, err
	}
	group, err := requireUint64(prefix + "_ALARMS_MAX_ALARMS_GROUP")
	if err != nil {
		return AlarmsConfig{}, err
	}
	cfg.MaxAlarmsGroup = uint32(group)
	return cfg, nil
}

func requireRatio(prefix string) (Ratio, error) {
	num, err := requireUint64(prefix + "_NUMERATOR")
	if err != nil {
		return Ratio{}, err
	}
	denom, err := requireUint64(prefix + "_DENOMINATOR")
	if err != nil {
		return Ratio{}, err
	}
	if denom == 0 {
		return Ratio{}, fmt.Errorf("config: %s_DENOMINATOR must be non-zero", prefix)
	}
	return Ratio{Numerator: num, Denominator: denom}, nil
}

func requireString(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("config: missing required env var %s", key)
	}
	return v, nil
}

func requireUint64(key string) (uint64, error) {
	raw, err := requireString(key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an unsigned integer: %w", key, err)
	}
	return v, nil
}

func requireSeconds(key string) (time.Duration, error) {
	v, err := requireUint64(key)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}

func requireMillis(key string) (time.Duration, error) {
	v, err := requireUint64(key)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Millisecond, nil
}
