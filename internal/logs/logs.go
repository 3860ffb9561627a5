// Package logs sets up the per-subsystem loggers used throughout the
// dispatcher and feeder binaries, following the same subsystem-tagging
// convention the daemon has always used (one short tag per component,
// all backed by a single writer).
package logs

import (
	"os"

	"github.com/btcsuite/btclog"
)

var backend = btclog.NewBackend(os.Stdout)

// NewSubsystem returns a leveled logger tagged with the given subsystem
// name, e.g. "SPVR" for the supervisor or "BCST" for the broadcaster.
func NewSubsystem(tag string) btclog.Logger {
	logger := backend.Logger(tag)
	logger.SetLevel(btclog.LevelInfo)
	return logger
}

// SetLevel applies level to the one logger passed in; an unrecognised level
// string leaves it unchanged. The binaries call this once per subsystem
// logger at startup with the value of their --log-level flag.
func SetLevel(logger btclog.Logger, level string) {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return
	}
	logger.SetLevel(lvl)
}

var (
	Supervisor      = NewSubsystem("SPVR")
	Broadcast       = NewSubsystem("BCST")
	NodeClient      = NewSubsystem("NODE")
	Signer          = NewSubsystem("SIGN")
	BalanceReporter = NewSubsystem("BALN")
	ProtocolWatcher = NewSubsystem("PROT")
	Alarms          = NewSubsystem("ALRM")
	PriceFeed       = NewSubsystem("FEED")
)
