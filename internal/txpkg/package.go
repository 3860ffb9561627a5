// Package txpkg defines the in-flight transaction descriptor producers
// hand to the broadcast worker, and the one-shot response it hands back.
package txpkg

import (
	"context"
	"fmt"
	"time"
)

// Expiration is a variant: either a package never expires, or it expires
// at a fixed instant past which the broadcaster abandons it.
type Expiration struct {
	deadline time.Time
	set      bool
}

// NoExpiration returns an Expiration that never fires.
func NoExpiration() Expiration { return Expiration{} }

// Deadline returns an Expiration that fires at t.
func Deadline(t time.Time) Expiration { return Expiration{deadline: t, set: true} }

// Expired reports whether the expiration has already passed as of now.
func (e Expiration) Expired(now time.Time) bool {
	return e.set && !now.Before(e.deadline)
}

// Context returns a derived context that is cancelled at the deadline, and
// a cancel func the caller must always invoke. If e never expires, ctx is
// parent wrapped by context.WithCancel, with no deadline.
func (e Expiration) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if !e.set {
		return context.WithCancel(parent)
	}
	return context.WithDeadline(parent, e.deadline)
}

// Response is what the broadcaster sends back on a Package's feedback
// channel: the on-chain result, whose Code is OK for a committed tx or the
// rejection code (with Log) otherwise. Expired packages are dropped silently
// and never get a Response at all, see broadcast.Worker.
type Response struct {
	TxHash string
	Code   uint32
	Log    string
	// Data is the raw tx response data field (hex-uppercase bytes),
	// undecoded; callers use internal/chain to pull the application
	// payload out of it.
	Data string
	// GasUsed is populated from the committed tx's result so callers can
	// feed it back into their fallback-gas adjustment; it is zero when the
	// tx was rejected before commit.
	GasUsed uint64
}

// Package is the descriptor a producer task builds and hands to the
// broadcast worker.
type Package struct {
	// TxBody is the opaque serialized transaction body (one or more
	// contract-execute messages, empty memo, timeout height 0, no
	// extension options). Built by internal/chain.
	TxBody []byte

	// Source is a human-readable producer identifier, used only for logs.
	Source string

	// HardGasLimit is the upper bound the signer must not exceed after
	// gas adjustment. Must be > 0.
	HardGasLimit uint64

	// FallbackGas is used when simulation fails. Clamped to HardGasLimit
	// by New.
	FallbackGas uint64

	// Expiration bounds how long the broadcaster will keep retrying this
	// package.
	Expiration Expiration

	// FeedbackSender is the single-use channel the broadcaster publishes
	// the on-chain response (or drops silently) on. Exactly one send, or
	// zero if the package expired or all producer receivers went away.
	FeedbackSender chan<- Response
}

// New validates and constructs a Package, clamping FallbackGas to
// hardGasLimit.
func New(source string, txBody []byte, hardGasLimit, fallbackGas uint64, exp Expiration) (Package, <-chan Response, error) {
	if hardGasLimit == 0 {
		return Package{}, nil, fmt.Errorf("txpkg: hard gas limit must be > 0")
	}
	if fallbackGas > hardGasLimit {
		fallbackGas = hardGasLimit
	}

	feedback := make(chan Response, 1)
	return Package{
		TxBody:         txBody,
		Source:         source,
		HardGasLimit:   hardGasLimit,
		FallbackGas:    fallbackGas,
		Expiration:     exp,
		FeedbackSender: feedback,
	}, feedback, nil
}
