// Package chainerr classifies the error kinds spec.md §7 enumerates, so
// callers (mainly internal/supervisor) can decide whether a failure is
// fatal, worth a restart, or silently ignorable.
package chainerr

import "errors"

// Kind classifies an error for the purposes of the restart/fatal policy.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindConnectivity
	KindContractQuery
	KindSimulation
	KindExecution
	KindExpiration
	KindChannelClosed
)

// Error wraps an underlying cause with a Kind.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindConnectivity:
		return "connectivity error"
	case KindContractQuery:
		return "contract query failure"
	case KindSimulation:
		return "simulation failure"
	case KindExecution:
		return "execution failure"
	case KindExpiration:
		return "expired"
	case KindChannelClosed:
		return "channel closed"
	default:
		return "unknown error"
	}
}

// Wrap tags cause with kind. A nil cause returns nil.
func Wrap(kind Kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err (or something it wraps) is a chainerr.Error of
// kind k.
func Is(err error, k Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == k
	}
	return false
}

// ErrChannelClosed is returned by consumers of a system-wide channel
// (task-result, protocol-command) when the channel is closed out from
// under them — always fatal per spec.md §7.
var ErrChannelClosed = Wrap(KindChannelClosed, errors.New("channel closed"))
