// Package task defines the task identity and lifecycle handle types shared
// by the supervisor and every worker it manages.
package task

import "fmt"

// Class tags which of the four task kinds an Id refers to.
type Class uint8

const (
	ClassBalanceReporter Class = iota
	ClassBroadcast
	ClassProtocolWatcher
	ClassApplicationDefined
)

func (c Class) String() string {
	switch c {
	case ClassBalanceReporter:
		return "balance-reporter"
	case ClassBroadcast:
		return "broadcast"
	case ClassProtocolWatcher:
		return "protocol-watcher"
	case ClassApplicationDefined:
		return "application-defined"
	default:
		return "unknown"
	}
}

// Id is a tagged union identifying one task: one of the three built-ins, or
// an application-defined id carrying the application's own ordered
// identifier plus an optional protocol name.
type Id struct {
	Class Class

	// AppID is only meaningful when Class == ClassApplicationDefined. It
	// must support a total order (see Less) so the restart queue and task
	// set can use it as a stable map/slice key.
	AppID AppID
}

// AppID is the interface application-defined ids must satisfy: an ordering
// for deterministic bookkeeping, a display form for logs, and an optional
// protocol name used by protocol add/remove.
type AppID interface {
	// Less reports whether id orders before other. Implementations only
	// need to compare within their own concrete type.
	Less(other AppID) bool

	// String returns a stable human-readable identifier for logs.
	String() string

	// Protocol returns the protocol name this id belongs to, and true,
	// or ("", false) if the id is not tied to any protocol, so that no
	// protocol removal ever tears it down.
	Protocol() (string, bool)
}

// BalanceReporter, Broadcast and ProtocolWatcher are the three built-in ids.
var (
	BalanceReporter = Id{Class: ClassBalanceReporter}
	Broadcast       = Id{Class: ClassBroadcast}
	ProtocolWatcher = Id{Class: ClassProtocolWatcher}
)

// Application wraps an application-defined AppID into a task Id.
func Application(id AppID) Id {
	return Id{Class: ClassApplicationDefined, AppID: id}
}

// IsBuiltIn reports whether id is one of the three built-in task classes.
func (id Id) IsBuiltIn() bool {
	return id.Class != ClassApplicationDefined
}

// Protocol returns the protocol name associated with id, if any. Built-in
// tasks never carry a protocol.
func (id Id) Protocol() (string, bool) {
	if id.Class != ClassApplicationDefined || id.AppID == nil {
		return "", false
	}
	return id.AppID.Protocol()
}

// String renders id for logs.
func (id Id) String() string {
	if id.Class != ClassApplicationDefined {
		return id.Class.String()
	}
	if id.AppID == nil {
		return "application-defined(?)"
	}
	return fmt.Sprintf("application-defined(%s)", id.AppID.String())
}

// Equal reports whether id and other refer to the same task.
func (id Id) Equal(other Id) bool {
	if id.Class != other.Class {
		return false
	}
	if id.Class != ClassApplicationDefined {
		return true
	}
	if id.AppID == nil || other.AppID == nil {
		return id.AppID == other.AppID
	}
	return !id.AppID.Less(other.AppID) && !other.AppID.Less(id.AppID)
}

// Less gives Id a total order: built-ins sort before application-defined
// ids by class, then application-defined ids defer to AppID.Less.
func (id Id) Less(other Id) bool {
	if id.Class != other.Class {
		return id.Class < other.Class
	}
	if id.Class != ClassApplicationDefined {
		return false
	}
	if id.AppID == nil || other.AppID == nil {
		return false
	}
	return id.AppID.Less(other.AppID)
}

// RestartDelaySeconds returns the deferred-restart delay for this task's
// class: built-ins restart quickly, application-defined workers back off
// much further since they tend to be rate-limited by contract state.
func (id Id) RestartDelaySeconds() int {
	if id.IsBuiltIn() {
		return 10
	}
	return 180
}
