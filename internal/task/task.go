package task

import "context"

// RunMode tells a task whether it is starting for the first time or being
// recreated after a restart, mirroring the New/Restart distinction every
// application-defined worker's contract exposes.
type RunMode uint8

const (
	New RunMode = iota
	Restart
)

// Runnable is implemented by every task class: the three built-ins and any
// application-defined worker. Run blocks until ctx is cancelled or the task
// fails, and there is no "successful completion" (these are long-running
// services): on cancellation the implementations here return ctx.Err().
type Runnable interface {
	Run(ctx context.Context, mode RunMode) error
}

// Spawner constructs a Runnable for a given Id. Application-defined ids
// route through the caller-supplied factory; built-in ids are constructed
// by the supervisor itself and never reach a Spawner.
type Spawner interface {
	// Spawn builds the Runnable for id. It may itself fail (e.g. a
	// contract query needed to build the worker didn't go through); such
	// failures are non-fatal and feed the restart policy the same as a
	// Run error would.
	Spawn(ctx context.Context, id Id, mode RunMode) (Runnable, error)

	// ProtocolTaskSetIDs enumerates the application ids that should be
	// started when protocol name is added.
	ProtocolTaskSetIDs(name string) []AppID
}

// Result is what a finished task reports on the supervisor's task-result
// channel.
type Result struct {
	ID  Id
	Err error
}

// ProtocolCommandKind distinguishes the two protocol-watcher commands.
type ProtocolCommandKind uint8

const (
	ProtocolAdded ProtocolCommandKind = iota
	ProtocolRemoved
)

// ProtocolCommand is emitted by the protocol watcher and consumed by the
// supervisor.
type ProtocolCommand struct {
	Kind ProtocolCommandKind
	Name string
}
