package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
)

type runnableFunc func(ctx context.Context, mode task.RunMode) error

func (f runnableFunc) Run(ctx context.Context, mode task.RunMode) error { return f(ctx, mode) }

func blockingRunnable(ctx context.Context, mode task.RunMode) error {
	<-ctx.Done()
	return ctx.Err()
}

func noopBuiltins() BuiltinFactory {
	run := func(ctx context.Context, mode task.RunMode) (task.Runnable, error) {
		return runnableFunc(blockingRunnable), nil
	}
	return BuiltinFactory{BalanceReporter: run, Broadcast: run, ProtocolWatcher: run}
}

// failingSpawner always fails id's task immediately; ProtocolTaskSetIDs
// returns the protocol-tagged ids handed to it at construction.
type failingSpawner struct {
	calls   int32
	perProc map[string][]task.AppID
}

func (f *failingSpawner) Spawn(ctx context.Context, id task.Id, mode task.RunMode) (task.Runnable, error) {
	atomic.AddInt32(&f.calls, 1)
	return runnableFunc(func(ctx context.Context, mode task.RunMode) error {
		return errors.New("boom")
	}), nil
}

func (f *failingSpawner) ProtocolTaskSetIDs(name string) []task.AppID {
	return f.perProc[name]
}

// TestRetryCapThenDeferral covers spec.md §8 property 3: a task that fails
// 3 consecutive times is removed from the live-state map and scheduled
// exactly once on the restart queue with the application-defined 180s
// delay.
func TestRetryCapThenDeferral(t *testing.T) {
	spawner := &failingSpawner{}
	sup := New(spawner, noopBuiltins(), make(chan task.ProtocolCommand, 1))
	require.NoError(t, sup.Start())
	defer sup.Stop()

	id := fakeAppID("alarm-dispatcher")
	sup.spawnApplication(id, task.New)

	require.Eventually(t, func() bool {
		sup.mu.Lock()
		defer sup.mu.Unlock()
		return sup.restart.Len() == 1
	}, 2*time.Second, 5*time.Millisecond, "task never reached the restart queue")

	require.Equal(t, int32(3), atomic.LoadInt32(&spawner.calls))

	sup.mu.Lock()
	_, tracked := sup.states[task.Application(id)]
	restartID, deadline, ok := sup.restart.Peek()
	sup.mu.Unlock()

	require.False(t, tracked, "task state should be removed once deferred")
	require.True(t, ok)
	require.True(t, restartID.Equal(task.Application(id)))
	require.WithinDuration(t, time.Now().Add(180*time.Second), deadline, 2*time.Second)
}

// TestProtocolAddRemoveSymmetry covers spec.md §8 property 5: after
// ProtocolAdded(p) then ProtocolRemoved(p) with no intervening failures, no
// task state whose id's protocol is p survives.
func TestProtocolAddRemoveSymmetry(t *testing.T) {
	protoID := protocolAppID{name: "proto", id: "feeder"}
	otherID := fakeAppID("no-protocol-task")

	spawner := &failingSpawner{perProc: map[string][]task.AppID{"proto": {protoID}}}
	blockingSpawner := &blockingSpawnerWrapper{inner: spawner}

	sup := New(blockingSpawner, noopBuiltins(), make(chan task.ProtocolCommand, 1))
	require.NoError(t, sup.Start())
	defer sup.Stop()

	sup.spawnApplication(otherID, task.New)
	sup.handleProtocolCommand(task.ProtocolCommand{Kind: task.ProtocolAdded, Name: "proto"})

	require.Eventually(t, func() bool {
		sup.mu.Lock()
		defer sup.mu.Unlock()
		_, ok := sup.states[task.Application(protoID)]
		return ok
	}, time.Second, 5*time.Millisecond)

	sup.handleProtocolCommand(task.ProtocolCommand{Kind: task.ProtocolRemoved, Name: "proto"})

	sup.mu.Lock()
	_, protoStillThere := sup.states[task.Application(protoID)]
	_, otherStillThere := sup.states[task.Application(otherID)]
	sup.mu.Unlock()

	require.False(t, protoStillThere, "task belonging to the removed protocol must be gone")
	require.True(t, otherStillThere, "task with no protocol must survive an unrelated removal")
}

// blockingSpawnerWrapper spawns protocol-tagged tasks with a Run that
// blocks until cancelled, so the add/remove test only exercises protocol
// bookkeeping, not the restart policy.
type blockingSpawnerWrapper struct {
	inner *failingSpawner
}

func (b *blockingSpawnerWrapper) Spawn(ctx context.Context, id task.Id, mode task.RunMode) (task.Runnable, error) {
	return runnableFunc(blockingRunnable), nil
}

func (b *blockingSpawnerWrapper) ProtocolTaskSetIDs(name string) []task.AppID {
	return b.inner.ProtocolTaskSetIDs(name)
}

type protocolAppID struct {
	name string
	id   string
}

func (p protocolAppID) Less(other task.AppID) bool {
	o := other.(protocolAppID)
	if p.name != o.name {
		return p.name < o.name
	}
	return p.id < o.id
}
func (p protocolAppID) String() string           { return p.name + "/" + p.id }
func (p protocolAppID) Protocol() (string, bool) { return p.name, true }
