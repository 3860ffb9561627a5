package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
)

type fakeAppID string

func (f fakeAppID) Less(other task.AppID) bool { return f < other.(fakeAppID) }
func (f fakeAppID) String() string             { return string(f) }
func (f fakeAppID) Protocol() (string, bool)   { return "", false }

// TestRestartOrderIsDeadlineNotInsertionOrder covers spec.md §8 property 4:
// given entries (t1, A), (t2, B) with t1 < t2, A comes due first even when
// B was deferred with an earlier wall-clock Defer call.
func TestRestartOrderIsDeadlineNotInsertionOrder(t *testing.T) {
	q := NewRestartQueue()

	a := task.Application(fakeAppID("A"))
	b := task.Application(fakeAppID("B"))

	base := time.Now()
	t1 := base.Add(2 * time.Second)
	t2 := base.Add(5 * time.Second)

	// B deferred first (earlier Defer call) but with the later deadline.
	q.Defer(b, t2)
	q.Defer(a, t1)

	id, deadline, ok := q.Peek()
	require.True(t, ok)
	require.True(t, id.Equal(a))
	require.Equal(t, t1, deadline)

	due := q.PopDue(t1)
	require.Len(t, due, 1)
	require.True(t, due[0].Equal(a))

	due = q.PopDue(t2)
	require.Len(t, due, 1)
	require.True(t, due[0].Equal(b))
}

func TestRestartQueueDeferReplacesExistingEntry(t *testing.T) {
	q := NewRestartQueue()
	id := task.BalanceReporter

	now := time.Now()
	q.Defer(id, now.Add(10*time.Second))
	q.Defer(id, now.Add(time.Second))

	require.Equal(t, 1, q.Len())
	_, deadline, ok := q.Peek()
	require.True(t, ok)
	require.Equal(t, now.Add(time.Second), deadline)
}

func TestRestartQueueRemove(t *testing.T) {
	q := NewRestartQueue()
	id := task.ProtocolWatcher
	q.Defer(id, time.Now().Add(time.Second))
	q.Remove(id)
	require.Equal(t, 0, q.Len())
}
