package supervisor

import (
	"container/heap"
	"time"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
)

// restartEntry is one task waiting out its deferred-restart delay.
type restartEntry struct {
	id       task.Id
	deadline time.Time
	index    int // heap bookkeeping, maintained by container/heap
}

// restartQueue orders pending restarts by deadline, earliest first. Unlike
// the teacher's lnd/queue.ConcurrentQueue — a plain FIFO — restarts must
// come due in deadline order regardless of the order they were deferred
// in, so this is built directly on container/heap instead.
type restartQueue []*restartEntry

func (q restartQueue) Len() int { return len(q) }

func (q restartQueue) Less(i, j int) bool {
	return q[i].deadline.Before(q[j].deadline)
}

func (q restartQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *restartQueue) Push(x any) {
	e := x.(*restartEntry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *restartQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// RestartQueue is the supervisor's deadline-ordered set of deferred
// restarts. Not safe for concurrent use; the supervisor's single event
// loop is its only caller, per spec.md's single-goroutine ownership model.
type RestartQueue struct {
	q restartQueue
}

// NewRestartQueue returns an empty RestartQueue.
func NewRestartQueue() *RestartQueue {
	return &RestartQueue{}
}

// Defer schedules id to restart at deadline. If id is already queued, its
// deadline is replaced rather than duplicated.
func (r *RestartQueue) Defer(id task.Id, deadline time.Time) {
	for _, e := range r.q {
		if e.id.Equal(id) {
			e.deadline = deadline
			heap.Fix(&r.q, e.index)
			return
		}
	}
	heap.Push(&r.q, &restartEntry{id: id, deadline: deadline})
}

// Remove drops id from the queue, if present, without restarting it. Used
// when a protocol is removed while one of its tasks is still waiting out
// its deferred-restart delay.
func (r *RestartQueue) Remove(id task.Id) {
	for i, e := range r.q {
		if e.id.Equal(id) {
			heap.Remove(&r.q, i)
			return
		}
	}
}

// Len reports how many restarts are pending.
func (r *RestartQueue) Len() int { return r.q.Len() }

// Peek returns the earliest pending deadline without removing it. ok is
// false if the queue is empty.
func (r *RestartQueue) Peek() (id task.Id, deadline time.Time, ok bool) {
	if len(r.q) == 0 {
		return task.Id{}, time.Time{}, false
	}
	return r.q[0].id, r.q[0].deadline, true
}

// PopDue removes and returns every entry whose deadline is at or before
// now, in deadline order. The supervisor calls this each time its restart
// timer fires.
func (r *RestartQueue) PopDue(now time.Time) []task.Id {
	var due []task.Id
	for r.q.Len() > 0 && !r.q[0].deadline.After(now) {
		e := heap.Pop(&r.q).(*restartEntry)
		due = append(due, e.id)
	}
	return due
}
