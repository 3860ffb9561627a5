// Package supervisor is the process's central messaging bus: it starts and
// restarts the three built-in tasks (Balance Reporter, Broadcast Worker,
// Protocol Watcher) plus every application-defined task a protocol's
// registration requires, and owns the single event loop that reacts to
// task completions, protocol add/remove commands, and deferred restarts.
// Its shape is lifted directly from the teacher's htlcswitch.Switch: one
// goroutine running a select loop over a handful of channels, guarded by
// started/shutdown atomics and a wg/quit pair for teardown.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/logs"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/metrics"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/taskset"
)

// immediateRetryLimit is how many times a task restarts right away, with
// no delay, before the restart is deferred through RestartQueue instead.
const immediateRetryLimit = 2

// BuiltinFactory constructs the three built-in Runnables. The supervisor
// calls each factory once per (re)start so a fresh Runnable picks up
// whatever state (e.g. a refreshed sequence number) the previous instance
// left behind through shared collaborators, not through the Runnable
// itself.
type BuiltinFactory struct {
	BalanceReporter func(ctx context.Context, mode task.RunMode) (task.Runnable, error)
	Broadcast       func(ctx context.Context, mode task.RunMode) (task.Runnable, error)
	ProtocolWatcher func(ctx context.Context, mode task.RunMode) (task.Runnable, error)
}

// Supervisor owns every live task's cancellation handle and drives the
// restart policy: spec.md's "2 immediate retries then defer" rule, with
// built-in tasks deferred 10s out and application-defined tasks 180s out.
type Supervisor struct {
	started int32
	stopped int32

	spawner  task.Spawner
	builtins BuiltinFactory

	tasks   *taskset.Set[task.Id, struct{}]
	states  map[task.Id]*task.State
	restart *RestartQueue

	resultCh  chan task.Result
	protoCh   chan task.ProtocolCommand
	restartCh chan time.Time

	// draining is set while the Supervisor is tearing down every task after
	// a Broadcast exit (spec.md §4.1's "Broadcast task is privileged" rule)
	// and cleared once every TaskState is gone and Broadcast has restarted.
	draining     bool
	drainPending []task.Id

	fatalCh chan error

	mu   sync.Mutex
	quit chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Supervisor. protoCh is the channel the Protocol Watcher
// task delivers add/remove commands on; the caller threads the same
// channel into the watcher's own constructor so the two sides agree on it.
func New(spawner task.Spawner, builtins BuiltinFactory, protoCh chan task.ProtocolCommand) *Supervisor {
	return &Supervisor{
		spawner:   spawner,
		builtins:  builtins,
		tasks:     taskset.New[task.Id, struct{}](),
		states:    make(map[task.Id]*task.State),
		restart:   NewRestartQueue(),
		resultCh:  make(chan task.Result, 16),
		protoCh:   protoCh,
		restartCh: make(chan time.Time, 1),
		fatalCh:   make(chan error, 1),
		quit:      make(chan struct{}),
	}
}

// Wait blocks until the Supervisor hits a fatal error (spec.md §4.1: a
// closed task-result or protocol-command channel, or a Broadcast exit while
// already draining) or Stop is called, whichever comes first. A nil error
// means Stop was called first.
func (s *Supervisor) Wait() error {
	select {
	case err := <-s.fatalCh:
		return err
	case <-s.quit:
		return nil
	}
}

// Start spawns the three built-in tasks and the event loop goroutine.
func (s *Supervisor) Start() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil
	}
	logs.Supervisor.Info("starting supervisor")

	s.spawnBuiltinWithMode(task.BalanceReporter, task.New, s.builtins.BalanceReporter)
	s.spawnBuiltinWithMode(task.Broadcast, task.New, s.builtins.Broadcast)
	s.spawnBuiltinWithMode(task.ProtocolWatcher, task.New, s.builtins.ProtocolWatcher)

	s.wg.Add(2)
	go s.collectResults()
	go s.loop()
	return nil
}

// Stop cancels every live task and waits for the event loop to drain.
func (s *Supervisor) Stop() error {
	s.shutdown(nil)
	s.wg.Wait()
	return nil
}

// shutdown cancels every live task and closes quit exactly once, optionally
// surfacing err to a pending Wait call. Called both from a graceful Stop
// and from the event loop itself when §4.1's fatal conditions are met.
func (s *Supervisor) shutdown(err error) {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		return
	}

	if err != nil {
		logs.Supervisor.Errorf("supervisor: fatal: %v", err)
		select {
		case s.fatalCh <- err:
		default:
		}
	} else {
		logs.Supervisor.Info("stopping supervisor")
	}

	s.mu.Lock()
	for _, st := range s.states {
		st.Cancel()
	}
	s.mu.Unlock()

	close(s.quit)
}

// collectResults forwards taskset.JoinNext completions onto resultCh,
// translating the blocking JoinNext call into the select-driven loop
// below's channel-only world.
func (s *Supervisor) collectResults() {
	defer s.wg.Done()
	for {
		id, _, err, ok := s.tasks.JoinNext(context.Background())
		if !ok {
			return
		}
		select {
		case s.resultCh <- task.Result{ID: id, Err: err}:
		case <-s.quit:
			return
		}
	}
}

// loop is the single event loop: task completions take priority over
// protocol commands, which take priority over deferred restarts coming
// due, mirroring spec.md's stated ordering.
func (s *Supervisor) loop() {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	s.rearmRestartTimer(timer)

	for {
		// select picks at random among ready cases, so lower-priority
		// sources are masked off while a higher-priority one already has
		// something buffered.
		protoCh, restartC := s.protoCh, timer.C
		if len(s.resultCh) > 0 {
			protoCh, restartC = nil, nil
		} else if len(s.protoCh) > 0 {
			restartC = nil
		}

		select {
		case res, ok := <-s.resultCh:
			if !ok {
				s.shutdown(errors.New("supervisor: task-result channel closed"))
				return
			}
			if err := s.handleResult(res); err != nil {
				s.shutdown(err)
				return
			}
			s.rearmRestartTimer(timer)

		case cmd, ok := <-protoCh:
			if !ok {
				s.shutdown(errors.New("supervisor: protocol-command channel closed"))
				return
			}
			s.handleProtocolCommand(cmd)
			s.rearmRestartTimer(timer)

		case now := <-restartC:
			s.handleRestartsDue(now)
			s.rearmRestartTimer(timer)

		case <-s.quit:
			return
		}
	}
}

func (s *Supervisor) rearmRestartTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	s.mu.Lock()
	_, deadline, ok := s.restart.Peek()
	s.mu.Unlock()
	if !ok {
		timer.Reset(time.Hour)
		return
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	timer.Reset(d)
}

func (s *Supervisor) handleRestartsDue(now time.Time) {
	s.mu.Lock()
	due := s.restart.PopDue(now)
	s.mu.Unlock()
	for _, id := range due {
		s.restartTask(id)
	}
}

// handleResult applies the restart policy to a finished task: up to
// immediateRetryLimit immediate restarts, then a deferred one whose delay
// depends on whether id is built-in or application-defined. It returns a
// non-nil error only when the result is itself fatal per spec.md §4.1 (a
// second Broadcast exit while already draining).
func (s *Supervisor) handleResult(res task.Result) error {
	logs.Supervisor.Infof("task %s finished: %v", res.ID, res.Err)

	if res.ID.Equal(task.Broadcast) {
		s.mu.Lock()
		alreadyDraining := s.draining
		s.mu.Unlock()
		if alreadyDraining {
			return errors.New("supervisor: broadcast exited again while draining; logic error")
		}
		s.beginDrain(res.ID)
		return nil
	}

	s.mu.Lock()
	if s.draining {
		delete(s.states, res.ID)
		s.restart.Remove(res.ID)
		s.tasks.Remove(res.ID)
		done := len(s.states) == 0
		pending := s.drainPending
		s.mu.Unlock()
		if done {
			s.endDrain(pending)
		}
		return nil
	}

	st, tracked := s.states[res.ID]
	s.mu.Unlock()
	if !tracked {
		// Already torn down by a protocol removal racing the result.
		return nil
	}

	if st.Retry < immediateRetryLimit {
		st.IncRetry()
		s.restartTask(res.ID)
		return nil
	}

	delay := time.Duration(res.ID.RestartDelaySeconds()) * time.Second
	s.mu.Lock()
	delete(s.states, res.ID)
	s.restart.Defer(res.ID, time.Now().Add(delay))
	s.mu.Unlock()
	return nil
}

// beginDrain implements "Broadcast task is privileged": every other live
// task is cancelled and nothing restarts until all of them have reported
// back through handleResult. The drained set is re-queued for its normal
// restart delay once the drain completes and Broadcast itself restarts
// immediately.
func (s *Supervisor) beginDrain(broadcastID task.Id) {
	logs.Supervisor.Warn("supervisor: broadcast task exited; draining before restart")

	s.mu.Lock()
	s.draining = true
	delete(s.states, broadcastID)
	s.restart.Remove(broadcastID)
	s.tasks.Remove(broadcastID)

	others := make([]task.Id, 0, len(s.states))
	for id, st := range s.states {
		others = append(others, id)
		st.Cancel()
	}
	s.drainPending = others
	done := len(s.states) == 0
	s.mu.Unlock()

	if done {
		s.endDrain(others)
	}
}

// endDrain restores every drained task onto the restart queue (at its usual
// delay) and restarts Broadcast fresh.
func (s *Supervisor) endDrain(others []task.Id) {
	s.mu.Lock()
	s.draining = false
	s.drainPending = nil
	for _, id := range others {
		s.states[id] = task.NewState(func() {})
		s.restart.Defer(id, time.Now().Add(time.Duration(id.RestartDelaySeconds())*time.Second))
	}
	s.mu.Unlock()

	logs.Supervisor.Info("supervisor: drain complete, restarting broadcast")
	s.spawnBuiltinWithMode(task.Broadcast, task.New, s.builtins.Broadcast)
}

func (s *Supervisor) restartTask(id task.Id) {
	metrics.IncTaskRestart(id.Class.String())
	if id.IsBuiltIn() {
		var factory func(ctx context.Context, mode task.RunMode) (task.Runnable, error)
		switch {
		case id.Equal(task.BalanceReporter):
			factory = s.builtins.BalanceReporter
		case id.Equal(task.Broadcast):
			factory = s.builtins.Broadcast
		case id.Equal(task.ProtocolWatcher):
			factory = s.builtins.ProtocolWatcher
		}
		s.spawnBuiltinRestart(id, factory)
		return
	}

	s.spawnApplication(id.AppID, task.Restart)
}

func (s *Supervisor) spawnBuiltinRestart(id task.Id, factory func(ctx context.Context, mode task.RunMode) (task.Runnable, error)) {
	s.spawnBuiltinWithMode(id, task.Restart, factory)
}

func (s *Supervisor) spawnBuiltinWithMode(id task.Id, mode task.RunMode, factory func(ctx context.Context, mode task.RunMode) (task.Runnable, error)) {
	ctx, cancel := context.WithCancel(context.Background())

	runnable, err := factory(ctx, mode)
	if err != nil {
		logs.Supervisor.Errorf("spawn %s: %v", id, err)
		cancel()
		s.mu.Lock()
		s.states[id] = task.NewState(func() {})
		s.restart.Defer(id, time.Now().Add(time.Duration(id.RestartDelaySeconds())*time.Second))
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if mode == task.New {
		s.states[id] = task.NewState(cancel)
	} else if st, ok := s.states[id]; ok {
		st.Cancel = cancel
	} else {
		// The task's TaskState was removed when it was deferred onto the
		// restart queue; reconstructing it now resets the retry counter
		// to 0, per spec.md §4.1.
		s.states[id] = task.NewState(cancel)
	}
	s.mu.Unlock()

	s.tasks.Spawn(func() (struct{}, error) {
		return struct{}{}, runnable.Run(ctx, mode)
	}, id)
}

// spawnApplication starts one application-defined task via the spawner.
func (s *Supervisor) spawnApplication(appID task.AppID, mode task.RunMode) {
	id := task.Application(appID)
	ctx, cancel := context.WithCancel(context.Background())

	runnable, err := s.spawner.Spawn(ctx, id, mode)
	if err != nil {
		logs.Supervisor.Errorf("spawn %s: %v", id, err)
		cancel()
		s.mu.Lock()
		if mode == task.New {
			s.states[id] = task.NewState(func() {})
		}
		s.restart.Defer(id, time.Now().Add(time.Duration(id.RestartDelaySeconds())*time.Second))
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if mode == task.New {
		s.states[id] = task.NewState(cancel)
	} else {
		st, ok := s.states[id]
		if !ok {
			st = task.NewState(cancel)
			s.states[id] = st
		} else {
			st.Cancel = cancel
		}
	}
	s.mu.Unlock()

	s.tasks.Spawn(func() (struct{}, error) {
		return struct{}{}, runnable.Run(ctx, mode)
	}, id)
}

// handleProtocolCommand starts every application task a newly-added
// protocol requires, or tears down (and forgets) every task belonging to
// a removed protocol, including any still sitting in the restart queue.
func (s *Supervisor) handleProtocolCommand(cmd task.ProtocolCommand) {
	switch cmd.Kind {
	case task.ProtocolAdded:
		logs.Supervisor.Infof("protocol added: %s", cmd.Name)
		for _, appID := range s.spawner.ProtocolTaskSetIDs(cmd.Name) {
			s.spawnApplication(appID, task.New)
		}

	case task.ProtocolRemoved:
		logs.Supervisor.Infof("protocol removed: %s", cmd.Name)
		s.mu.Lock()
		var toRemove []task.Id
		for id := range s.states {
			name, ok := id.Protocol()
			if ok && name == cmd.Name {
				toRemove = append(toRemove, id)
			}
		}
		for _, id := range toRemove {
			s.states[id].Cancel()
			delete(s.states, id)
			s.restart.Remove(id)
			s.tasks.Remove(id)
		}
		s.mu.Unlock()
	}
}
