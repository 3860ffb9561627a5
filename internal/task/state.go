package task

import "context"

// State is the supervisor's handle on one currently-live task: a
// cancellation function and a saturating count of how many times the task
// has been restarted immediately (without going through the restart
// queue). Dropping the State's cancel function is what the supervisor uses
// to tear a task down, whether for a protocol removal or a full broadcast
// restart.
type State struct {
	Cancel context.CancelFunc
	Retry  uint8 // saturates at 255, never wraps
}

// NewState creates a State bound to ctx's cancellation and a fresh retry
// counter.
func NewState(cancel context.CancelFunc) *State {
	return &State{Cancel: cancel}
}

// IncRetry increments the retry counter, saturating instead of wrapping.
func (s *State) IncRetry() {
	if s.Retry < 255 {
		s.Retry++
	}
}
