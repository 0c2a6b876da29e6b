package session

import "sync"

// BreakCoordinator is the rendezvous point between the parked execution
// thread and the control thread resolving its pending action.
//
// States: Idle (no thread parked) -> AwaitingAction (exactly one thread
// parked on a fresh single-use channel) -> Idle. A second break while one
// is outstanding is a usage fault: the interpreter must not report two
// simultaneous breaks from one session.
type BreakCoordinator struct {
	mu      sync.Mutex
	pending chan Action
}

// NewBreakCoordinator creates a coordinator in the Idle state.
func NewBreakCoordinator() *BreakCoordinator {
	return &BreakCoordinator{}
}

// EnterBreak parks the calling thread until an action is resolved. This is
// the only blocking operation in the engine; it runs on the interpreter's
// own thread, stalling script execution exactly as intended. The blocking
// receive happens outside the lock so control threads stay responsive while
// the execution thread is parked.
//
// Panics if a rendezvous is already pending.
func (c *BreakCoordinator) EnterBreak() Action {
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		panic("session: re-entrant break while one is outstanding")
	}
	// Fresh single-use channel per break, never pooled: a stale resolver
	// must not fire into a later, unrelated break.
	ch := make(chan Action, 1)
	c.pending = ch
	c.mu.Unlock()

	return <-ch
}

// Resolve fulfills the pending rendezvous exactly once with the supplied
// action. A stray action after the program already resumed or detached is
// a silent no-op; it reports whether a parked thread was released.
func (c *BreakCoordinator) Resolve(action Action) bool {
	c.mu.Lock()
	ch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if ch == nil {
		return false
	}
	ch <- action
	return true
}

// ForceResolve releases any parked thread with ActionRun. Used only on
// teardown so a thread is never left blocked when the session is torn down
// mid-break.
func (c *BreakCoordinator) ForceResolve() {
	c.Resolve(ActionRun)
}

// Waiting reports whether a rendezvous is pending.
func (c *BreakCoordinator) Waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}
