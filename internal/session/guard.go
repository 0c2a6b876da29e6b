package session

import (
	"sync"
	"time"
)

// DefaultEvalTimeout bounds a single watch evaluation.
const DefaultEvalTimeout = 500 * time.Millisecond

// EvalGuard wraps expression evaluations with a deadline and a single
// evaluation-exclusivity slot.
//
// The slot serves two purposes: it serializes evaluations, and it tells the
// break hook that a break reported while the slot is held was triggered by
// an evaluation legitimately re-entering the interpreter, so the hook must
// resume immediately instead of starting a new rendezvous.
//
// On deadline expiry the guard sets the timed-out flag and raises the
// interpreter's break-request flag; the interpreter enters the break hook
// at its next safe point, where the flag is turned into ErrEvalTimeout.
//
// The deadline callback is generation-guarded: timer.Stop does not wait for
// a callback already running, so a deadline that fires for an evaluation
// that has just finished must find a stale generation and do nothing. It
// must never mark a later evaluation as timed out.
type EvalGuard struct {
	vm      Interpreter
	timeout time.Duration
	slot    chan struct{}

	mu       sync.Mutex
	gen      uint64
	timedOut bool
}

// NewEvalGuard creates a guard with the given evaluation deadline.
// A zero or negative timeout falls back to DefaultEvalTimeout.
func NewEvalGuard(vm Interpreter, timeout time.Duration) *EvalGuard {
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}
	return &EvalGuard{
		vm:      vm,
		timeout: timeout,
		slot:    make(chan struct{}, 1),
	}
}

// Do runs one evaluation under the guard. It blocks until the exclusivity
// slot is free, arms a one-shot deadline timer, and releases the slot on
// every exit path. The timed-out flag is clear on entry and on exit, and
// the exit invalidates the deadline's generation so a callback landing
// after cleanup cannot set the flag for a later evaluation.
func (g *EvalGuard) Do(eval func() (string, error)) (string, error) {
	g.slot <- struct{}{}

	g.mu.Lock()
	g.gen++
	id := g.gen
	g.timedOut = false
	g.mu.Unlock()

	timer := time.AfterFunc(g.timeout, func() {
		g.mu.Lock()
		if g.gen != id {
			g.mu.Unlock()
			return
		}
		g.timedOut = true
		g.mu.Unlock()
		g.vm.RequestBreak()
	})
	defer func() {
		timer.Stop()
		g.mu.Lock()
		g.gen++
		g.timedOut = false
		g.mu.Unlock()
		<-g.slot
	}()

	return eval()
}

// Reset returns the guard to its initial state: slot free, timed-out flag
// clear, pending deadline invalidated. Called on attach so a previously
// wedged evaluation cannot block the new session.
func (g *EvalGuard) Reset() {
	g.mu.Lock()
	g.gen++
	g.timedOut = false
	g.mu.Unlock()
	select {
	case <-g.slot:
	default:
	}
}

// Busy reports whether an evaluation currently holds the exclusivity slot.
func (g *EvalGuard) Busy() bool {
	return len(g.slot) > 0
}

// ConsumeTimeout clears the timed-out flag and reports whether it was set.
func (g *EvalGuard) ConsumeTimeout() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	was := g.timedOut
	g.timedOut = false
	return was
}
