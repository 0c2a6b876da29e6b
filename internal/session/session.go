package session

import (
	"sync"
	"time"
)

// BreakPosition is the source span execution is suspended at: a single
// statement's span, a degenerate point when no statement boundary is known,
// or all -1 when the position is unknown entirely.
type BreakPosition struct {
	ProgramID   int `json:"id"`
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// StateSnapshot is the full client-visible session state.
type StateSnapshot struct {
	Running   bool                `json:"isRunning"`
	Programs  []NewProgramMessage `json:"programs"`
	Position  BreakPosition       `json:"position"`
	Watches   []Watch             `json:"watches"`
	CallStack []Frame             `json:"callStack"`
}

// StateMessage returns the State message describing the snapshot, so a
// transport can bring a late-joining client up to date.
func (snap StateSnapshot) StateMessage() StateMessage {
	if snap.Running {
		return runningStateMessage()
	}
	return breakingStateMessage(snap.Position, snap.Watches, snap.CallStack)
}

// breakContext is the per-break state held while execution is suspended.
type breakContext struct {
	ctx   ExecContext
	pos   BreakPosition
	stack []Frame
}

// Session is the debugging session engine. One instance per attached
// runtime; all shared state is guarded by a single mutex, and the only
// blocking operation (the break rendezvous) runs outside it.
type Session struct {
	vm          Interpreter
	out         Broadcaster
	evalTimeout time.Duration

	mu       sync.Mutex
	attached bool
	programs *ProgramRegistry
	watches  *WatchRegistry
	current  *breakContext

	guard  *EvalGuard
	breaks *BreakCoordinator
}

// Option configures a Session.
type Option func(*Session)

// WithEvalTimeout overrides the watch evaluation deadline.
func WithEvalTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.evalTimeout = d
	}
}

// New creates a session for the given interpreter and transport.
func New(vm Interpreter, out Broadcaster, opts ...Option) *Session {
	s := &Session{
		vm:          vm,
		out:         out,
		evalTimeout: DefaultEvalTimeout,
		watches:     NewWatchRegistry(),
		breaks:      NewBreakCoordinator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.programs = NewProgramRegistry(vm)
	s.guard = NewEvalGuard(vm, s.evalTimeout)
	return s
}

// OnAttach is the interpreter's attach hook. It resets the evaluation
// guard (slot free, timed-out flag clear) and clears any stale rendezvous.
func (s *Session) OnAttach() {
	s.guard.Reset()
	s.mu.Lock()
	s.attached = true
	s.mu.Unlock()
	s.breaks.ForceResolve()
}

// OnDetach is the interpreter's detach hook. It disarms every breakpoint
// the session applied, clears the program registry, and releases any thread
// parked at a break with ActionRun. Watches survive detach and are
// re-evaluated on the next break after a re-attach.
func (s *Session) OnDetach() {
	s.mu.Lock()
	s.programs.DisarmAll()
	s.programs.Clear()
	s.current = nil
	s.attached = false
	s.mu.Unlock()
	s.breaks.ForceResolve()
}

// RequestBreak raises the interpreter's break-request flag so execution
// voluntarily enters OnBreak at its next safe point.
func (s *Session) RequestBreak() {
	s.vm.RequestBreak()
}

// OnBreak is the central hook, invoked by the interpreter at every
// instruction boundary it has chosen to check. It returns the action the
// interpreter should take, or ErrEvalTimeout when a guarded evaluation
// exceeded its deadline and must be aborted.
func (s *Session) OnBreak(ectx ExecContext, prog Program, info *DebugInfo, addr int64) (Action, error) {
	// A deadline expired: fail the guarded evaluation instead of breaking.
	if s.guard.ConsumeTimeout() {
		return ActionRun, ErrEvalTimeout
	}
	// A watch evaluation re-entered the interpreter: resume immediately,
	// never a client-visible break.
	if s.guard.Busy() {
		return ActionRun, nil
	}
	// Opaque code cannot be broken into.
	if !info.Complete() {
		return ActionStepOut, nil
	}

	stack := s.vm.CallStack(ectx)

	s.mu.Lock()
	if !s.attached {
		s.mu.Unlock()
		return ActionRun, nil
	}

	id, isNew, ok := s.programs.Register(prog, info)
	if !ok {
		s.mu.Unlock()
		return ActionStepOut, nil
	}
	var announce []Message
	if isNew {
		if d, found := s.programs.Descriptor(id); found {
			announce = append(announce, newProgramMessage(d))
		}
	}
	// Register every frame's program so the client can resolve file names
	// before it receives the snapshot. Frames without usable metadata are
	// skipped silently.
	for _, f := range stack {
		if fid, fnew, fok := s.programs.Register(f.Program, f.Info); fok && fnew {
			if d, found := s.programs.Descriptor(fid); found {
				announce = append(announce, newProgramMessage(d))
			}
		}
	}

	pos := s.breakPosition(id, prog, addr, stack)
	entries := s.watches.Entries()
	s.mu.Unlock()

	// Refresh watches outside the lock, so control threads (GetState,
	// breakpoint and watch operations) stay responsive through slow
	// evaluations, but strictly before the snapshot is broadcast. The
	// forced-timeout fault aborts the break and surfaces to the
	// interpreter.
	values, err := refreshValues(entries, func(expr string) (string, error) {
		return s.evaluate(ectx, expr)
	})
	if err != nil {
		return ActionRun, err
	}

	s.mu.Lock()
	if !s.attached {
		s.mu.Unlock()
		return ActionRun, nil
	}
	for i, w := range entries {
		w.Value = values[i]
	}
	s.current = &breakContext{ctx: ectx, pos: pos, stack: stack}
	breaking := breakingStateMessage(pos, s.watches.All(), stack)
	s.mu.Unlock()

	for _, m := range announce {
		s.out.Broadcast(m)
	}
	s.out.Broadcast(breaking)

	action := s.breaks.EnterBreak()

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	s.out.Broadcast(runningStateMessage())
	return action, nil
}

// breakPosition computes the current statement's source span, falling back
// to a raw line/column point from the innermost frame, or an all-sentinel
// unknown span.
func (s *Session) breakPosition(id int, prog Program, addr int64, stack []Frame) BreakPosition {
	if st, ok := s.vm.StatementAt(prog, addr); ok {
		return BreakPosition{
			ProgramID:   id,
			StartLine:   st.StartLine,
			StartColumn: st.StartColumn,
			EndLine:     st.EndLine,
			EndColumn:   st.EndColumn,
		}
	}
	if len(stack) > 0 {
		f := stack[0]
		return BreakPosition{ProgramID: id, StartLine: f.Line, StartColumn: f.Column, EndLine: f.Line, EndColumn: f.Column}
	}
	return BreakPosition{ProgramID: id, StartLine: -1, StartColumn: -1, EndLine: -1, EndColumn: -1}
}

// evaluate runs one expression under the evaluation guard.
func (s *Session) evaluate(ectx ExecContext, expr string) (string, error) {
	return s.guard.Do(func() (string, error) {
		return s.vm.Evaluate(ectx, expr)
	})
}

// GetState returns the full client-visible state.
func (s *Session) GetState() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StateSnapshot{
		Running:  s.current == nil,
		Programs: []NewProgramMessage{},
		Watches:  s.watches.All(),
	}
	for _, d := range s.programs.Descriptors() {
		snap.Programs = append(snap.Programs, newProgramMessage(d))
	}
	if s.current != nil {
		snap.Position = s.current.pos
		snap.CallStack = append([]Frame{}, s.current.stack...)
	}
	return snap
}

// PerformAction resolves the pending break with the client's chosen action.
// ActionPause is not a resume mode: it raises the break-request flag
// instead. A stray action with no pending break is a no-op.
func (s *Session) PerformAction(action Action) {
	if action == ActionPause {
		s.vm.RequestBreak()
		return
	}
	s.breaks.Resolve(action)
}

// SetBreakpoint enables or disables a breakpoint on a source line. It
// reports failure, with no state change and no broadcast, when the program
// id is unknown or no statement starts on the line.
func (s *Session) SetBreakpoint(programID, line int, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.programs.SetBreakpoint(programID, line, enabled)
}

// AddWatch stores a new watch and immediately evaluates it once, so the
// client sees an initial value without waiting for the next break. The
// initial evaluation is context-free.
func (s *Session) AddWatch(expr string) Watch {
	s.mu.Lock()
	w := s.watches.Add(expr)
	s.mu.Unlock()

	value, err := s.evaluate(nil, expr)
	if err != nil {
		value = err.Error()
	}

	s.mu.Lock()
	w.Value = value
	snap := *w
	s.mu.Unlock()

	s.out.Broadcast(AddedWatchMessage{ID: snap.ID, Expression: snap.Expression, Value: snap.Value})
	return snap
}

// RemoveWatch removes the watch with the given id. Removing an unknown id
// is a no-op and emits no message.
func (s *Session) RemoveWatch(id int) bool {
	s.mu.Lock()
	removed := s.watches.Remove(id)
	s.mu.Unlock()

	if removed {
		s.out.Broadcast(RemovedWatchMessage{ID: id})
	}
	return removed
}
