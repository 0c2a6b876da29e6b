package luart

import (
	"context"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luadbg/internal/session"
)

// HookGlobal is the name of the Go function instrumented chunks call at
// statement boundaries.
const HookGlobal = "__luadbg_line"

// BreakHandler receives break reports from the runtime. *session.Session
// satisfies it.
type BreakHandler interface {
	OnBreak(ectx session.ExecContext, prog session.Program, info *session.DebugInfo, addr int64) (session.Action, error)
}

// execContext is the opaque execution context handed to the session at a
// break.
type execContext struct {
	line int
}

// Runtime wraps a gopher-lua state as a debuggable script interpreter.
//
// The script LState is owned by the goroutine calling Run; control threads
// only touch the armed-breakpoint tables (under mu), the break-request
// flag, and the scratch evaluation state.
type Runtime struct {
	L       *lua.LState
	scratch *scratchState

	mu        sync.Mutex
	sess      BreakHandler
	programs  []*Program
	current   *Program
	stepMode  session.Action
	stepDepth int
	closed    bool

	breakReq atomic.Bool

	evalMu     sync.Mutex
	cancelEval context.CancelFunc
}

// New creates a runtime with a fresh script state and scratch state.
func New() (*Runtime, error) {
	r := &Runtime{
		L:       newScriptState(),
		scratch: newScratchState(),
	}
	r.L.SetGlobal(HookGlobal, r.L.NewFunction(r.hookFunc))
	return r, nil
}

// newScriptState creates a Lua state with only the safe standard libraries
// opened.
func newScriptState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	return L
}

// AttachSession routes break reports into the given handler.
func (r *Runtime) AttachSession(h BreakHandler) {
	r.mu.Lock()
	r.sess = h
	r.mu.Unlock()
}

// Run executes a loaded program on the calling goroutine, which becomes
// the execution thread for the duration. Breaks suspend this call until a
// remote action resumes it.
func (r *Runtime) Run(p *Program) error {
	if p == nil {
		return ErrNoProgram
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRuntimeClosed
	}
	r.current = p
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.current = nil
		r.stepMode = session.ActionRun
		r.mu.Unlock()
	}()

	fn := r.L.NewFunctionFromProto(p.proto)
	r.L.Push(fn)
	err := r.L.PCall(0, lua.MultRet, nil)
	r.L.SetTop(0)
	return err
}

// RequestBreak implements session.Interpreter. The break-request flag is
// always raised, so a client pause lands at the script's next statement
// even when it arrives mid-evaluation. An in-flight evaluation is
// additionally cancelled, since it may never reach a cooperative hook on
// its own; when the abort turns out to be the evaluation deadline's, the
// eval path consumes the flag again so a watch timeout never pauses the
// script.
func (r *Runtime) RequestBreak() {
	r.breakReq.Store(true)

	r.evalMu.Lock()
	cancel := r.cancelEval
	r.evalMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SetBreakpoint implements session.Interpreter. Arming an armed address is
// a no-op.
func (r *Runtime) SetBreakpoint(prog session.Program, addr int64) {
	p, ok := prog.(*Program)
	if !ok {
		return
	}
	r.mu.Lock()
	p.armed[addr] = true
	r.mu.Unlock()
}

// ClearBreakpoint implements session.Interpreter.
func (r *Runtime) ClearBreakpoint(prog session.Program, addr int64) {
	p, ok := prog.(*Program)
	if !ok {
		return
	}
	r.mu.Lock()
	delete(p.armed, addr)
	r.mu.Unlock()
}

// StatementAt implements session.Interpreter.
func (r *Runtime) StatementAt(prog session.Program, addr int64) (session.Statement, bool) {
	p, ok := prog.(*Program)
	if !ok || addr < 0 || addr >= int64(len(p.stmts)) {
		return session.Statement{}, false
	}
	return p.stmts[addr], true
}

// hookFunc is the Go function behind HookGlobal. Instrumented chunks call
// it with the current line number at every statement boundary.
func (r *Runtime) hookFunc(L *lua.LState) int {
	line := L.CheckInt(1)
	r.checkLine(L, line)
	return 0
}

// checkLine decides whether the boundary is a break and, if so, reports it
// to the session and applies the resolved action.
func (r *Runtime) checkLine(L *lua.LState, line int) {
	r.mu.Lock()
	prog := r.current
	sess := r.sess
	r.mu.Unlock()
	if prog == nil || sess == nil {
		return
	}

	hit := r.breakReq.Swap(false)
	var addr int64 = -1

	r.mu.Lock()
	switch r.stepMode {
	case session.ActionStepInto:
		hit = true
	case session.ActionStepOver:
		if stackDepth(L) <= r.stepDepth {
			hit = true
		}
	case session.ActionStepOut:
		if stackDepth(L) < r.stepDepth {
			hit = true
		}
	}
	for _, a := range prog.lineAddrs[line] {
		if p := prog.armed[a]; p {
			hit = true
			break
		}
	}
	if hit {
		if addrs := prog.lineAddrs[line]; len(addrs) > 0 {
			addr = addrs[0]
		}
	}
	r.mu.Unlock()

	if !hit {
		return
	}

	action, err := sess.OnBreak(&execContext{line: line}, prog, prog.info, addr)
	if err != nil {
		// Forced-interruption and usage faults escape into the VM's own
		// error handling.
		L.RaiseError("%s", err.Error())
	}
	r.applyAction(L, action)
}

// applyAction records the resume mode chosen at a break.
func (r *Runtime) applyAction(L *lua.LState, action session.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch action {
	case session.ActionStepInto, session.ActionStepOver, session.ActionStepOut:
		r.stepMode = action
		r.stepDepth = stackDepth(L)
	default:
		r.stepMode = session.ActionRun
	}
}

// Close releases both Lua states.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.L.Close()
	r.scratch.close()
}
