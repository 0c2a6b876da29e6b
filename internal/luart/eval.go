package luart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luadbg/internal/session"
)

// Evaluate implements session.Interpreter. A nil context evaluates on the
// scratch state; a break context evaluates on the live script state, which
// is safe because live-context evaluation only happens on the execution
// thread, inside the break hook.
func (r *Runtime) Evaluate(ectx session.ExecContext, expr string) (string, error) {
	if ectx == nil {
		return r.scratch.eval(r, expr)
	}
	val, _, err := r.evalOn(r.L, expr)
	return val, err
}

// evalOn compiles and runs `return <expr>` on the given state under a
// cancellable context, so RequestBreak can abort an evaluation that never
// reaches a cooperative hook. aborted reports a context abort; the state's
// pending execution was unwound at the PCall boundary.
func (r *Runtime) evalOn(L *lua.LState, expr string) (val string, aborted bool, err error) {
	fn, err := L.LoadString("return " + expr)
	if err != nil {
		return "", false, fmt.Errorf("load expression: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.evalMu.Lock()
	r.cancelEval = cancel
	r.evalMu.Unlock()
	L.SetContext(ctx)
	defer func() {
		L.RemoveContext()
		r.evalMu.Lock()
		r.cancelEval = nil
		r.evalMu.Unlock()
		cancel()
	}()

	base := L.GetTop()
	L.Push(fn)
	if perr := L.PCall(0, lua.MultRet, nil); perr != nil {
		L.SetTop(base)
		if ctx.Err() != nil {
			// The evaluation was aborted mid-flight. Enter the break hook
			// at this safe point so the timed-out flag is observed and
			// converted into the forced-interruption fault.
			if herr := r.reportAbort(); herr != nil {
				// The break request was the deadline's own; consume it so
				// the fault is not followed by a spurious pause. A client
				// pause (herr == nil) keeps the flag armed instead.
				r.breakReq.Store(false)
				return "", true, herr
			}
			return "", true, perr
		}
		return "", false, perr
	}

	n := L.GetTop() - base
	if n == 0 {
		return "nil", false, nil
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = renderValue(L.Get(base + i + 1))
	}
	L.SetTop(base)
	return strings.Join(parts, ", "), false, nil
}

// reportAbort routes a context abort through the session's break hook,
// which turns a pending timeout into session.ErrEvalTimeout.
func (r *Runtime) reportAbort() error {
	r.mu.Lock()
	sess := r.sess
	prog := r.current
	r.mu.Unlock()
	if sess == nil {
		return nil
	}

	var ph session.Program
	var info *session.DebugInfo
	if prog != nil {
		ph, info = prog, prog.info
	}
	if _, err := sess.OnBreak(nil, ph, info, -1); err != nil {
		return err
	}
	return nil
}

// scratchState is a dedicated sandboxed state for context-free evaluation,
// so a watch added while the script runs never touches the busy LState.
type scratchState struct {
	mu sync.Mutex
	L  *lua.LState
}

func newScratchState() *scratchState {
	return &scratchState{L: newScriptState()}
}

func (s *scratchState) eval(r *Runtime, expr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, aborted, err := r.evalOn(s.L, expr)
	if aborted {
		// An aborted state cannot be trusted; rebuild it.
		s.L.Close()
		s.L = newScriptState()
	}
	return val, err
}

func (s *scratchState) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.L.Close()
}
