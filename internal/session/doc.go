// Package session implements the remote debugging session engine.
//
// A Session sits between a script interpreter and remote debugger clients.
// The interpreter calls the session's hooks (OnAttach, OnBreak, OnDetach)
// from its own execution thread; remote clients drive the session through
// the operations a transport layer calls on their behalf (GetState,
// PerformAction, SetBreakpoint, AddWatch, RemoveWatch, RequestBreak).
//
// # Break rendezvous
//
// When the interpreter reports a break, OnBreak snapshots the current state,
// broadcasts it, and parks the execution thread inside a BreakCoordinator
// until exactly one remote action arrives:
//
//	sess := session.New(vm, broadcaster)
//	sess.OnAttach()
//
//	// interpreter thread, at an instruction boundary:
//	action, err := sess.OnBreak(ctx, prog, info, addr)
//
//	// control thread, on behalf of a client:
//	sess.PerformAction(session.ActionStepOver)
//
// At most one break rendezvous is outstanding at any time. A second
// concurrent break is a usage fault and panics.
//
// # Watches
//
// Watch expressions are re-evaluated at every break, each evaluation wrapped
// by an EvalGuard that bounds its runtime. A runaway evaluation is aborted
// cooperatively: the guard raises the interpreter's break-request flag and
// the next OnBreak entry converts it into ErrEvalTimeout.
//
// The session holds only non-owning identity handles to interpreter-owned
// program objects. It never mutates interpreter state beyond the breakpoint
// arming calls on the Interpreter interface.
package session
