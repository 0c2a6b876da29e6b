// Package luart adapts the gopher-lua runtime to the debugging session
// engine.
//
// A Runtime wraps a gopher-lua LState and implements session.Interpreter:
// expression evaluation, call-stack capture, statement lookup, breakpoint
// arming, and the cooperative break-request flag.
//
// gopher-lua has no native line hook, so debuggable chunks are instrumented
// before compilation: Instrument splices a call to the __luadbg_line global
// at the start of every line that begins a statement. The hook consults the
// armed breakpoints, the step mode, and the break-request flag, and routes
// hits into the session's OnBreak.
//
//	rt, err := luart.New()
//	if err != nil { ... }
//	defer rt.Close()
//
//	prog, err := rt.Load("script.lua", source)
//	rt.AttachSession(sess)
//	err = rt.Run(prog)
//
// The LState is not goroutine-safe: Load and Run must be called from the
// goroutine that owns the script state, and live-context evaluation only
// happens on that goroutine (inside the break hook). Context-free
// evaluation (a watch added while the script is running) uses a separate
// scratch state, so it never touches the busy LState.
//
// Forced interruption of a runaway evaluation uses LState context
// cancellation as a backstop for expressions that never reach a hook; the
// scratch state is rebuilt after a cancellation since the aborted state
// cannot be trusted.
package luart
