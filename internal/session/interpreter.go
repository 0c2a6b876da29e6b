package session

// Program is an opaque, non-owning identity handle to an interpreter-owned
// program object. Handles are compared with ==; the interpreter must hand the
// session the same handle every time it refers to the same program.
type Program any

// ExecContext is an opaque handle to the interpreter's current execution
// context (the live frame at a break). The session never inspects it; it is
// passed back to the interpreter for call-stack reads and evaluation.
type ExecContext any

// Statement is one independently addressable statement span in a program's
// debug metadata. Addr is the interpreter's instruction address for the
// statement; columns may be zero when the interpreter tracks lines only.
type Statement struct {
	Addr        int64
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// DebugInfo is the per-program debug metadata required to support breaking.
// A program with incomplete metadata is opaque to the debugger: it can never
// be broken into and is never registered.
type DebugInfo struct {
	FileName   string
	Source     string
	Statements []Statement
	HasScopes  bool
}

// Complete reports whether the metadata supports breaking.
func (d *DebugInfo) Complete() bool {
	return d != nil && d.Source != "" && len(d.Statements) > 0 && d.HasScopes
}

// Frame is one call-stack entry, innermost first.
type Frame struct {
	Program  Program    `json:"-"`
	Info     *DebugInfo `json:"-"`
	FileName string     `json:"fileName"`
	Function string     `json:"function"`
	Line     int        `json:"line"`
	Column   int        `json:"column"`
}

// Interpreter is the capability surface the session requires from the
// script VM. All methods are called either from the interpreter's own
// execution thread (CallStack, Evaluate during a break) or from control
// threads (breakpoint arming, RequestBreak); implementations must tolerate
// the latter while the VM is running.
type Interpreter interface {
	// CallStack returns the current call stack, innermost frame first.
	CallStack(ctx ExecContext) []Frame

	// StatementAt looks up the statement span at an instruction address.
	StatementAt(prog Program, addr int64) (Statement, bool)

	// SetBreakpoint arms a breakpoint at an instruction address.
	// Arming an already armed address is a no-op.
	SetBreakpoint(prog Program, addr int64)

	// ClearBreakpoint disarms a breakpoint at an instruction address.
	// Disarming an unarmed address is a no-op.
	ClearBreakpoint(prog Program, addr int64)

	// Evaluate evaluates an expression against the given context and
	// returns a rendering of the result. A nil context means no break is
	// active; the interpreter evaluates against a context-free scope.
	Evaluate(ctx ExecContext, expr string) (string, error)

	// RequestBreak raises the external break-request flag the interpreter
	// polls. The interpreter enters OnBreak at its next safe point.
	RequestBreak()
}
