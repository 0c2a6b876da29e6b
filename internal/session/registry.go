package session

import "sort"

// ProgramDescriptor is one registered program: a stable id, the identity
// handle of the interpreter-owned program object, its debug metadata, and
// the set of lines with an active breakpoint.
type ProgramDescriptor struct {
	ID          int
	Program     Program
	Info        *DebugInfo
	Breakpoints map[int]bool
}

// Lines returns the breakpointed lines in ascending order.
func (d *ProgramDescriptor) Lines() []int {
	lines := make([]int, 0, len(d.Breakpoints))
	for line := range d.Breakpoints {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// FirstLine returns the start line of the first statement, or 0 when the
// statement table is empty.
func (d *ProgramDescriptor) FirstLine() int {
	if len(d.Info.Statements) == 0 {
		return 0
	}
	first := d.Info.Statements[0].StartLine
	for _, st := range d.Info.Statements[1:] {
		if st.StartLine < first {
			first = st.StartLine
		}
	}
	return first
}

// ProgramRegistry assigns each distinct program object a stable, dense,
// monotonically increasing id in first-seen order and tracks per-program
// breakpoint state.
//
// The registry is not self-synchronized: callers serialize access through
// the session's lock.
type ProgramRegistry struct {
	vm      Interpreter
	entries []*ProgramDescriptor
	index   map[Program]int
}

// NewProgramRegistry creates an empty registry applying breakpoints
// through the given interpreter.
func NewProgramRegistry(vm Interpreter) *ProgramRegistry {
	return &ProgramRegistry{
		vm:    vm,
		index: make(map[Program]int),
	}
}

// Register records a program the first time it is seen and returns its id.
// Registering an already seen program returns the existing id with no side
// effects. Programs with incomplete debug metadata are not applicable: they
// can never be broken into, so they are never registered.
func (r *ProgramRegistry) Register(prog Program, info *DebugInfo) (id int, isNew, ok bool) {
	if id, seen := r.index[prog]; seen {
		return id, false, true
	}
	if !info.Complete() {
		return 0, false, false
	}
	id = len(r.entries)
	r.entries = append(r.entries, &ProgramDescriptor{
		ID:          id,
		Program:     prog,
		Info:        info,
		Breakpoints: make(map[int]bool),
	})
	r.index[prog] = id
	return id, true, true
}

// Lookup returns the id for a registered program.
func (r *ProgramRegistry) Lookup(prog Program) (int, bool) {
	id, ok := r.index[prog]
	return id, ok
}

// Descriptor returns the descriptor with the given id.
func (r *ProgramRegistry) Descriptor(id int) (*ProgramDescriptor, bool) {
	if id < 0 || id >= len(r.entries) {
		return nil, false
	}
	return r.entries[id], true
}

// Descriptors returns the registered descriptors in id order.
func (r *ProgramRegistry) Descriptors() []*ProgramDescriptor {
	return append([]*ProgramDescriptor{}, r.entries...)
}

// SetBreakpoint resolves line against the program's statement table and
// arms or disarms every statement whose start line matches. One source line
// may hold several independently addressable statements (closures inlined
// on the line); all are toggled together. The interpreter-side arming is
// re-applied even when the registry already marks the line, so the call is
// idempotent end to end.
//
// Returns false, with no state change, when the id is out of range or no
// statement starts on the line.
func (r *ProgramRegistry) SetBreakpoint(id, line int, enabled bool) bool {
	desc, ok := r.Descriptor(id)
	if !ok {
		return false
	}

	var addrs []int64
	for _, st := range desc.Info.Statements {
		if st.StartLine == line {
			addrs = append(addrs, st.Addr)
		}
	}
	if len(addrs) == 0 {
		return false
	}

	if enabled {
		desc.Breakpoints[line] = true
		for _, addr := range addrs {
			r.vm.SetBreakpoint(desc.Program, addr)
		}
	} else {
		delete(desc.Breakpoints, line)
		for _, addr := range addrs {
			r.vm.ClearBreakpoint(desc.Program, addr)
		}
	}
	return true
}

// DisarmAll removes every interpreter-side breakpoint the registry applied.
// Called before Clear on detach: the interpreter outlives the session, so
// armed addresses must not outlive the line sets that justify them.
func (r *ProgramRegistry) DisarmAll() {
	for _, desc := range r.entries {
		for line := range desc.Breakpoints {
			for _, st := range desc.Info.Statements {
				if st.StartLine == line {
					r.vm.ClearBreakpoint(desc.Program, st.Addr)
				}
			}
		}
	}
}

// Clear empties the registry. Called only on detach; descriptors are never
// individually destroyed.
func (r *ProgramRegistry) Clear() {
	r.entries = nil
	r.index = make(map[Program]int)
}
