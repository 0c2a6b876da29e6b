package session

// Action is a client-chosen resume mode returned to the interpreter from a
// break.
type Action int

const (
	// ActionRun resumes free execution.
	ActionRun Action = iota
	// ActionPause requests a break at the next safe point.
	ActionPause
	// ActionStepInto executes one statement, entering calls.
	ActionStepInto
	// ActionStepOver executes one statement, skipping over calls.
	ActionStepOver
	// ActionStepOut runs until the current function returns.
	ActionStepOut
)

// String returns a string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionRun:
		return "run"
	case ActionPause:
		return "pause"
	case ActionStepInto:
		return "stepInto"
	case ActionStepOver:
		return "stepOver"
	case ActionStepOut:
		return "stepOut"
	default:
		return "unknown"
	}
}

// ParseAction converts a wire action name to an Action.
func ParseAction(name string) (Action, bool) {
	switch name {
	case "run", "continue":
		return ActionRun, true
	case "pause":
		return ActionPause, true
	case "stepInto":
		return ActionStepInto, true
	case "stepOver":
		return ActionStepOver, true
	case "stepOut":
		return ActionStepOut, true
	default:
		return ActionRun, false
	}
}
