package session

// Broadcaster is the transport capability the session requires: a
// fire-and-forget send to all connected clients. Slow or disconnected
// clients are the transport's problem.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Message is one outbound state-change message. Kind is the wire
// discriminator; the transport decides how to encode it.
type Message interface {
	Kind() string
}

// NewProgramMessage announces a program the first time it is seen.
type NewProgramMessage struct {
	ID          int    `json:"id"`
	FileName    string `json:"fileName"`
	SourceCode  string `json:"sourceCode"`
	FirstLine   int    `json:"firstLine"`
	Breakpoints []int  `json:"breakpoints"`
}

// Kind implements Message.
func (NewProgramMessage) Kind() string { return "NewProgram" }

// StateMessage reports a running/breaking transition. The position, watch,
// and call-stack fields are only meaningful while breaking.
type StateMessage struct {
	Running     bool    `json:"running"`
	ID          int     `json:"id"`
	StartLine   int     `json:"startLine"`
	StartColumn int     `json:"startColumn"`
	EndLine     int     `json:"endLine"`
	EndColumn   int     `json:"endColumn"`
	Watches     []Watch `json:"watches"`
	CallStack   []Frame `json:"callStack"`
}

// Kind implements Message.
func (StateMessage) Kind() string { return "State" }

// AddedWatchMessage reports a newly added watch and its initial value.
type AddedWatchMessage struct {
	ID         int    `json:"id"`
	Expression string `json:"expression"`
	Value      string `json:"value"`
}

// Kind implements Message.
func (AddedWatchMessage) Kind() string { return "AddedWatch" }

// RemovedWatchMessage reports a removed watch.
type RemovedWatchMessage struct {
	ID int `json:"id"`
}

// Kind implements Message.
func (RemovedWatchMessage) Kind() string { return "RemovedWatch" }

func newProgramMessage(d *ProgramDescriptor) NewProgramMessage {
	return NewProgramMessage{
		ID:          d.ID,
		FileName:    d.Info.FileName,
		SourceCode:  d.Info.Source,
		FirstLine:   d.FirstLine(),
		Breakpoints: d.Lines(),
	}
}

func runningStateMessage() StateMessage {
	return StateMessage{Running: true}
}

func breakingStateMessage(pos BreakPosition, watches []Watch, stack []Frame) StateMessage {
	if watches == nil {
		watches = []Watch{}
	}
	if stack == nil {
		stack = []Frame{}
	}
	return StateMessage{
		Running:     false,
		ID:          pos.ProgramID,
		StartLine:   pos.StartLine,
		StartColumn: pos.StartColumn,
		EndLine:     pos.EndLine,
		EndColumn:   pos.EndColumn,
		Watches:     watches,
		CallStack:   stack,
	}
}
