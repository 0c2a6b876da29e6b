package luart

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luadbg/internal/session"
)

// CallStack implements session.Interpreter. It must be called from the
// execution thread (the session calls it inside the break hook). Frames
// are innermost first; the hook's own Go frame is skipped.
func (r *Runtime) CallStack(ectx session.ExecContext) []session.Frame {
	r.mu.Lock()
	prog := r.current
	r.mu.Unlock()

	var ph session.Program
	var info *session.DebugInfo
	if prog != nil {
		ph, info = prog, prog.info
	}

	var frames []session.Frame
	for i := 0; ; i++ {
		d, ok := r.L.GetStack(i)
		if !ok {
			break
		}
		if _, err := r.L.GetInfo("nSl", d, lua.LNil); err != nil {
			break
		}
		// Go frames (the hook itself) carry no line information.
		if d.CurrentLine <= 0 {
			continue
		}
		fn := d.Name
		if fn == "" {
			if d.What == "main" {
				fn = "main chunk"
			} else {
				fn = "?"
			}
		}
		frames = append(frames, session.Frame{
			Program:  ph,
			Info:     info,
			FileName: strings.TrimPrefix(d.Source, "@"),
			Function: fn,
			Line:     d.CurrentLine,
		})
	}
	return frames
}

// stackDepth counts the live stack levels; used for step-over/step-out
// depth tracking.
func stackDepth(L *lua.LState) int {
	depth := 0
	for {
		if _, ok := L.GetStack(depth); !ok {
			return depth
		}
		depth++
	}
}
