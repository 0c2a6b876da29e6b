package luart

import (
	"fmt"
	"strings"

	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// Instrument splices a HookGlobal call at the start of every source line
// that begins a statement. The hook call shares the statement's line, so
// compiled line numbers still match the original source.
//
// Insertion is line-based because the Lua parser does not track columns.
// A line is only instrumented when its leading token can open a statement
// and the previous line does not end mid-expression; statements that begin
// mid-line are left uninstrumented and simply cannot be stepped to.
func Instrument(source string) (string, error) {
	chunk, err := parse.Parse(strings.NewReader(source), "instrument")
	if err != nil {
		return "", err
	}

	stmtLines := make(map[int]bool)
	walkStmts(chunk, func(st ast.Stmt) {
		stmtLines[st.Line()] = true
	})

	lines := strings.Split(source, "\n")
	var b strings.Builder
	for i, line := range lines {
		n := i + 1
		if stmtLines[n] && safeToInstrument(lines, i) {
			fmt.Fprintf(&b, "%s(%d); ", HookGlobal, n)
		}
		b.WriteString(line)
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// blockedLeaders are tokens that may start a statement's line without the
// line start itself being a statement boundary.
var blockedLeaders = map[string]bool{
	"else":   true,
	"elseif": true,
	"until":  true,
	"end":    true,
	"then":   true,
	"in":     true,
}

// continuationSuffixes end a line whose expression continues on the next
// line; inserting a hook after them would split the expression.
var continuationSuffixes = []string{
	",", "(", "{", "[", "=", "+", "-", "*", "/", "%", "^", "..",
	"and", "or", "not", "<", ">", "<=", ">=", "==", "~=",
}

// safeToInstrument reports whether a hook call can be spliced at the start
// of line index i.
func safeToInstrument(lines []string, i int) bool {
	trimmed := strings.TrimSpace(lines[i])
	if trimmed == "" || strings.HasPrefix(trimmed, "--") {
		return false
	}
	if blockedLeaders[leadingWord(trimmed)] {
		return false
	}

	// Find the previous non-blank, non-comment line.
	for j := i - 1; j >= 0; j-- {
		prev := strings.TrimSpace(lines[j])
		if prev == "" || strings.HasPrefix(prev, "--") {
			continue
		}
		for _, suffix := range continuationSuffixes {
			if strings.HasSuffix(prev, suffix) {
				return false
			}
		}
		break
	}
	return true
}

// leadingWord returns the identifier or keyword a line starts with.
func leadingWord(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (end > 0 && c >= '0' && c <= '9') {
			end++
			continue
		}
		break
	}
	return s[:end]
}
