package luart

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"

	"github.com/dshills/luadbg/internal/session"
)

// Program is one loaded, instrumented Lua chunk together with its debug
// metadata. It is the identity handle the session registry keys on.
type Program struct {
	name   string
	source string
	proto  *lua.FunctionProto

	info      *session.DebugInfo
	stmts     []session.Statement
	lineAddrs map[int][]int64

	// armed is guarded by the runtime mutex.
	armed map[int64]bool
}

// Name returns the chunk name the program was loaded under.
func (p *Program) Name() string { return p.name }

// Source returns the original, uninstrumented source text.
func (p *Program) Source() string { return p.source }

// Info returns the program's debug metadata.
func (p *Program) Info() *session.DebugInfo { return p.info }

// Load parses, instruments, and compiles a chunk. The statement table is
// extracted from the uninstrumented AST; instrumentation preserves line
// numbering, so addresses resolve against the original source.
func (r *Runtime) Load(name, source string) (*Program, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	stmts := collectStatements(chunk)

	instrumented, err := Instrument(source)
	if err != nil {
		return nil, fmt.Errorf("instrument %s: %w", name, err)
	}
	ichunk, err := parse.Parse(strings.NewReader(instrumented), name)
	if err != nil {
		return nil, fmt.Errorf("parse instrumented %s: %w", name, err)
	}
	proto, err := lua.Compile(ichunk, name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	p := &Program{
		name:      name,
		source:    source,
		proto:     proto,
		stmts:     stmts,
		lineAddrs: make(map[int][]int64),
		armed:     make(map[int64]bool),
	}
	for _, st := range stmts {
		p.lineAddrs[st.StartLine] = append(p.lineAddrs[st.StartLine], st.Addr)
	}
	p.info = &session.DebugInfo{
		FileName:   name,
		Source:     source,
		Statements: stmts,
		HasScopes:  true,
	}

	r.mu.Lock()
	r.programs = append(r.programs, p)
	r.mu.Unlock()
	return p, nil
}

// collectStatements flattens the chunk's statements in source order,
// assigning each a sequential address. Nested function bodies contribute
// their own statements, so one source line may carry several addresses.
func collectStatements(chunk []ast.Stmt) []session.Statement {
	var stmts []session.Statement
	walkStmts(chunk, func(st ast.Stmt) {
		end := st.LastLine()
		if end < st.Line() {
			end = st.Line()
		}
		stmts = append(stmts, session.Statement{
			Addr:      int64(len(stmts)),
			StartLine: st.Line(),
			EndLine:   end,
		})
	})
	return stmts
}

// walkStmts visits every statement in the block and in all nested blocks
// and function literals, in source order.
func walkStmts(block []ast.Stmt, visit func(ast.Stmt)) {
	for _, st := range block {
		visit(st)
		switch s := st.(type) {
		case *ast.AssignStmt:
			walkExprs(s.Lhs, visit)
			walkExprs(s.Rhs, visit)
		case *ast.LocalAssignStmt:
			walkExprs(s.Exprs, visit)
		case *ast.FuncCallStmt:
			walkExpr(s.Expr, visit)
		case *ast.DoBlockStmt:
			walkStmts(s.Stmts, visit)
		case *ast.WhileStmt:
			walkExpr(s.Condition, visit)
			walkStmts(s.Stmts, visit)
		case *ast.RepeatStmt:
			walkStmts(s.Stmts, visit)
			walkExpr(s.Condition, visit)
		case *ast.IfStmt:
			walkExpr(s.Condition, visit)
			walkStmts(s.Then, visit)
			walkStmts(s.Else, visit)
		case *ast.NumberForStmt:
			walkExpr(s.Init, visit)
			walkExpr(s.Limit, visit)
			if s.Step != nil {
				walkExpr(s.Step, visit)
			}
			walkStmts(s.Stmts, visit)
		case *ast.GenericForStmt:
			walkExprs(s.Exprs, visit)
			walkStmts(s.Stmts, visit)
		case *ast.FuncDefStmt:
			walkStmts(s.Func.Stmts, visit)
		case *ast.ReturnStmt:
			walkExprs(s.Exprs, visit)
		}
	}
}

func walkExprs(exprs []ast.Expr, visit func(ast.Stmt)) {
	for _, e := range exprs {
		walkExpr(e, visit)
	}
}

// walkExpr descends into an expression looking for function literals whose
// bodies contain further statements.
func walkExpr(expr ast.Expr, visit func(ast.Stmt)) {
	switch e := expr.(type) {
	case *ast.FunctionExpr:
		walkStmts(e.Stmts, visit)
	case *ast.TableExpr:
		for _, f := range e.Fields {
			if f.Key != nil {
				walkExpr(f.Key, visit)
			}
			walkExpr(f.Value, visit)
		}
	case *ast.FuncCallExpr:
		if e.Func != nil {
			walkExpr(e.Func, visit)
		}
		if e.Receiver != nil {
			walkExpr(e.Receiver, visit)
		}
		walkExprs(e.Args, visit)
	case *ast.AttrGetExpr:
		walkExpr(e.Object, visit)
		walkExpr(e.Key, visit)
	case *ast.LogicalOpExpr:
		walkExpr(e.Lhs, visit)
		walkExpr(e.Rhs, visit)
	case *ast.RelationalOpExpr:
		walkExpr(e.Lhs, visit)
		walkExpr(e.Rhs, visit)
	case *ast.StringConcatOpExpr:
		walkExpr(e.Lhs, visit)
		walkExpr(e.Rhs, visit)
	case *ast.ArithmeticOpExpr:
		walkExpr(e.Lhs, visit)
		walkExpr(e.Rhs, visit)
	case *ast.UnaryMinusOpExpr:
		walkExpr(e.Expr, visit)
	case *ast.UnaryNotOpExpr:
		walkExpr(e.Expr, visit)
	case *ast.UnaryLenOpExpr:
		walkExpr(e.Expr, visit)
	}
}
