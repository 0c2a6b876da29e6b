package luart

import (
	"strings"
	"testing"
)

func TestLoadExtractsStatementTable(t *testing.T) {
	rt, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer rt.Close()

	src := strings.Join([]string{
		"local x = 1",
		"local f = function() return x end",
		"print(f())",
	}, "\n")
	p, err := rt.Load("demo.lua", src)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	info := p.Info()
	if !info.Complete() {
		t.Fatalf("Info() not complete: %+v", info)
	}
	if info.FileName != "demo.lua" || info.Source != src {
		t.Errorf("Info() metadata = %q / %d bytes", info.FileName, len(info.Source))
	}

	// Line 2 carries two statements: the local assignment and the return
	// inside the function literal.
	if got := len(p.lineAddrs[2]); got != 2 {
		t.Errorf("statements on line 2 = %d, want 2", got)
	}
	for _, addrs := range p.lineAddrs {
		for _, a := range addrs {
			st, ok := rt.StatementAt(p, a)
			if !ok {
				t.Errorf("StatementAt(%d) missing", a)
				continue
			}
			if st.Addr != a {
				t.Errorf("StatementAt(%d).Addr = %d", a, st.Addr)
			}
		}
	}
}

func TestStatementAtRejectsBadInputs(t *testing.T) {
	rt, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer rt.Close()

	p, err := rt.Load("one.lua", "local x = 1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, ok := rt.StatementAt(p, -1); ok {
		t.Errorf("StatementAt(-1) = ok")
	}
	if _, ok := rt.StatementAt(p, int64(len(p.stmts))); ok {
		t.Errorf("StatementAt(past end) = ok")
	}
	if _, ok := rt.StatementAt("not a program", 0); ok {
		t.Errorf("StatementAt with foreign handle = ok")
	}
}

func TestLoadRejectsInvalidSource(t *testing.T) {
	rt, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer rt.Close()

	if _, err := rt.Load("bad.lua", "local = = ="); err == nil {
		t.Errorf("Load() on invalid source succeeded")
	}
}

func TestRunExecutesInstrumentedChunk(t *testing.T) {
	rt, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer rt.Close()

	p, err := rt.Load("sum.lua", "total = 0\nfor i = 1, 4 do\n  total = total + i\nend")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := rt.Run(p); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := rt.Evaluate(struct{}{}, "total")
	if err != nil {
		t.Fatalf("Evaluate(total) error = %v", err)
	}
	if got != "10" {
		t.Errorf("total after run = %q, want 10", got)
	}
}
