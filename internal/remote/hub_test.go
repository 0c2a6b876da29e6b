package remote

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/dshills/luadbg/internal/session"
)

// stubVM is a minimal interpreter for transport tests.
type stubVM struct {
	breakReq chan struct{}
}

func newStubVM() *stubVM {
	return &stubVM{breakReq: make(chan struct{}, 8)}
}

func (v *stubVM) CallStack(ctx session.ExecContext) []session.Frame { return nil }

func (v *stubVM) StatementAt(prog session.Program, addr int64) (session.Statement, bool) {
	return session.Statement{Addr: addr, StartLine: 1, EndLine: 1}, addr == 0
}

func (v *stubVM) SetBreakpoint(prog session.Program, addr int64)   {}
func (v *stubVM) ClearBreakpoint(prog session.Program, addr int64) {}

func (v *stubVM) Evaluate(ctx session.ExecContext, expr string) (string, error) {
	if expr == "1+1" {
		return "2", nil
	}
	return "nil", nil
}

func (v *stubVM) RequestBreak() {
	select {
	case v.breakReq <- struct{}{}:
	default:
	}
}

type stubProgram struct{ name string }

func newHarness(t *testing.T) (*stubVM, *session.Session, *httptest.Server, *websocket.Conn) {
	t.Helper()
	vm := newStubVM()
	hub := NewHub()
	sess := session.New(vm, hub)
	hub.Bind(sess)
	sess.OnAttach()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return vm, sess, srv, conn
}

// readMessage reads one frame and returns its parsed JSON.
func readMessage(t *testing.T, conn *websocket.Conn) gjson.Result {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !gjson.ValidBytes(data) {
		t.Fatalf("invalid JSON frame: %s", data)
	}
	return gjson.ParseBytes(data)
}

func expectKind(t *testing.T, conn *websocket.Conn, kind string) gjson.Result {
	t.Helper()
	msg := readMessage(t, conn)
	if got := msg.Get("kind").String(); got != kind {
		t.Fatalf("message kind = %q, want %q: %s", got, kind, msg.Raw)
	}
	return msg
}

func TestConnectReplaysRunningState(t *testing.T) {
	_, _, _, conn := newHarness(t)

	msg := expectKind(t, conn, "State")
	if !msg.Get("running").Bool() {
		t.Errorf("replayed state = %s, want running", msg.Raw)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	_, sess, _, conn := newHarness(t)
	expectKind(t, conn, "State")

	sess.AddWatch("1+1")

	msg := expectKind(t, conn, "AddedWatch")
	if msg.Get("expression").String() != "1+1" || msg.Get("value").String() != "2" {
		t.Errorf("AddedWatch = %s", msg.Raw)
	}
}

func TestGetStateRequest(t *testing.T) {
	_, sess, _, conn := newHarness(t)
	expectKind(t, conn, "State")

	sess.AddWatch("1+1")
	expectKind(t, conn, "AddedWatch")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"getState"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	msg := expectKind(t, conn, "FullState")
	if !msg.Get("isRunning").Bool() {
		t.Errorf("FullState = %s, want running", msg.Raw)
	}
	if n := len(msg.Get("watches").Array()); n != 1 {
		t.Errorf("FullState watches = %d, want 1", n)
	}
}

func TestWatchRequestsRoundTrip(t *testing.T) {
	_, _, _, conn := newHarness(t)
	expectKind(t, conn, "State")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"addWatch","expression":"1+1"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	added := expectKind(t, conn, "AddedWatch")
	id := added.Get("id").Int()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"removeWatch","id":`+added.Get("id").Raw+`}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	removed := expectKind(t, conn, "RemovedWatch")
	if removed.Get("id").Int() != id {
		t.Errorf("RemovedWatch = %s, want id %d", removed.Raw, id)
	}
	result := expectKind(t, conn, "Result")
	if result.Get("request").String() != "removeWatch" || !result.Get("ok").Bool() {
		t.Errorf("Result = %s", result.Raw)
	}

	// Removing an unknown id fails only that request.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"removeWatch","id":99}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	result = expectKind(t, conn, "Result")
	if result.Get("ok").Bool() {
		t.Errorf("Result for unknown watch = %s, want ok false", result.Raw)
	}
}

func TestSetBreakpointRequestReportsFailure(t *testing.T) {
	_, _, _, conn := newHarness(t)
	expectKind(t, conn, "State")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"setBreakpoint","programId":7,"line":2,"enabled":true}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	result := expectKind(t, conn, "Result")
	if result.Get("request").String() != "setBreakpoint" || result.Get("ok").Bool() {
		t.Errorf("Result = %s, want setBreakpoint ok false", result.Raw)
	}
}

func TestRequestBreakReachesInterpreter(t *testing.T) {
	vm, _, _, conn := newHarness(t)
	expectKind(t, conn, "State")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"requestBreak"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	select {
	case <-vm.breakReq:
	case <-time.After(5 * time.Second):
		t.Fatalf("requestBreak never reached the interpreter")
	}
}

func TestPerformActionResumesParkedBreak(t *testing.T) {
	_, sess, srv, conn := newHarness(t)
	expectKind(t, conn, "State")

	prog := &stubProgram{"main.lua"}
	info := &session.DebugInfo{
		FileName:   "main.lua",
		Source:     "x = 1",
		Statements: []session.Statement{{Addr: 0, StartLine: 1, EndLine: 1}},
		HasScopes:  true,
	}

	done := make(chan struct{})
	go func() {
		sess.OnBreak(nil, prog, info, 0)
		close(done)
	}()

	np := expectKind(t, conn, "NewProgram")
	if np.Get("fileName").String() != "main.lua" {
		t.Errorf("NewProgram = %s", np.Raw)
	}
	breaking := expectKind(t, conn, "State")
	if breaking.Get("running").Bool() || breaking.Get("startLine").Int() != 1 {
		t.Errorf("breaking State = %s", breaking.Raw)
	}

	// A second client joining mid-break gets the program and the breaking
	// state replayed before any live traffic.
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("late Dial() error = %v", err)
	}
	defer late.Close()
	expectKind(t, late, "NewProgram")
	lateState := expectKind(t, late, "State")
	if lateState.Get("running").Bool() {
		t.Errorf("late-joiner state = %s, want breaking", lateState.Raw)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"performAction","action":"run"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	running := expectKind(t, conn, "State")
	if !running.Get("running").Bool() {
		t.Errorf("State after run = %s", running.Raw)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("parked break never resumed")
	}
}

func TestJoinerRacingBreakSeesBreakingState(t *testing.T) {
	_, sess, srv, conn := newHarness(t)
	expectKind(t, conn, "State")

	prog := &stubProgram{"race.lua"}
	info := &session.DebugInfo{
		FileName:   "race.lua",
		Source:     "x = 1",
		Statements: []session.Statement{{Addr: 0, StartLine: 1, EndLine: 1}},
		HasScopes:  true,
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	// A client connecting while a break is being reported must observe the
	// breaking state, either replayed on connect or broadcast right after.
	// Repeat to exercise different interleavings of replay and broadcast.
	for i := 0; i < 20; i++ {
		done := make(chan struct{})
		go func() {
			sess.OnBreak(nil, prog, info, 0)
			close(done)
		}()

		joiner, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("iteration %d: Dial() error = %v", i, err)
		}
		sawBreaking := false
		for !sawBreaking {
			msg := readMessage(t, joiner)
			if msg.Get("kind").String() == "State" && !msg.Get("running").Bool() {
				sawBreaking = true
			}
		}

		sess.PerformAction(session.ActionRun)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: parked break never resumed", i)
		}
		joiner.Close()
	}
}

func TestEncodeSplicesKind(t *testing.T) {
	data, err := encode(session.AddedWatchMessage{ID: 3, Expression: "x", Value: "1"})
	if err != nil {
		t.Fatalf("encode() error = %v", err)
	}
	msg := gjson.ParseBytes(data)
	if msg.Get("kind").String() != "AddedWatch" || msg.Get("id").Int() != 3 {
		t.Errorf("encode() = %s", data)
	}
}
