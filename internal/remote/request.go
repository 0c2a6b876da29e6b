package remote

import (
	"log"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/dshills/luadbg/internal/session"
)

// stateReply answers a getState request with the full snapshot.
type stateReply struct {
	session.StateSnapshot
}

// Kind implements session.Message.
func (stateReply) Kind() string { return "FullState" }

// resultReply reports the boolean outcome of a request.
type resultReply struct {
	Request string `json:"request"`
	OK      bool   `json:"ok"`
}

// Kind implements session.Message.
func (resultReply) Kind() string { return "Result" }

// handleRequest decodes one inbound client request and dispatches it to
// the session. Invalid requests fail only themselves; they never tear down
// the session or the connection.
func (h *Hub) handleRequest(conn *websocket.Conn, sess *session.Session, data []byte) {
	switch typ := gjson.GetBytes(data, "type").String(); typ {
	case "getState":
		h.send(conn, stateReply{sess.GetState()})

	case "performAction":
		name := gjson.GetBytes(data, "action").String()
		action, ok := session.ParseAction(name)
		if !ok {
			log.Printf("remote: unknown action %q", name)
			return
		}
		sess.PerformAction(action)

	case "setBreakpoint":
		ok := sess.SetBreakpoint(
			int(gjson.GetBytes(data, "programId").Int()),
			int(gjson.GetBytes(data, "line").Int()),
			gjson.GetBytes(data, "enabled").Bool(),
		)
		h.send(conn, resultReply{Request: typ, OK: ok})

	case "addWatch":
		sess.AddWatch(gjson.GetBytes(data, "expression").String())

	case "removeWatch":
		ok := sess.RemoveWatch(int(gjson.GetBytes(data, "id").Int()))
		h.send(conn, resultReply{Request: typ, OK: ok})

	case "requestBreak":
		sess.RequestBreak()

	default:
		log.Printf("remote: unknown request type %q", typ)
	}
}
