package remote

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tidwall/sjson"

	"github.com/dshills/luadbg/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Debugger endpoint; access control is the host's problem.
	},
}

// Hub is a plain WebSocket fan-out for one debugging session.
type Hub struct {
	mu      sync.Mutex
	sess    *session.Session
	clients map[*websocket.Conn]bool
}

// NewHub creates a hub with no clients. Bind must be called before the hub
// serves connections.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// Bind attaches the session the hub serves. The session is created with
// the hub as its broadcaster, so binding happens after construction.
func (h *Hub) Bind(sess *session.Session) {
	h.mu.Lock()
	h.sess = sess
	h.mu.Unlock()
}

// Broadcast implements session.Broadcaster.
func (h *Hub) Broadcast(msg session.Message) {
	data, err := encode(msg)
	if err != nil {
		log.Printf("remote: encode %s: %v", msg.Kind(), err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("remote: write failed, dropping client: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// encode marshals a message and splices in its kind discriminator.
func encode(msg session.Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "kind", msg.Kind())
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("remote: upgrade: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	sess := h.sess
	h.mu.Unlock()
	if sess == nil {
		log.Printf("remote: no session bound, dropping client")
		return
	}

	// Catch the client up under the lock. The snapshot, the replay, and the
	// registration happen in one hold, so no broadcast slips between the
	// state read and the client joining the fan-out set. Taking the session
	// snapshot under the hub lock is safe: the session never holds its own
	// mutex while broadcasting.
	h.mu.Lock()
	snap := sess.GetState()
	for _, p := range snap.Programs {
		if !h.writeLocked(conn, session.Message(p)) {
			h.mu.Unlock()
			return
		}
	}
	if !h.writeLocked(conn, snap.StateMessage()) {
		h.mu.Unlock()
		return
	}
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("remote: read: %v", err)
			}
			return
		}
		h.handleRequest(conn, sess, data)
	}
}

// writeLocked writes one message to a single connection. Callers hold the
// hub lock.
func (h *Hub) writeLocked(conn *websocket.Conn, msg session.Message) bool {
	data, err := encode(msg)
	if err != nil {
		log.Printf("remote: encode %s: %v", msg.Kind(), err)
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}

// send writes one message to a single connection.
func (h *Hub) send(conn *websocket.Conn, msg session.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeLocked(conn, msg)
}
