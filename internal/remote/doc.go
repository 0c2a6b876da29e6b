// Package remote carries debugging sessions over plain WebSocket.
//
// A Hub implements session.Broadcaster: every session state change is
// marshaled once and written to all connected clients. Inbound client
// requests are decoded and dispatched to the bound session's operations.
//
// A client connecting mid-session is brought up to date before it sees any
// broadcast: it receives a NewProgram message for every program seen so
// far, followed by the current State.
//
// The hub is fire-and-forget: a write failure drops the client, there is
// no acknowledgment and no backpressure.
package remote
