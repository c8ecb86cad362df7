// Package websocket pushes localization snapshots to browser clients.
//
// Architecture:
//
// A central Hub owns every connection. Registration, removal and fan-out all
// run on the Hub's Run goroutine, so the client map has a single owner. Each
// connection has a write pump and a read pump; the read side only exists to
// answer pings and notice disconnects.
//
// Message Protocol:
//
// Outgoing messages are JSON objects:
//
//	{"session_id": "ab12", "event": "step", "snapshot": {...}}
//
// Events are "connected" (initial snapshot), "step", "restart" and
// "state_update". Clients never send commands over the socket.
//
// Session Integration:
//
// Clients pick a session with the session query parameter (/ws?session=ab12).
// Session IDs match case-insensitively.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	hub.ServeWS(w, r, sessionID, snapshot)
//	hub.BroadcastSnapshot(sessionID, websocket.EventStep, snapshot)
//
// Broadcasts are queued and never block the caller. When the queue is full
// the message is dropped and logged.
package websocket
