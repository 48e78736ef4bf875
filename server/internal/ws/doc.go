// Package ws implements the WebSocket feed stream for rzadesk-server.
//
// Clients connect to /ws/sessions/{id} and receive that session's state:
// immediately on connect, after every change the API reports through
// Hub.Notify, and on every stream interval tick.
//
// New(store, interval) creates a Hub.
// Hub.Run(ctx) starts the interval ticker; it blocks until ctx is cancelled,
// then closes all active connections.
//
// Message format sent to clients:
//
//	{"event": "feed", "data": { /* same schema as GET /api/v1/sessions/{id} */ }}
//	{"event": "closed"}
//
// "closed" is sent once when the session is deleted or evicted, after which
// the server closes the connection. Unknown session ids get 404 before the
// upgrade.
package ws
