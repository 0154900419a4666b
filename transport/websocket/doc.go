// Package websocket streams track snapshots to browser clients.
//
// A central Hub owns every connection. Clients subscribe to one session by
// ID when they connect and receive a JSON Message after each change to that
// session:
//
//	{"session_id": "ab12", "event": "snapshot", "snapshot": {...}, "events": [...]}
//
// Lifecycle changes that leave the track untouched arrive as event messages
// with an optional payload instead of a snapshot:
//
//	{"session_id": "ab12", "event": "simulation_stopped", "data": {"running": false, ...}}
//
// The Hub implements the service Publisher, so the track service hands it a
// snapshot after every edit and every scheduled tick. Publishing never
// blocks the simulation: messages queue on a buffered channel and a client
// that falls behind is disconnected.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	svc := service.NewTrackService(sessions, configs, tracks, service.WithPublisher(hub))
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"), nil)
//	})
//
// Clients never send commands over the socket; edits go through the HTTP
// API or the MCP tools. Cancelling the Run context closes every connection.
package websocket
