// Package mcp exposes the track editor as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes a request to the REST
// API, so MCP agents and browser clients drive the same sessions and see the
// same snapshots over the WebSocket stream. API errors come back as tool
// error results, never as Go errors.
//
// Tools:
//   - create_session, list_sessions, get_session, delete_session
//   - place_track, place_scenery, erase, place_car, remove_cars, reset_track
//   - snapshot, describe_cell, tick, start_simulation, stop_simulation
//   - save_track, load_track, delete_track, list_tracks
//   - list_layouts, export_layout
//
// Grids are rendered as text with the layout legend, one block per level,
// with cars drawn as '@'.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
