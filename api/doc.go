// Package api provides the HTTP REST API for track sessions.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions {"layout": "starter"} - Create a session from a layout
//   - GET /api/sessions?sort=created|accessed&order=asc|desc&limit=N - List sessions
//   - GET /api/sessions/{id} - Session info with snapshot
//   - DELETE /api/sessions/{id} - Delete a session
//
// Editing tools (each returns the new snapshot):
//   - POST /api/sessions/{id}/track {"x":1,"y":2,"kind":"curve_ne"}
//   - POST /api/sessions/{id}/scenery {"x":1,"y":2,"kind":"tree"}
//   - POST /api/sessions/{id}/erase {"x":1,"y":2}
//   - POST /api/sessions/{id}/cars {"x":1,"y":2,"design":3} - Returns the new car
//   - DELETE /api/sessions/{id}/cars
//   - POST /api/sessions/{id}/reset - Starter loop and demo car
//
// Simulation:
//   - GET /api/sessions/{id}/snapshot
//   - POST /api/sessions/{id}/tick {"n": 50} - Manual stepping
//   - POST /api/sessions/{id}/start and /stop - Scheduler control
//
// Saved tracks and layouts:
//   - POST /api/sessions/{id}/save {"name": "loop"}, /load {"name": "loop"}
//   - GET /api/tracks, DELETE /api/tracks/{name}
//   - GET /api/layouts, GET /api/layouts/{name}, POST /api/layouts
//   - POST /api/sessions/{id}/export {"name": "...", "description": "..."}
//
// Other:
//   - GET /api/designs - Car designs
//   - GET /ws?session={id} - Snapshot stream
//   - GET /health
//
// Errors are returned as {"error": "..."} with 404 for unknown sessions,
// tracks and layouts, 400 for invalid edits, 409 for occupied cells and the
// car limit, and 500 otherwise.
package api
