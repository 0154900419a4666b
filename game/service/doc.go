// Package service provides the business logic layer for the track simulator.
//
// The service package implements:
//   - Multi-session track management
//   - Editing tools (track, scenery, eraser, cars)
//   - Manual stepping and a per-session scheduler
//   - Named saved tracks and layout configurations
//
// Core Interfaces:
//
// TrackService is the main service interface used by every transport.
// SessionManager handles session creation, retrieval, and persistence.
// ConfigManager loads layout files. TrackStore keeps named saved tracks.
// Publisher receives a snapshot after every change, plus simulation
// start/stop and session deletion events.
//
// Concurrency:
//
// A single service lock serialises all engine access, so scheduler ticks
// and edits from HTTP, WebSocket, or MCP clients never interleave within a
// tick. Snapshots are published after the lock is released.
//
// Usage:
//
//	sessionMgr := session.NewManager(logger)
//	configMgr := config.NewManager("layouts")
//	trackStore := store.NewFileStore("data/tracks.json")
//	svc := service.NewTrackService(sessionMgr, configMgr, trackStore,
//		service.WithPublisher(hub),
//		service.WithLogger(logger),
//	)
//
//	info, err := svc.CreateSession(ctx, "")
//	if err != nil {
//		log.Fatal(err)
//	}
//	result, err := svc.Tick(ctx, info.ID, 50)
package service
