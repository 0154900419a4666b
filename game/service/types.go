package service

import (
	"time"

	"github.com/wricardo/autotrack/game/engine"
)

// SessionInfo provides information about a track session
type SessionInfo struct {
	ID             string           `json:"id"`
	Layout         string           `json:"layout"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	Running        bool             `json:"running"`
	Snapshot       *engine.Snapshot `json:"snapshot"`
}

// TickResult contains the outcome of manual stepping
type TickResult struct {
	Ticks    int              `json:"ticks"`
	Events   []engine.Event   `json:"events"`
	Snapshot *engine.Snapshot `json:"snapshot"`
}

// SimulationStatus reports whether a session's scheduler is running
type SimulationStatus struct {
	SessionID string        `json:"session_id"`
	Running   bool          `json:"running"`
	Tick      int64         `json:"tick"`
	Cars      int           `json:"cars"`
	Interval  time.Duration `json:"interval_ns"`
}

// TrackInfo describes a named saved track
type TrackInfo struct {
	Name    string    `json:"name"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	SavedAt time.Time `json:"saved_at,omitempty"`
	BuiltIn bool      `json:"built_in,omitempty"`
}

// LayoutInfo provides information about a layout configuration
type LayoutInfo struct {
	Filename    string `json:"filename"`
	LayoutID    string `json:"layout_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Cars        int    `json:"cars"`
}
