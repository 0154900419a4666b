package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/ticker"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrTrackNotFound        = errors.New("saved track not found")
	ErrConfigNotFound       = errors.New("layout not found")
	ErrInvalidConfig        = errors.New("invalid layout")
	ErrInvalidArgument      = errors.New("invalid argument")
)

// StarterTrackName is the built-in entry offered alongside saved tracks.
const StarterTrackName = "Starter Loop"

// TrackService defines all track-related operations
type TrackService interface {
	// Session Management
	CreateSession(ctx context.Context, layout string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Editing tools
	PlaceTrack(ctx context.Context, sessionID string, x, y int, kind engine.TrackKind) (*engine.Snapshot, error)
	PlaceScenery(ctx context.Context, sessionID string, x, y int, kind engine.SceneryKind) (*engine.Snapshot, error)
	Erase(ctx context.Context, sessionID string, x, y int) (*engine.Snapshot, error)
	PlaceCar(ctx context.Context, sessionID string, x, y, design int) (*engine.Car, error)
	RemoveAllCars(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	ResetToStarter(ctx context.Context, sessionID string) (*engine.Snapshot, error)

	// Simulation
	GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	Tick(ctx context.Context, sessionID string, n int) (*TickResult, error)
	StartSimulation(ctx context.Context, sessionID string) (*SimulationStatus, error)
	StopSimulation(ctx context.Context, sessionID string) (*SimulationStatus, error)

	// Saved tracks
	SaveTrack(ctx context.Context, sessionID, name string) (*TrackInfo, error)
	LoadTrack(ctx context.Context, sessionID, name string) (*engine.Snapshot, error)
	DeleteTrack(ctx context.Context, name string) error
	ListTracks(ctx context.Context) ([]*TrackInfo, error)

	// Layouts
	ListLayouts(ctx context.Context) ([]*LayoutInfo, error)
	LoadLayout(ctx context.Context, name string) (*engine.TrackConfig, error)
	SaveLayout(ctx context.Context, name string, cfg *engine.TrackConfig) error
	ExportLayout(ctx context.Context, sessionID, name, description string) (*engine.TrackConfig, error)

	// Maintenance
	PruneSessions(ctx context.Context, maxIdle time.Duration) (int, error)
	Shutdown(ctx context.Context) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, layout string, cfg *engine.TrackConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles layout configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.TrackConfig, error)
	ListConfigs() ([]*LayoutInfo, error)
	GetDefault() *engine.TrackConfig
	DefaultName() string
	SaveConfig(name string, cfg *engine.TrackConfig) error
}

// TrackStore persists named tracks
type TrackStore interface {
	Save(ctx context.Context, name string, track engine.SavedTrack) (*TrackInfo, error)
	Load(ctx context.Context, name string) (engine.SavedTrack, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*TrackInfo, error)
}

// Lifecycle events sent through Publisher.PublishEvent.
const (
	EventSimulationStarted = "simulation_started"
	EventSimulationStopped = "simulation_stopped"
	EventSessionDeleted    = "session_deleted"
)

// Publisher receives a snapshot after every change to a session, and
// lifecycle events for changes that do not alter the track.
type Publisher interface {
	Publish(sessionID string, snap *engine.Snapshot, events []engine.Event)
	PublishEvent(sessionID, event string, data any)
}

// Session represents an active track session. The engine is only touched
// while the service lock is held; the ticker is created lazily by the service.
type Session struct {
	ID             string
	Layout         string
	Engine         engine.Engine
	Ticker         *ticker.Ticker
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
