package session

import (
	"time"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the JSON structure for persisted sessions.
// Schedulers are never persisted; a restored session starts stopped.
type PersistedSessionData struct {
	ID             string            `json:"id"`
	Layout         string            `json:"layout"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Tick           int64             `json:"tick"`
	Track          engine.SavedTrack `json:"track"`
	Cars           []engine.Car      `json:"cars"`
}

func persistedData(s *service.Session) PersistedSessionData {
	return PersistedSessionData{
		ID:             s.ID,
		Layout:         s.Layout,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		Tick:           s.Engine.TickCount(),
		Track:          s.Engine.Save(),
		Cars:           s.Engine.Cars(),
	}
}

// restore rebuilds a session from persisted data
func (d PersistedSessionData) restore() (*service.Session, error) {
	eng := engine.NewEngineWithDefaults()
	if err := eng.Load(d.Track); err != nil {
		return nil, err
	}
	if err := eng.RestoreCars(d.Cars, d.Tick); err != nil {
		return nil, err
	}
	return &service.Session{
		ID:             d.ID,
		Layout:         d.Layout,
		Engine:         eng,
		CreatedAt:      d.CreatedAt,
		LastAccessedAt: d.LastAccessedAt,
	}, nil
}
