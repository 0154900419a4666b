// Package store keeps named saved tracks.
//
// Two backends implement service.TrackStore: FileStore keeps every save in
// one JSON document mapping names to tracks, and SQLStore keeps one row per
// save in SQLite through gorm. Saves hold the grid and turntables only.
package store

import (
	"fmt"
	"strings"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
)

var ErrTrackNotFound = service.ErrTrackNotFound

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store is a TrackStore that holds resources.
type Store interface {
	service.TrackStore
	Close() error
}

// Open returns the backend named kind rooted at path.
func Open(kind, path string) (Store, error) {
	switch strings.ToLower(kind) {
	case "", BackendFile:
		fs, err := NewFileStore(path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case BackendSQLite:
		s, err := NewSQLStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown track store %q (want %s or %s)", kind, BackendFile, BackendSQLite)
}

func checkSave(name string, track engine.SavedTrack) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: track name is required", service.ErrInvalidArgument)
	}
	if err := engine.ValidateSavedTrack(track); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidArgument, err)
	}
	return nil
}

func trackInfo(name string, track engine.SavedTrack) *service.TrackInfo {
	info := &service.TrackInfo{Name: name, Height: len(track.Grid)}
	if len(track.Grid) > 0 {
		info.Width = len(track.Grid[0])
	}
	return info
}
