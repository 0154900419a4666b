package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
)

type fileEntry struct {
	SavedAt time.Time         `json:"saved_at"`
	Track   engine.SavedTrack `json:"track"`
}

// FileStore keeps all saved tracks in one JSON file
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates the parent directory of path if needed
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("track store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create track store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// read loads the whole document. Callers hold fs.mu.
func (fs *FileStore) read() (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to read track store: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse track store: %w", err)
	}
	return entries, nil
}

// write replaces the whole document. Callers hold fs.mu.
func (fs *FileStore) write(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal track store: %w", err)
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write track store: %w", err)
	}
	return os.Rename(tmp, fs.path)
}

// Save stores track under name, replacing any previous save
func (fs *FileStore) Save(_ context.Context, name string, track engine.SavedTrack) (*service.TrackInfo, error) {
	if err := checkSave(name, track); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.read()
	if err != nil {
		return nil, err
	}
	entry := fileEntry{SavedAt: time.Now().UTC(), Track: track}
	entries[name] = entry
	if err := fs.write(entries); err != nil {
		return nil, err
	}

	info := trackInfo(name, track)
	info.SavedAt = entry.SavedAt
	return info, nil
}

// Load returns the track saved under name
func (fs *FileStore) Load(_ context.Context, name string) (engine.SavedTrack, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.read()
	if err != nil {
		return engine.SavedTrack{}, err
	}
	entry, ok := entries[name]
	if !ok {
		return engine.SavedTrack{}, fmt.Errorf("%w: %s", ErrTrackNotFound, name)
	}
	return entry.Track, nil
}

// Delete removes the save named name
func (fs *FileStore) Delete(_ context.Context, name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.read()
	if err != nil {
		return err
	}
	if _, ok := entries[name]; !ok {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, name)
	}
	delete(entries, name)
	return fs.write(entries)
}

// List describes every save in no particular order
func (fs *FileStore) List(_ context.Context) ([]*service.TrackInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.read()
	if err != nil {
		return nil, err
	}
	out := make([]*service.TrackInfo, 0, len(entries))
	for name, entry := range entries {
		info := trackInfo(name, entry.Track)
		info.SavedAt = entry.SavedAt
		out = append(out, info)
	}
	return out, nil
}

// Close is a no-op
func (fs *FileStore) Close() error { return nil }
