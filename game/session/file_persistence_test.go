package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
)

func newTestSession(t *testing.T, id string) *service.Session {
	t.Helper()
	return &service.Session{
		ID:             id,
		Layout:         engine.StarterLayoutName,
		Engine:         engine.NewEngineWithDefaults(),
		CreatedAt:      time.Now().Add(-time.Minute).Round(time.Second),
		LastAccessedAt: time.Now().Round(time.Second),
	}
}

func TestFilePersistence(t *testing.T) {
	persistence, err := NewFilePersistence(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	session := newTestSession(t, "test1")

	t.Run("Save and Load Session", func(t *testing.T) {
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
		if !persistence.Exists("test1") {
			t.Error("Session file should exist after save")
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if loaded.ID != session.ID || loaded.Layout != session.Layout {
			t.Errorf("Expected %s/%s, got %s/%s", session.ID, session.Layout, loaded.ID, loaded.Layout)
		}
		if !loaded.CreatedAt.Equal(session.CreatedAt) {
			t.Errorf("Expected created_at %v, got %v", session.CreatedAt, loaded.CreatedAt)
		}
		if len(loaded.Engine.Cars()) != 1 {
			t.Errorf("Expected the demo car, got %d cars", len(loaded.Engine.Cars()))
		}
		if loaded.Ticker != nil {
			t.Error("Restored sessions must start without a scheduler")
		}
	})

	t.Run("Save State Changes", func(t *testing.T) {
		session.Engine.TickN(75)
		if err := session.Engine.SetTrack(0, 0, engine.Ground, engine.Turntable); err != nil {
			t.Fatalf("SetTrack failed: %v", err)
		}
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save updated session: %v", err)
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load updated session: %v", err)
		}
		if loaded.Engine.TickCount() != 75 {
			t.Errorf("Expected tick 75, got %d", loaded.Engine.TickCount())
		}
		want, got := session.Engine.Cars()[0], loaded.Engine.Cars()[0]
		if want != got {
			t.Errorf("Car not persisted correctly: want %+v, got %+v", want, got)
		}
		if loaded.Engine.TrackAt(0, 0, engine.Ground) != engine.Turntable || len(loaded.Engine.Turntables()) != 1 {
			t.Error("Turntable not persisted correctly")
		}

		// Restored engines keep simulating in step with the original
		session.Engine.TickN(600)
		loaded.Engine.TickN(600)
		if session.Engine.Cars()[0] != loaded.Engine.Cars()[0] {
			t.Error("Restored engine diverged from the original")
		}
	})

	t.Run("List All Sessions", func(t *testing.T) {
		if err := persistence.Save(newTestSession(t, "test2")); err != nil {
			t.Fatalf("Failed to save second session: %v", err)
		}

		sessionIDs, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}
		found := make(map[string]bool)
		for _, id := range sessionIDs {
			found[id] = true
		}
		if len(sessionIDs) != 2 || !found["test1"] || !found["test2"] {
			t.Errorf("Expected test1 and test2, got %v", sessionIDs)
		}
	})

	t.Run("Delete Session", func(t *testing.T) {
		if err := persistence.Delete("test2"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if persistence.Exists("test2") {
			t.Error("Session should not exist after delete")
		}
		if _, err := persistence.Load("test2"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Error Cases", func(t *testing.T) {
		if _, err := persistence.Load("nonexistent"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if err := persistence.Delete("nonexistent"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if err := persistence.Save(nil); err == nil {
			t.Error("Should get error when saving nil session")
		}
	})
}

func TestFilePersistence_CorruptFiles(t *testing.T) {
	dir := t.TempDir()
	persistence, err := NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "junk.json"), []byte("not json"), 0644)
	if _, err := persistence.Load("junk"); err == nil {
		t.Error("Expected error for malformed session file")
	}

	bad := PersistedSessionData{ID: "bad", Track: engine.SavedTrack{Grid: [][]engine.Cell{{}}}}
	data, _ := json.Marshal(bad)
	os.WriteFile(filepath.Join(dir, "bad.json"), data, 0644)
	if _, err := persistence.Load("bad"); err == nil {
		t.Error("Expected error for invalid persisted track")
	}
}

func TestFilePersistenceFileStructure(t *testing.T) {
	tempDir := t.TempDir()
	persistence, err := NewFilePersistence(tempDir)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	if err := persistence.Save(newTestSession(t, "File1")); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	// IDs are stored lowercase
	expectedFile := filepath.Join(tempDir, "file1.json")
	data, err := os.ReadFile(expectedFile)
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}
	if _, err := os.Stat(expectedFile + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should be renamed away")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Session file is not valid JSON: %v", err)
	}
	for _, field := range []string{"id", "layout", "created_at", "last_accessed_at", "tick", "track", "cars"} {
		if _, ok := fields[field]; !ok {
			t.Errorf("Session file should contain field %q", field)
		}
	}
}
