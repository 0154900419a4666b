package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
)

func sampleTrack(t *testing.T) engine.SavedTrack {
	t.Helper()
	e, err := engine.NewEngine(5, 4)
	require.NoError(t, err)
	require.NoError(t, e.SetTrack(1, 1, engine.Ground, engine.StraightH))
	require.NoError(t, e.SetTrack(1, 1, engine.Air, engine.BridgeV))
	require.NoError(t, e.PlaceTurntable(2, 1))
	require.NoError(t, e.SetScenery(4, 3, engine.Mountain))
	return e.Save()
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "data", "tracks.json"))
	require.NoError(t, err)
	mem, err := NewSQLStore(":memory:")
	require.NoError(t, err)
	disk, err := NewSQLStore(filepath.Join(t.TempDir(), "tracks.db"))
	require.NoError(t, err)

	stores := map[string]Store{"file": fs, "sqlite-memory": mem, "sqlite-file": disk}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			track := sampleTrack(t)

			info, err := s.Save(ctx, "Yard", track)
			require.NoError(t, err)
			assert.Equal(t, "Yard", info.Name)
			assert.Equal(t, 5, info.Width)
			assert.Equal(t, 4, info.Height)
			assert.False(t, info.SavedAt.IsZero())

			loaded, err := s.Load(ctx, "Yard")
			require.NoError(t, err)
			assert.Equal(t, track, loaded)

			// the loaded save rebuilds the same engine state
			e, err := engine.NewEngine(3, 3)
			require.NoError(t, err)
			require.NoError(t, e.Load(loaded))
			assert.Equal(t, engine.Turntable, e.TrackAt(2, 1, engine.Ground))
			assert.Equal(t, engine.BridgeV, e.TrackAt(1, 1, engine.Air))
			assert.Equal(t, engine.Mountain, e.CellAt(4, 3).Scenery)
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(ctx, "Yard", sampleTrack(t))
			require.NoError(t, err)

			e, err := engine.NewEngine(3, 3)
			require.NoError(t, err)
			require.NoError(t, e.SetTrack(0, 0, engine.Ground, engine.CurveSE))
			_, err = s.Save(ctx, "Yard", e.Save())
			require.NoError(t, err)

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, 3, list[0].Width)

			loaded, err := s.Load(ctx, "Yard")
			require.NoError(t, err)
			assert.Equal(t, engine.CurveSE, loaded.Grid[0][0].Ground)
			assert.Empty(t, loaded.Turntables)
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			list, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			for _, n := range []string{"b", "a", "c"} {
				_, err := s.Save(ctx, n, sampleTrack(t))
				require.NoError(t, err)
			}
			list, err = s.List(ctx)
			require.NoError(t, err)
			names := map[string]bool{}
			for _, info := range list {
				names[info.Name] = true
			}
			assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, names)

			require.NoError(t, s.Delete(ctx, "b"))
			assert.ErrorIs(t, s.Delete(ctx, "b"), service.ErrTrackNotFound)
			_, err = s.Load(ctx, "b")
			assert.ErrorIs(t, err, service.ErrTrackNotFound)

			list, err = s.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 2)
		})
	}
}

func TestStore_RejectsBadSaves(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(ctx, " ", sampleTrack(t))
			assert.ErrorIs(t, err, service.ErrInvalidArgument)

			_, err = s.Save(ctx, "tiny", engine.SavedTrack{Grid: [][]engine.Cell{{}}})
			assert.ErrorIs(t, err, service.ErrInvalidArgument)

			_, err = s.Load(ctx, "missing")
			assert.ErrorIs(t, err, service.ErrTrackNotFound)
		})
	}
}

func TestFileStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracks.json")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = first.Save(ctx, "Yard", sampleTrack(t))
	require.NoError(t, err)

	second, err := NewFileStore(path)
	require.NoError(t, err)
	loaded, err := second.Load(ctx, "Yard")
	require.NoError(t, err)
	assert.Len(t, loaded.Grid, 4)

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))
	_, err = second.List(ctx)
	assert.Error(t, err)
}

func TestSQLStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracks.db")

	first, err := NewSQLStore(path)
	require.NoError(t, err)
	_, err = first.Save(ctx, "Yard", sampleTrack(t))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLStore(path)
	require.NoError(t, err)
	defer second.Close()
	loaded, err := second.Load(ctx, "Yard")
	require.NoError(t, err)
	assert.Len(t, loaded.Turntables, 1)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("file", filepath.Join(dir, "tracks.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open("SQLite", filepath.Join(dir, "tracks.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", "")
	assert.Error(t, err)
}
