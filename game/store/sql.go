package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
)

// savedTrackRow is one saved track
type savedTrackRow struct {
	ID         string         `gorm:"primaryKey;size:36"`
	Name       string         `gorm:"uniqueIndex;size:128;not null"`
	Width      int            `gorm:"not null"`
	Height     int            `gorm:"not null"`
	Grid       datatypes.JSON `gorm:"not null"`
	Turntables datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (savedTrackRow) TableName() string { return "saved_tracks" }

// SQLStore keeps saved tracks in SQLite
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore opens (and migrates) a SQLite database at path. An empty path
// or ":memory:" opens a private in-memory database.
func NewSQLStore(path string) (*SQLStore, error) {
	memory := path == "" || path == ":memory:"
	if memory {
		path = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open track database: %w", err)
	}

	if memory {
		// every pooled connection would otherwise get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&savedTrackRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate track database: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Save upserts track under name
func (s *SQLStore) Save(ctx context.Context, name string, track engine.SavedTrack) (*service.TrackInfo, error) {
	if err := checkSave(name, track); err != nil {
		return nil, err
	}
	grid, err := json.Marshal(track.Grid)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal grid: %w", err)
	}
	tables, err := json.Marshal(track.Turntables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal turntables: %w", err)
	}

	info := trackInfo(name, track)
	row := savedTrackRow{
		ID:         uuid.NewString(),
		Name:       name,
		Width:      info.Width,
		Height:     info.Height,
		Grid:       datatypes.JSON(grid),
		Turntables: datatypes.JSON(tables),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"width", "height", "grid", "turntables", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save track: %w", err)
	}

	info.SavedAt = row.UpdatedAt
	return info, nil
}

func (s *SQLStore) find(ctx context.Context, name string) (*savedTrackRow, error) {
	var row savedTrackRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}
	return &row, nil
}

// Load returns the track saved under name
func (s *SQLStore) Load(ctx context.Context, name string) (engine.SavedTrack, error) {
	row, err := s.find(ctx, name)
	if err != nil {
		return engine.SavedTrack{}, err
	}
	var track engine.SavedTrack
	if err := json.Unmarshal(row.Grid, &track.Grid); err != nil {
		return engine.SavedTrack{}, fmt.Errorf("failed to decode grid of %q: %w", name, err)
	}
	if err := json.Unmarshal(row.Turntables, &track.Turntables); err != nil {
		return engine.SavedTrack{}, fmt.Errorf("failed to decode turntables of %q: %w", name, err)
	}
	return track, nil
}

// Delete removes the save named name
func (s *SQLStore) Delete(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&savedTrackRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete track: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, name)
	}
	return nil
}

// List describes every save ordered by name
func (s *SQLStore) List(ctx context.Context) ([]*service.TrackInfo, error) {
	var rows []savedTrackRow
	err := s.db.WithContext(ctx).
		Select("name", "width", "height", "updated_at").
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	out := make([]*service.TrackInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, &service.TrackInfo{
			Name:    row.Name,
			Width:   row.Width,
			Height:  row.Height,
			SavedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

// Close releases the database
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
