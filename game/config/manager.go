package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = service.ErrInvalidConfig
)

// Manager handles layout loading and caching. The built-in starter layout is
// always available under engine.StarterLayoutName unless a file of that name
// overrides it.
type Manager struct {
	configDir   string
	defaultName string
	configs     map[string]*engine.TrackConfig
	mu          sync.RWMutex
}

// NewManager creates a new layout manager
func NewManager(configDir string) (*Manager, error) {
	// Ensure config directory exists
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	return &Manager{
		configDir:   configDir,
		defaultName: engine.StarterLayoutName,
		configs:     make(map[string]*engine.TrackConfig),
	}, nil
}

func layoutFile(name string) string {
	if strings.HasSuffix(name, ".json") {
		return name
	}
	return name + ".json"
}

// LoadConfig loads a layout by name
func (m *Manager) LoadConfig(name string) (*engine.TrackConfig, error) {
	name = strings.TrimSuffix(name, ".json")

	m.mu.RLock()
	// Check cache first
	if cfg, exists := m.configs[name]; exists {
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(name)
}

// loadLocked reads a layout from disk into the cache. Callers hold m.mu.
func (m *Manager) loadLocked(name string) (*engine.TrackConfig, error) {
	// Double-check after acquiring write lock
	if cfg, exists := m.configs[name]; exists {
		return cfg, nil
	}

	cfg, err := engine.LoadTrackConfig(filepath.Join(m.configDir, layoutFile(name)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if name == engine.StarterLayoutName {
				cfg = engine.StarterConfig()
				m.configs[name] = cfg
				return cfg, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
		}
		if errors.Is(err, engine.ErrInvalidLayout) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}

	// Cache the layout
	m.configs[name] = cfg
	return cfg, nil
}

// ListConfigs returns information about all available layouts, including the
// built-in starter, sorted by layout ID
func (m *Manager) ListConfigs() ([]*service.LayoutInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var layouts []*service.LayoutInfo
	seenStarter := false
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		// Remove .json extension for layout ID
		name := strings.TrimSuffix(entry.Name(), ".json")
		cfg, err := m.LoadConfig(name)
		if err != nil {
			// Skip invalid layouts
			continue
		}
		if name == engine.StarterLayoutName {
			seenStarter = true
		}
		layouts = append(layouts, layoutInfo(entry.Name(), name, cfg))
	}

	if !seenStarter {
		layouts = append(layouts, layoutInfo("", engine.StarterLayoutName, engine.StarterConfig()))
	}
	sort.Slice(layouts, func(i, j int) bool { return layouts[i].LayoutID < layouts[j].LayoutID })
	return layouts, nil
}

func layoutInfo(filename, id string, cfg *engine.TrackConfig) *service.LayoutInfo {
	return &service.LayoutInfo{
		Filename:    filename,
		LayoutID:    id, // This is the identifier to use for session creation
		Name:        cfg.Name,
		Description: cfg.Description,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Cars:        len(cfg.Cars),
	}
}

// GetDefault returns the default layout, falling back to the starter loop
// when the configured default cannot be loaded
func (m *Manager) GetDefault() *engine.TrackConfig {
	cfg, err := m.LoadConfig(m.DefaultName())
	if err != nil {
		return engine.StarterConfig()
	}
	return cfg
}

// DefaultName returns the layout ID used when none is requested
func (m *Manager) DefaultName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultName
}

// SetDefault sets the default layout by name
func (m *Manager) SetDefault(name string) error {
	name = strings.TrimSuffix(name, ".json")
	if _, err := m.LoadConfig(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultName = name
	return nil
}

// RefreshCache drops all cached layouts so the next load reads from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = make(map[string]*engine.TrackConfig)
}

// SaveConfig validates a layout and writes it to disk
func (m *Manager) SaveConfig(name string, cfg *engine.TrackConfig) error {
	if err := engine.ValidateTrackConfig(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid layout name %q", ErrInvalidConfig, name)
	}

	// Marshal layout to JSON with indentation
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal layout: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.configDir, layoutFile(name)), data, 0644); err != nil {
		return fmt.Errorf("failed to write layout file: %w", err)
	}

	// Update cache
	m.mu.Lock()
	m.configs[name] = cfg
	m.mu.Unlock()

	return nil
}
