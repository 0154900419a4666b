package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/ticker"
)

// trackServiceImpl implements the TrackService interface
type trackServiceImpl struct {
	sessions  SessionManager
	configs   ConfigManager
	tracks    TrackStore
	publisher Publisher
	logger    zerolog.Logger
	tickRate  int
	autoStart bool
	metrics   *serviceMetrics
	mu        sync.Mutex
}

// Option configures the service
type Option func(*trackServiceImpl)

// WithPublisher sends snapshots to p after every change
func WithPublisher(p Publisher) Option {
	return func(s *trackServiceImpl) { s.publisher = p }
}

// WithLogger sets the service logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *trackServiceImpl) { s.logger = l }
}

// WithTickRate sets the scheduler rate in ticks per second
func WithTickRate(rate int) Option {
	return func(s *trackServiceImpl) { s.tickRate = rate }
}

// WithAutoStart starts the scheduler of every newly created session
func WithAutoStart(on bool) Option {
	return func(s *trackServiceImpl) { s.autoStart = on }
}

// NewTrackService creates a new track service instance
func NewTrackService(sessions SessionManager, configs ConfigManager, tracks TrackStore, opts ...Option) TrackService {
	s := &trackServiceImpl{
		sessions: sessions,
		configs:  configs,
		tracks:   tracks,
		logger:   zerolog.Nop(),
		tickRate: ticker.DefaultRate,
	}
	for _, opt := range opts {
		opt(s)
	}

	metrics, err := newServiceMetrics(nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("metrics unavailable, using no-op instruments")
		metrics, _ = newServiceMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	}
	s.metrics = metrics
	return s
}

// locked runs fn on a session while holding the service lock and returns the
// snapshot taken before the lock is released.
func (s *trackServiceImpl) locked(sessionID string, fn func(sess *Session) error) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	snap := sess.Engine.Snapshot()
	return &snap, nil
}

// getSession looks a session up and touches its access time. Callers hold s.mu.
func (s *trackServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	if err := s.sessions.UpdateLastAccessed(sess.ID); err != nil {
		s.logger.Warn().Err(err).Str("session", sess.ID).Msg("failed to update last access")
	}
	return sess, nil
}

// persist saves a session after an edit. Callers hold s.mu.
func (s *trackServiceImpl) persist(sess *Session) {
	if err := s.sessions.Save(sess.ID); err != nil {
		s.logger.Warn().Err(err).Str("session", sess.ID).Msg("failed to persist session")
	}
}

func (s *trackServiceImpl) publish(sessionID string, snap *engine.Snapshot, events []engine.Event) {
	if s.publisher == nil || snap == nil {
		return
	}
	s.publisher.Publish(sessionID, snap, events)
}

func (s *trackServiceImpl) publishEvent(sessionID, event string, data any) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishEvent(sessionID, event, data)
}

// edit applies a tool to a session, persists it and publishes the result.
func (s *trackServiceImpl) edit(ctx context.Context, sessionID, tool string, fn func(e engine.Engine) error) (*engine.Snapshot, error) {
	snap, err := s.locked(sessionID, func(sess *Session) error {
		if err := fn(sess.Engine); err != nil {
			return err
		}
		s.persist(sess)
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("session", sessionID).Str("tool", tool).Msg("edit rejected")
		return nil, err
	}
	s.metrics.recordEdit(ctx, tool)
	s.logger.Debug().Str("session", sessionID).Str("tool", tool).Msg("edit applied")
	s.publish(sessionID, snap, nil)
	return snap, nil
}

func (s *trackServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	snap := sess.Engine.Snapshot()
	return &SessionInfo{
		ID:             sess.ID,
		Layout:         sess.Layout,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Running:        sess.Ticker != nil && sess.Ticker.Running(),
		Snapshot:       &snap,
	}
}

// CreateSession creates a new session from a named layout, or the default
// layout when name is empty
func (s *trackServiceImpl) CreateSession(ctx context.Context, layout string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg *engine.TrackConfig
	if layout == "" {
		cfg = s.configs.GetDefault()
		layout = s.configs.DefaultName()
	} else {
		var err error
		cfg, err = s.configs.LoadConfig(layout)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				if available, listErr := s.configs.ListConfigs(); listErr == nil && len(available) > 0 {
					ids := make([]string, 0, len(available))
					for _, info := range available {
						ids = append(ids, info.LayoutID)
					}
					return nil, fmt.Errorf("layout '%s': %w. Available layouts: %s", layout, err, strings.Join(ids, ", "))
				}
			}
			return nil, fmt.Errorf("failed to load layout %s: %w", layout, err)
		}
	}

	// Let the session manager generate a 4-character ID
	sess, err := s.sessions.Create("", layout, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info().Str("session", sess.ID).Str("layout", layout).Msg("session created")
	if s.autoStart {
		s.startLocked(sess)
	}
	return s.sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *trackServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions ordered by creation time
func (s *trackServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteSession stops the session's scheduler and removes it
func (s *trackServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.stopTicker(sessionID)

	s.mu.Lock()
	err := s.sessions.Delete(sessionID)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.logger.Info().Str("session", sessionID).Msg("session deleted")
	s.publishEvent(sessionID, EventSessionDeleted, nil)
	return nil
}

// PlaceTrack puts a track tile in a cell. Bridges go to the elevated slot,
// every other kind to the ground.
func (s *trackServiceImpl) PlaceTrack(ctx context.Context, sessionID string, x, y int, kind engine.TrackKind) (*engine.Snapshot, error) {
	if kind == engine.NoTrack {
		return nil, fmt.Errorf("%w: track kind is required", ErrInvalidArgument)
	}
	level := engine.Ground
	if kind.IsBridge() {
		level = engine.Air
	}
	return s.edit(ctx, sessionID, "track", func(e engine.Engine) error {
		return e.SetTrack(x, y, level, kind)
	})
}

// PlaceScenery decorates a cell without track
func (s *trackServiceImpl) PlaceScenery(ctx context.Context, sessionID string, x, y int, kind engine.SceneryKind) (*engine.Snapshot, error) {
	if kind == engine.NoScenery {
		return nil, fmt.Errorf("%w: scenery kind is required", ErrInvalidArgument)
	}
	return s.edit(ctx, sessionID, "scenery", func(e engine.Engine) error {
		return e.SetScenery(x, y, kind)
	})
}

// Erase clears a whole cell and its turntable
func (s *trackServiceImpl) Erase(ctx context.Context, sessionID string, x, y int) (*engine.Snapshot, error) {
	return s.edit(ctx, sessionID, "eraser", func(e engine.Engine) error {
		return e.ClearCell(x, y)
	})
}

// PlaceCar spawns a car on the track in a cell. The heading follows the
// ground track when there is one; the car rides the elevated level whenever
// the cell has a bridge.
func (s *trackServiceImpl) PlaceCar(ctx context.Context, sessionID string, x, y, design int) (*engine.Car, error) {
	if design == 0 {
		design = engine.CarDesigns[0].ID
	}
	var car engine.Car
	snap, err := s.locked(sessionID, func(sess *Session) error {
		cell := sess.Engine.CellAt(x, y)
		kind := cell.Ground
		if kind == engine.NoTrack {
			kind = cell.Air
		}
		if kind == engine.NoTrack {
			return fmt.Errorf("place car at (%d,%d): %w", x, y, engine.ErrNoTrack)
		}
		level := engine.Ground
		if cell.Air != engine.NoTrack {
			level = engine.Air
		}
		var err error
		car, err = sess.Engine.SpawnCar(x, y, level, engine.InitialDirection(kind), design)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.recordEdit(ctx, "car")
	s.logger.Debug().Str("session", sessionID).Int("car", car.ID).Str("heading", car.Direction.String()).Msg("car placed")
	s.publish(sessionID, snap, nil)
	return &car, nil
}

// RemoveAllCars clears every car from a session
func (s *trackServiceImpl) RemoveAllCars(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	return s.edit(ctx, sessionID, "remove_cars", func(e engine.Engine) error {
		e.RemoveAllCars()
		return nil
	})
}

// ResetToStarter restores the starter loop and its demo car
func (s *trackServiceImpl) ResetToStarter(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	return s.edit(ctx, sessionID, "reset", func(e engine.Engine) error {
		e.Reset()
		return nil
	})
}

// GetSnapshot returns the current simulation state
func (s *trackServiceImpl) GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	return s.locked(sessionID, func(*Session) error { return nil })
}

// Tick advances a session by n ticks
func (s *trackServiceImpl) Tick(ctx context.Context, sessionID string, n int) (*TickResult, error) {
	if n < 1 || n > engine.MaxTickBatch {
		return nil, fmt.Errorf("%w: tick count must be between 1 and %d, got %d", ErrInvalidArgument, engine.MaxTickBatch, n)
	}
	var events []engine.Event
	snap, err := s.locked(sessionID, func(sess *Session) error {
		events = sess.Engine.TickN(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.recordTicks(ctx, n, events)
	s.logEvents(sessionID, events)
	s.publish(sessionID, snap, events)
	return &TickResult{Ticks: n, Events: events, Snapshot: snap}, nil
}

// step is the scheduler callback. It never touches the ticker itself.
func (s *trackServiceImpl) step(sessionID string) {
	s.mu.Lock()
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		s.mu.Unlock()
		return
	}
	events := sess.Engine.Tick()
	snap := sess.Engine.Snapshot()
	s.mu.Unlock()

	s.metrics.recordTicks(context.Background(), 1, events)
	s.logEvents(sessionID, events)
	s.publish(sessionID, &snap, events)
}

func (s *trackServiceImpl) logEvents(sessionID string, events []engine.Event) {
	for _, ev := range events {
		s.logger.Debug().
			Str("session", sessionID).
			Str("event", string(ev.Type)).
			Int("car", ev.CarID).
			Stringer("pos", ev.Position).
			Int64("tick", ev.Tick).
			Msg("motion event")
	}
}

// StartSimulation runs the session's scheduler. Starting twice is harmless.
func (s *trackServiceImpl) StartSimulation(ctx context.Context, sessionID string) (*SimulationStatus, error) {
	s.mu.Lock()
	sess, err := s.getSession(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.startLocked(sess)
	status := s.status(sess)
	s.mu.Unlock()

	s.publishEvent(sessionID, EventSimulationStarted, status)
	return status, nil
}

// startLocked creates the scheduler on first use and starts it. s.mu must be
// held; the first step blocks until it is released.
func (s *trackServiceImpl) startLocked(sess *Session) {
	if sess.Ticker == nil {
		id := sess.ID
		sess.Ticker = ticker.New(s.tickRate, func() { s.step(id) })
	}
	sess.Ticker.Start()
	s.logger.Info().Str("session", sess.ID).Dur("interval", sess.Ticker.Interval()).Msg("simulation started")
}

// StopSimulation halts the session's scheduler and persists the session.
// Stopping a stopped session is harmless.
func (s *trackServiceImpl) StopSimulation(ctx context.Context, sessionID string) (*SimulationStatus, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	s.stopTicker(sessionID)

	s.mu.Lock()
	sess, err := s.getSession(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.persist(sess)
	status := s.status(sess)
	s.mu.Unlock()

	s.logger.Info().Str("session", sessionID).Msg("simulation stopped")
	s.publishEvent(sessionID, EventSimulationStopped, status)
	return status, nil
}

// stopTicker stops a session's scheduler without holding s.mu, since the
// scheduler callback takes that lock.
func (s *trackServiceImpl) stopTicker(sessionID string) {
	s.mu.Lock()
	var tk *ticker.Ticker
	if sess, err := s.sessions.Get(sessionID); err == nil {
		tk = sess.Ticker
	}
	s.mu.Unlock()
	if tk != nil {
		tk.Stop()
	}
}

func (s *trackServiceImpl) status(sess *Session) *SimulationStatus {
	st := &SimulationStatus{
		SessionID: sess.ID,
		Tick:      sess.Engine.TickCount(),
		Cars:      len(sess.Engine.Cars()),
	}
	if sess.Ticker != nil {
		st.Running = sess.Ticker.Running()
		st.Interval = sess.Ticker.Interval()
	}
	return st
}

// SaveTrack stores the session's grid and turntables under name
func (s *trackServiceImpl) SaveTrack(ctx context.Context, sessionID, name string) (*TrackInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: track name is required", ErrInvalidArgument)
	}
	if name == StarterTrackName {
		return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidArgument, name)
	}

	var saved engine.SavedTrack
	if _, err := s.locked(sessionID, func(sess *Session) error {
		saved = sess.Engine.Save()
		return nil
	}); err != nil {
		return nil, err
	}

	info, err := s.tracks.Save(ctx, name, saved)
	if err != nil {
		return nil, fmt.Errorf("save track %q: %w", name, err)
	}
	s.logger.Info().Str("session", sessionID).Str("track", name).Msg("track saved")
	return info, nil
}

// LoadTrack replaces a session's layout with a saved track and clears its
// cars. The built-in starter entry resets to the starter loop instead.
func (s *trackServiceImpl) LoadTrack(ctx context.Context, sessionID, name string) (*engine.Snapshot, error) {
	if name == StarterTrackName {
		return s.ResetToStarter(ctx, sessionID)
	}
	saved, err := s.tracks.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load track %q: %w", name, err)
	}
	return s.edit(ctx, sessionID, "load", func(e engine.Engine) error {
		return e.Load(saved)
	})
}

// DeleteTrack removes a saved track
func (s *trackServiceImpl) DeleteTrack(ctx context.Context, name string) error {
	if name == StarterTrackName {
		return fmt.Errorf("%w: %q is built in", ErrInvalidArgument, name)
	}
	if err := s.tracks.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete track %q: %w", name, err)
	}
	return nil
}

// ListTracks returns the starter entry followed by saved tracks by name
func (s *trackServiceImpl) ListTracks(ctx context.Context) ([]*TrackInfo, error) {
	saved, err := s.tracks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i].Name < saved[j].Name })

	out := make([]*TrackInfo, 0, len(saved)+1)
	out = append(out, &TrackInfo{
		Name:    StarterTrackName,
		Width:   engine.GridWidth,
		Height:  engine.GridHeight,
		BuiltIn: true,
	})
	return append(out, saved...), nil
}

// ListLayouts returns all available layout configurations
func (s *trackServiceImpl) ListLayouts(ctx context.Context) ([]*LayoutInfo, error) {
	return s.configs.ListConfigs()
}

// LoadLayout loads a specific layout configuration
func (s *trackServiceImpl) LoadLayout(ctx context.Context, name string) (*engine.TrackConfig, error) {
	return s.configs.LoadConfig(name)
}

// SaveLayout writes a layout configuration
func (s *trackServiceImpl) SaveLayout(ctx context.Context, name string, cfg *engine.TrackConfig) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: layout name is required", ErrInvalidArgument)
	}
	return s.configs.SaveConfig(name, cfg)
}

// ExportLayout renders a session's current track as a layout configuration,
// including its cars at their current tiles.
func (s *trackServiceImpl) ExportLayout(ctx context.Context, sessionID, name, description string) (*engine.TrackConfig, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: layout name is required", ErrInvalidArgument)
	}
	var cfg *engine.TrackConfig
	if _, err := s.locked(sessionID, func(sess *Session) error {
		var err error
		cfg, err = engine.ConfigFromTrack(name, description, sess.Engine.Save())
		if err != nil {
			return err
		}
		for _, car := range sess.Engine.Cars() {
			dir := car.Direction
			cfg.Cars = append(cfg.Cars, engine.CarConfig{
				X:         car.X,
				Y:         car.Y,
				Level:     car.Level,
				Direction: &dir,
				Design:    car.Design.ID,
			})
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PruneSessions removes sessions idle for longer than maxIdle
func (s *trackServiceImpl) PruneSessions(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	var expired []string
	for _, sess := range s.sessions.List() {
		if sess.LastAccessedAt.Before(cutoff) {
			expired = append(expired, sess.ID)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, id := range expired {
		if err := s.DeleteSession(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("session", id).Msg("failed to prune session")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("pruned idle sessions")
	}
	return removed, nil
}

// Shutdown stops all schedulers and persists every session
func (s *trackServiceImpl) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	var tickers []*ticker.Ticker
	sessions := s.sessions.List()
	for _, sess := range sessions {
		if sess.Ticker != nil {
			tickers = append(tickers, sess.Ticker)
		}
	}
	s.mu.Unlock()

	for _, tk := range tickers {
		tk.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var failed int
	for _, sess := range sessions {
		if err := s.sessions.Save(sess.ID); err != nil {
			s.logger.Warn().Err(err).Str("session", sess.ID).Msg("failed to persist session on shutdown")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to save %d sessions", failed)
	}
	return nil
}
