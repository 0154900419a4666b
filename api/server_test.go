package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
)

// MockTrackService implements service.TrackService for testing
type MockTrackService struct {
	CreateSessionFunc func(ctx context.Context, layout string) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	PlaceTrackFunc   func(ctx context.Context, sessionID string, x, y int, kind engine.TrackKind) (*engine.Snapshot, error)
	PlaceSceneryFunc func(ctx context.Context, sessionID string, x, y int, kind engine.SceneryKind) (*engine.Snapshot, error)
	EraseFunc        func(ctx context.Context, sessionID string, x, y int) (*engine.Snapshot, error)
	PlaceCarFunc     func(ctx context.Context, sessionID string, x, y, design int) (*engine.Car, error)

	TickFunc func(ctx context.Context, sessionID string, n int) (*service.TickResult, error)

	SaveTrackFunc   func(ctx context.Context, sessionID, name string) (*service.TrackInfo, error)
	DeleteTrackFunc func(ctx context.Context, name string) error

	LoadLayoutFunc func(ctx context.Context, name string) (*engine.TrackConfig, error)
	SaveLayoutFunc func(ctx context.Context, name string, cfg *engine.TrackConfig) error
}

func testSnapshot() *engine.Snapshot {
	return &engine.Snapshot{Width: 3, Height: 3, TileSize: engine.TileSize}
}

func (m *MockTrackService) CreateSession(ctx context.Context, layout string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, layout)
	}
	return &service.SessionInfo{ID: "ab12", Layout: layout, CreatedAt: time.Now()}, nil
}

func (m *MockTrackService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, Layout: "starter"}, nil
}

func (m *MockTrackService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockTrackService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockTrackService) PlaceTrack(ctx context.Context, sessionID string, x, y int, kind engine.TrackKind) (*engine.Snapshot, error) {
	if m.PlaceTrackFunc != nil {
		return m.PlaceTrackFunc(ctx, sessionID, x, y, kind)
	}
	return testSnapshot(), nil
}

func (m *MockTrackService) PlaceScenery(ctx context.Context, sessionID string, x, y int, kind engine.SceneryKind) (*engine.Snapshot, error) {
	if m.PlaceSceneryFunc != nil {
		return m.PlaceSceneryFunc(ctx, sessionID, x, y, kind)
	}
	return testSnapshot(), nil
}

func (m *MockTrackService) Erase(ctx context.Context, sessionID string, x, y int) (*engine.Snapshot, error) {
	if m.EraseFunc != nil {
		return m.EraseFunc(ctx, sessionID, x, y)
	}
	return testSnapshot(), nil
}

func (m *MockTrackService) PlaceCar(ctx context.Context, sessionID string, x, y, design int) (*engine.Car, error) {
	if m.PlaceCarFunc != nil {
		return m.PlaceCarFunc(ctx, sessionID, x, y, design)
	}
	return &engine.Car{X: x, Y: y}, nil
}

func (m *MockTrackService) RemoveAllCars(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	return testSnapshot(), nil
}

func (m *MockTrackService) ResetToStarter(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	return testSnapshot(), nil
}

func (m *MockTrackService) GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	return testSnapshot(), nil
}

func (m *MockTrackService) Tick(ctx context.Context, sessionID string, n int) (*service.TickResult, error) {
	if m.TickFunc != nil {
		return m.TickFunc(ctx, sessionID, n)
	}
	return &service.TickResult{Ticks: n, Snapshot: testSnapshot()}, nil
}

func (m *MockTrackService) StartSimulation(ctx context.Context, sessionID string) (*service.SimulationStatus, error) {
	return &service.SimulationStatus{SessionID: sessionID, Running: true}, nil
}

func (m *MockTrackService) StopSimulation(ctx context.Context, sessionID string) (*service.SimulationStatus, error) {
	return &service.SimulationStatus{SessionID: sessionID}, nil
}

func (m *MockTrackService) SaveTrack(ctx context.Context, sessionID, name string) (*service.TrackInfo, error) {
	if m.SaveTrackFunc != nil {
		return m.SaveTrackFunc(ctx, sessionID, name)
	}
	return &service.TrackInfo{Name: name}, nil
}

func (m *MockTrackService) LoadTrack(ctx context.Context, sessionID, name string) (*engine.Snapshot, error) {
	return testSnapshot(), nil
}

func (m *MockTrackService) DeleteTrack(ctx context.Context, name string) error {
	if m.DeleteTrackFunc != nil {
		return m.DeleteTrackFunc(ctx, name)
	}
	return nil
}

func (m *MockTrackService) ListTracks(ctx context.Context) ([]*service.TrackInfo, error) {
	return []*service.TrackInfo{{Name: service.StarterTrackName, BuiltIn: true}}, nil
}

func (m *MockTrackService) ListLayouts(ctx context.Context) ([]*service.LayoutInfo, error) {
	return []*service.LayoutInfo{{LayoutID: "starter"}}, nil
}

func (m *MockTrackService) LoadLayout(ctx context.Context, name string) (*engine.TrackConfig, error) {
	if m.LoadLayoutFunc != nil {
		return m.LoadLayoutFunc(ctx, name)
	}
	return &engine.TrackConfig{Name: name}, nil
}

func (m *MockTrackService) SaveLayout(ctx context.Context, name string, cfg *engine.TrackConfig) error {
	if m.SaveLayoutFunc != nil {
		return m.SaveLayoutFunc(ctx, name, cfg)
	}
	return nil
}

func (m *MockTrackService) ExportLayout(ctx context.Context, sessionID, name, description string) (*engine.TrackConfig, error) {
	return &engine.TrackConfig{Name: name, Description: description}, nil
}

func (m *MockTrackService) PruneSessions(ctx context.Context, maxIdle time.Duration) (int, error) {
	return 0, nil
}

func (m *MockTrackService) Shutdown(ctx context.Context) error {
	return nil
}

var _ service.TrackService = (*MockTrackService)(nil)

func newTestServer(svc service.TrackService) *Server {
	return NewServer(svc, nil, zerolog.Nop())
}

func doRequest(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	return rr
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp["error"]
}

func TestCreateSession(t *testing.T) {
	var gotLayout string
	mock := &MockTrackService{
		CreateSessionFunc: func(ctx context.Context, layout string) (*service.SessionInfo, error) {
			gotLayout = layout
			return &service.SessionInfo{ID: "ab12", Layout: layout}, nil
		},
	}
	server := newTestServer(mock)

	rr := doRequest(t, server, "POST", "/api/sessions", map[string]string{"layout": "figure8"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusCreated)
	}
	if gotLayout != "figure8" {
		t.Errorf("layout = %q, want figure8", gotLayout)
	}

	var info service.SessionInfo
	if err := json.NewDecoder(rr.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.ID != "ab12" {
		t.Errorf("ID = %q, want ab12", info.ID)
	}
}

func TestCreateSessionEmptyBody(t *testing.T) {
	var called bool
	mock := &MockTrackService{
		CreateSessionFunc: func(ctx context.Context, layout string) (*service.SessionInfo, error) {
			called = true
			if layout != "" {
				t.Errorf("layout = %q, want empty", layout)
			}
			return &service.SessionInfo{ID: "ab12"}, nil
		},
	}
	server := newTestServer(mock)

	rr := doRequest(t, server, "POST", "/api/sessions", nil)
	if rr.Code != http.StatusCreated || !called {
		t.Fatalf("status = %d called = %v", rr.Code, called)
	}
}

func TestListSessionsSortAndLimit(t *testing.T) {
	now := time.Now()
	mock := &MockTrackService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
			return []*service.SessionInfo{
				{ID: "a", CreatedAt: now.Add(-3 * time.Hour), LastAccessedAt: now.Add(-1 * time.Minute)},
				{ID: "b", CreatedAt: now.Add(-1 * time.Hour), LastAccessedAt: now.Add(-3 * time.Minute)},
				{ID: "c", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now.Add(-2 * time.Minute)},
			}, nil
		},
	}
	server := newTestServer(mock)

	tests := []struct {
		query string
		want  []string
		total int
	}{
		{"", []string{"a", "c", "b"}, 3},
		{"?sort=created&order=asc", []string{"a", "c", "b"}, 3},
		{"?sort=created", []string{"b", "c", "a"}, 3},
		{"?order=asc&limit=2", []string{"b", "c"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := doRequest(t, server, "GET", "/api/sessions"+tt.query, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Total != tt.total || resp.Count != len(tt.want) {
				t.Errorf("count/total = %d/%d, want %d/%d", resp.Count, resp.Total, len(tt.want), tt.total)
			}
			for i, id := range tt.want {
				if resp.Sessions[i].ID != id {
					t.Errorf("sessions[%d] = %s, want %s", i, resp.Sessions[i].ID, id)
				}
			}
		})
	}
}

func TestGetSessionNotFound(t *testing.T) {
	mock := &MockTrackService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			return nil, fmt.Errorf("session %s: %w", sessionID, service.ErrSessionNotFound)
		},
	}
	server := newTestServer(mock)

	rr := doRequest(t, server, "GET", "/api/sessions/zzzz", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if msg := errorMessage(t, rr); !strings.Contains(msg, "session not found") {
		t.Errorf("error = %q", msg)
	}
}

func TestDeleteSession(t *testing.T) {
	var deleted string
	mock := &MockTrackService{
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			deleted = sessionID
			return nil
		},
	}
	server := newTestServer(mock)

	rr := doRequest(t, server, "DELETE", "/api/sessions/ab12", nil)
	if rr.Code != http.StatusOK || deleted != "ab12" {
		t.Fatalf("status = %d deleted = %q", rr.Code, deleted)
	}
}

func TestPlaceTrack(t *testing.T) {
	var gotX, gotY int
	var gotKind engine.TrackKind
	mock := &MockTrackService{
		PlaceTrackFunc: func(ctx context.Context, sessionID string, x, y int, kind engine.TrackKind) (*engine.Snapshot, error) {
			gotX, gotY, gotKind = x, y, kind
			return testSnapshot(), nil
		},
	}
	server := newTestServer(mock)

	rr := doRequest(t, server, "POST", "/api/sessions/ab12/track", `{"x":2,"y":1,"kind":"curve_ne"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	if gotX != 2 || gotY != 1 || gotKind != engine.CurveNE {
		t.Errorf("got (%d,%d,%v), want (2,1,curve_ne)", gotX, gotY, gotKind)
	}
}

func TestPlaceTrackBadRequests(t *testing.T) {
	server := newTestServer(&MockTrackService{})

	tests := []struct {
		name string
		body string
	}{
		{"unknown kind", `{"x":1,"y":1,"kind":"spiral"}`},
		{"missing coordinates", `{"kind":"straight_h"}`},
		{"malformed json", `{"x":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, server, "POST", "/api/sessions/ab12/track", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestEditErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"occupied", fmt.Errorf("place scenery: %w", engine.ErrCellOccupied), http.StatusConflict},
		{"car limit", engine.ErrTooManyCars, http.StatusConflict},
		{"out of bounds", fmt.Errorf("(9,9): %w", engine.ErrOutOfBounds), http.StatusBadRequest},
		{"no track", engine.ErrNoTrack, http.StatusBadRequest},
		{"invalid argument", service.ErrInvalidArgument, http.StatusBadRequest},
		{"unknown session", service.ErrSessionNotFound, http.StatusNotFound},
		{"unexpected", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockTrackService{
				PlaceSceneryFunc: func(ctx context.Context, sessionID string, x, y int, kind engine.SceneryKind) (*engine.Snapshot, error) {
					return nil, tt.err
				},
			}
			server := newTestServer(mock)

			rr := doRequest(t, server, "POST", "/api/sessions/ab12/scenery", `{"x":0,"y":0,"kind":"tree"}`)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestPlaceCar(t *testing.T) {
	var gotDesign int
	mock := &MockTrackService{
		PlaceCarFunc: func(ctx context.Context, sessionID string, x, y, design int) (*engine.Car, error) {
			gotDesign = design
			return &engine.Car{ID: 3, X: x, Y: y, Direction: engine.East}, nil
		},
	}
	server := newTestServer(mock)

	rr := doRequest(t, server, "POST", "/api/sessions/ab12/cars", map[string]int{"x": 4, "y": 5, "design": 2})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	if gotDesign != 2 {
		t.Errorf("design = %d, want 2", gotDesign)
	}

	var car engine.Car
	if err := json.NewDecoder(rr.Body).Decode(&car); err != nil {
		t.Fatal(err)
	}
	if car.ID != 3 || car.X != 4 || car.Direction != engine.East {
		t.Errorf("unexpected car %+v", car)
	}
}

func TestTick(t *testing.T) {
	var gotN int
	mock := &MockTrackService{
		TickFunc: func(ctx context.Context, sessionID string, n int) (*service.TickResult, error) {
			gotN = n
			return &service.TickResult{Ticks: n, Snapshot: testSnapshot()}, nil
		},
	}
	server := newTestServer(mock)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"default", "/api/sessions/ab12/tick", nil, 1},
		{"body", "/api/sessions/ab12/tick", map[string]int{"n": 50}, 50},
		{"query", "/api/sessions/ab12/tick?n=7", nil, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, server, "POST", tt.path, tt.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			if gotN != tt.want {
				t.Errorf("n = %d, want %d", gotN, tt.want)
			}
		})
	}

	rr := doRequest(t, server, "POST", "/api/sessions/ab12/tick?n=lots", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("non-numeric n: status = %d, want 400", rr.Code)
	}
}

func TestStartStop(t *testing.T) {
	server := newTestServer(&MockTrackService{})

	rr := doRequest(t, server, "POST", "/api/sessions/ab12/start", nil)
	var status service.SimulationStatus
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK || !status.Running {
		t.Errorf("start: status = %d running = %v", rr.Code, status.Running)
	}

	rr = doRequest(t, server, "POST", "/api/sessions/ab12/stop", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("stop: status = %d", rr.Code)
	}
}

func TestSavedTracks(t *testing.T) {
	mock := &MockTrackService{
		SaveTrackFunc: func(ctx context.Context, sessionID, name string) (*service.TrackInfo, error) {
			if name == "" {
				return nil, fmt.Errorf("track name required: %w", service.ErrInvalidArgument)
			}
			return &service.TrackInfo{Name: name, Width: 3, Height: 3}, nil
		},
		DeleteTrackFunc: func(ctx context.Context, name string) error {
			if name != "loop" {
				return fmt.Errorf("%q: %w", name, service.ErrTrackNotFound)
			}
			return nil
		},
	}
	server := newTestServer(mock)

	rr := doRequest(t, server, "POST", "/api/sessions/ab12/save", map[string]string{"name": "loop"})
	if rr.Code != http.StatusCreated {
		t.Errorf("save: status = %d", rr.Code)
	}

	rr = doRequest(t, server, "POST", "/api/sessions/ab12/save", map[string]string{"name": ""})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("save without name: status = %d, want 400", rr.Code)
	}

	rr = doRequest(t, server, "GET", "/api/tracks", nil)
	var tracks []*service.TrackInfo
	if err := json.NewDecoder(rr.Body).Decode(&tracks); err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || !tracks[0].BuiltIn {
		t.Errorf("unexpected tracks %+v", tracks)
	}

	rr = doRequest(t, server, "DELETE", "/api/tracks/loop", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("delete: status = %d", rr.Code)
	}
	rr = doRequest(t, server, "DELETE", "/api/tracks/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("delete missing: status = %d, want 404", rr.Code)
	}
}

func TestLayouts(t *testing.T) {
	var savedName string
	mock := &MockTrackService{
		LoadLayoutFunc: func(ctx context.Context, name string) (*engine.TrackConfig, error) {
			if name != "starter" {
				return nil, service.ErrConfigNotFound
			}
			return engine.StarterConfig(), nil
		},
		SaveLayoutFunc: func(ctx context.Context, name string, cfg *engine.TrackConfig) error {
			savedName = name
			return nil
		},
	}
	server := newTestServer(mock)

	rr := doRequest(t, server, "GET", "/api/layouts/starter.json", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("get starter: status = %d", rr.Code)
	}
	rr = doRequest(t, server, "GET", "/api/layouts/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("get unknown: status = %d, want 404", rr.Code)
	}

	rr = doRequest(t, server, "POST", "/api/layouts", engine.TrackConfig{Name: "mine", Width: 3, Height: 3})
	if rr.Code != http.StatusCreated || savedName != "mine" {
		t.Errorf("save: status = %d name = %q", rr.Code, savedName)
	}
	rr = doRequest(t, server, "POST", "/api/layouts", engine.TrackConfig{Width: 3, Height: 3})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("save without name: status = %d, want 400", rr.Code)
	}
}

func TestDesignsAndHealth(t *testing.T) {
	server := newTestServer(&MockTrackService{})

	rr := doRequest(t, server, "GET", "/api/designs", nil)
	var designs []engine.CarDesign
	if err := json.NewDecoder(rr.Body).Decode(&designs); err != nil {
		t.Fatal(err)
	}
	if len(designs) != len(engine.CarDesigns) {
		t.Errorf("designs = %d, want %d", len(designs), len(engine.CarDesigns))
	}

	rr = doRequest(t, server, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("health: status = %d", rr.Code)
	}
}

func TestWebSocketRouteAbsentWithoutHub(t *testing.T) {
	server := newTestServer(&MockTrackService{})

	rr := doRequest(t, server, "GET", "/ws?session=ab12", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
