package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/wricardo/autotrack/api"
	"github.com/wricardo/autotrack/game/config"
	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
	"github.com/wricardo/autotrack/game/session"
	"github.com/wricardo/autotrack/game/store"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %s, trailing slash not trimmed", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/ab12" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(service.SessionInfo{ID: "ab12", Layout: "starter"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var info service.SessionInfo
	if err := client.apiCall(context.Background(), "GET", "/api/sessions/ab12", nil, &info); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if info.Layout != "starter" {
		t.Errorf("Layout = %s, want starter", info.Layout)
	}
}

func TestClient_apiCall_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "car limit reached"})
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall(context.Background(), "GET", "/json", nil, nil)
	if err == nil || err.Error() != "car limit reached" {
		t.Errorf("Expected API error message, got %v", err)
	}

	err = client.apiCall(context.Background(), "GET", "/plain", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "API error") {
		t.Errorf("Expected 'API error', got %v", err)
	}
}

func TestIntArg(t *testing.T) {
	args := map[string]any{"f": float64(3), "i": 4, "n": json.Number("5"), "s": "6"}

	tests := []struct {
		key  string
		want int
		ok   bool
	}{
		{"f", 3, true},
		{"i", 4, true},
		{"n", 5, true},
		{"s", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		got, ok := intArg(args, tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("intArg(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatSnapshot(t *testing.T) {
	snap := engine.NewEngineWithDefaults().Snapshot()

	result := formatSnapshot(&snap)

	expected := []string{
		"Tick 0",
		"Cars 1/5",
		"Ground:",
		"@",
		"#0 red at (6,5) ground, heading east",
	}
	for _, want := range expected {
		if !strings.Contains(result, want) {
			t.Errorf("Expected %q in output, got:\n%s", want, result)
		}
	}
	if strings.Contains(result, "Air:") {
		t.Errorf("Starter loop has no air level, got:\n%s", result)
	}
}

func TestFormatSnapshot_AirAndScenery(t *testing.T) {
	e, err := engine.NewEngine(3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SetTrack(1, 1, engine.Air, engine.BridgeH); err != nil {
		t.Fatal(err)
	}
	if err := e.SetScenery(0, 0, engine.Tree); err != nil {
		t.Fatal(err)
	}
	snap := e.Snapshot()

	result := formatSnapshot(&snap)

	if !strings.Contains(result, "  0 t..") {
		t.Errorf("Expected scenery on ground row, got:\n%s", result)
	}
	if !strings.Contains(result, "Air:") || !strings.Contains(result, "  1 .=.") {
		t.Errorf("Expected bridge on air row, got:\n%s", result)
	}
}

func TestFormatSnapshot_Nil(t *testing.T) {
	if got := formatSnapshot(nil); got != "No snapshot available" {
		t.Errorf("formatSnapshot(nil) = %q", got)
	}
}

func TestDescribeCell(t *testing.T) {
	snap := engine.NewEngineWithDefaults().Snapshot()

	result := describeCell(&snap, 6, 5)
	if !strings.Contains(result, "Ground: straight_h") {
		t.Errorf("Expected straight track at the demo car's cell, got:\n%s", result)
	}
	if !strings.Contains(result, "#0") {
		t.Errorf("Expected the demo car, got:\n%s", result)
	}

	result = describeCell(&snap, 0, 0)
	if !strings.Contains(result, "Empty") {
		t.Errorf("Expected an empty corner, got:\n%s", result)
	}
}

// newStack serves the real API over a temp directory so the tool handlers
// run end to end.
func newStack(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()

	configs, err := config.NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	tracks, err := store.NewFileStore(filepath.Join(dir, "tracks.json"))
	if err != nil {
		t.Fatal(err)
	}
	svc := service.NewTrackService(session.NewManager(zerolog.Nop()), configs, tracks)
	t.Cleanup(func() { svc.Shutdown(context.Background()) })

	server := httptest.NewServer(api.NewServer(svc, nil, zerolog.Nop()))
	t.Cleanup(server.Close)
	return NewClient(server.URL)
}

func TestTools_EndToEnd(t *testing.T) {
	client := newStack(t)
	ctx := context.Background()

	result, err := client.handleCreateSession(ctx, callRequest("create_session", map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(t, result)
	if result.IsError || !strings.Contains(text, "Created session: ") {
		t.Fatalf("create_session: %s", text)
	}
	id := strings.TrimSpace(strings.SplitN(strings.TrimPrefix(text, "Created session: "), "\n", 2)[0])

	result, _ = client.handleTick(ctx, callRequest("tick", map[string]any{"session_id": id, "n": float64(50)}))
	text = resultText(t, result)
	if result.IsError || !strings.Contains(text, "Advanced 50 tick(s)") || !strings.Contains(text, "Tick 50") {
		t.Errorf("tick: %s", text)
	}

	result, _ = client.handlePlaceCar(ctx, callRequest("place_car", map[string]any{"session_id": id, "x": float64(0), "y": float64(0)}))
	if !result.IsError {
		t.Errorf("place_car on empty cell should fail: %s", resultText(t, result))
	}

	result, _ = client.handlePlaceTrack(ctx, callRequest("place_track", map[string]any{
		"session_id": id, "x": float64(0), "y": float64(0), "kind": "curve_se",
	}))
	if text := resultText(t, result); result.IsError || !strings.Contains(text, "  0 F") {
		t.Errorf("place_track: %s", text)
	}

	result, _ = client.handleSaveTrack(ctx, callRequest("save_track", map[string]any{"session_id": id, "name": "corner"}))
	if text := resultText(t, result); result.IsError {
		t.Errorf("save_track: %s", text)
	}

	result, _ = client.handleListTracks(ctx, callRequest("list_tracks", map[string]any{}))
	text = resultText(t, result)
	if !strings.Contains(text, service.StarterTrackName+" (built in)") || !strings.Contains(text, "corner") {
		t.Errorf("list_tracks: %s", text)
	}

	result, _ = client.handleDescribeCell(ctx, callRequest("describe_cell", map[string]any{"session_id": id, "x": float64(99), "y": float64(0)}))
	if !result.IsError {
		t.Errorf("describe_cell outside the grid should fail")
	}

	result, _ = client.handleDeleteSession(ctx, callRequest("delete_session", map[string]any{"session_id": id}))
	if result.IsError {
		t.Errorf("delete_session: %s", resultText(t, result))
	}

	result, _ = client.handleSnapshot(ctx, callRequest("snapshot", map[string]any{"session_id": id}))
	if text := resultText(t, result); !result.IsError || !strings.Contains(text, "session not found") {
		t.Errorf("snapshot of deleted session: %s", text)
	}
}

func TestTools_MissingCoordinates(t *testing.T) {
	client := NewClient("http://127.0.0.1:0")

	result, err := client.handleErase(context.Background(), callRequest("erase", map[string]any{"session_id": "ab12"}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "x and y are required") {
		t.Errorf("Expected coordinate error, got %s", resultText(t, result))
	}
}
