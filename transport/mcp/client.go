package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
)

const instructions = `Auto Track - MCP Interface

This is a thin client that proxies all requests to the REST API server.

A session holds a grid of track tiles on two levels (ground and air), some
scenery and up to 5 cars. Cars follow the track on their own; each tile takes
50 ticks to cross. Turntables send a car out through a different connected
side each time one arrives. A car stalls in place when the track ahead is
missing or does not connect.

TYPICAL FLOW:
1. create_session (optionally with a layout from list_layouts)
2. snapshot to see the grid
3. place_track / place_scenery / erase / place_car to edit
4. tick to step the simulation, or start_simulation to run it live
5. save_track to keep the layout under a name

Coordinates are 0-based; x is the column and y is the row.`

var (
	trackKindNames   = kindNames(engine.TrackKinds)
	sceneryKindNames = kindNames(engine.SceneryKinds)
)

func kindNames[K fmt.Stringer](kinds []K) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Auto Track",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)

	c.registerTools()
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func enumProp(description string, values []string) map[string]any {
	return map[string]any{"type": "string", "enum": values, "description": description}
}

func sessionTool(name, description string, extra map[string]any, required ...string) mcp.Tool {
	props := map[string]any{"session_id": stringProp("Session ID")}
	for k, v := range extra {
		props[k] = v
	}
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   append([]string{"session_id"}, required...),
		},
	}
}

func cellProps() map[string]any {
	return map[string]any{
		"x": intProp("Column (0-based)"),
		"y": intProp("Row (0-based)"),
	}
}

func withProps(base map[string]any, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new track session, optionally from a named layout",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"layout": stringProp("Layout ID from list_layouts (optional, defaults to the starter loop)"),
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active track sessions",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, c.handleListSessions)

	c.mcpServer.AddTool(sessionTool("get_session", "Get session details and the current grid", nil), c.handleGetSession)
	c.mcpServer.AddTool(sessionTool("delete_session", "Delete a session", nil), c.handleDeleteSession)

	// Editing tools
	c.mcpServer.AddTool(sessionTool("place_track", "Place a track tile. Bridges go to the air level, every other kind to the ground",
		withProps(cellProps(), map[string]any{"kind": enumProp("Track kind", trackKindNames)}),
		"x", "y", "kind"), c.handlePlaceTrack)

	c.mcpServer.AddTool(sessionTool("place_scenery", "Place scenery on a cell without track",
		withProps(cellProps(), map[string]any{"kind": enumProp("Scenery kind", sceneryKindNames)}),
		"x", "y", "kind"), c.handlePlaceScenery)

	c.mcpServer.AddTool(sessionTool("erase", "Clear everything in a cell", cellProps(), "x", "y"), c.handleErase)

	c.mcpServer.AddTool(sessionTool("place_car", "Place a car on a cell with track (at most 5 cars)",
		withProps(cellProps(), map[string]any{"design": intProp("Car design 1-5 (optional)")}),
		"x", "y"), c.handlePlaceCar)

	c.mcpServer.AddTool(sessionTool("remove_cars", "Remove every car", nil), c.handleRemoveCars)
	c.mcpServer.AddTool(sessionTool("reset_track", "Replace the track with the starter loop and its demo car", nil), c.handleReset)

	// Simulation
	c.mcpServer.AddTool(sessionTool("snapshot", "Show the grid, cars and turntables", nil), c.handleSnapshot)

	c.mcpServer.AddTool(sessionTool("tick", "Advance the simulation by n ticks (1-1000, 50 ticks per tile)",
		map[string]any{"n": intProp("Number of ticks (default 1)")}), c.handleTick)

	c.mcpServer.AddTool(sessionTool("start_simulation", "Run the simulation continuously", nil), c.handleStart)
	c.mcpServer.AddTool(sessionTool("stop_simulation", "Pause the simulation", nil), c.handleStop)

	c.mcpServer.AddTool(sessionTool("describe_cell", "Describe one cell: track on both levels, connections, turntable state and cars",
		cellProps(), "x", "y"), c.handleDescribeCell)

	// Saved tracks
	c.mcpServer.AddTool(sessionTool("save_track", "Save the session's track under a name (cars are not saved)",
		map[string]any{"name": stringProp("Track name")}, "name"), c.handleSaveTrack)

	c.mcpServer.AddTool(sessionTool("load_track", "Load a saved track into the session, clearing its cars",
		map[string]any{"name": stringProp("Track name from list_tracks")}, "name"), c.handleLoadTrack)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_track",
		Description: "Delete a saved track",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"name": stringProp("Track name")},
			Required:   []string{"name"},
		},
	}, c.handleDeleteTrack)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_tracks",
		Description: "List saved tracks",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, c.handleListTracks)

	// Layouts
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_layouts",
		Description: "List layout files available for new sessions",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, c.handleListLayouts)

	c.mcpServer.AddTool(sessionTool("export_layout", "Write the session's track and cars as a layout file",
		map[string]any{
			"name":        stringProp("Layout name"),
			"description": stringProp("Layout description (optional)"),
		}, "name"), c.handleExportLayout)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// Argument helpers. JSON numbers arrive as float64.

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	return args
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

func cellArgs(args map[string]any) (map[string]any, error) {
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return nil, fmt.Errorf("x and y are required")
	}
	return map[string]any{"x": x, "y": y}, nil
}

func sessionPath(args map[string]any, suffix string) string {
	return "/api/sessions/" + url.PathEscape(stringArg(args, "session_id")) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]string{}
	if layout := stringArg(args, "layout"); layout != "" {
		body["layout"] = layout
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\nLayout: %s\n\n%s",
		session.ID, session.Layout, formatSnapshot(session.Snapshot))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		state := "stopped"
		if s.Running {
			state = "running"
		}
		fmt.Fprintf(&b, "- %s (Layout: %s, %s, Created: %s)\n",
			s.ID, s.Layout, state, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(args, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	if err := c.apiCall(ctx, "DELETE", sessionPath(args, ""), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s deleted", stringArg(args, "session_id"))), nil
}

func (c *Client) editCell(ctx context.Context, request mcp.CallToolRequest, suffix string, extra map[string]any) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body, err := cellArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	for k, v := range extra {
		body[k] = v
	}

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "POST", sessionPath(args, suffix), body, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handlePlaceTrack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.editCell(ctx, request, "/track", map[string]any{"kind": stringArg(arguments(request), "kind")})
}

func (c *Client) handlePlaceScenery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.editCell(ctx, request, "/scenery", map[string]any{"kind": stringArg(arguments(request), "kind")})
}

func (c *Client) handleErase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.editCell(ctx, request, "/erase", nil)
}

func (c *Client) handlePlaceCar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body, err := cellArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if design, ok := intArg(args, "design"); ok {
		body["design"] = design
	}

	var car engine.Car
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/cars"), body, &car); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Placed car\n" + formatCar(car)), nil
}

func (c *Client) handleRemoveCars(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "DELETE", sessionPath(args, "/cars"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Removed all cars\n\n" + formatSnapshot(&snap)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var response struct {
		Message  string           `json:"message"`
		Snapshot *engine.Snapshot `json:"snapshot"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatSnapshot(response.Snapshot))), nil
}

func (c *Client) handleSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "GET", sessionPath(args, "/snapshot"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	n, ok := intArg(args, "n")
	if !ok {
		n = 1
	}

	var result service.TickResult
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/tick"), map[string]int{"n": n}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatTickResult(&result)), nil
}

func (c *Client) simulation(ctx context.Context, request mcp.CallToolRequest, suffix string) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var status service.SimulationStatus
	if err := c.apiCall(ctx, "POST", sessionPath(args, suffix), nil, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state := "stopped"
	if status.Running {
		state = "running"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s %s at tick %d with %d car(s)",
		status.SessionID, state, status.Tick, status.Cars)), nil
}

func (c *Client) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.simulation(ctx, request, "/start")
}

func (c *Client) handleStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.simulation(ctx, request, "/stop")
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required"), nil
	}

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "GET", sessionPath(args, "/snapshot"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if y < 0 || y >= len(snap.Grid) || x < 0 || x >= len(snap.Grid[y]) {
		return mcp.NewToolResultError(fmt.Sprintf("(%d,%d) is outside the %dx%d grid", x, y, snap.Width, snap.Height)), nil
	}
	return mcp.NewToolResultText(describeCell(&snap, x, y)), nil
}

func (c *Client) handleSaveTrack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var info service.TrackInfo
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/save"), map[string]string{"name": stringArg(args, "name")}, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved track %q (%dx%d)", info.Name, info.Width, info.Height)), nil
}

func (c *Client) handleLoadTrack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/load"), map[string]string{"name": stringArg(args, "name")}, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Loaded track %q\n\n%s", stringArg(args, "name"), formatSnapshot(&snap))), nil
}

func (c *Client) handleDeleteTrack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(arguments(request), "name")

	if err := c.apiCall(ctx, "DELETE", "/api/tracks/"+url.PathEscape(name), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted track %q", name)), nil
}

func (c *Client) handleListTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var tracks []service.TrackInfo
	if err := c.apiCall(ctx, "GET", "/api/tracks", nil, &tracks); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Saved Tracks:\n\n")
	for _, t := range tracks {
		if t.BuiltIn {
			fmt.Fprintf(&b, "- %s (built in)\n", t.Name)
			continue
		}
		fmt.Fprintf(&b, "- %s (%dx%d, saved %s)\n", t.Name, t.Width, t.Height, t.SavedAt.Format(time.RFC3339))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleListLayouts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var layouts []service.LayoutInfo
	if err := c.apiCall(ctx, "GET", "/api/layouts", nil, &layouts); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Layouts:\n\n")
	for _, l := range layouts {
		fmt.Fprintf(&b, "- %s: %s\n  %s\n  Grid: %dx%d, Cars: %d\n\n",
			l.LayoutID, l.Name, l.Description, l.Width, l.Height, l.Cars)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleExportLayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body := map[string]string{
		"name":        stringArg(args, "name"),
		"description": stringArg(args, "description"),
	}

	var cfg engine.TrackConfig
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/export"), body, &cfg); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Exported layout %q (%dx%d, %d car(s))",
		cfg.Name, cfg.Width, cfg.Height, len(cfg.Cars))), nil
}
