package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/grid-localization/game/engine"
	"github.com/wricardo/grid-localization/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
	handlers   map[string]server.ToolHandlerFunc
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		handlers: make(map[string]server.ToolHandlerFunc),
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Grid Localization",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Grid Localization - MCP Interface

This is a thin client that proxies all requests to the REST API server.

A vehicle random-walks on an N x N board of colored cells. Each step it moves
one cell (bouncing off walls) and a noisy sensor reports the color underneath.
A Bayes filter keeps a probability field over where the vehicle might be.

AVAILABLE TOOLS:
- create_session / list_sessions / get_session / delete_session
- snapshot: board, probability field and sensor reading
- step: advance one tick
- bulk_step: advance up to 100 ticks
- restart: new board, optionally with a different number of colors (4-8)
- estimate: most likely cell, its probability and the field entropy
- colormap: color indices and names
- list_configs: available configurations
- instructions: how the filter works

Tools that take session_id default to the "default" session.`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID (defaults to \"default\")",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.addTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new localization session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the config to use (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.addTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.addTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
		},
	}, c.handleGetSession)

	c.addTool(mcp.Tool{
		Name:        "delete_session",
		Description: "Delete a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID to delete",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleDeleteSession)

	// State
	c.addTool(mcp.Tool{
		Name:        "snapshot",
		Description: "Show the color board, the probability field and the last sensor reading",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
		},
	}, c.handleSnapshot)

	c.addTool(mcp.Tool{
		Name:        "estimate",
		Description: "Get the most likely vehicle cell, its probability and the entropy of the field",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
		},
	}, c.handleEstimate)

	// Simulation
	c.addTool(mcp.Tool{
		Name:        "step",
		Description: "Move the vehicle one cell, take a sensor reading and update the probability field",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
		},
	}, c.handleStep)

	c.addTool(mcp.Tool{
		Name:        "bulk_step",
		Description: fmt.Sprintf("Run several steps in sequence (at most %d per call)", service.MaxBulkSteps),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"steps": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"maximum":     service.MaxBulkSteps,
					"description": "Number of steps to run",
				},
			},
			Required: []string{"steps"},
		},
	}, c.handleBulkStep)

	c.addTool(mcp.Tool{
		Name:        "restart",
		Description: "Start a new game on a fresh board with a uniform probability field",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"num_colors": map[string]interface{}{
					"type":        "integer",
					"minimum":     engine.MinNumColors,
					"maximum":     engine.MaxNumColors,
					"description": "Number of board colors (optional, keeps the current count when omitted)",
				},
			},
		},
	}, c.handleRestart)

	// Palette and configuration
	c.addTool(mcp.Tool{
		Name:        "colormap",
		Description: "List color indices with their names and RGB values",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"num_colors": map[string]interface{}{
					"type":        "integer",
					"description": "Number of colors to list (optional, whole palette when omitted)",
				},
			},
		},
	}, c.handleColormap)

	c.addTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.addTool(mcp.Tool{
		Name:        "instructions",
		Description: "Explain the simulation and how to read its output",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleInstructions)
}

// addTool registers a tool with the MCP server and keeps its handler for lookup
func (c *Client) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	c.handlers[tool.Name] = handler
	c.mcpServer.AddTool(tool, handler)
}

// Tools returns the names of all registered tools
func (c *Client) Tools() []string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
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
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Argument helpers

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func sessionArg(args map[string]interface{}) string {
	if id, _ := args["session_id"].(string); strings.TrimSpace(id) != "" {
		return id
	}
	return service.DefaultSessionID
}

// intArg reads an integer argument. JSON numbers arrive as float64.
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	configName, _ := arguments(request)["config_name"].(string)

	body := map[string]string{}
	if configName != "" {
		body["config_name"] = configName
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		step := 0
		if s.Snapshot != nil {
			step = s.Snapshot.Step
		}
		fmt.Fprintf(&result, "- %s (Config: %s, Step: %d, Created: %s)\n",
			s.ID, s.ConfigName, step, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := sessionArg(arguments(request))

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	if err := c.apiCall(ctx, "DELETE", sessionPath(sessionID, ""), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Deleted session: %s", sessionID)), nil
}

func (c *Client) handleSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := sessionArg(arguments(request))

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/snapshot"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleEstimate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := sessionArg(arguments(request))

	var est engine.Estimate
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/estimate"), nil, &est); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatEstimate(&est)), nil
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := sessionArg(arguments(request))

	var result service.StepResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/step"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleBulkStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID := sessionArg(args)

	steps, ok := intArg(args, "steps")
	if !ok || steps < 1 {
		return mcp.NewToolResultError("steps must be a positive integer"), nil
	}

	var result service.BulkStepResult
	body := map[string]int{"steps": steps}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/bulk-step"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBulkStepResult(sessionID, &result)), nil
}

func (c *Client) handleRestart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID := sessionArg(args)

	var body interface{}
	if n, ok := intArg(args, "num_colors"); ok {
		body = map[string]int{"num_colors": n}
	}

	var response struct {
		Message  string           `json:"message"`
		Snapshot *engine.Snapshot `json:"snapshot"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/restart"), body, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Game restarted\n\n" + formatSnapshot(response.Snapshot)), nil
}

func (c *Client) handleColormap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/colormap"
	if n, ok := intArg(arguments(request), "num_colors"); ok {
		path += fmt.Sprintf("?num_colors=%d", n)
	}

	var response struct {
		Colors []engine.Color `json:"colors"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString("Colors:\n")
	for _, color := range response.Colors {
		fmt.Fprintf(&result, "  %d %-8s rgb(%d,%d,%d)\n",
			color.Index, color.Name, color.RGB[0], color.RGB[1], color.RGB[2])
	}
	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString("Available Configurations:\n\n")
	for _, cfg := range configs {
		fmt.Fprintf(&result, "• %s (%s)\n", cfg.ConfigID, cfg.Name)
		if cfg.Description != "" {
			fmt.Fprintf(&result, "  %s\n", cfg.Description)
		}
		fmt.Fprintf(&result, "  Board: %dx%d, Colors: %d, Sensor accuracy: %g\n\n",
			cfg.BoardSize, cfg.BoardSize, cfg.NumColors, cfg.SensorAccuracy)
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := fmt.Sprintf(`Grid Localization - Instructions

THE WORLD:
• The board is an N x N grid. Every cell has one of K colors (K between %d and %d).
• A vehicle sits on one cell. You never see it directly through the filter.

EACH STEP:
• The vehicle picks an axis and a direction uniformly at random and moves one cell.
• Moving into a wall bounces it back one cell the other way, so it always moves.
• A sensor reports the color under the vehicle. With probability equal to the
  sensor accuracy the report is the true color; otherwise it is a uniformly random
  color, which may still happen to be the true one.

THE FILTER:
• Predict: each cell's probability is spread evenly over its on-board neighbors
  (2 for corners, 3 for edges, 4 inside).
• Correct: cells matching the reading are weighted by P(hit), the others by P(miss),
  then the field is normalized so it sums to 1.
• After a restart the field is uniform: every cell is 1/(N*N).

READING THE OUTPUT:
• snapshot shows the board as color indices and the field with 3 decimals.
• estimate reports the argmax cell, its probability and the entropy in nats.
  Entropy falls as the filter becomes sure of the position.
• restart with num_colors outside [%d, %d] is rejected and the game is unchanged.

TIPS:
• Low sensor accuracy and few colors make localization slow.
• bulk_step runs at most %d steps per call.`,
		engine.MinNumColors, engine.MaxNumColors,
		engine.MinNumColors, engine.MaxNumColors,
		service.MaxBulkSteps)

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	var result strings.Builder
	fmt.Fprintf(&result, "Session: %s\nConfig: %s\nCreated: %s\n",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"))

	if session.Config != nil {
		fmt.Fprintf(&result, "Board: %dx%d, Colors: %d, Sensor accuracy: %g\n",
			session.Config.BoardSize, session.Config.BoardSize,
			session.Config.NumColors, session.Config.SensorAccuracy)
	}
	if session.Estimate != nil {
		result.WriteString(formatEstimate(session.Estimate))
	}
	if session.Snapshot != nil {
		result.WriteString("\n")
		result.WriteString(formatSnapshot(session.Snapshot))
	}
	return result.String()
}

func formatSnapshot(snap *engine.Snapshot) string {
	if snap == nil {
		return "No snapshot available"
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Step: %d\n", snap.Step)
	fmt.Fprintf(&result, "Sensor reading: %s\n", formatReading(snap.SensorReading))
	fmt.Fprintf(&result, "Vehicle: (%d, %d)\n\n", snap.Vehicle.X, snap.Vehicle.Y)

	result.WriteString("Board (color index):\n")
	for _, row := range snap.Board {
		cells := make([]string, len(row))
		for i, color := range row {
			cells[i] = fmt.Sprintf("%d", color)
		}
		result.WriteString("  " + strings.Join(cells, " ") + "\n")
	}

	result.WriteString("\nProbability field:\n")
	result.WriteString(formatField(snap.ProbabilityField))
	return result.String()
}

func formatField(field [][]float64) string {
	var result strings.Builder
	for _, row := range field {
		cells := make([]string, len(row))
		for i, p := range row {
			cells[i] = fmt.Sprintf("%.3f", p)
		}
		result.WriteString("  " + strings.Join(cells, " ") + "\n")
	}
	return result.String()
}

func formatReading(reading int) string {
	if reading == engine.NoReading {
		return "none yet"
	}
	return fmt.Sprintf("%d (%s)", reading, engine.ColorName(reading))
}

func formatEstimate(est *engine.Estimate) string {
	verdict := "wrong"
	if est.Correct {
		verdict = "correct"
	}
	return fmt.Sprintf("Estimate after step %d: (%d, %d) p=%.4f entropy=%.4f nats, %s (distance %d)\n",
		est.Step, est.Position.X, est.Position.Y, est.Probability, est.Entropy, verdict, est.Distance)
}

func formatStepResult(result *service.StepResult) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Moved (%d, %d) -> (%d, %d), sensor read %d (%s)\n",
		result.From.X, result.From.Y, result.To.X, result.To.Y,
		result.SensorReading, result.ReadingName)
	out.WriteString(formatEstimate(&result.Estimate))
	if result.Snapshot != nil {
		out.WriteString("\nProbability field:\n")
		out.WriteString(formatField(result.Snapshot.ProbabilityField))
	}
	return out.String()
}

func formatBulkStepResult(sessionID string, result *service.BulkStepResult) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Session %s: ran %d of %d steps\n", sessionID, result.StepsExecuted, result.RequestedSteps)
	if result.Truncated {
		fmt.Fprintf(&out, "Request truncated to %d steps\n", result.Limit)
	}
	if !result.Success {
		fmt.Fprintf(&out, "Stopped on step %d: %s\n", result.StoppedOnStep, result.StoppedReason)
	}

	if len(result.Readings) > 0 {
		names := make([]string, len(result.Readings))
		for i, r := range result.Readings {
			names[i] = engine.ColorName(r)
		}
		fmt.Fprintf(&out, "Readings: %s\n", strings.Join(names, " "))
	}
	out.WriteString(formatEstimate(&result.Estimate))
	return out.String()
}
